package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/assistant"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/retrieval"
	"github.com/hyperjump/studybuddy/internal/schedule"
	"github.com/hyperjump/studybuddy/internal/storage"
	"github.com/hyperjump/studybuddy/internal/timespec"
)

const (
	maxUploadBytes   = 32 << 20
	defaultListLimit = 50
	maxListLimit     = 500

	replyFileProcessed = "File processed. Ask your question related to the content."
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.deps.Storage.CountDocuments(ctx)
	if err != nil {
		s.logger.Error("status: count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.deps.Storage.CountChunks(ctx)
	if err != nil {
		s.logger.Error("status: count chunks failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"documents":         docCount,
		"chunks":            chunkCount,
		"vector_index_size": s.deps.Index.Size(),
		"vector_index_type": s.deps.Index.Type(),
		"pending_timers":    len(s.deps.Scheduler.Pending()),
	}
	if s.deps.Watch != nil {
		resp["watch_directories"] = s.deps.Watch.Directories()
	}
	if cfg := s.deps.Config; cfg != nil {
		resp["config"] = map[string]interface{}{
			"embedding_dimensions": cfg.Embedding.Dimensions,
			"chunk_size":           cfg.Retrieval.ChunkSize,
			"top_k":                cfg.Retrieval.TopK,
			"database_path":        cfg.Storage.DatabasePath,
			"index_snapshot_path":  cfg.Storage.IndexSnapshotPath,
		}
		if fp, err := storage.MeasureFootprint(cfg.Storage.DatabasePath, cfg.Storage.IndexSnapshotPath); err == nil {
			resp["disk_usage"] = fp
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type uploadResponse struct {
	Document  *models.Document `json:"document"`
	Duplicate bool             `json:"duplicate"`
	Response  string           `json:"response"`
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "could not read file")
		return
	}

	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
	result, err := s.deps.Indexer.IngestBytes(r.Context(), header.Filename, content)
	if err != nil {
		s.respondDomainError(w, "ingest failed", err)
		return
	}

	resp := uploadResponse{Document: result.Document, Duplicate: result.Duplicate, Response: replyFileProcessed}
	if query := strings.TrimSpace(r.FormValue("query")); query != "" {
		resp.Response = s.deps.Assistant.AskWithDocuments(r.Context(), query)
	}
	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	docs, err := s.deps.Storage.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "offset": offset, "limit": limit})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.deps.Storage.GetDocument(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

type retrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type retrieveResponse struct {
	Context string `json:"context"`
	Found   bool   `json:"found"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.topK()
	}
	blob := s.deps.Retriever.Retrieve(r.Context(), req.Query, topK)
	s.respondJSON(w, http.StatusOK, retrieveResponse{Context: blob, Found: !retrieval.IsNoContext(blob)})
}

type chatRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reply := s.deps.Assistant.Chat(r.Context(), req.Query)
	s.respondJSON(w, http.StatusOK, map[string]string{"response": reply})
}

type armRequest struct {
	Message string `json:"message"`
}

type armResponse struct {
	Timer    schedule.Info `json:"timer"`
	Response string        `json:"response"`
}

func (s *Server) handleArm(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	spec, err := timespec.Decode(body)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var req armRequest
	if spec != nil {
		if err := json.Unmarshal(body, &req); err != nil {
			s.respondError(w, http.StatusBadRequest, "message must be a string")
			return
		}
	}

	t, err := s.deps.Assistant.Schedule(r.Context(), spec, req.Message)
	if err != nil {
		s.respondDomainError(w, "arm failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, armResponse{
		Timer:    t.Info(),
		Response: assistant.Confirmation(t.Request, spec),
	})
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	pending := s.deps.Scheduler.Pending()
	out := make([]schedule.Info, 0, len(pending))
	for _, t := range pending {
		out = append(out, t.Info())
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"timers": out})
}

func (s *Server) handleCancelSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.deps.Scheduler.Cancel(id) {
		s.respondError(w, http.StatusNotFound, "timer not found or already finished")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "cancelled"})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Feed == nil {
		s.respondError(w, http.StatusNotImplemented, "notification feed not enabled")
		return
	}
	events := s.deps.Feed.Recent(queryInt(r, "limit", 20))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": events})
}

func (s *Server) topK() int {
	if s.deps.Config != nil && s.deps.Config.Retrieval.TopK > 0 {
		return s.deps.Config.Retrieval.TopK
	}
	return retrieval.DefaultTopK
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// respondDomainError maps the error taxonomy onto HTTP statuses.
func (s *Server) respondDomainError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, models.ErrUnsupportedContent):
		s.respondError(w, http.StatusUnsupportedMediaType, "unsupported file type")
	case models.NeedsClarification(err):
		s.respondError(w, http.StatusUnprocessableEntity, assistant.ReplyClarification)
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, schedule.ErrClosed):
		s.respondError(w, http.StatusServiceUnavailable, "scheduler is shutting down")
	default:
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
