package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/assistant"
	"github.com/hyperjump/studybuddy/internal/config"
	"github.com/hyperjump/studybuddy/internal/embedding"
	"github.com/hyperjump/studybuddy/internal/indexer"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/notify"
	"github.com/hyperjump/studybuddy/internal/retrieval"
	"github.com/hyperjump/studybuddy/internal/schedule"
	"github.com/hyperjump/studybuddy/internal/storage"
	"github.com/hyperjump/studybuddy/internal/timespec"
	"github.com/hyperjump/studybuddy/internal/vector"
)

type echoClassifier struct{}

func (echoClassifier) Classify(_ context.Context, text string) ([]models.SubQuery, error) {
	return []models.SubQuery{{Query: text, Intent: models.IntentGeneralQuery}}, nil
}

type nullResolver struct{}

func (nullResolver) ResolveTime(context.Context, string) (*timespec.Spec, error) { return nil, nil }

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, _ models.Intent, query, passages string) (string, error) {
	if passages != "" {
		return "grounded:" + query, nil
	}
	return "plain:" + query, nil
}

type testEnv struct {
	handler http.Handler
	store   *storage.SQLiteStorage
	sched   *schedule.Scheduler
	feed    *notify.Feed
	clock   *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	embedder := embedding.NewMockEmbedder(8)
	vecIdx, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	idx := indexer.NewIndexer(store, embedder, vecIdx, 40, nil)
	retriever := retrieval.NewRetriever(embedder, vecIdx, nil)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 2, 3, 14, 0, 0, 0, time.UTC))
	sched := schedule.New(schedule.WithClock(clock))
	if err := sched.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sched.Shutdown(context.Background()) })

	feed := notify.NewFeed(10)
	asst := assistant.New(echoClassifier{}, nullResolver{}, echoGenerator{}, retriever, sched, assistant.WithNotifier(feed))
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.IndexSnapshotPath = filepath.Join(dir, "vectors")

	srv := NewServer(Deps{
		Indexer:   idx,
		Storage:   store,
		Index:     vecIdx,
		Retriever: retriever,
		Assistant: asst,
		Scheduler: sched,
		Feed:      feed,
		Config:    cfg,
	}, &cfg.Server, zap.NewNop())
	return &testEnv{handler: srv.Router(), store: store, sched: sched, feed: feed, clock: clock}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) upload(t *testing.T, filename, content, query string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	if query != "" {
		_ = mw.WriteField("query", query)
	}
	_ = mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleUploadDocument(t *testing.T) {
	env := newTestEnv(t)

	w := env.upload(t, "notes.txt", "Photosynthesis turns light into chemical energy in plants.", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var out uploadResponse
	decode(t, w, &out)
	if out.Document == nil || out.Document.ChunkCount != 2 {
		t.Fatalf("unexpected document: %+v", out.Document)
	}
	if out.Response != replyFileProcessed {
		t.Errorf("response: got %q", out.Response)
	}

	// Same bytes again: duplicate, nothing new indexed.
	w = env.upload(t, "copy.txt", "Photosynthesis turns light into chemical energy in plants.", "what is photosynthesis?")
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate status: got %d", w.Code)
	}
	decode(t, w, &out)
	if !out.Duplicate {
		t.Error("expected duplicate upload")
	}
	if out.Response != "grounded:what is photosynthesis?" {
		t.Errorf("grounded answer: got %q", out.Response)
	}

	w = env.do(t, http.MethodGet, "/api/v1/documents/"+out.Document.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get document status: got %d", w.Code)
	}
	w = env.do(t, http.MethodGet, "/api/v1/documents?limit=10", nil)
	var list struct {
		Documents []models.Document `json:"documents"`
	}
	decode(t, w, &list)
	if len(list.Documents) != 1 {
		t.Errorf("list documents: got %d", len(list.Documents))
	}
}

func TestHandleUploadDocument_Unsupported(t *testing.T) {
	env := newTestEnv(t)
	w := env.upload(t, "photo.png", "not really a png", "")
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status: got %d, want 415", w.Code)
	}
	n, _ := env.store.CountDocuments(context.Background())
	if n != 0 {
		t.Errorf("nothing should be catalogued, got %d", n)
	}
}

func TestHandleUploadDocument_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"query": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestHandleGetDocument_NotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/v1/documents/doc:missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestHandleRetrieve(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/retrieve", retrieveRequest{Query: "anything"})
	var out retrieveResponse
	decode(t, w, &out)
	if out.Found || out.Context != retrieval.NoContext {
		t.Errorf("empty index: got %+v", out)
	}

	env.upload(t, "bio.txt", "Mitochondria power cells.", "")
	w = env.do(t, http.MethodPost, "/api/v1/retrieve", retrieveRequest{Query: "Mitochondria power cells.", TopK: 1})
	decode(t, w, &out)
	if !out.Found || !strings.Contains(out.Context, "Mitochondria") {
		t.Errorf("retrieve: got %+v", out)
	}

	w = env.do(t, http.MethodPost, "/api/v1/retrieve", retrieveRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query status: got %d", w.Code)
	}
}

func TestHandleChat(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/v1/chat", chatRequest{Query: "explain entropy"})
	var out map[string]string
	decode(t, w, &out)
	if out["response"] != "plain:explain entropy" {
		t.Errorf("chat response: got %q", out["response"])
	}
}

func TestHandleSchedules(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/schedules", map[string]interface{}{"type": "relative", "seconds": 90, "message": "stretch"})
	if w.Code != http.StatusCreated {
		t.Fatalf("arm status: got %d body %s", w.Code, w.Body.String())
	}
	var armed armResponse
	decode(t, w, &armed)
	if armed.Timer.Label != "stretch" || armed.Timer.State != schedule.StateArmed {
		t.Errorf("armed timer: %+v", armed.Timer)
	}
	if !strings.HasPrefix(armed.Response, "Timer started!") {
		t.Errorf("response: got %q", armed.Response)
	}

	w = env.do(t, http.MethodPost, "/api/v1/schedules", map[string]interface{}{"type": "absolute", "time": "06:00 AM"})
	if w.Code != http.StatusCreated {
		t.Fatalf("alarm status: got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/api/v1/schedules", nil)
	var list struct {
		Timers []schedule.Info `json:"timers"`
	}
	decode(t, w, &list)
	if len(list.Timers) != 2 || list.Timers[0].ID != armed.Timer.ID {
		t.Fatalf("pending timers: %+v", list.Timers)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/schedules/"+armed.Timer.ID, nil)
	if w.Code != http.StatusOK {
		t.Errorf("cancel status: got %d", w.Code)
	}
	w = env.do(t, http.MethodDelete, "/api/v1/schedules/"+armed.Timer.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second cancel status: got %d, want 404", w.Code)
	}
}

func TestHandleSchedules_Invalid(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []interface{}{
		map[string]interface{}{"type": "relative", "seconds": -3},
		map[string]interface{}{"type": "absolute", "time": "half past"},
		nil,
	} {
		w := env.do(t, http.MethodPost, "/api/v1/schedules", body)
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("body %v: got %d, want 422", body, w.Code)
		}
	}
	if n := len(env.sched.Pending()); n != 0 {
		t.Errorf("nothing should be armed, got %d", n)
	}
}

func TestHandleSchedules_NonStringMessage(t *testing.T) {
	env := newTestEnv(t)
	for _, msg := range []interface{}{42, []string{"stretch"}, map[string]string{"text": "stretch"}} {
		body := map[string]interface{}{"type": "relative", "seconds": 90, "message": msg}
		w := env.do(t, http.MethodPost, "/api/v1/schedules", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("message %v: got %d, want 400", msg, w.Code)
		}
	}
	if n := len(env.sched.Pending()); n != 0 {
		t.Errorf("nothing should be armed, got %d", n)
	}
}

func TestHandleNotifications(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/v1/schedules", map[string]interface{}{"type": "relative", "seconds": "0"})

	deadline := time.Now().Add(2 * time.Second)
	for env.feed.Len() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	w := env.do(t, http.MethodGet, "/api/v1/notifications?limit=5", nil)
	var out struct {
		Notifications []notify.Event `json:"notifications"`
	}
	decode(t, w, &out)
	if len(out.Notifications) != 2 {
		t.Fatalf("notifications: got %+v", out.Notifications)
	}
	kinds := map[notify.EventKind]string{}
	for _, ev := range out.Notifications {
		kinds[ev.Kind] = ev.Message
	}
	if kinds[notify.EventTimerFired] != assistant.MessageTimerFinished {
		t.Errorf("fired notification missing: %+v", out.Notifications)
	}
	if _, ok := kinds[notify.EventTimerStarted]; !ok {
		t.Errorf("started notification missing: %+v", out.Notifications)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t)
	env.upload(t, "a.md", "# Title\n\nSome notes.", "")
	w := env.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	decode(t, w, &out)
	if out["documents"].(float64) != 1 {
		t.Errorf("documents: got %v", out["documents"])
	}
	if out["vector_index_type"] != "memory" {
		t.Errorf("index type: got %v", out["vector_index_type"])
	}
	if _, ok := out["disk_usage"]; !ok {
		t.Error("disk usage missing")
	}
}
