// Package cli renders command output for the studybuddy CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/studybuddy/internal/fileid"
	"github.com/hyperjump/studybuddy/internal/indexer"
	"github.com/hyperjump/studybuddy/internal/notify"
	"github.com/hyperjump/studybuddy/internal/retrieval"
	"github.com/hyperjump/studybuddy/internal/schedule"
	"github.com/hyperjump/studybuddy/internal/storage"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat accepts "text" or "json", case-insensitively.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

// IngestReport is the outcome of ingesting one path.
type IngestReport struct {
	Path   string          `json:"path"`
	Result *indexer.Result `json:"result,omitempty"`
	// Files is set instead of Result when Path is a directory.
	Files int    `json:"files,omitempty"`
	Error string `json:"error,omitempty"`
}

// WriteIngestReports writes one line per ingested path.
func WriteIngestReports(w io.Writer, reports []IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, reports)
	}
	for _, r := range reports {
		switch {
		case r.Error != "":
			fmt.Fprintf(w, "FAIL  %s: %s\n", r.Path, r.Error)
		case r.Result == nil:
			fmt.Fprintf(w, "OK    %s (%d files)\n", r.Path, r.Files)
		case r.Result.Duplicate:
			fmt.Fprintf(w, "SKIP  %s (already indexed as %s)\n", r.Path, fileid.Short(r.Result.Document.ID))
		default:
			fmt.Fprintf(w, "OK    %s -> %s (%d chunks)\n", r.Path, fileid.Short(r.Result.Document.ID), r.Result.Document.ChunkCount)
		}
	}
	return nil
}

type retrievalOutput struct {
	Query   string `json:"query"`
	Context string `json:"context"`
	Found   bool   `json:"found"`
}

// WriteRetrieval writes the context blob retrieved for query.
func WriteRetrieval(w io.Writer, query, blob string, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, retrievalOutput{Query: query, Context: blob, Found: !retrieval.IsNoContext(blob)})
	}
	_, err := fmt.Fprintln(w, blob)
	return err
}

// WriteTimer describes an armed timer.
func WriteTimer(w io.Writer, info schedule.Info, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, info)
	}
	_, err := fmt.Fprintf(w, "Timer %s armed %s, fires at %s\n",
		info.ID, info.When, info.FireAt.Format(time.RFC1123))
	return err
}

// WriteEvent writes a notification.
func WriteEvent(w io.Writer, ev notify.Event, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ev)
	}
	_, err := fmt.Fprintf(w, "[%s] %s: %s\n", ev.At.Format("15:04:05"), ev.Kind, ev.Message)
	return err
}

// Status summarizes the local catalog and index.
type Status struct {
	Documents       int64             `json:"documents"`
	Chunks          int64             `json:"chunks"`
	VectorIndexSize int               `json:"vector_index_size"`
	VectorIndexType string            `json:"vector_index_type"`
	FAISSAvailable  bool              `json:"faiss_available"`
	Disk            storage.Footprint `json:"disk_usage"`
}

// WriteStatus writes s.
func WriteStatus(w io.Writer, s Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "documents:          %d\n", s.Documents)
	fmt.Fprintf(w, "chunks:             %d\n", s.Chunks)
	fmt.Fprintf(w, "vector_index:       %s (%d vectors, faiss available: %t)\n",
		s.VectorIndexType, s.VectorIndexSize, s.FAISSAvailable)
	_, err := fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + index snapshot\n",
		s.Disk.DatabaseBytes+s.Disk.SnapshotBytes)
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
