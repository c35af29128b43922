// Tests for the async page export protocol.

package coda

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// exportTestServer simulates the submit/poll/download protocol. pollsNeeded
// is how many polls return inProgress before the terminal status.
func exportTestServer(t *testing.T, pollsNeeded int, terminal string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	mux := http.NewServeMux()
	var baseURL string

	mux.HandleFunc("POST /docs/doc-1/pages/canvas-p1/export", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OutputFormat string `json:"outputFormat"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OutputFormat == "" {
			t.Errorf("missing outputFormat in submit body")
		}
		_, _ = w.Write([]byte(`{"id": "req-1", "status": "inProgress"}`))
	})
	mux.HandleFunc("GET /docs/doc-1/pages/canvas-p1/export/req-1", func(w http.ResponseWriter, r *http.Request) {
		if int(polls.Add(1)) <= pollsNeeded {
			_, _ = w.Write([]byte(`{"id": "req-1", "status": "inProgress"}`))
			return
		}
		switch terminal {
		case exportStatusComplete:
			_, _ = w.Write([]byte(`{"id": "req-1", "status": "complete", "downloadLink": "` + baseURL + `/download"}`))
		case exportStatusFailed:
			_, _ = w.Write([]byte(`{"id": "req-1", "status": "failed", "error": "conversion crashed"}`))
		default:
			_, _ = w.Write([]byte(`{"id": "req-1", "status": "inProgress"}`))
		}
	})
	mux.HandleFunc("GET /download", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("download request must not carry the API token")
		}
		_, _ = w.Write([]byte("# Welcome\n"))
	})

	srv := httptest.NewServer(mux)
	baseURL = srv.URL
	return srv, &polls
}

func TestExportPageCompletes(t *testing.T) {
	srv, polls := exportTestServer(t, 2, exportStatusComplete)
	defer srv.Close()

	c := newTestClient(srv.URL)
	content, err := c.ExportPage(t.Context(), "doc-1", "canvas-p1", FormatMarkdown)
	if err != nil {
		t.Fatalf("ExportPage failed: %v", err)
	}
	if string(content) != "# Welcome\n" {
		t.Errorf("unexpected content %q", content)
	}
	if n := polls.Load(); n != 3 {
		t.Errorf("expected 3 polls, got %d", n)
	}
}

func TestExportPageFailed(t *testing.T) {
	srv, _ := exportTestServer(t, 0, exportStatusFailed)
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ExportPage(t.Context(), "doc-1", "canvas-p1", FormatHTML)

	var failed *ExportFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ExportFailedError, got %v", err)
	}
	if failed.PageID != "canvas-p1" || failed.Format != FormatHTML {
		t.Errorf("unexpected error scope: %+v", failed)
	}
	if failed.Reason != "conversion crashed" {
		t.Errorf("expected server reason, got %q", failed.Reason)
	}
}

func TestExportPageTimesOut(t *testing.T) {
	// A job that never leaves inProgress must stop after the poll budget.
	srv, polls := exportTestServer(t, 1<<30, exportStatusComplete)
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.MaxPollAttempts = 5
	_, err := c.ExportPage(t.Context(), "doc-1", "canvas-p1", FormatMarkdown)

	if !errors.Is(err, ErrExportTimeout) {
		t.Fatalf("expected ErrExportTimeout, got %v", err)
	}
	if n := polls.Load(); n != 5 {
		t.Errorf("expected 5 polls, got %d", n)
	}
}

func TestFileExtension(t *testing.T) {
	if got := FileExtension(FormatMarkdown); got != "md" {
		t.Errorf("markdown extension = %q, want md", got)
	}
	if got := FileExtension(FormatHTML); got != "html" {
		t.Errorf("html extension = %q, want html", got)
	}
}
