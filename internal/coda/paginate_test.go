// Tests for cursor pagination.

package coda

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestCollectAllSinglePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [{"id": "doc-1", "name": "First"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	docs, err := c.ListDocs(t.Context())
	if err != nil {
		t.Fatalf("ListDocs failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-1" {
		t.Errorf("unexpected docs: %+v", docs)
	}
}

func TestCollectAllExhaustsPages(t *testing.T) {
	// Three pages of two items each, threaded by pageToken.
	pages := map[string]string{
		"":   `{"items": [{"id": "doc-1"}, {"id": "doc-2"}], "nextPageToken": "t1"}`,
		"t1": `{"items": [{"id": "doc-3"}, {"id": "doc-4"}], "nextPageToken": "t2"}`,
		"t2": `{"items": [{"id": "doc-5"}, {"id": "doc-6"}]}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Query().Get("pageToken")]
		if !ok {
			t.Errorf("unexpected pageToken %q", r.URL.Query().Get("pageToken"))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	docs, err := c.ListDocs(t.Context())
	if err != nil {
		t.Fatalf("ListDocs failed: %v", err)
	}

	// Every item exactly once, in server order.
	if len(docs) != 6 {
		t.Fatalf("expected 6 docs, got %d", len(docs))
	}
	for i := range docs {
		want := fmt.Sprintf("doc-%d", i+1)
		if docs[i].ID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, docs[i].ID)
		}
	}
}

func TestCollectAllRetriedPageNotDuplicated(t *testing.T) {
	// The second page fails once with a 500; the retry must not duplicate or
	// drop items because the cursor only advances on success.
	var secondPageHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pageToken") {
		case "":
			_, _ = w.Write([]byte(`{"items": [{"id": "doc-1"}], "nextPageToken": "t1"}`))
		case "t1":
			if secondPageHits.Add(1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"items": [{"id": "doc-2"}]}`))
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	docs, err := c.ListDocs(t.Context())
	if err != nil {
		t.Fatalf("ListDocs failed: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "doc-1" || docs[1].ID != "doc-2" {
		t.Errorf("unexpected docs: %+v", docs)
	}
}

func TestCollectAllRepeatingCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [{"id": "doc-1"}], "nextPageToken": "loop"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ListDocs(t.Context())

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError for repeating cursor, got %v", err)
	}
}

func TestCollectAllMalformedPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": "not an array"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ListDocs(t.Context())

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError for malformed page, got %v", err)
	}
}

func TestListRowsRequestsRichValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("valueFormat"); got != "rich" {
			t.Errorf("expected valueFormat=rich, got %q", got)
		}
		_, _ = w.Write([]byte(`{"items": [{"id": "i-1", "index": 1, "values": {"c-1": "x"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	rows, err := c.ListRows(t.Context(), "doc-1", "grid-1")
	if err != nil {
		t.Fatalf("ListRows failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "i-1" {
		t.Errorf("unexpected rows: %+v", rows)
	}
}
