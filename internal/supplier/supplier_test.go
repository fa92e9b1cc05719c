package supplier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/frjar/frjarai/internal/infra"
)

// ════════════════════════════════════════════════════════════════════
// Search
// ════════════════════════════════════════════════════════════════════

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req["search"] != "Cement" || req["lang"] != "ENGLISH" {
			t.Errorf("body = %v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"name":"Yamama Cement","location":"Riyadh"},{"title":"Arabian Cement","city":"Jeddah"}]}`))
	}))
	defer srv.Close()

	hits, err := NewClient(srv.URL).Search(context.Background(), "Cement")
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[1].Name() != "Arabian Cement" || hits[1].Location() != "Jeddah" {
		t.Fatalf("accessors: %q %q", hits[1].Name(), hits[1].Location())
	}
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		ctype  string
		calls  int32 // 0 skips the count check
	}{
		{"bad request", http.StatusBadRequest, `{}`, "application/json", 1},
		{"server error retried", http.StatusBadGateway, `{}`, "application/json", 3},
		{"html body", http.StatusOK, `<html></html>`, "text/html", 1},
		{"malformed json", http.StatusOK, `{"data": [`, "application/json", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", tt.ctype)
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, WithRetries(2), WithLogger(infra.DiscardLogger()))
			_, err := c.Search(context.Background(), "x")
			if !errors.Is(err, ErrSearch) {
				t.Fatalf("expected ErrSearch, got %v", err)
			}
			if tt.calls > 0 && calls.Load() != tt.calls {
				t.Fatalf("calls = %d, want %d", calls.Load(), tt.calls)
			}
			if got := c.SearchOrEmpty(context.Background(), "x"); got == nil || len(got) != 0 {
				t.Fatalf("SearchOrEmpty = %v", got)
			}
		})
	}
}

func TestSearchEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	hits, err := NewClient(srv.URL).Search(context.Background(), "x")
	if err != nil || hits == nil || len(hits) != 0 {
		t.Fatalf("hits=%v err=%v", hits, err)
	}
}

// ════════════════════════════════════════════════════════════════════
// FilterByCity
// ════════════════════════════════════════════════════════════════════

func TestFilterByCity(t *testing.T) {
	hits := []Suggestion{
		{"name": "A", "location": "Riyadh, Industrial Area"},
		{"name": "B", "location": "Jeddah"},
		{"name": "C"},
	}
	if got := FilterByCity(hits, "riyadh"); len(got) != 1 || got[0].Name() != "A" {
		t.Fatalf("riyadh: %v", got)
	}
	if got := FilterByCity(hits, "National Average"); len(got) != 3 {
		t.Fatalf("national: %v", got)
	}
	if got := FilterByCity(hits, "Dammam"); len(got) != 0 {
		t.Fatalf("dammam: %v", got)
	}
}
