package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseListOpts(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 50, 0},
		{"explicit", "limit=20&offset=40", 20, 40},
		{"capped", "limit=9999", 500, 0},
		{"negative ignored", "limit=-5&offset=-1", 50, 0},
		{"garbage ignored", "limit=abc&offset=xyz", 50, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/trades?"+tc.query, nil)
			opts := parseListOpts(r)
			if opts.Limit != tc.wantLimit || opts.Offset != tc.wantOffset {
				t.Fatalf("opts = %+v, want limit %d offset %d", opts, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHealthHandler(logger)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field = %v, want ok", body["status"])
	}
}
