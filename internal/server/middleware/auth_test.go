package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthDisabledWhenKeyEmpty(t *testing.T) {
	h := Auth("")(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trades", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestAuthAcceptsBearerAndHeader(t *testing.T) {
	h := Auth("sekret")(okHandler())

	bearer := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	bearer.Header.Set("Authorization", "Bearer sekret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, bearer)
	if rec.Code != http.StatusOK {
		t.Fatalf("bearer: status = %d, want 200", rec.Code)
	}

	apiKey := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	apiKey.Header.Set("X-API-Key", "sekret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, apiKey)
	if rec.Code != http.StatusOK {
		t.Fatalf("x-api-key: status = %d, want 200", rec.Code)
	}
}

func TestAuthRejectsMissingAndWrongToken(t *testing.T) {
	h := Auth("sekret")(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trades", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", rec.Code)
	}

	wrong := httptest.NewRequest(http.MethodGet, "/api/trades", nil)
	wrong.Header.Set("Authorization", "Bearer nope")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, wrong)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", rec.Code)
	}
}
