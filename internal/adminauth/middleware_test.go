package adminauth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestMiddleware_DeniesWhenNotLoaded(t *testing.T) {
	resolver := NewResolver(filepath.Join(t.TempDir(), "missing.yaml"), testLogger(t))
	mw := NewMiddleware(resolver)

	called := false
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.5:1"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when allowlist not loaded, got %d", rec.Code)
	}
	if called {
		t.Fatalf("expected next handler not to run when allowlist not loaded")
	}
}

func TestMiddleware_DeniesUnknownIP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.yaml")
	if err := os.WriteFile(path, []byte("203.0.113.5: ops-alice\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	resolver := NewResolver(path, testLogger(t))
	mw := NewMiddleware(resolver)

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "10.0.0.9:1"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown IP, got %d", rec.Code)
	}
}

func TestMiddleware_AllowsKnownIPAndPopulatesContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.yaml")
	if err := os.WriteFile(path, []byte("203.0.113.5: ops-alice\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	resolver := NewResolver(path, testLogger(t))
	mw := NewMiddleware(resolver)

	var gotID string
	var gotOK bool
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, gotOK = OperatorIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.5:1"
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for allowed IP, got %d", rec.Code)
	}
	if !gotOK || gotID != "ops-alice" {
		t.Fatalf("expected operator id ops-alice in context, got %q (ok=%v)", gotID, gotOK)
	}
}
