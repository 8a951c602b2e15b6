package adminauth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/brightears/bmasia-music-brief/pkg/logging"
)

func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	cfg := logging.DefaultLogConfig()
	cfg.Output = "stdout"
	cfg.EnableFile = false
	cfg.EnableAsync = false
	logger, err := logging.NewLogger(cfg)
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestResolver_MissingFile_NotLoaded(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "does-not-exist.yaml"), testLogger(t))
	if r.IsLoaded() {
		t.Fatalf("expected resolver to report not loaded for a missing file")
	}
}

func TestResolver_LoadsIPAllowlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.yaml")
	if err := os.WriteFile(path, []byte("203.0.113.5: ops-alice\n198.51.100.9: ops-bob\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	r := NewResolver(path, testLogger(t))
	if !r.IsLoaded() {
		t.Fatalf("expected resolver to load a valid allowlist")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.5:54321"
	id, ok := r.OperatorID(req)
	if !ok || id != "ops-alice" {
		t.Fatalf("expected ops-alice for 203.0.113.5, got %q (ok=%v)", id, ok)
	}

	reqUnknown := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	reqUnknown.RemoteAddr = "10.0.0.1:1"
	if _, ok := r.OperatorID(reqUnknown); ok {
		t.Fatalf("expected no operator id for an IP absent from the allowlist")
	}
}

func TestClientIP_PrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "10.0.0.1:1"
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.2")
	if ip := ClientIP(req); ip != "203.0.113.5" {
		t.Fatalf("expected first X-Forwarded-For entry, got %q", ip)
	}
}

func TestClientIP_FallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "203.0.113.9:443"
	if ip := ClientIP(req); ip != "203.0.113.9" {
		t.Fatalf("expected RemoteAddr host, got %q", ip)
	}
}
