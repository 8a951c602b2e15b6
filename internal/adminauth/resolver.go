// Package adminauth gates the admin/diagnostics port (pprof-shaped health,
// metrics, config docs) behind a static IP allowlist, the same shape the
// original approval-review tool used to gate its own operator actions:
// an IP -> operator id map loaded from YAML, resolved per-request.
package adminauth

import (
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/brightears/bmasia-music-brief/pkg/logging"
)

// Resolver resolves a client IP address to an operator id allowed onto the
// admin surface.
type Resolver struct {
	mu       sync.RWMutex
	ipToID   map[string]string
	loaded   bool
	yamlPath string
	logger   *logging.Logger
}

// NewResolver loads the admin allowlist from path. A missing or unreadable
// file leaves the resolver in a not-loaded state, which Middleware
// treats as "deny everyone" rather than failing open.
func NewResolver(path string, logger *logging.Logger) *Resolver {
	r := &Resolver{ipToID: map[string]string{}, yamlPath: path, logger: logger}
	if err := r.reload(); err != nil {
		logger.Warn("admin allowlist not loaded; admin port will reject every request", logging.String("path", path), logging.String("error", err.Error()))
	} else {
		logger.Info("admin allowlist loaded", logging.String("path", path), logging.Int("entries", len(r.ipToID)))
	}
	return r
}

func (r *Resolver) reload() error {
	data, err := os.ReadFile(r.yamlPath)
	if err != nil {
		return err
	}
	var cfg map[string]string
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ipToID = cfg
	r.loaded = true
	return nil
}

// Reload re-reads the YAML allowlist from disk, for the config hot-reload loop.
func (r *Resolver) Reload() error {
	return r.reload()
}

// IsLoaded reports whether the allowlist was ever successfully parsed.
func (r *Resolver) IsLoaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// OperatorID resolves the request's client IP to an allowed operator id.
func (r *Resolver) OperatorID(req *http.Request) (string, bool) {
	ip := ClientIP(req)
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ipToID[ip]
	return id, ok
}

// ClientIP extracts the request's real client IP, honoring X-Forwarded-For
// and X-Real-IP for requests proxied ahead of the admin listener.
func ClientIP(req *http.Request) string {
	if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	if xri := req.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
