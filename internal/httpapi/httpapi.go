// Package httpapi wires the HTTP surface described in spec §4.11: the SSE
// chat endpoint, the deterministic recommend endpoint, brief submission, the
// human approval flow, the follow-up tracking pixel, and health — routed
// through gorilla/mux, the teacher's own router of choice.
package httpapi

import (
	"encoding/json"
	"html/template"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/brightears/bmasia-music-brief/internal/accountcache"
	"github.com/brightears/bmasia-music-brief/internal/approval"
	"github.com/brightears/bmasia-music-brief/internal/catalog"
	"github.com/brightears/bmasia-music-brief/internal/chatengine"
	"github.com/brightears/bmasia-music-brief/internal/domain"
	"github.com/brightears/bmasia-music-brief/internal/ratelimit"
	"github.com/brightears/bmasia-music-brief/pkg/metrics"
)

// Server holds every dependency the HTTP handlers need.
type Server struct {
	Engine   *chatengine.Engine
	Approval *approval.Service
	Repo     domain.Repository
	Catalog  *catalog.Catalog
	Accounts *accountcache.Cache

	ChatLimiter      *ratelimit.Limiter
	RecommendLimiter *ratelimit.Limiter
	SubmitLimiter    *ratelimit.Limiter

	Templates fs.FS
	Static    fs.FS

	tmpl *template.Template

	requestsTotal *metrics.Counter
}

// New parses the approval-page templates and builds the router.
func New(s *Server) (*mux.Router, error) {
	t, err := template.ParseFS(s.Templates, "*.tmpl")
	if err != nil {
		return nil, err
	}
	s.tmpl = t
	s.requestsTotal = metrics.Default.Counter("http_requests_total", "HTTP requests handled")

	r := mux.NewRouter()
	r.HandleFunc("/api/chat", s.rateLimited(s.SubmitKeyChat, s.ChatLimiter, s.handleChat)).Methods(http.MethodPost)
	r.HandleFunc("/api/recommend", s.rateLimited(s.SubmitKeyChat, s.RecommendLimiter, s.handleRecommend)).Methods(http.MethodPost)
	r.HandleFunc("/submit", s.rateLimited(s.SubmitKeyChat, s.SubmitLimiter, s.handleSubmit)).Methods(http.MethodPost)
	r.HandleFunc("/approve/{token}", s.handleApproveGet).Methods(http.MethodGet)
	r.HandleFunc("/approve/{token}", s.handleApprovePost).Methods(http.MethodPost)
	r.HandleFunc("/follow-up/track/{id}", s.handleFollowUpTrack).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics.json", s.handleMetricsJSON).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(s.Static))))
	return r, nil
}

// clientIP trusts the first hop of X-Forwarded-For so rate limits work
// behind a reverse proxy, per spec §4.11.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SubmitKeyChat is the rate-limit key function shared by every limited
// endpoint: the client's IP, regardless of which route is being limited.
func (s *Server) SubmitKeyChat(r *http.Request) string { return clientIP(r) }

func (s *Server) rateLimited(keyFn func(*http.Request) string, limiter *ratelimit.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.requestsTotal.Inc(1)
		if limiter != nil && !limiter.Allow(keyFn(r)) {
			http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleMetricsJSON(w http.ResponseWriter, r *http.Request) {
	activeEntries, _ := s.Repo.ActiveEntryCount(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"activeScheduleEntries": activeEntries,
		"uptimeCheckedAt":       time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func logErrf(format string, args ...any) { log.Printf(format, args...) }
