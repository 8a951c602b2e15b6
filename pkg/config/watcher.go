package config

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/brightears/bmasia-music-brief/pkg/metrics"
)

// Change describes a configuration update event. Only a subset of fields may
// have changed; see Fields for the list of keys.
type Change struct {
	Old    *Config
	New    *Config
	Fields []string
	Err    error
}

const subBuf = 4

// Watcher periodically reloads configuration from the environment and an
// optional CONFIG_FILE. It only ever notifies subscribers about knobs that
// are safe to hot-swap mid-process: rate limits, log level and the metrics
// toggle.
// LLM credentials and the database URL are read once at Load() and never
// re-applied, since swapping those out from under live connections/clients
// is out of scope.
type Watcher struct {
	mu        sync.RWMutex
	cur       *Config
	closed    bool
	intv      time.Duration
	subs      []chan Change
	cancel    context.CancelFunc
	filePath  string
	lastMTime time.Time

	mReloads  *metrics.Counter
	mFailures *metrics.Counter
}

func NewWatcher(interval time.Duration) *Watcher {
	fp := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	w := &Watcher{
		intv:      interval,
		filePath:  fp,
		mReloads:  metrics.Default.Counter("config_reload_total", "Total number of config reload attempts"),
		mFailures: metrics.Default.Counter("config_reload_failures_total", "Total number of failed config reloads"),
	}
	w.cur = Load()
	return w
}

func (w *Watcher) Subscribe() <-chan Change {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan Change, subBuf)
	w.subs = append(w.subs, ch)
	return ch
}

func (w *Watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
	}
	for _, s := range w.subs {
		close(s)
	}
	w.subs = nil
	w.mu.Unlock()
}

func (w *Watcher) Start() {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.mu.Unlock()

	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	t := time.NewTicker(w.intv)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.checkOnce()
		}
	}
}

func (w *Watcher) checkOnce() {
	if w.filePath != "" {
		if fi, err := os.Stat(w.filePath); err == nil {
			mt := fi.ModTime()
			if mt.After(w.lastMTime) {
				_ = w.loadDotEnv(w.filePath)
				w.lastMTime = mt
			}
		}
	}

	newCfg := Load()
	if err := newCfg.Validate(); err != nil {
		w.mFailures.Inc(1)
		w.notify(Change{Old: w.cur, New: newCfg, Err: fmt.Errorf("invalid config: %w", err)})
		return
	}

	fields := diffKeys(w.cur, newCfg)
	if len(fields) == 0 {
		return
	}

	w.mReloads.Inc(1)
	w.mu.Lock()
	old := w.cur
	w.cur = newCfg
	w.mu.Unlock()
	w.notify(Change{Old: old, New: newCfg, Fields: fields})
}

func (w *Watcher) notify(chg Change) {
	w.mu.RLock()
	subs := append([]chan Change(nil), w.subs...)
	w.mu.RUnlock()
	for _, s := range subs {
		select {
		case s <- chg:
		default:
		}
	}
}

// diffKeys only reports the hot-reloadable knobs; LLM/DB fields are
// intentionally excluded even if they happen to differ.
func diffKeys(a, b *Config) []string {
	if a == nil || b == nil {
		return []string{"all"}
	}
	var f []string
	appendIf := func(cond bool, name string) {
		if cond {
			f = append(f, name)
		}
	}
	appendIf(a.RateLimitSubmit != b.RateLimitSubmit, "RateLimitSubmit")
	appendIf(a.RateLimitRecommend != b.RateLimitRecommend, "RateLimitRecommend")
	appendIf(a.RateLimitChat != b.RateLimitChat, "RateLimitChat")
	appendIf(a.LogLevel != b.LogLevel, "LogLevel")
	appendIf(a.MetricsEnabled != b.MetricsEnabled, "MetricsEnabled")
	return f
}

func (w *Watcher) loadDotEnv(path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		v = strings.Trim(v, "\"'")
		_ = os.Setenv(k, v)
	}
	return nil
}
