package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/brightears/bmasia-music-brief/internal/accountcache"
	"github.com/brightears/bmasia-music-brief/internal/adapters/llm"
	"github.com/brightears/bmasia-music-brief/internal/adapters/mailer"
	"github.com/brightears/bmasia-music-brief/internal/adapters/musicplatform"
	"github.com/brightears/bmasia-music-brief/internal/adapters/search"
	"github.com/brightears/bmasia-music-brief/internal/adminauth"
	"github.com/brightears/bmasia-music-brief/internal/approval"
	"github.com/brightears/bmasia-music-brief/internal/catalog"
	"github.com/brightears/bmasia-music-brief/internal/chatengine"
	"github.com/brightears/bmasia-music-brief/internal/domain"
	"github.com/brightears/bmasia-music-brief/internal/executor"
	"github.com/brightears/bmasia-music-brief/internal/httpapi"
	"github.com/brightears/bmasia-music-brief/internal/infrastructure/nullrepo"
	"github.com/brightears/bmasia-music-brief/internal/infrastructure/repository"
	"github.com/brightears/bmasia-music-brief/internal/ratelimit"
	"github.com/brightears/bmasia-music-brief/pkg/config"
	"github.com/brightears/bmasia-music-brief/pkg/container"
	"github.com/brightears/bmasia-music-brief/pkg/health"
	"github.com/brightears/bmasia-music-brief/pkg/logging"
	"github.com/brightears/bmasia-music-brief/pkg/metrics"
)

// closer is satisfied by *repository.DB; left nil in degraded mode since
// nullrepo.Repo owns no resource to release.
type closer interface {
	Close() error
}

func main() {
	c := container.New()
	_ = c.Provide(func() *config.Config { return config.Load() }, true)

	var cfg *config.Config
	if err := c.Resolve(&cfg); err != nil {
		log.Fatal("config resolve:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("config validate:", err)
	}

	logLevel := logging.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = logging.LevelDebug
	case "warn":
		logLevel = logging.LevelWarn
	case "error":
		logLevel = logging.LevelError
	}
	logCfg := logging.DefaultLogConfig()
	logCfg.Level = logLevel
	logCfg.Format = cfg.LogFormat
	logCfg.Output = "stdout"
	logCfg.EnableFile = cfg.EnableFileLogging
	if cfg.LogFile != "" {
		logCfg.FilePath = cfg.LogFile
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		log.Fatal("logger init:", err)
	}
	defer logger.Close()
	logger.Info("starting bmasia music brief service", logging.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistence: spec §6.1 treats an unset DATABASE_URL as a sanctioned
	// degraded mode, not a startup failure. domain.Repository and
	// domain.UnitOfWorkFactory are satisfied either by the real MySQL-backed
	// DB or by nullrepo's no-op implementation.
	var repo domain.Repository
	var uowFactory domain.UnitOfWorkFactory
	var dbCloser closer
	var dbPingFn func(context.Context) error

	if cfg.DatabaseURL != "" {
		db, err := repository.Open(ctx, cfg.DatabaseURL, repository.Options{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Minute,
			ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Minute,
			ReadTimeout:     cfg.DBReadTimeout,
			WriteTimeout:    cfg.DBWriteTimeout,
		})
		if err != nil {
			logger.Fatal("database connect failed", err)
		}
		repo, uowFactory, dbCloser, dbPingFn = db, db, db, db.Ping
		logger.Info("database connected", logging.String("pool", fmt.Sprintf("max_open=%d", cfg.DBMaxOpenConns)))
	} else {
		repo, uowFactory = nullrepo.Repo{}, nullrepo.Repo{}
		logger.Warn("DATABASE_URL not set; running in email-only degraded mode (no persistence, no executor)")
	}
	if dbCloser != nil {
		defer dbCloser.Close()
	}

	// External adapters (C6).
	llmClient := llm.New(cfg.AnthropicAPIKey, cfg.LLMModel, cfg.LLMRetryMax)
	searchClient := search.New(cfg.SearchAPIKey, cfg.SearchURL)
	musicClient := musicplatform.New(cfg.MusicPlatformToken, cfg.MusicPlatformBaseURL)
	mailerClient := mailer.New(mailer.Config{
		Host:           cfg.SMTPHost,
		Port:           cfg.SMTPPort,
		User:           cfg.SMTPUser,
		Password:       cfg.SMTPPassword,
		RecipientEmail: cfg.RecipientEmail,
		Timeout:        cfg.SMTPTimeout,
	})

	accounts := accountcache.New(musicClient)

	cat, err := catalog.Load(CatalogFiles(), "syb_playlists.json")
	if err != nil {
		logger.Fatal("catalog load failed", err)
	}

	engine := &chatengine.Engine{
		LLM:      llmClient,
		Search:   searchClient,
		Accounts: accounts,
		Catalog:  cat,
	}

	approvalSvc := &approval.Service{
		Repo:           repo,
		UOWFactory:     uowFactory,
		MusicPlatform:  musicClient,
		Accounts:       accounts,
		Mailer:         mailerClient,
		BaseURL:        cfg.ExternalBaseURL,
		RecipientEmail: cfg.RecipientEmail,
	}

	// Schedule executor (C10): only meaningful with real persistence, since
	// every entry it acts on lives in the database.
	if cfg.DatabaseURL != "" {
		exec := executor.New(repo, musicClient, mailerClient, cfg.ExternalBaseURL)
		if err := exec.Start(); err != nil {
			logger.Fatal("executor start failed", err)
		}
		defer exec.Stop()
		logger.Info("schedule executor started", logging.String("tick", "* * * * *"))
	}

	router, err := httpapi.New(&httpapi.Server{
		Engine:           engine,
		Approval:         approvalSvc,
		Repo:             repo,
		Catalog:          cat,
		Accounts:         accounts,
		ChatLimiter:      ratelimit.New(cfg.RateLimitChat),
		RecommendLimiter: ratelimit.New(cfg.RateLimitRecommend),
		SubmitLimiter:    ratelimit.New(cfg.RateLimitSubmit),
		Templates:        Templates(),
		Static:           Static(),
	})
	if err != nil {
		logger.Fatal("http router init failed", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // the chat SSE stream can run far longer than a fixed write deadline
		IdleTimeout:  60 * time.Second,
	}

	// Ambient observability (C13): a richer health manager than the public
	// /health, plus Prometheus metrics and the config docs, on a separate admin
	// port so none of them is reachable from the public listener. No pprof
	// handlers are registered.
	var adminServer *http.Server
	var adminResolver *adminauth.Resolver
	if cfg.ProfilingEnabled || cfg.MetricsEnabled {
		hm := health.NewHealthManager(health.DefaultHealthConfig(), logger)
		if dbPingFn != nil {
			hm.RegisterChecker(health.NewHealthCheckFunc("database", func(ctx context.Context) health.ComponentHealth {
				start := time.Now()
				status := health.HealthStatusHealthy
				msg := ""
				if err := dbPingFn(ctx); err != nil {
					status = health.HealthStatusUnhealthy
					msg = err.Error()
				}
				return health.ComponentHealth{Status: status, Message: msg, LastChecked: time.Now(), Duration: time.Since(start)}
			}))
		}

		adminMux := http.NewServeMux()
		if cfg.MetricsEnabled {
			adminMux.Handle(cfg.MetricsPath, metrics.Handler())
		}
		adminMux.Handle("/config/docs", http.FileServer(http.FS(ConfigFiles())))
		adminMux.HandleFunc("/health/components", func(w http.ResponseWriter, r *http.Request) {
			sys := hm.CheckAll(r.Context())
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(sys)
		})

		// The admin port sits behind the adminauth IP allowlist: a missing or
		// empty admins.yaml denies every request rather than exposing
		// metrics/config-docs/health components unauthenticated.
		adminResolver = adminauth.NewResolver(cfg.AdminsYAMLPath, logger)
		adminGate := adminauth.NewMiddleware(adminResolver)
		adminServer = &http.Server{Addr: ":" + cfg.ProfilingPort, Handler: adminGate.Handler(adminMux)}
		go func() {
			logger.Info("admin server starting", logging.String("addr", adminServer.Addr))
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("admin server error", err)
			}
		}()
	}

	// Config hot-reload: only rate limits and log level are safe to swap
	// mid-process, per pkg/config.Watcher's own restriction.
	watcher := config.NewWatcher(time.Duration(cfg.ConfigReloadIntervalSeconds) * time.Second)
	watcher.Start()
	defer watcher.Close()
	changes := watcher.Subscribe()
	go func() {
		for chg := range changes {
			if chg.Err != nil {
				logger.Warn("config reload failed", logging.Error(chg.Err))
				continue
			}
			logger.Info("config reloaded", logging.String("fields", fmt.Sprintf("%v", chg.Fields)))
			if adminResolver != nil {
				if err := adminResolver.Reload(); err != nil {
					logger.Warn("admin allowlist reload failed", logging.Error(err))
				}
			}
		}
	}()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	go func() {
		logger.Info("http server starting", logging.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", err)
	}
	if adminServer != nil {
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin server shutdown error", err)
		}
	}
	logger.Info("shutdown complete")
}
