package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-derived setting the process reads once at
// startup. Per spec the database is optional: an empty DatabaseURL puts the
// system into an email-only degraded mode rather than failing to start.
type Config struct {
	// LLM (Anthropic)
	AnthropicAPIKey string
	LLMModel        string
	LLMMaxTokens    int
	LLMRetryMax     int

	// Web search
	SearchAPIKey string
	SearchURL    string

	// Database
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime int // minutes
	DBConnMaxIdleTime int // minutes
	DBReadTimeout     time.Duration
	DBWriteTimeout    time.Duration

	// SMTP
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	RecipientEmail string
	SMTPTimeout    time.Duration

	// Music platform (GraphQL)
	MusicPlatformToken   string
	MusicPlatformBaseURL string

	// External base URL used to build approval/tracking links
	ExternalBaseURL string

	// HTTP
	Port string

	// Rate limits (requests per source IP per fixed hourly window)
	RateLimitSubmit    int
	RateLimitRecommend int
	RateLimitChat      int

	// Monitoring and logging
	LogLevel          string
	LogFormat         string
	LogFile           string
	EnableFileLogging bool

	// Health
	HealthCheckPath string

	// Environment & profiling/metrics
	Env              string
	ProfilingEnabled bool
	ProfilingPort    string
	MetricsEnabled   bool
	MetricsPath      string
	AdminsYAMLPath   string

	ConfigReloadIntervalSeconds int
}

func Load() *Config {
	env := strings.ToLower(getEnv("ENV", "development"))
	profDefault := env == "development" || env == "staging"
	profilingEnabled, _ := strconv.ParseBool(getEnv("PROFILING_ENABLED", strconv.FormatBool(profDefault)))
	metricsEnabled, _ := strconv.ParseBool(getEnv("METRICS_ENABLED", strconv.FormatBool(profDefault)))
	enableFileLogging, _ := strconv.ParseBool(getEnv("ENABLE_FILE_LOGGING", "false"))

	dbMaxOpenConns, _ := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "20"))
	dbMaxIdleConns, _ := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	dbConnMaxLifetime, _ := strconv.Atoi(getEnv("DB_CONN_MAX_LIFETIME_MINUTES", "10"))
	dbConnMaxIdleTime, _ := strconv.Atoi(getEnv("DB_CONN_MAX_IDLE_TIME_MINUTES", "5"))
	dbReadTO, _ := time.ParseDuration(getEnv("DB_READ_TIMEOUT", "8s"))
	dbWriteTO, _ := time.ParseDuration(getEnv("DB_WRITE_TIMEOUT", "6s"))

	llmMaxTokens, _ := strconv.Atoi(getEnv("LLM_MAX_TOKENS", "1024"))
	llmRetryMax, _ := strconv.Atoi(getEnv("LLM_RETRY_MAX", "3"))

	smtpPort, _ := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	smtpTimeout, _ := time.ParseDuration(getEnv("SMTP_TIMEOUT", "12s"))

	rlSubmit, _ := strconv.Atoi(getEnv("RATE_LIMIT_SUBMIT", "5"))
	rlRecommend, _ := strconv.Atoi(getEnv("RATE_LIMIT_RECOMMEND", "10"))
	rlChat, _ := strconv.Atoi(getEnv("RATE_LIMIT_CHAT", "30"))

	reloadIntSec, _ := strconv.Atoi(getEnv("CONFIG_RELOAD_INTERVAL_SECONDS", "30"))

	cfg := &Config{
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "claude-sonnet-4-6"),
		LLMMaxTokens:    llmMaxTokens,
		LLMRetryMax:     llmRetryMax,

		SearchAPIKey: getEnv("SEARCH_API_KEY", ""),
		SearchURL:    getEnv("SEARCH_URL", "https://api.search.brave.com/res/v1/web/search"),

		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:    dbMaxOpenConns,
		DBMaxIdleConns:    dbMaxIdleConns,
		DBConnMaxLifetime: dbConnMaxLifetime,
		DBConnMaxIdleTime: dbConnMaxIdleTime,
		DBReadTimeout:     dbReadTO,
		DBWriteTimeout:    dbWriteTO,

		SMTPHost:       getEnv("SMTP_HOST", ""),
		SMTPPort:       smtpPort,
		SMTPUser:       getEnv("SMTP_USER", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),
		RecipientEmail: getEnv("RECIPIENT_EMAIL", "production@bmasiamusic.com"),
		SMTPTimeout:    smtpTimeout,

		MusicPlatformToken:   getEnv("MUSIC_PLATFORM_TOKEN", ""),
		MusicPlatformBaseURL: getEnv("MUSIC_PLATFORM_BASE_URL", "https://api.soundtrackyourbrand.com/v2"),

		ExternalBaseURL: strings.TrimRight(getEnv("EXTERNAL_BASE_URL", "http://localhost:3000"), "/"),

		Port: getEnv("PORT", "3000"),

		RateLimitSubmit:    rlSubmit,
		RateLimitRecommend: rlRecommend,
		RateLimitChat:      rlChat,

		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		LogFile:           getEnv("LOG_FILE", ""),
		EnableFileLogging: enableFileLogging,

		HealthCheckPath: getEnv("HEALTH_CHECK_PATH", "/health"),

		Env:              env,
		ProfilingEnabled: profilingEnabled,
		ProfilingPort:    getEnv("PROFILING_PORT", "6060"),
		MetricsEnabled:   metricsEnabled,
		MetricsPath:      getEnv("METRICS_PATH", "/metrics"),
		AdminsYAMLPath:   getEnv("ADMINS_YAML_PATH", "admins.yaml"),

		ConfigReloadIntervalSeconds: reloadIntSec,
	}

	if cfg.DatabaseURL == "" {
		log.Printf("config: DATABASE_URL not set, running in email-only degraded mode")
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
