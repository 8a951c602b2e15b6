package config

import (
	"fmt"
	"strconv"
	"strings"

	errs "github.com/brightears/bmasia-music-brief/pkg/errors"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s=%q: %s", e.Field, e.Value, e.Message)
}

// ConfigValidator handles configuration validation
type ConfigValidator struct {
	errors []ValidationError
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{errors: make([]ValidationError, 0)}
}

func (cv *ConfigValidator) AddError(field, value, message string) {
	cv.errors = append(cv.errors, ValidationError{Field: field, Value: value, Message: message})
}

func (cv *ConfigValidator) HasErrors() bool { return len(cv.errors) > 0 }

func (cv *ConfigValidator) GetErrors() []ValidationError { return cv.errors }

func (cv *ConfigValidator) GetErrorsAsString() string {
	var parts []string
	for _, err := range cv.errors {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "\n")
}

// Validate checks the loaded configuration. Unlike required-field validation
// in the source pipeline this teacher pattern was copied from, a missing
// DatabaseURL is allowed here: the spec treats it as a sanctioned degraded
// mode rather than a startup error.
func (c *Config) Validate() error {
	v := NewConfigValidator()
	c.validateFormats(v)
	c.validateRanges(v)

	if v.HasErrors() {
		return errs.NewValidation("config.Validate", v.GetErrorsAsString(), nil)
	}
	return nil
}

func (c *Config) validateFormats(v *ConfigValidator) {
	if c.Port != "" {
		if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
			v.AddError("PORT", c.Port, "bad port (1-65535)")
		}
	}
	validLogLevels := []string{"trace", "debug", "info", "warn", "error", "fatal"}
	if c.LogLevel != "" && !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		v.AddError("LOG_LEVEL", c.LogLevel, "bad log level")
	}
	if c.LogFormat != "" && c.LogFormat != "json" && c.LogFormat != "text" {
		v.AddError("LOG_FORMAT", c.LogFormat, "bad log format")
	}
}

func (c *Config) validateRanges(v *ConfigValidator) {
	if c.DBMaxOpenConns < 1 || c.DBMaxOpenConns > 1000 {
		v.AddError("DB_MAX_OPEN_CONNS", strconv.Itoa(c.DBMaxOpenConns), "out of range (1-1000)")
	}
	if c.DBMaxIdleConns < 0 || c.DBMaxIdleConns > c.DBMaxOpenConns {
		v.AddError("DB_MAX_IDLE_CONNS", strconv.Itoa(c.DBMaxIdleConns), "must be 0..max_open")
	}
	if c.RateLimitSubmit < 0 || c.RateLimitRecommend < 0 || c.RateLimitChat < 0 {
		v.AddError("RATE_LIMIT", "", "rate limits must be non-negative")
	}
	if c.LLMRetryMax < 0 || c.LLMRetryMax > 10 {
		v.AddError("LLM_RETRY_MAX", strconv.Itoa(c.LLMRetryMax), "out of range (0-10)")
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GetConfigSummary returns a summary of the configuration excluding secrets.
func (c *Config) GetConfigSummary() map[string]interface{} {
	return map[string]interface{}{
		"database_configured": c.DatabaseURL != "",
		"llm_model":           c.LLMModel,
		"port":                c.Port,
		"env":                 c.Env,
		"profiling_enabled":   c.ProfilingEnabled,
		"metrics_enabled":     c.MetricsEnabled,
		"rate_limit_submit":   c.RateLimitSubmit,
		"rate_limit_chat":     c.RateLimitChat,
	}
}
