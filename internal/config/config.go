// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port     string
	LogLevel string

	// History database; empty disables history
	SQLiteDBPath string

	// AMQP; empty URL disables publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Narrative provider
	NarrativeProvider string
	GeminiAPIKey      string
	GeminiModel       string
	OllamaURL         string
	OllamaModel       string
	NarrativeTimeout  time.Duration

	// Google login
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string
	SessionSecret      string
	SessionTTL         time.Duration
	SecureCookies      bool

	// Spreadsheets
	ReportsBackend       string
	HistorySpreadsheetID string
	HistorySheetName     string

	// Worker
	SyncBatchSize int
	SyncInterval  time.Duration

	AnalyzeRatePerMinute int
}

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validProviders = []string{"gemini", "ollama", "static"}
	validBackends  = []string{"sheets", "memory"}
)

const minSessionSecret = 16

func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),

		SQLiteDBPath: os.Getenv("SQLITE_DB_PATH"),

		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finanzen"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_analyses"),

		NarrativeProvider: strings.ToLower(getEnv("NARRATIVE_PROVIDER", "gemini")),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OllamaURL:         getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:       getEnv("OLLAMA_MODEL", "llama3.1"),
		NarrativeTimeout:  getEnvDuration("NARRATIVE_TIMEOUT", 60*time.Second),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		OAuthRedirectURL:   getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/auth/callback"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 12*time.Hour),
		SecureCookies:      getEnvBool("SECURE_COOKIES", false),

		ReportsBackend:       strings.ToLower(getEnv("REPORTS_BACKEND", "sheets")),
		HistorySpreadsheetID: os.Getenv("HISTORY_SPREADSHEET_ID"),
		HistorySheetName:     getEnv("HISTORY_SHEET_NAME", "Histórico"),

		SyncBatchSize: getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:  getEnvDuration("SYNC_INTERVAL", 5*time.Minute),

		AnalyzeRatePerMinute: getEnvInt("ANALYZE_RATE_PER_MINUTE", 6),
	}
}

// GoogleLoginEnabled reports whether OAuth client credentials are set.
func (c *Config) GoogleLoginEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// HistoryEnabled reports whether analyses are stored in SQLite.
func (c *Config) HistoryEnabled() bool {
	return c.SQLiteDBPath != ""
}

// Validate checks the web server configuration and reports every problem
// at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}

	switch c.NarrativeProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			errs = append(errs, "GEMINI_API_KEY (or API_KEY) is required when NARRATIVE_PROVIDER is gemini")
		}
	case "ollama":
		errs = append(errs, checkHTTPURL("OLLAMA_URL", c.OllamaURL)...)
	case "static":
	default:
		errs = append(errs, fmt.Sprintf("invalid narrative provider '%s': must be one of %v", c.NarrativeProvider, validProviders))
	}
	if c.NarrativeTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("invalid narrative timeout %v: must be positive", c.NarrativeTimeout))
	}

	if !slices.Contains(validBackends, c.ReportsBackend) {
		errs = append(errs, fmt.Sprintf("invalid reports backend '%s': must be one of %v", c.ReportsBackend, validBackends))
	}

	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		errs = append(errs, "GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together")
	}
	if c.GoogleLoginEnabled() {
		if len(c.SessionSecret) < minSessionSecret {
			errs = append(errs, fmt.Sprintf("SESSION_SECRET must be at least %d bytes when Google login is enabled", minSessionSecret))
		}
		errs = append(errs, checkHTTPURL("OAUTH_REDIRECT_URL", c.OAuthRedirectURL)...)
	}
	if c.SessionTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	errs = append(errs, c.validateAMQP()...)

	if c.AnalyzeRatePerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid analyze rate %d: must be at least 1 per minute", c.AnalyzeRatePerMinute))
	}

	return joinErrors(errs)
}

// ValidateWorker checks the history worker configuration.
func (c *Config) ValidateWorker() error {
	var errs []string

	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLITE_DB_PATH is required for the worker")
	}
	if c.HistorySpreadsheetID == "" {
		errs = append(errs, "HISTORY_SPREADSHEET_ID is required for the worker")
	}
	errs = append(errs, c.validateAMQP()...)

	if c.SyncBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errs = append(errs, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}
	if c.SyncInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	return joinErrors(errs)
}

// SyncSchedule is the cron spec of the pending sweep.
func (c *Config) SyncSchedule() string {
	return "@every " + c.SyncInterval.String()
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errs []string
	if u, err := url.Parse(c.AMQPURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL: %v", err))
	} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
		errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
	}
	if c.AMQPExchange == "" {
		errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
	}
	return errs
}

func checkHTTPURL(key, raw string) []string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return []string{fmt.Sprintf("invalid %s '%s': must be an absolute http(s) URL", key, raw)}
	}
	return nil
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
