package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Backend and allocator names accepted in DATA_BACKEND and ID_ALLOCATOR.
const (
	BackendSheets = "sheets"
	BackendMemory = "memory"

	AllocatorSheet  = "sheet"
	AllocatorSQLite = "sqlite"
)

type Config struct {
	// HTTP Server
	Port               string
	LogLevel           string
	RateLimitPerMinute int
	TrustedProxies     []string
	UpstreamTimeout    time.Duration

	// Google Sheets
	GoogleSheetsAPIKey string
	GoogleSheetID      string // raw id or full spreadsheet URL
	GoogleSheetName    string

	// Backend selection
	DataBackend    string
	MemorySeedFile string
	IDAllocator    string
	SQLiteDBPath   string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Worker
	AuditInterval     time.Duration
	AuditSeenCapacity int

	// Report CLI
	ProxyURL       string
	ClientCacheTTL time.Duration
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8081"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),
		UpstreamTimeout:    getEnvDuration("UPSTREAM_TIMEOUT", 15*time.Second),

		GoogleSheetsAPIKey: strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_API_KEY")),
		GoogleSheetID:      strings.TrimSpace(os.Getenv("GOOGLE_SHEET_ID")),
		GoogleSheetName:    getEnv("GOOGLE_SHEET_NAME", "Table1"),

		DataBackend:    getEnv("DATA_BACKEND", BackendSheets),
		MemorySeedFile: getEnv("MEMORY_SEED_FILE", ""),
		IDAllocator:    getEnv("ID_ALLOCATOR", AllocatorSheet),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/expenseflow.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenseflow"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_appended"),

		AuditInterval:     getEnvDuration("AUDIT_INTERVAL", 5*time.Minute),
		AuditSeenCapacity: getEnvInt("AUDIT_SEEN_CAPACITY", 10000),

		ProxyURL:       getEnv("PROXY_URL", "http://localhost:8081/"),
		ClientCacheTTL: getEnvDuration("CLIENT_CACHE_TTL", 15*time.Second),
	}
}

// Validate checks every setting and reports all problems at once. Missing
// Google credentials are not an error: the proxy still starts and answers
// every request with a configuration error.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}

	validBackends := []string{BackendSheets, BackendMemory}
	if !oneOf(c.DataBackend, validBackends) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == BackendSheets && strings.TrimSpace(c.GoogleSheetName) == "" {
		errors = append(errors, "Google Sheet name cannot be empty when using sheets backend")
	}
	if c.DataBackend == BackendMemory && c.MemorySeedFile != "" {
		if _, err := os.Stat(c.MemorySeedFile); err != nil && !os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("cannot read memory seed file '%s': %v", c.MemorySeedFile, err))
		}
	}

	validAllocators := []string{AllocatorSheet, AllocatorSQLite}
	if !oneOf(c.IDAllocator, validAllocators) {
		errors = append(errors, fmt.Sprintf("invalid id allocator '%s': must be one of %v", c.IDAllocator, validAllocators))
	}

	if c.IDAllocator == AllocatorSQLite {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite id allocator")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': %v", cidr, err))
		}
	}

	if c.UpstreamTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid upstream timeout %v: must be at least 1 second", c.UpstreamTimeout))
	} else if c.UpstreamTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid upstream timeout %v: must be at most 5 minutes", c.UpstreamTimeout))
	}

	if c.AuditInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid audit interval %v: must be at least 1 second", c.AuditInterval))
	} else if c.AuditInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid audit interval %v: must be at most 24 hours", c.AuditInterval))
	}
	if c.AuditSeenCapacity < 1 {
		errors = append(errors, fmt.Sprintf("invalid audit seen capacity %d: must be at least 1", c.AuditSeenCapacity))
	}

	if c.ProxyURL != "" {
		if u, err := url.Parse(c.ProxyURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid proxy URL '%s': must be an absolute http(s) URL", c.ProxyURL))
		}
	}
	if c.ClientCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid client cache TTL %v: must not be negative", c.ClientCacheTTL))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
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

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
