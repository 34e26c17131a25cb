package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath  string
	DatabaseURL   string
	MemoryFixture string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Seeding
	NewUserWindow       time.Duration
	SeedHonorTombstones bool
	TombstoneTimeout    time.Duration

	// Analytics cache
	CacheTTL  time.Duration
	CacheSize int

	// Rate limiting of POST requests
	RateLimit  int
	RateWindow time.Duration

	LogLevel  string
	LogFormat string

	// Google Sheets report export
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
	GoogleOAuthClientFile    string
	GoogleOAuthClientJSON    string
	GoogleOAuthTokenFile     string
	GoogleOAuthTokenJSON     string
}

var validBackends = []string{"memory", "sqlite", "postgres"}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		SQLiteDBPath:  getEnv("SQLITE_DB_PATH", "./data/kakeibo.db"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		MemoryFixture: getEnv("MEMORY_FIXTURE", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "kakeibo"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "category_deleted"),

		NewUserWindow:       getEnvDuration("NEW_USER_WINDOW", 5*time.Minute),
		SeedHonorTombstones: getEnvBool("SEED_HONOR_TOMBSTONES", false),
		TombstoneTimeout:    getEnvDuration("TOMBSTONE_TIMEOUT", 10*time.Second),

		CacheTTL:  getEnvDuration("CACHE_TTL", 30*time.Second),
		CacheSize: getEnvInt("CACHE_SIZE", 256),

		RateLimit:  getEnvInt("RATE_LIMIT", 60),
		RateWindow: getEnvDuration("RATE_WINDOW", time.Minute),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Report"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
	}

	return cfg
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// problems collects validation messages so all of them are reported at once.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err(scope string) error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("%w (%s):\n- %s", ErrInvalid, scope, strings.Join(p, "\n- "))
}

// Validate checks everything the server and worker need. A missing SQLite
// directory is created as a side effect.
func (c *Config) Validate() error {
	var p problems
	c.checkServer(&p)
	c.checkBackend(&p)
	c.checkAMQP(&p)
	c.checkTuning(&p)
	return p.err("server")
}

func (c *Config) checkServer(p *problems) {
	port, err := strconv.Atoi(c.Port)
	switch {
	case err != nil:
		p.addf("invalid port '%s': must be a number", c.Port)
	case port < 1 || port > 65535:
		p.addf("invalid port %d: must be between 1 and 65535", port)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		p.addf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		p.addf("invalid log format '%s': must be text or json", c.LogFormat)
	}
}

func (c *Config) checkBackend(p *problems) {
	switch c.DataBackend {
	case "memory":
		if c.MemoryFixture != "" && !exists(c.MemoryFixture) {
			p.addf("memory fixture file does not exist: %s", c.MemoryFixture)
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			p.addf("SQLite database path cannot be empty when using sqlite backend")
			return
		}
		if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && !exists(dir) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				p.addf("cannot create SQLite database directory '%s': %v", dir, err)
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			p.addf("DATABASE_URL is required when using postgres backend")
			return
		}
		checkScheme(p, "database", c.DatabaseURL, "postgres", "postgresql")
	default:
		p.addf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends)
	}
}

func (c *Config) checkAMQP(p *problems) {
	if c.AMQPURL == "" {
		return
	}
	checkScheme(p, "AMQP", c.AMQPURL, "amqp", "amqps")
	if c.AMQPExchange == "" {
		p.addf("AMQP exchange name cannot be empty when AMQP URL is provided")
	}
	if c.AMQPQueue == "" {
		p.addf("AMQP queue name cannot be empty when AMQP URL is provided")
	}
}

func (c *Config) checkTuning(p *problems) {
	if c.NewUserWindow <= 0 {
		p.addf("invalid new user window %v: must be positive", c.NewUserWindow)
	}
	if c.TombstoneTimeout <= 0 {
		p.addf("invalid tombstone timeout %v: must be positive", c.TombstoneTimeout)
	}
	if c.CacheTTL < 0 {
		p.addf("invalid cache TTL %v: must not be negative", c.CacheTTL)
	}
	if c.CacheSize < 1 {
		p.addf("invalid cache size %d: must be at least 1", c.CacheSize)
	}
	if c.RateLimit < 1 {
		p.addf("invalid rate limit %d: must be at least 1", c.RateLimit)
	}
	if c.RateWindow < time.Second {
		p.addf("invalid rate window %v: must be at least 1 second", c.RateWindow)
	}
}

// ValidateExport checks the settings the report exporter needs on top of
// Validate. OAuth credentials win over a service account when both are set.
func (c *Config) ValidateExport() error {
	var p problems
	if c.GoogleSpreadsheetID == "" {
		p.addf("GOOGLE_SPREADSHEET_ID is required for report export")
	}
	if c.GoogleSheetName == "" {
		p.addf("GOOGLE_SHEET_NAME is required for report export")
	}

	if c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != "" {
		if c.GoogleOAuthTokenFile == "" && c.GoogleOAuthTokenJSON == "" {
			p.addf("either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided with an OAuth client")
		}
		for _, f := range []string{c.GoogleOAuthClientFile, c.GoogleOAuthTokenFile} {
			if f != "" && !exists(f) {
				p.addf("OAuth file does not exist: %s", f)
			}
		}
		return p.err("export")
	}

	switch {
	case c.GoogleServiceAccountFile != "":
		if !exists(c.GoogleServiceAccountFile) {
			p.addf("Google service account file does not exist: %s", c.GoogleServiceAccountFile)
		}
	case c.GoogleServiceAccountJSON == "":
		p.addf("either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for report export")
	}
	return p.err("export")
}

func checkScheme(p *problems, what, raw string, schemes ...string) {
	u, err := url.Parse(raw)
	if err != nil {
		p.addf("invalid %s URL: %v", what, err)
		return
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return
		}
	}
	p.addf("invalid %s URL scheme '%s': must be '%s'", what, u.Scheme, strings.Join(schemes, "' or '"))
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
