package backend

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"kakeibo/internal/config"
)

// Kind names a data backend.
type Kind string

const (
	Memory   Kind = "memory"
	SQLite   Kind = "sqlite"
	Postgres Kind = "postgres"
)

// Kinds lists the supported backends in the order they are documented.
func Kinds() []Kind {
	return []Kind{Memory, SQLite, Postgres}
}

// ParseKind accepts a backend name in any case.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown backend %q (want one of %s)", s, kindList())
}

func kindList() string {
	names := make([]string, 0, len(Kinds()))
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

// Config selects a backend and carries the settings that backend needs.
type Config struct {
	Kind Kind

	SQLitePath    string
	DatabaseURL   string
	MemoryFixture string // optional JSON seed for the memory backend
}

// FromAppConfig picks the backend settings out of the application config.
func FromAppConfig(c *config.Config) (Config, error) {
	if c == nil {
		return Config{}, errors.New("app config is nil")
	}
	kind, err := ParseKind(c.DataBackend)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Kind:          kind,
		SQLitePath:    c.SQLiteDBPath,
		DatabaseURL:   c.DatabaseURL,
		MemoryFixture: c.MemoryFixture,
	}, nil
}

// Validate reports every missing setting for the selected backend.
func (c Config) Validate() error {
	var errs []error
	switch c.Kind {
	case SQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			errs = append(errs, errors.New("sqlite backend needs SQLITE_DB_PATH"))
		}
	case Postgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("postgres backend needs DATABASE_URL"))
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errs = append(errs, errors.New("DATABASE_URL must be a postgres:// URL"))
		}
	case Memory:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want one of %s)", c.Kind, kindList()))
	}
	return errors.Join(errs...)
}

// Describe is a log-safe summary of the target. Passwords are masked.
func (c Config) Describe() string {
	switch c.Kind {
	case SQLite:
		return "sqlite " + c.SQLitePath
	case Postgres:
		if u, err := url.Parse(c.DatabaseURL); err == nil {
			return "postgres " + u.Redacted()
		}
		return "postgres (unparsable url)"
	default:
		if c.MemoryFixture != "" {
			return "memory seeded from " + c.MemoryFixture
		}
		return "memory"
	}
}
