// Package backend opens the data store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"kakeibo/internal/log"
	"kakeibo/internal/memory"
	"kakeibo/internal/ports"
	"kakeibo/internal/postgres"
	"kakeibo/internal/storage"
)

// Backend is an open store. Close releases it.
type Backend struct {
	Kind  Kind
	Store ports.Store
}

func (b *Backend) Close() error {
	if b == nil || b.Store == nil {
		return nil
	}
	return b.Store.Close()
}

// Opener opens backends. Tests substitute it to avoid real databases.
type Opener interface {
	Open(ctx context.Context, cfg Config) (*Backend, error)
}

type Factory struct {
	logger *log.Logger
}

var _ Opener = (*Factory)(nil)

func NewFactory(logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &Factory{logger: logger.WithComponent(log.ComponentBackend)}
}

// Open validates cfg and opens the selected store. SQLite and PostgreSQL are
// migrated before they are returned.
func (f *Factory) Open(ctx context.Context, cfg Config) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backend config: %w", err)
	}

	var (
		store ports.Store
		err   error
	)
	switch cfg.Kind {
	case SQLite:
		store, err = storage.NewSQLiteRepository(cfg.SQLitePath)
	case Postgres:
		store, err = postgres.Open(ctx, cfg.DatabaseURL)
	default:
		store, err = memory.NewFromFixture(ctx, cfg.MemoryFixture)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Kind, err)
	}

	f.logger.InfoContext(ctx, "Opened data backend",
		log.FieldOperation, log.OpStartup,
		log.FieldBackend, cfg.Describe())
	return &Backend{Kind: cfg.Kind, Store: store}, nil
}
