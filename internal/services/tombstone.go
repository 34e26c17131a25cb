package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/ports"
)

// DefaultTombstoneTimeout bounds one detached tombstone write.
const DefaultTombstoneTimeout = 10 * time.Second

// TombstoneOutcome classifies the result of writing a tombstone.
type TombstoneOutcome string

const (
	TombstoneRecorded     TombstoneOutcome = "recorded"
	TombstoneAlreadyKnown TombstoneOutcome = "already_recorded"
	TombstoneNoTable      TombstoneOutcome = "missing_table"
	TombstoneInvalid      TombstoneOutcome = "invalid"
	TombstoneFailed       TombstoneOutcome = "failed"
)

// WriteTombstone inserts d and logs the outcome. A duplicate counts as
// recorded. It is shared by the in-process recorder and the queue worker.
func WriteTombstone(ctx context.Context, store ports.TombstoneStore, d core.DeletedDefaultCategory, logger *log.Logger) TombstoneOutcome {
	fields := log.NewFields().
		Operation(log.OpRecordTombstone).
		User(d.UserID).
		Category(d.CategoryName, d.CategoryType.String())

	if err := d.Validate(); err != nil {
		logger.WarnContext(ctx, "Ignoring invalid deleted default category", fields.Err(err).Args()...)
		return TombstoneInvalid
	}

	err := store.InsertTombstone(ctx, d)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "Recorded deletion of default category", fields.Args()...)
		return TombstoneRecorded
	case errors.Is(err, ports.ErrDuplicate):
		logger.InfoContext(ctx, "Category already recorded as deleted for user", fields.Args()...)
		return TombstoneAlreadyKnown
	case errors.Is(err, ports.ErrMissingTable):
		fields = fields.Add(log.FieldErrorType, log.ErrorTypeConfiguration)
		logger.WarnContext(ctx, "deleted_default_categories table does not exist, run the database migration", fields.Err(err).Args()...)
		return TombstoneNoTable
	default:
		fields = fields.Add(log.FieldErrorType, log.ErrorTypeDatabase)
		logger.ErrorContext(ctx, "Error recording deleted default category", fields.Err(err).Args()...)
		return TombstoneFailed
	}
}

// AsyncRecorder writes tombstones on a background goroutine detached from
// the caller's cancellation.
type AsyncRecorder struct {
	store   ports.TombstoneStore
	timeout time.Duration
	logger  *log.Logger
	wg      sync.WaitGroup
}

var _ ports.TombstoneRecorder = (*AsyncRecorder)(nil)

func NewAsyncRecorder(store ports.TombstoneStore, timeout time.Duration, logger *log.Logger) *AsyncRecorder {
	if timeout <= 0 {
		timeout = DefaultTombstoneTimeout
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AsyncRecorder{store: store, timeout: timeout, logger: logger.WithComponent(log.ComponentTombstone)}
}

// Record returns immediately. The write keeps the values of ctx but not its
// deadline or cancellation.
func (r *AsyncRecorder) Record(ctx context.Context, d core.DeletedDefaultCategory) {
	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()
		WriteTombstone(ctx, r.store, d, r.logger)
	}()
}

// Wait blocks until every in-flight write has finished.
func (r *AsyncRecorder) Wait() {
	r.wg.Wait()
}
