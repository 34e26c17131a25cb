// Package worker turns queued category deletions into tombstone rows.
package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/log"
	"kakeibo/internal/ports"
	"kakeibo/internal/services"
)

// ErrStoreUnavailable asks the consumer to requeue the message.
var ErrStoreUnavailable = errors.New("tombstone store unavailable")

// Consumer delivers category deleted messages to a handler until ctx is done.
type Consumer interface {
	ConsumeCategoryDeleted(ctx context.Context, handler func(context.Context, *amqp.CategoryDeletedMessage) error) error
}

// Stats counts handled messages by outcome.
type Stats struct {
	Recorded int64
	Skipped  int64
	Failed   int64
}

// TombstoneWorker writes a tombstone for every consumed message.
type TombstoneWorker struct {
	store   ports.TombstoneStore
	timeout time.Duration
	logger  *log.Logger

	recorded atomic.Int64
	skipped  atomic.Int64
	failed   atomic.Int64
}

func NewTombstoneWorker(store ports.TombstoneStore, timeout time.Duration, logger *log.Logger) *TombstoneWorker {
	if timeout <= 0 {
		timeout = services.DefaultTombstoneTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &TombstoneWorker{store: store, timeout: timeout, logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleCategoryDeleted processes a single message. Only store failures are
// returned so that the message is requeued; invalid payloads, duplicates and a
// missing table are acknowledged.
func (w *TombstoneWorker) HandleCategoryDeleted(ctx context.Context, msg *amqp.CategoryDeletedMessage) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	switch services.WriteTombstone(ctx, w.store, msg.Tombstone(), w.logger) {
	case services.TombstoneRecorded, services.TombstoneAlreadyKnown:
		w.recorded.Add(1)
		return nil
	case services.TombstoneFailed:
		w.failed.Add(1)
		return ErrStoreUnavailable
	default:
		w.skipped.Add(1)
		return nil
	}
}

// Run consumes until ctx is cancelled.
func (w *TombstoneWorker) Run(ctx context.Context, consumer Consumer) error {
	w.logger.InfoContext(ctx, "Tombstone worker started", log.FieldOperation, log.OpConsume)
	err := consumer.ConsumeCategoryDeleted(ctx, w.HandleCategoryDeleted)
	stats := w.Stats()
	w.logger.InfoContext(ctx, "Tombstone worker stopped",
		"recorded", stats.Recorded,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *TombstoneWorker) Stats() Stats {
	return Stats{
		Recorded: w.recorded.Load(),
		Skipped:  w.skipped.Load(),
		Failed:   w.failed.Load(),
	}
}
