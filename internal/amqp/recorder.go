package amqp

import (
	"context"
	"sync"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/ports"
)

// Publisher is the part of Client the recorder needs.
type Publisher interface {
	PublishCategoryDeleted(ctx context.Context, d core.DeletedDefaultCategory) error
}

// Recorder hands deleted default categories to the broker instead of writing
// them inline. Publish failures are logged and dropped.
type Recorder struct {
	publisher Publisher
	timeout   time.Duration
	logger    *log.Logger
	wg        sync.WaitGroup
}

var _ ports.TombstoneRecorder = (*Recorder)(nil)

func NewRecorder(publisher Publisher, timeout time.Duration, logger *log.Logger) *Recorder {
	if timeout <= 0 {
		timeout = publishTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Recorder{publisher: publisher, timeout: timeout, logger: logger.WithComponent(log.ComponentTombstone)}
}

// Record publishes on a background goroutine and returns immediately.
func (r *Recorder) Record(ctx context.Context, d core.DeletedDefaultCategory) {
	detached := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()
		if err := r.publisher.PublishCategoryDeleted(ctx, d); err != nil {
			r.logger.ErrorContext(ctx, "Failed to publish deleted default category",
				log.FieldOperation, log.OpPublish,
				log.FieldUserID, d.UserID,
				log.FieldCategoryName, d.CategoryName,
				log.FieldCategoryType, d.CategoryType.String(),
				log.FieldErrorType, log.ErrorTypeNetwork,
				log.FieldError, err)
		}
	}()
}

// Wait blocks until every in-flight publish has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
