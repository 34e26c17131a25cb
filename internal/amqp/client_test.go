package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"kakeibo/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, maxBackoff, maxBackoff}
	for attempt, w := range want {
		if got := exponentialBackoff(attempt); got != w {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", attempt, got, w)
		}
	}
	if got := exponentialBackoff(40); got != maxBackoff {
		t.Errorf("large attempts must stay capped, got %v", got)
	}
}

func TestIsConnectionError(t *testing.T) {
	retry := []error{
		errors.New("dial tcp: connection refused"),
		errors.New("unexpected EOF"),
		errors.New("write: broken pipe"),
		errors.New("Exception (504) Reason: \"channel/connection is not open\""),
		fmt.Errorf("consume: %w", amqp091.ErrClosed),
	}
	for _, err := range retry {
		if !isConnectionError(err) {
			t.Errorf("%v should be treated as a connection error", err)
		}
	}
	for _, err := range []error{nil, errors.New("invalid input"), ErrInvalidMessage} {
		if isConnectionError(err) {
			t.Errorf("%v should not be treated as a connection error", err)
		}
	}
}

func TestPublishShortCircuits(t *testing.T) {
	d := core.DeletedDefaultCategory{UserID: "u1", CategoryName: "食費", CategoryType: core.Expense}

	t.Run("open breaker", func(t *testing.T) {
		c := &Client{breaker: newBreaker(1, time.Hour)}
		c.breaker.failure()
		if err := c.PublishCategoryDeleted(context.Background(), d); !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("expected ErrCircuitOpen, got %v", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		c := &Client{breaker: newBreaker(maxFailures, openTimeout)}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := c.PublishCategoryDeleted(ctx, d); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}
