package amqp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kakeibo/internal/core"
)

type fakePublisher struct {
	mu       sync.Mutex
	got      []core.DeletedDefaultCategory
	err      error
	deadline bool
	live     bool
}

func (p *fakePublisher) PublishCategoryDeleted(ctx context.Context, d core.DeletedDefaultCategory) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, d)
	p.live = ctx.Err() == nil
	_, p.deadline = ctx.Deadline()
	return p.err
}

func TestRecorderPublishesDetached(t *testing.T) {
	d := core.DeletedDefaultCategory{UserID: "u1", CategoryName: "食費", CategoryType: core.Expense}
	pub := &fakePublisher{}
	r := NewRecorder(pub, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Record(ctx, d)
	r.Wait()

	if len(pub.got) != 1 || pub.got[0] != d {
		t.Fatalf("unexpected published values %+v", pub.got)
	}
	if !pub.live || !pub.deadline {
		t.Errorf("publish should run under its own deadline, live=%v deadline=%v", pub.live, pub.deadline)
	}
}

func TestRecorderSwallowsErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("connection refused")}
	r := NewRecorder(pub, 0, nil)
	for i := 0; i < 3; i++ {
		r.Record(context.Background(), core.DeletedDefaultCategory{UserID: "u1", CategoryName: "娯楽費", CategoryType: core.Expense})
	}
	r.Wait()
	if len(pub.got) != 3 {
		t.Fatalf("expected three attempts, got %d", len(pub.got))
	}
}
