package cli

import (
	"context"
	"testing"
	"time"

	"kakeibo/internal/config"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/memory"
)

func TestGracefulShutdownRunsCleanup(t *testing.T) {
	ran := false
	GracefulShutdown(log.Discard(), time.Second, func(ctx context.Context) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("cleanup context should carry the shutdown deadline")
		}
		ran = true
	})
	if !ran {
		t.Fatal("cleanup did not run")
	}
}

func TestGracefulShutdownTimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	GracefulShutdown(log.Discard(), 20*time.Millisecond, func(ctx context.Context) {
		<-release
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("shutdown should give up after the timeout, took %v", elapsed)
	}
}

func TestInitBackendMemory(t *testing.T) {
	b := InitBackend(context.Background(), log.Discard(), &config.Config{DataBackend: "memory"})
	defer b.Close()
	if err := b.Store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestNewAnalyticsUsesConfig(t *testing.T) {
	cfg := &config.Config{CacheTTL: time.Minute, CacheSize: 8}
	a := NewAnalytics(cfg, memory.New(), log.Discard())
	if a.Cache() == nil {
		t.Fatal("expected a cache when CacheTTL is set")
	}
	r, err := core.ResolveRange("thisMonth", "", "", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Summary(context.Background(), "u1", r); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if a.Cache().Size() != 1 {
		t.Fatalf("cache size %d, want 1", a.Cache().Size())
	}
}

func TestShutdownOnCancelWaitsForCleanup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	done := ShutdownOnCancel(ctx, log.Discard(), time.Second, func(ctx context.Context) {
		close(started)
		<-release
	})

	select {
	case <-done:
		t.Fatal("done closed before cancellation")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	<-started
	select {
	case <-done:
		t.Fatal("done closed while cleanup was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("done did not close after cleanup returned")
	}
}
