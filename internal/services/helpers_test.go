package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/memory"
	"kakeibo/internal/ports"
)

var testNow = time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	return memory.New().WithClock(clock)
}

func addProfile(t *testing.T, s *memory.Store, userID string, age time.Duration) {
	t.Helper()
	_, err := s.CreateProfile(context.Background(), core.Profile{ID: userID, CreatedAt: testNow.Add(-age)})
	require.NoError(t, err)
}

func newSeeder(s *memory.Store, honor bool) *Seeder {
	return NewSeeder(s, s, s, s, SeederConfig{HonorTombstones: honor, Now: clock}, log.Discard())
}

// failingTombstones fails every tombstone write with err.
type failingTombstones struct {
	ports.TombstoneStore
	err   error
	calls atomic.Int32
}

func (f *failingTombstones) InsertTombstone(context.Context, core.DeletedDefaultCategory) error {
	f.calls.Add(1)
	return f.err
}

func (f *failingTombstones) ListTombstones(context.Context, string) ([]core.DeletedDefaultCategory, error) {
	return nil, f.err
}

// failingCategories fails inserts and delegates everything else.
type failingCategories struct {
	ports.CategoryStore
}

func (failingCategories) InsertCategories(context.Context, []core.Category) ([]core.Category, error) {
	return nil, errors.New("connection reset")
}

// countingProfiles counts profile lookups and can block them until released.
type countingProfiles struct {
	ports.ProfileReader
	calls   atomic.Int32
	release chan struct{}
}

func (c *countingProfiles) GetProfile(ctx context.Context, userID string) (core.Profile, bool, error) {
	c.calls.Add(1)
	if c.release != nil {
		<-c.release
	}
	return c.ProfileReader.GetProfile(ctx, userID)
}

// syncRecorder records tombstones inline so tests can inspect them.
type syncRecorder struct {
	mu   sync.Mutex
	seen []core.DeletedDefaultCategory
}

func (r *syncRecorder) Record(_ context.Context, d core.DeletedDefaultCategory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, d)
}

func (r *syncRecorder) all() []core.DeletedDefaultCategory {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.DeletedDefaultCategory(nil), r.seen...)
}

func mustRange(t *testing.T, start, end string) core.DateRange {
	t.Helper()
	s, err := core.ParseDate(start)
	require.NoError(t, err)
	e, err := core.ParseDate(end)
	require.NoError(t, err)
	return core.DateRange{Start: s, End: e}
}
