// Package memory is an in-process implementation of the store ports.
// It backs tests and local runs without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/core"
	"kakeibo/internal/ports"
)

type Store struct {
	mu         sync.Mutex
	now        func() time.Time
	profiles   map[string]core.Profile
	cats       []core.Category
	subs       []core.Subcategory
	txs        []core.Transaction
	tombstones map[tombstoneKey]struct{}
}

type tombstoneKey struct {
	userID string
	key    core.CategoryKey
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:        time.Now,
		profiles:   map[string]core.Profile{},
		tombstones: map[tombstoneKey]struct{}{},
	}
}

// WithClock replaces the clock used for created_at timestamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

func (s *Store) GetProfile(_ context.Context, userID string) (core.Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	return p, ok, nil
}

// CreateProfile stores p, assigning an ID and creation time when missing.
func (s *Store) CreateProfile(_ context.Context, p core.Profile) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := s.profiles[p.ID]; ok {
		return core.Profile{}, fmt.Errorf("profile %s: %w", p.ID, ports.ErrDuplicate)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.profiles[p.ID] = p
	return p, nil
}

func (s *Store) ListCategories(_ context.Context, userID string, f ports.CategoryFilter) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.cats {
		if c.UserID == userID && f.Match(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// InsertCategories validates every row before writing any of them.
func (s *Store) InsertCategories(_ context.Context, cats []core.Category) ([]core.Category, error) {
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make([]core.Category, len(cats))
	for i, c := range cats {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		c.CreatedAt, c.UpdatedAt = now, now
		out[i] = c
	}
	s.cats = append(s.cats, out...)
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, userID, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cats {
		if c.ID == id && c.UserID == userID {
			return c, nil
		}
	}
	return core.Category{}, ports.ErrNotFound
}

func (s *Store) DeleteCategory(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, c := range s.cats {
		if c.ID == id && c.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ports.ErrNotFound
	}
	s.cats = append(s.cats[:idx], s.cats[idx+1:]...)

	// Subcategories stay; transactions fall back to uncategorized.
	for i := range s.txs {
		if t := &s.txs[i]; t.CategoryID != nil && *t.CategoryID == id {
			t.CategoryID = nil
		}
	}
	return nil
}

func (s *Store) ListSubcategories(_ context.Context, userID string, categoryIDs []string) ([]core.Subcategory, error) {
	want := make(map[string]struct{}, len(categoryIDs))
	for _, id := range categoryIDs {
		want[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Subcategory
	for _, sc := range s.subs {
		if _, ok := want[sc.CategoryID]; ok && sc.UserID == userID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *Store) ListUserSubcategories(_ context.Context, userID string) ([]core.Subcategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Subcategory
	for _, sc := range s.subs {
		if sc.UserID == userID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *Store) InsertSubcategories(_ context.Context, subs []core.Subcategory) ([]core.Subcategory, error) {
	for _, sc := range subs {
		if err := sc.Validate(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range subs {
		if !s.ownsCategory(sc.UserID, sc.CategoryID) {
			return nil, fmt.Errorf("subcategory %q: %w", sc.Name, core.ErrCategoryNotFound)
		}
	}
	out := make([]core.Subcategory, len(subs))
	for i, sc := range subs {
		if sc.ID == "" {
			sc.ID = uuid.NewString()
		}
		out[i] = sc
	}
	s.subs = append(s.subs, out...)
	return out, nil
}

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.CategoryID != nil && !s.ownsCategory(t.UserID, *t.CategoryID) {
		return core.Transaction{}, core.ErrCategoryNotFound
	}
	if t.SubcategoryID != nil && !s.subcategoryUnder(t.UserID, *t.SubcategoryID, *t.CategoryID) {
		return core.Transaction{}, core.ErrSubcategoryNotFound
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	t.CategoryName = ""
	s.txs = append(s.txs, t)
	return s.resolve(t), nil
}

// ListTransactions returns matches ordered by date, newest first.
func (s *Store) ListTransactions(_ context.Context, userID string, r core.DateRange, f ports.TransactionFilter) ([]core.Transaction, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if t.UserID != userID || !r.Contains(t.Date) || !f.Match(t) {
			continue
		}
		out = append(out, s.resolve(t))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out, nil
}

func (s *Store) InsertTombstone(_ context.Context, d core.DeletedDefaultCategory) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := tombstoneKey{userID: d.UserID, key: d.Key()}
	if _, ok := s.tombstones[k]; ok {
		return ports.ErrDuplicate
	}
	s.tombstones[k] = struct{}{}
	return nil
}

func (s *Store) ListTombstones(_ context.Context, userID string) ([]core.DeletedDefaultCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.DeletedDefaultCategory
	for k := range s.tombstones {
		if k.userID == userID {
			out = append(out, core.DeletedDefaultCategory{UserID: k.userID, CategoryName: k.key.Name, CategoryType: k.key.Type})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CategoryType != out[j].CategoryType {
			return out[i].CategoryType < out[j].CategoryType
		}
		return out[i].CategoryName < out[j].CategoryName
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) ownsCategory(userID, id string) bool {
	for _, c := range s.cats {
		if c.ID == id && c.UserID == userID {
			return true
		}
	}
	return false
}

func (s *Store) subcategoryUnder(userID, id, categoryID string) bool {
	for _, sc := range s.subs {
		if sc.ID == id {
			return sc.UserID == userID && sc.CategoryID == categoryID
		}
	}
	return false
}

// resolve fills CategoryName from the current category rows.
func (s *Store) resolve(t core.Transaction) core.Transaction {
	t.CategoryName = ""
	if t.CategoryID == nil {
		return t
	}
	for _, c := range s.cats {
		if c.ID == *t.CategoryID {
			t.CategoryName = c.Name
			break
		}
	}
	return t
}
