package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/ports"
)

// ErrProfileExists is returned when a profile is registered twice.
var ErrProfileExists = errors.New("profile already exists")

// LedgerStore is the storage LedgerService works against.
type LedgerStore interface {
	ports.ProfileWriter
	ports.TransactionWriter
	ports.TransactionLister
}

// LedgerService registers profiles and records transactions.
type LedgerService struct {
	store    LedgerStore
	now      func() time.Time
	onChange func(userID string)
	logger   *log.Logger
}

func NewLedgerService(store LedgerStore, now func() time.Time, logger *log.Logger) *LedgerService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{store: store, now: now, logger: logger.WithComponent(log.ComponentBackend)}
}

// OnChange registers a callback run after a user's transactions change.
func (s *LedgerService) OnChange(fn func(userID string)) {
	s.onChange = fn
}

// CreateProfile registers userID with the current time as its creation
// instant. That instant opens the new-user seeding window.
func (s *LedgerService) CreateProfile(ctx context.Context, userID string) (core.Profile, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.Profile{}, core.ErrEmptyUser
	}
	p, err := s.store.CreateProfile(ctx, core.Profile{ID: userID, CreatedAt: s.now().UTC()})
	if errors.Is(err, ports.ErrDuplicate) {
		return core.Profile{}, ErrProfileExists
	}
	if err != nil {
		return core.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	s.logger.InfoContext(ctx, "Created profile", log.FieldUserID, userID)
	return p, nil
}

// RecordTransaction validates and stores t. The category, when set, must
// belong to the same user, and a subcategory must sit under that category.
func (s *LedgerService) RecordTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	out, err := s.store.InsertTransaction(ctx, t)
	if err != nil {
		if errors.Is(err, core.ErrCategoryNotFound) || errors.Is(err, core.ErrSubcategoryNotFound) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}
	s.logger.DebugContext(ctx, "Recorded transaction",
		log.FieldUserID, t.UserID,
		log.FieldCategoryType, string(t.Type))
	if s.onChange != nil {
		s.onChange(t.UserID)
	}
	return out, nil
}

// ListTransactions returns the user's transactions in r, newest first.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, r core.DateRange, f ports.TransactionFilter) ([]core.Transaction, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, core.ErrInvalidType
	}
	txs, err := s.store.ListTransactions(ctx, userID, r, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}
