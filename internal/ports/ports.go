// Package ports declares the store contracts the services depend on.
// Backends in internal/memory, internal/storage and internal/postgres
// implement them.
package ports

import (
	"context"
	"errors"

	"kakeibo/internal/core"
)

var (
	// ErrDuplicate is returned when a write violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrMissingTable is returned when the backing table has not been migrated.
	ErrMissingTable = errors.New("table does not exist")
	// ErrNotFound is returned when a row does not exist or belongs to another user.
	ErrNotFound = errors.New("not found")
)

// CategoryFilter narrows ListCategories. Zero values match everything.
type CategoryFilter struct {
	Type        core.TransactionType
	DefaultOnly bool
}

// Match reports whether c passes the filter.
func (f CategoryFilter) Match(c core.Category) bool {
	if f.Type != "" && c.Type != f.Type {
		return false
	}
	if f.DefaultOnly && !c.IsDefault {
		return false
	}
	return true
}

// TransactionFilter narrows ListTransactions. Zero values match everything.
type TransactionFilter struct {
	Type       core.TransactionType
	CategoryID string
}

// Match reports whether t passes the filter.
func (f TransactionFilter) Match(t core.Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.CategoryID != "" && (t.CategoryID == nil || *t.CategoryID != f.CategoryID) {
		return false
	}
	return true
}

// Ports for outbound adapters.
type (
	ProfileReader interface {
		// GetProfile returns the profile and whether it exists.
		GetProfile(ctx context.Context, userID string) (core.Profile, bool, error)
	}

	ProfileWriter interface {
		CreateProfile(ctx context.Context, p core.Profile) (core.Profile, error)
	}

	CategoryStore interface {
		ListCategories(ctx context.Context, userID string, f CategoryFilter) ([]core.Category, error)
		// InsertCategories writes all rows or none and returns them with IDs assigned.
		InsertCategories(ctx context.Context, cats []core.Category) ([]core.Category, error)
		// GetCategory returns ErrNotFound unless the category exists and belongs to userID.
		GetCategory(ctx context.Context, userID, id string) (core.Category, error)
		// DeleteCategory removes the category. Subcategories go with it and
		// transactions keep their rows with the category cleared.
		DeleteCategory(ctx context.Context, userID, id string) error
	}

	SubcategoryStore interface {
		// ListSubcategories returns the subcategories of the given categories.
		ListSubcategories(ctx context.Context, userID string, categoryIDs []string) ([]core.Subcategory, error)
		ListUserSubcategories(ctx context.Context, userID string) ([]core.Subcategory, error)
		InsertSubcategories(ctx context.Context, subs []core.Subcategory) ([]core.Subcategory, error)
	}

	TransactionLister interface {
		// ListTransactions returns the user's transactions dated within r with
		// CategoryName resolved from the joined category.
		ListTransactions(ctx context.Context, userID string, r core.DateRange, f TransactionFilter) ([]core.Transaction, error)
	}

	TransactionWriter interface {
		InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	}

	TombstoneStore interface {
		// InsertTombstone returns ErrDuplicate if the (user, name, type) triple
		// is already recorded and ErrMissingTable if the table is absent.
		InsertTombstone(ctx context.Context, d core.DeletedDefaultCategory) error
		ListTombstones(ctx context.Context, userID string) ([]core.DeletedDefaultCategory, error)
	}

	// TombstoneRecorder records a deleted default category on a best-effort
	// basis. Record never blocks on the store and never reports failure.
	TombstoneRecorder interface {
		Record(ctx context.Context, d core.DeletedDefaultCategory)
	}

	// Store is the full surface a data backend provides.
	Store interface {
		ProfileReader
		ProfileWriter
		CategoryStore
		SubcategoryStore
		TransactionLister
		TransactionWriter
		TombstoneStore
		Ping(ctx context.Context) error
		Close() error
	}
)
