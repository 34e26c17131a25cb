package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MaxCategoryNameLength is the longest category or subcategory name accepted.
const MaxCategoryNameLength = 50

type (
	TransactionType string

	Profile struct {
		ID        string
		CreatedAt time.Time
	}

	Category struct {
		ID        string
		UserID    string
		Name      string
		Type      TransactionType
		IsDefault bool
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Subcategory struct {
		ID         string
		UserID     string
		CategoryID string
		Name       string
		IsDefault  bool
	}

	Transaction struct {
		ID            string
		UserID        string
		CategoryID    *string
		SubcategoryID *string
		// CategoryName is the name of the joined category, empty when the
		// category is unset or no longer exists.
		CategoryName string
		Type         TransactionType
		Amount       Money
		Date         Date
		Description  string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// DeletedDefaultCategory marks a default category the user removed on purpose.
	DeletedDefaultCategory struct {
		UserID       string
		CategoryName string
		CategoryType TransactionType
	}
)

var (
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrEmptyName        = errors.New("empty name")
	ErrNameTooLong      = errors.New("name too long (max 50 characters)")
	ErrEmptyUser        = errors.New("empty user id")
	ErrInvalidDate      = errors.New("invalid date")
	ErrCategoryNotFound = errors.New("category not found")
	// ErrSubcategoryNotFound covers a subcategory that is missing, owned by
	// another user or filed under a different category.
	ErrSubcategoryNotFound = errors.New("subcategory not found")
	ErrSubcategoryOrphan   = errors.New("subcategory requires a category")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (t TransactionType) String() string {
	return string(t)
}

// ParseTransactionType accepts "income" or "expense", case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// Key identifies a category by name and type, the way defaults are matched.
func (c Category) Key() CategoryKey {
	return CategoryKey{Name: c.Name, Type: c.Type}
}

// CategoryKey is the (name, type) pair categories are deduplicated on.
type CategoryKey struct {
	Name string
	Type TransactionType
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrEmptyUser
	}
	if err := validateName(c.Name); err != nil {
		return err
	}
	if !c.Type.Valid() {
		return ErrInvalidType
	}
	return nil
}

func (s Subcategory) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(s.CategoryID) == "" {
		return ErrCategoryNotFound
	}
	return validateName(s.Name)
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(t.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if t.SubcategoryID != nil && t.CategoryID == nil {
		return ErrSubcategoryOrphan
	}
	return nil
}

func (d DeletedDefaultCategory) Validate() error {
	if strings.TrimSpace(d.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(d.CategoryName) == "" {
		return ErrEmptyName
	}
	if !d.CategoryType.Valid() {
		return ErrInvalidType
	}
	return nil
}

// Key returns the (name, type) pair the tombstone suppresses.
func (d DeletedDefaultCategory) Key() CategoryKey {
	return CategoryKey{Name: d.CategoryName, Type: d.CategoryType}
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if utf8.RuneCountInString(name) > MaxCategoryNameLength {
		return ErrNameTooLong
	}
	return nil
}
