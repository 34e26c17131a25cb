package storage

import "database/sql"

// Row types as stored. Timestamps are RFC 3339 text and dates are YYYY-MM-DD.

type Profile struct {
	ID        string
	CreatedAt string
}

type Category struct {
	ID        string
	UserID    string
	Name      string
	Type      string
	IsDefault bool
	CreatedAt string
	UpdatedAt string
}

type Subcategory struct {
	ID         string
	UserID     string
	CategoryID string
	Name       string
	IsDefault  bool
	CreatedAt  string
}

type Transaction struct {
	ID            string
	UserID        string
	CategoryID    sql.NullString
	SubcategoryID sql.NullString
	Type          string
	Amount        int64
	Date          string
	Description   string
	CreatedAt     string
	UpdatedAt     string
	// CategoryName comes from the LEFT JOIN on categories.
	CategoryName sql.NullString
}

type DeletedDefaultCategory struct {
	UserID       string
	CategoryName string
	CategoryType string
}
