// Package storage is the SQLite backend. The schema is applied with
// golang-migrate on open.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"kakeibo/internal/core"
	"kakeibo/internal/ports"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	schema  SchemaVersion
	now     func() time.Time
}

var _ ports.Store = (*SQLiteRepository)(nil)

// DSN builds a modernc.org/sqlite data source name with foreign keys on.
func DSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	schema, err := Migrate(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		schema:  schema,
		now:     time.Now,
	}, nil
}

// Schema returns the migration state observed when the repository opened.
func (r *SQLiteRepository) Schema() SchemaVersion {
	return r.schema
}

// WithClock replaces the clock used for created_at and updated_at.
func (r *SQLiteRepository) WithClock(now func() time.Time) *SQLiteRepository {
	r.now = now
	return r
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// DB exposes the underlying handle for maintenance tasks.
func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.Profile, bool, error) {
	p, err := r.queries.GetProfile(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Profile{}, false, nil
	}
	if err != nil {
		return core.Profile{}, false, mapError("get profile", err)
	}
	created, err := time.Parse(timeLayout, p.CreatedAt)
	if err != nil {
		return core.Profile{}, false, fmt.Errorf("parse profile created_at %q: %w", p.CreatedAt, err)
	}
	return core.Profile{ID: p.ID, CreatedAt: created}, true, nil
}

func (r *SQLiteRepository) CreateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	p.CreatedAt = p.CreatedAt.UTC()
	if err := r.queries.CreateProfile(ctx, Profile{ID: p.ID, CreatedAt: formatTime(p.CreatedAt)}); err != nil {
		return core.Profile{}, mapError("create profile", err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string, f ports.CategoryFilter) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx, ListCategoriesParams{
		UserID:      userID,
		Type:        string(f.Type),
		DefaultOnly: f.DefaultOnly,
	})
	if err != nil {
		return nil, mapError("list categories", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, toCategory(row))
	}
	return out, nil
}

// InsertCategories writes the batch in one transaction.
func (r *SQLiteRepository) InsertCategories(ctx context.Context, cats []core.Category) ([]core.Category, error) {
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	now := r.now().UTC()
	out := make([]core.Category, len(cats))
	err := r.inTx(ctx, func(q *Queries) error {
		for i, c := range cats {
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			c.CreatedAt, c.UpdatedAt = now, now
			if err := q.CreateCategory(ctx, Category{
				ID:        c.ID,
				UserID:    c.UserID,
				Name:      c.Name,
				Type:      string(c.Type),
				IsDefault: c.IsDefault,
				CreatedAt: formatTime(now),
				UpdatedAt: formatTime(now),
			}); err != nil {
				return mapError("insert category", err)
			}
			out[i] = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row, err := r.queries.GetCategory(ctx, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Category{}, mapError("get category", err)
	}
	return toCategory(row), nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, userID, id string) error {
	n, err := r.queries.DeleteCategory(ctx, id, userID)
	if err != nil {
		return mapError("delete category", err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListSubcategories(ctx context.Context, userID string, categoryIDs []string) ([]core.Subcategory, error) {
	rows, err := r.queries.ListSubcategoriesByCategory(ctx, userID, categoryIDs)
	if err != nil {
		return nil, mapError("list subcategories", err)
	}
	return toSubcategories(rows), nil
}

func (r *SQLiteRepository) ListUserSubcategories(ctx context.Context, userID string) ([]core.Subcategory, error) {
	rows, err := r.queries.ListUserSubcategories(ctx, userID)
	if err != nil {
		return nil, mapError("list subcategories", err)
	}
	return toSubcategories(rows), nil
}

func (r *SQLiteRepository) InsertSubcategories(ctx context.Context, subs []core.Subcategory) ([]core.Subcategory, error) {
	for _, s := range subs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	now := formatTime(r.now().UTC())
	out := make([]core.Subcategory, len(subs))
	err := r.inTx(ctx, func(q *Queries) error {
		for i, s := range subs {
			if s.ID == "" {
				s.ID = uuid.NewString()
			}
			n, err := q.CreateSubcategory(ctx, Subcategory{
				ID:         s.ID,
				UserID:     s.UserID,
				CategoryID: s.CategoryID,
				Name:       s.Name,
				IsDefault:  s.IsDefault,
				CreatedAt:  now,
			})
			if err != nil {
				return mapError("insert subcategory", err)
			}
			if n == 0 {
				return fmt.Errorf("subcategory %q: %w", s.Name, core.ErrCategoryNotFound)
			}
			out[i] = s
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.CategoryID != nil {
		ok, err := r.queries.CategoryOwned(ctx, *t.CategoryID, t.UserID)
		if err != nil {
			return core.Transaction{}, mapError("check category", err)
		}
		if !ok {
			return core.Transaction{}, core.ErrCategoryNotFound
		}
	}
	if t.SubcategoryID != nil {
		ok, err := r.queries.SubcategoryUnder(ctx, *t.SubcategoryID, t.UserID, *t.CategoryID)
		if err != nil {
			return core.Transaction{}, mapError("check subcategory", err)
		}
		if !ok {
			return core.Transaction{}, core.ErrSubcategoryNotFound
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := r.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	if err := r.queries.CreateTransaction(ctx, Transaction{
		ID:            t.ID,
		UserID:        t.UserID,
		CategoryID:    nullString(t.CategoryID),
		SubcategoryID: nullString(t.SubcategoryID),
		Type:          string(t.Type),
		Amount:        t.Amount.Int64(),
		Date:          t.Date.String(),
		Description:   t.Description,
		CreatedAt:     formatTime(now),
		UpdatedAt:     formatTime(now),
	}); err != nil {
		return core.Transaction{}, mapError("insert transaction", err)
	}
	if t.CategoryID != nil {
		if c, err := r.GetCategory(ctx, t.UserID, *t.CategoryID); err == nil {
			t.CategoryName = c.Name
		}
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string, dr core.DateRange, f ports.TransactionFilter) ([]core.Transaction, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListTransactions(ctx, ListTransactionsParams{
		UserID:     userID,
		StartDate:  dr.Start.String(),
		EndDate:    dr.End.String(),
		Type:       string(f.Type),
		CategoryID: f.CategoryID,
	})
	if err != nil {
		return nil, mapError("list transactions", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := toTransaction(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertTombstone(ctx context.Context, d core.DeletedDefaultCategory) error {
	if err := d.Validate(); err != nil {
		return err
	}
	err := r.queries.CreateTombstone(ctx, DeletedDefaultCategory{
		UserID:       d.UserID,
		CategoryName: d.CategoryName,
		CategoryType: string(d.CategoryType),
	})
	return mapError("insert tombstone", err)
}

func (r *SQLiteRepository) ListTombstones(ctx context.Context, userID string) ([]core.DeletedDefaultCategory, error) {
	rows, err := r.queries.ListTombstones(ctx, userID)
	if err != nil {
		return nil, mapError("list tombstones", err)
	}
	out := make([]core.DeletedDefaultCategory, 0, len(rows))
	for _, row := range rows {
		out = append(out, core.DeletedDefaultCategory{
			UserID:       row.UserID,
			CategoryName: row.CategoryName,
			CategoryType: core.TransactionType(row.CategoryType),
		})
	}
	return out, nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError("begin transaction", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError("commit", err)
	}
	return nil
}

// mapError wraps err with op and translates SQLite failures into port errors.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w: %v", op, ports.ErrDuplicate, err)
		}
	}
	if strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%s: %w: %v", op, ports.ErrMissingTable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func toCategory(c Category) core.Category {
	return core.Category{
		ID:        c.ID,
		UserID:    c.UserID,
		Name:      c.Name,
		Type:      core.TransactionType(c.Type),
		IsDefault: c.IsDefault,
		CreatedAt: parseTime(c.CreatedAt),
		UpdatedAt: parseTime(c.UpdatedAt),
	}
}

func toSubcategories(rows []Subcategory) []core.Subcategory {
	out := make([]core.Subcategory, 0, len(rows))
	for _, s := range rows {
		out = append(out, core.Subcategory{
			ID:         s.ID,
			UserID:     s.UserID,
			CategoryID: s.CategoryID,
			Name:       s.Name,
			IsDefault:  s.IsDefault,
		})
	}
	return out
}

func toTransaction(t Transaction) (core.Transaction, error) {
	date, err := core.ParseDate(t.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	return core.Transaction{
		ID:            t.ID,
		UserID:        t.UserID,
		CategoryID:    stringPtr(t.CategoryID),
		SubcategoryID: stringPtr(t.SubcategoryID),
		CategoryName:  t.CategoryName.String,
		Type:          core.TransactionType(t.Type),
		Amount:        core.Money(t.Amount),
		Date:          date,
		Description:   t.Description,
		CreatedAt:     parseTime(t.CreatedAt),
		UpdatedAt:     parseTime(t.UpdatedAt),
	}, nil
}
