// Package postgres is the PostgreSQL backend built on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kakeibo/internal/core"
	"kakeibo/internal/ports"
)

type Repository struct {
	pool *pgxpool.Pool
}

var _ ports.Store = (*Repository)(nil)

// Open connects to databaseURL, applies migrations and returns the repository.
func Open(ctx context.Context, databaseURL string) (*Repository, error) {
	if _, err := Migrate(databaseURL); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// NewRepository wraps an existing pool. Migrations are the caller's concern.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (core.Profile, bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return core.Profile{}, false, nil
	}
	var p core.Profile
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, created_at FROM profiles WHERE id = $1::uuid`,
		userID,
	).Scan(&p.ID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Profile{}, false, nil
	}
	if err != nil {
		return core.Profile{}, false, mapError("get profile", err)
	}
	return p, true, nil
}

func (r *Repository) CreateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO profiles (id, created_at) VALUES ($1::uuid, $2) RETURNING created_at`,
		p.ID, p.CreatedAt,
	).Scan(&p.CreatedAt)
	if err != nil {
		return core.Profile{}, mapError("create profile", err)
	}
	return p, nil
}

const categoryColumns = `id::text, user_id::text, name, type, is_default, created_at, updated_at`

func (r *Repository) ListCategories(ctx context.Context, userID string, f ports.CategoryFilter) ([]core.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+categoryColumns+`
		 FROM categories
		 WHERE user_id = $1::uuid
		   AND ($2::text = '' OR type = $2::text)
		   AND (NOT $3::boolean OR is_default)
		 ORDER BY created_at, id`,
		userID, string(f.Type), f.DefaultOnly,
	)
	if err != nil {
		return nil, mapError("list categories", err)
	}
	cats, err := pgx.CollectRows(rows, scanCategory)
	if err != nil {
		return nil, mapError("list categories", err)
	}
	return cats, nil
}

// InsertCategories writes the batch in one transaction.
func (r *Repository) InsertCategories(ctx context.Context, cats []core.Category) ([]core.Category, error) {
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	out := make([]core.Category, len(cats))
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		for i, c := range cats {
			if c.ID == "" {
				c.ID = uuid.NewString()
			}
			// Rows of one batch get increasing timestamps so they list in order.
			c.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
			c.UpdatedAt = c.CreatedAt
			if _, err := tx.Exec(ctx,
				`INSERT INTO categories (id, user_id, name, type, is_default, created_at, updated_at)
				 VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $6)`,
				c.ID, c.UserID, c.Name, string(c.Type), c.IsDefault, c.CreatedAt,
			); err != nil {
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

func (r *Repository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return core.Category{}, ports.ErrNotFound
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1::uuid AND user_id = $2::uuid`,
		id, userID,
	)
	if err != nil {
		return core.Category{}, mapError("get category", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCategory)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Category{}, ports.ErrNotFound
	}
	if err != nil {
		return core.Category{}, mapError("get category", err)
	}
	return c, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ports.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM categories WHERE id = $1::uuid AND user_id = $2::uuid`,
		id, userID,
	)
	if err != nil {
		return mapError("delete category", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

const subcategoryColumns = `id::text, user_id::text, category_id::text, name, is_default`

func (r *Repository) ListSubcategories(ctx context.Context, userID string, categoryIDs []string) ([]core.Subcategory, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+subcategoryColumns+`
		 FROM subcategories
		 WHERE user_id = $1::uuid AND category_id::text = ANY($2::text[])
		 ORDER BY created_at, id`,
		userID, categoryIDs,
	)
	if err != nil {
		return nil, mapError("list subcategories", err)
	}
	subs, err := pgx.CollectRows(rows, scanSubcategory)
	if err != nil {
		return nil, mapError("list subcategories", err)
	}
	return subs, nil
}

func (r *Repository) ListUserSubcategories(ctx context.Context, userID string) ([]core.Subcategory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+subcategoryColumns+` FROM subcategories WHERE user_id = $1::uuid ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, mapError("list subcategories", err)
	}
	subs, err := pgx.CollectRows(rows, scanSubcategory)
	if err != nil {
		return nil, mapError("list subcategories", err)
	}
	return subs, nil
}

func (r *Repository) InsertSubcategories(ctx context.Context, subs []core.Subcategory) ([]core.Subcategory, error) {
	for _, s := range subs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	out := make([]core.Subcategory, len(subs))
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now()
		for i, s := range subs {
			if s.ID == "" {
				s.ID = uuid.NewString()
			}
			tag, err := tx.Exec(ctx,
				`INSERT INTO subcategories (id, user_id, category_id, name, is_default, created_at)
				 SELECT $1::uuid, $2::uuid, id, $4, $5, $6
				 FROM categories WHERE id = $3::uuid AND user_id = $2::uuid`,
				s.ID, s.UserID, s.CategoryID, s.Name, s.IsDefault, now.Add(time.Duration(i)*time.Microsecond),
			)
			if err != nil {
				return mapError("insert subcategory", err)
			}
			if tag.RowsAffected() == 0 {
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

func (r *Repository) InsertTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.CategoryID != nil {
		if _, err := uuid.Parse(*t.CategoryID); err != nil {
			return core.Transaction{}, core.ErrCategoryNotFound
		}
	}
	if t.SubcategoryID != nil {
		if err := r.checkSubcategory(ctx, t.UserID, *t.SubcategoryID, *t.CategoryID); err != nil {
			return core.Transaction{}, err
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO transactions (id, user_id, category_id, subcategory_id, type, amount, date, description)
		 SELECT $1::uuid, $2::uuid, $3::uuid, $4::uuid, $5, $6, $7::date, $8
		 WHERE $3::uuid IS NULL OR EXISTS (SELECT 1 FROM categories WHERE id = $3::uuid AND user_id = $2::uuid)
		 RETURNING created_at, updated_at,
		           (SELECT name FROM categories WHERE id = $3::uuid)`,
		t.ID, t.UserID, t.CategoryID, t.SubcategoryID, string(t.Type), t.Amount.Int64(), t.Date.String(), t.Description,
	).Scan(&t.CreatedAt, &t.UpdatedAt, &nullableName{&t.CategoryName})
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Transaction{}, mapError("insert transaction", err)
	}
	return t, nil
}

// checkSubcategory fails with core.ErrSubcategoryNotFound unless id belongs
// to userID and sits under categoryID.
func (r *Repository) checkSubcategory(ctx context.Context, userID, id, categoryID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.ErrSubcategoryNotFound
	}
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subcategories
		 WHERE id = $1::uuid AND user_id = $2::uuid AND category_id = $3::uuid)`,
		id, userID, categoryID,
	).Scan(&ok)
	if err != nil {
		return mapError("check subcategory", err)
	}
	if !ok {
		return core.ErrSubcategoryNotFound
	}
	return nil
}

func (r *Repository) ListTransactions(ctx context.Context, userID string, dr core.DateRange, f ports.TransactionFilter) ([]core.Transaction, error) {
	if err := dr.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT t.id::text, t.user_id::text, t.category_id::text, t.subcategory_id::text,
		        t.type, t.amount, t.date, t.description, t.created_at, t.updated_at,
		        COALESCE(c.name, '')
		 FROM transactions t
		 LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = $1::uuid
		   AND t.date BETWEEN $2::date AND $3::date
		   AND ($4::text = '' OR t.type = $4::text)
		   AND ($5::text = '' OR t.category_id::text = $5::text)
		 ORDER BY t.date DESC, t.created_at DESC`,
		userID, dr.Start.String(), dr.End.String(), string(f.Type), f.CategoryID,
	)
	if err != nil {
		return nil, mapError("list transactions", err)
	}
	txs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Transaction, error) {
		var (
			t      core.Transaction
			typ    string
			amount int64
			date   time.Time
		)
		err := row.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.SubcategoryID,
			&typ, &amount, &date, &t.Description, &t.CreatedAt, &t.UpdatedAt, &t.CategoryName)
		t.Type = core.TransactionType(typ)
		t.Amount = core.Money(amount)
		t.Date = core.DateOf(date)
		return t, err
	})
	if err != nil {
		return nil, mapError("list transactions", err)
	}
	return txs, nil
}

func (r *Repository) InsertTombstone(ctx context.Context, d core.DeletedDefaultCategory) error {
	if err := d.Validate(); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO deleted_default_categories (user_id, category_name, category_type)
		 VALUES ($1::uuid, $2, $3)`,
		d.UserID, d.CategoryName, string(d.CategoryType),
	)
	return mapError("insert tombstone", err)
}

func (r *Repository) ListTombstones(ctx context.Context, userID string) ([]core.DeletedDefaultCategory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id::text, category_name, category_type
		 FROM deleted_default_categories
		 WHERE user_id = $1::uuid
		 ORDER BY category_type, category_name`,
		userID,
	)
	if err != nil {
		return nil, mapError("list tombstones", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.DeletedDefaultCategory, error) {
		var d core.DeletedDefaultCategory
		var typ string
		err := row.Scan(&d.UserID, &d.CategoryName, &typ)
		d.CategoryType = core.TransactionType(typ)
		return d, err
	})
	if err != nil {
		return nil, mapError("list tombstones", err)
	}
	return list, nil
}

// mapError wraps err with op and translates PostgreSQL error codes into port
// errors: 23505 unique_violation and 42P01 undefined_table.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%s: %w: %v", op, ports.ErrDuplicate, err)
		case pgerrcode.UndefinedTable:
			return fmt.Errorf("%s: %w: %v", op, ports.ErrMissingTable, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanCategory(row pgx.CollectableRow) (core.Category, error) {
	var c core.Category
	var typ string
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt)
	c.Type = core.TransactionType(typ)
	return c, err
}

func scanSubcategory(row pgx.CollectableRow) (core.Subcategory, error) {
	var s core.Subcategory
	err := row.Scan(&s.ID, &s.UserID, &s.CategoryID, &s.Name, &s.IsDefault)
	return s, err
}

// nullableName scans a nullable text column into a plain string.
type nullableName struct {
	dst *string
}

func (n *nullableName) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n.dst = ""
	case string:
		*n.dst = v
	default:
		return fmt.Errorf("unexpected category name type %T", src)
	}
	return nil
}
