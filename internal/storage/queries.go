package storage

import (
	"context"
	"strings"
)

const createProfile = `INSERT INTO profiles (id, created_at) VALUES (?, ?)`

func (q *Queries) CreateProfile(ctx context.Context, arg Profile) error {
	_, err := q.db.ExecContext(ctx, createProfile, arg.ID, arg.CreatedAt)
	return err
}

const getProfile = `SELECT id, created_at FROM profiles WHERE id = ?`

func (q *Queries) GetProfile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	err := q.db.QueryRowContext(ctx, getProfile, id).Scan(&p.ID, &p.CreatedAt)
	return p, err
}

const listCategories = `
SELECT id, user_id, name, type, is_default, created_at, updated_at
FROM categories
WHERE user_id = ?1
  AND (?2 = '' OR type = ?2)
  AND (?3 = 0 OR is_default = 1)
ORDER BY created_at, rowid`

type ListCategoriesParams struct {
	UserID      string
	Type        string
	DefaultOnly bool
}

func (q *Queries) ListCategories(ctx context.Context, arg ListCategoriesParams) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories, arg.UserID, arg.Type, arg.DefaultOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

const createCategory = `
INSERT INTO categories (id, user_id, name, type, is_default, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, arg Category) error {
	_, err := q.db.ExecContext(ctx, createCategory,
		arg.ID, arg.UserID, arg.Name, arg.Type, arg.IsDefault, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const getCategory = `
SELECT id, user_id, name, type, is_default, created_at, updated_at
FROM categories
WHERE id = ? AND user_id = ?`

func (q *Queries) GetCategory(ctx context.Context, id, userID string) (Category, error) {
	var c Category
	err := q.db.QueryRowContext(ctx, getCategory, id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const deleteCategory = `DELETE FROM categories WHERE id = ? AND user_id = ?`

// DeleteCategory returns the number of deleted rows.
func (q *Queries) DeleteCategory(ctx context.Context, id, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const subcategoryColumns = `SELECT id, user_id, category_id, name, is_default, created_at FROM subcategories`

func (q *Queries) ListSubcategoriesByCategory(ctx context.Context, userID string, categoryIDs []string) ([]Subcategory, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(categoryIDs)+1)
	args = append(args, userID)
	for _, id := range categoryIDs {
		args = append(args, id)
	}
	query := subcategoryColumns + ` WHERE user_id = ? AND category_id IN (` +
		strings.TrimSuffix(strings.Repeat("?,", len(categoryIDs)), ",") +
		`) ORDER BY created_at, rowid`
	return q.listSubcategories(ctx, query, args...)
}

func (q *Queries) ListUserSubcategories(ctx context.Context, userID string) ([]Subcategory, error) {
	return q.listSubcategories(ctx, subcategoryColumns+` WHERE user_id = ? ORDER BY created_at, rowid`, userID)
}

func (q *Queries) listSubcategories(ctx context.Context, query string, args ...any) ([]Subcategory, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Subcategory
	for rows.Next() {
		var s Subcategory
		if err := rows.Scan(&s.ID, &s.UserID, &s.CategoryID, &s.Name, &s.IsDefault, &s.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const createSubcategory = `
INSERT INTO subcategories (id, user_id, category_id, name, is_default, created_at)
SELECT ?, ?, id, ?, ?, ? FROM categories WHERE id = ? AND user_id = ?`

// CreateSubcategory inserts only when the parent belongs to the same user and
// returns the number of inserted rows.
func (q *Queries) CreateSubcategory(ctx context.Context, arg Subcategory) (int64, error) {
	res, err := q.db.ExecContext(ctx, createSubcategory,
		arg.ID, arg.UserID, arg.Name, arg.IsDefault, arg.CreatedAt, arg.CategoryID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const categoryOwned = `SELECT COUNT(*) FROM categories WHERE id = ? AND user_id = ?`

const subcategoryUnder = `SELECT COUNT(*) FROM subcategories WHERE id = ? AND user_id = ? AND category_id = ?`

// SubcategoryUnder reports whether the subcategory belongs to userID and is
// filed under categoryID.
func (q *Queries) SubcategoryUnder(ctx context.Context, id, userID, categoryID string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx, subcategoryUnder, id, userID, categoryID).Scan(&n)
	return n > 0, err
}

func (q *Queries) CategoryOwned(ctx context.Context, id, userID string) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx, categoryOwned, id, userID).Scan(&n)
	return n > 0, err
}

const createTransaction = `
INSERT INTO transactions (id, user_id, category_id, subcategory_id, type, amount, date, description, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, arg Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID, arg.UserID, arg.CategoryID, arg.SubcategoryID, arg.Type, arg.Amount,
		arg.Date, arg.Description, arg.CreatedAt, arg.UpdatedAt)
	return err
}

const listTransactions = `
SELECT t.id, t.user_id, t.category_id, t.subcategory_id, t.type, t.amount, t.date,
       t.description, t.created_at, t.updated_at, c.name
FROM transactions t
LEFT JOIN categories c ON c.id = t.category_id
WHERE t.user_id = ?1
  AND t.date BETWEEN ?2 AND ?3
  AND (?4 = '' OR t.type = ?4)
  AND (?5 = '' OR t.category_id = ?5)
ORDER BY t.date DESC, t.created_at DESC`

type ListTransactionsParams struct {
	UserID     string
	StartDate  string
	EndDate    string
	Type       string
	CategoryID string
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions,
		arg.UserID, arg.StartDate, arg.EndDate, arg.Type, arg.CategoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.SubcategoryID, &t.Type, &t.Amount,
			&t.Date, &t.Description, &t.CreatedAt, &t.UpdatedAt, &t.CategoryName); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const createTombstone = `
INSERT INTO deleted_default_categories (user_id, category_name, category_type)
VALUES (?, ?, ?)`

func (q *Queries) CreateTombstone(ctx context.Context, arg DeletedDefaultCategory) error {
	_, err := q.db.ExecContext(ctx, createTombstone, arg.UserID, arg.CategoryName, arg.CategoryType)
	return err
}

const listTombstones = `
SELECT user_id, category_name, category_type
FROM deleted_default_categories
WHERE user_id = ?
ORDER BY category_type, category_name`

func (q *Queries) ListTombstones(ctx context.Context, userID string) ([]DeletedDefaultCategory, error) {
	rows, err := q.db.QueryContext(ctx, listTombstones, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DeletedDefaultCategory
	for rows.Next() {
		var d DeletedDefaultCategory
		if err := rows.Scan(&d.UserID, &d.CategoryName, &d.CategoryType); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
