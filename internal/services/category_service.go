package services

import (
	"context"
	"errors"
	"fmt"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/ports"
)

// CategoryService manages a user's categories and subcategories.
type CategoryService struct {
	categories    ports.CategoryStore
	subcategories ports.SubcategoryStore
	recorder      ports.TombstoneRecorder
	onChange      func(userID string)
	logger        *log.Logger
}

// NewCategoryService wires the service. recorder may be nil, in which case
// deleted default categories are not remembered.
func NewCategoryService(categories ports.CategoryStore, subcategories ports.SubcategoryStore, recorder ports.TombstoneRecorder, logger *log.Logger) *CategoryService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &CategoryService{
		categories:    categories,
		subcategories: subcategories,
		recorder:      recorder,
		logger:        logger.WithComponent(log.ComponentCategory),
	}
}

// OnChange registers a callback run after a user's categories change.
func (s *CategoryService) OnChange(fn func(userID string)) {
	s.onChange = fn
}

func (s *CategoryService) ListCategories(ctx context.Context, userID string, typ core.TransactionType) ([]core.Category, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	if typ != "" && !typ.Valid() {
		return nil, core.ErrInvalidType
	}
	cats, err := s.categories.ListCategories(ctx, userID, ports.CategoryFilter{Type: typ})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// CreateCategory adds a user-defined category. It is never marked default.
func (s *CategoryService) CreateCategory(ctx context.Context, userID, name string, typ core.TransactionType) (core.Category, error) {
	c := core.Category{UserID: userID, Name: name, Type: typ}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	out, err := s.categories.InsertCategories(ctx, []core.Category{c})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.changed(userID)
	return out[0], nil
}

// ListSubcategories returns the subcategories of the user's categories.
func (s *CategoryService) ListSubcategories(ctx context.Context, userID string, categoryIDs ...string) ([]core.Subcategory, error) {
	if userID == "" {
		return nil, core.ErrEmptyUser
	}
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	subs, err := s.subcategories.ListSubcategories(ctx, userID, categoryIDs)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	return subs, nil
}

// DeleteCategory removes the category. When it was a default category a
// tombstone is recorded after the delete; the result never depends on it.
func (s *CategoryService) DeleteCategory(ctx context.Context, userID, categoryID string) error {
	if userID == "" {
		return core.ErrEmptyUser
	}
	c, err := s.categories.GetCategory(ctx, userID, categoryID)
	if errors.Is(err, ports.ErrNotFound) {
		return core.ErrCategoryNotFound
	}
	if err != nil {
		return fmt.Errorf("get category: %w", err)
	}

	if err := s.categories.DeleteCategory(ctx, userID, categoryID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return core.ErrCategoryNotFound
		}
		return fmt.Errorf("delete category: %w", err)
	}
	s.logger.InfoContext(ctx, "Deleted category",
		log.FieldUserID, userID,
		log.FieldCategoryID, categoryID,
		log.FieldCategoryName, c.Name)
	s.changed(userID)

	if c.IsDefault && s.recorder != nil {
		s.recorder.Record(ctx, core.DeletedDefaultCategory{
			UserID:       userID,
			CategoryName: c.Name,
			CategoryType: c.Type,
		})
	}
	return nil
}

func (s *CategoryService) changed(userID string) {
	if s.onChange != nil {
		s.onChange(userID)
	}
}
