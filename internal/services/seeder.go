package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/ports"
	"kakeibo/internal/taxonomy"
)

// DefaultNewUserWindow is how long after profile creation seeding may run.
const DefaultNewUserWindow = 5 * time.Minute

// SkipReason explains why a seeding step inserted nothing.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipInvalidUser    SkipReason = "invalid_user"
	SkipNoProfile      SkipReason = "no_profile"
	SkipNotNewUser     SkipReason = "not_new_user"
	SkipNothingMissing SkipReason = "nothing_missing"
	SkipFailed         SkipReason = "failed"
)

// SeedResult reports what one seeding step did. Failures are logged, not
// returned, so callers may ignore it.
type SeedResult struct {
	Skipped  SkipReason `json:"skipped,omitempty"`
	Inserted int        `json:"inserted"`
}

// BootstrapResult holds the outcome of both seeding steps.
type BootstrapResult struct {
	Categories    SeedResult `json:"categories"`
	Subcategories SeedResult `json:"subcategories"`
}

type SeederConfig struct {
	// Window is the new-user window. Zero means DefaultNewUserWindow.
	Window time.Duration
	// HonorTombstones stops the seeder from recreating default categories the
	// user deleted while still inside the window.
	HonorTombstones bool
	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// Seeder creates the default taxonomy for users inside the new-user window.
// Concurrent calls for the same user within one process share a single run.
type Seeder struct {
	profiles      ports.ProfileReader
	categories    ports.CategoryStore
	subcategories ports.SubcategoryStore
	tombstones    ports.TombstoneStore
	cfg           SeederConfig
	logger        *log.Logger
	structured    *log.StructuredLogger
	group         singleflight.Group
}

// NewSeeder wires a seeder. tombstones may be nil when HonorTombstones is off.
func NewSeeder(profiles ports.ProfileReader, categories ports.CategoryStore, subcategories ports.SubcategoryStore, tombstones ports.TombstoneStore, cfg SeederConfig, logger *log.Logger) *Seeder {
	if cfg.Window <= 0 {
		cfg.Window = DefaultNewUserWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSeeder)
	return &Seeder{
		profiles:      profiles,
		categories:    categories,
		subcategories: subcategories,
		tombstones:    tombstones,
		cfg:           cfg,
		logger:        logger,
		structured:    log.NewStructuredLogger(logger),
	}
}

// Bootstrap runs both seeding steps, categories first. The steps are
// independent: a failed category step does not stop the subcategory step.
func (s *Seeder) Bootstrap(ctx context.Context, userID string) BootstrapResult {
	return BootstrapResult{
		Categories:    s.EnsureDefaultCategories(ctx, userID),
		Subcategories: s.CreateDefaultSubcategoriesForUser(ctx, userID),
	}
}

// EnsureDefaultCategories inserts the default categories the user is missing,
// provided the user's profile is younger than the new-user window.
func (s *Seeder) EnsureDefaultCategories(ctx context.Context, userID string) SeedResult {
	return s.do(ctx, log.OpSeedCategories, userID, s.seedCategories)
}

// CreateDefaultSubcategoriesForUser inserts the default subcategories whose
// parent category the user has, under the same new-user window.
func (s *Seeder) CreateDefaultSubcategoriesForUser(ctx context.Context, userID string) SeedResult {
	return s.do(ctx, log.OpSeedSubcategory, userID, s.seedSubcategories)
}

func (s *Seeder) do(ctx context.Context, op, userID string, step func(context.Context, string) SeedResult) SeedResult {
	if userID == "" {
		return SeedResult{Skipped: SkipInvalidUser}
	}
	v, _, _ := s.group.Do(op+":"+userID, func() (any, error) {
		res := step(ctx, userID)
		s.structured.LogSeed(ctx, op, userID, res.Inserted, string(res.Skipped))
		return res, nil
	})
	return v.(SeedResult)
}

// gate returns SkipNone when seeding may proceed for userID.
func (s *Seeder) gate(ctx context.Context, op, userID string) SkipReason {
	p, ok, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		s.structured.LogError(ctx, "Failed to read profile", err, log.ErrorTypeDatabase, op, log.NewFields().User(userID))
		return SkipFailed
	}
	if !ok {
		s.logger.DebugContext(ctx, "Profile not found, skipping default seeding", log.FieldUserID, userID)
		return SkipNoProfile
	}
	if s.cfg.Now().Sub(p.CreatedAt) >= s.cfg.Window {
		return SkipNotNewUser
	}
	return SkipNone
}

func (s *Seeder) seedCategories(ctx context.Context, userID string) SeedResult {
	if reason := s.gate(ctx, log.OpSeedCategories, userID); reason != SkipNone {
		return SeedResult{Skipped: reason}
	}

	existing, err := s.categories.ListCategories(ctx, userID, ports.CategoryFilter{DefaultOnly: true})
	if err != nil {
		s.structured.LogError(ctx, "Failed to list default categories", err, log.ErrorTypeDatabase, log.OpSeedCategories, log.NewFields().User(userID))
		return SeedResult{Skipped: SkipFailed}
	}
	have := make(map[core.CategoryKey]struct{}, len(existing))
	for _, c := range existing {
		have[c.Key()] = struct{}{}
	}

	if s.cfg.HonorTombstones {
		deleted, err := s.deletedKeys(ctx, userID)
		if err != nil {
			s.structured.LogError(ctx, "Failed to list deleted default categories", err, log.ErrorTypeDatabase, log.OpSeedCategories, log.NewFields().User(userID))
			return SeedResult{Skipped: SkipFailed}
		}
		for k := range deleted {
			have[k] = struct{}{}
		}
	}

	var missing []core.Category
	for _, d := range taxonomy.Categories() {
		if _, ok := have[d.Key()]; ok {
			continue
		}
		missing = append(missing, core.Category{UserID: userID, Name: d.Name, Type: d.Type, IsDefault: true})
	}
	if len(missing) == 0 {
		return SeedResult{Skipped: SkipNothingMissing}
	}

	if _, err := s.categories.InsertCategories(ctx, missing); err != nil {
		s.structured.LogError(ctx, "Failed to create default categories", err, log.ErrorTypeDatabase, log.OpSeedCategories, log.NewFields().User(userID))
		return SeedResult{Skipped: SkipFailed}
	}
	s.logger.InfoContext(ctx, fmt.Sprintf("Created %d default categories for new user", len(missing)), log.FieldUserID, userID)
	return SeedResult{Inserted: len(missing)}
}

func (s *Seeder) deletedKeys(ctx context.Context, userID string) (map[core.CategoryKey]struct{}, error) {
	out := map[core.CategoryKey]struct{}{}
	if s.tombstones == nil {
		return out, nil
	}
	list, err := s.tombstones.ListTombstones(ctx, userID)
	if errors.Is(err, ports.ErrMissingTable) {
		s.logger.WarnContext(ctx, "deleted_default_categories table does not exist, seeding without tombstones", log.FieldErrorType, log.ErrorTypeConfiguration)
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	for _, d := range list {
		out[d.Key()] = struct{}{}
	}
	return out, nil
}

type subKey struct {
	categoryID string
	name       string
}

func (s *Seeder) seedSubcategories(ctx context.Context, userID string) SeedResult {
	if reason := s.gate(ctx, log.OpSeedSubcategory, userID); reason != SkipNone {
		return SeedResult{Skipped: reason}
	}

	cats, err := s.categories.ListCategories(ctx, userID, ports.CategoryFilter{})
	if err != nil {
		s.structured.LogError(ctx, "Failed to list categories", err, log.ErrorTypeDatabase, log.OpSeedSubcategory, log.NewFields().User(userID))
		return SeedResult{Skipped: SkipFailed}
	}
	// Any category matches by (name, type), default or not. With duplicates the
	// last one listed wins.
	parents := make(map[core.CategoryKey]string, len(cats))
	for _, c := range cats {
		parents[c.Key()] = c.ID
	}

	existing, err := s.subcategories.ListUserSubcategories(ctx, userID)
	if err != nil {
		s.structured.LogError(ctx, "Failed to list subcategories", err, log.ErrorTypeDatabase, log.OpSeedSubcategory, log.NewFields().User(userID))
		return SeedResult{Skipped: SkipFailed}
	}
	have := make(map[subKey]struct{}, len(existing))
	for _, sc := range existing {
		have[subKey{sc.CategoryID, sc.Name}] = struct{}{}
	}

	var missing []core.Subcategory
	for _, d := range taxonomy.Subcategories() {
		id, ok := parents[d.ParentKey()]
		if !ok {
			continue
		}
		if _, ok := have[subKey{id, d.Name}]; ok {
			continue
		}
		missing = append(missing, core.Subcategory{UserID: userID, CategoryID: id, Name: d.Name, IsDefault: true})
	}
	if len(missing) == 0 {
		return SeedResult{Skipped: SkipNothingMissing}
	}

	if _, err := s.subcategories.InsertSubcategories(ctx, missing); err != nil {
		s.structured.LogError(ctx, "Failed to create default subcategories", err, log.ErrorTypeDatabase, log.OpSeedSubcategory, log.NewFields().User(userID))
		return SeedResult{Skipped: SkipFailed}
	}
	s.logger.InfoContext(ctx, fmt.Sprintf("Created %d default subcategories for new user", len(missing)), log.FieldUserID, userID)
	return SeedResult{Inserted: len(missing)}
}
