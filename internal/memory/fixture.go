package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"kakeibo/internal/core"
)

// Fixture is the JSON document accepted by LoadFixture.
//
//	{
//	  "profiles": [{"id": "u1", "created_at": "2024-01-01T00:00:00Z"}],
//	  "categories": [{"user_id": "u1", "name": "食費", "type": "expense", "is_default": true}],
//	  "transactions": [{"user_id": "u1", "type": "expense", "amount": "1200",
//	                    "date": "2024-01-15", "category": "食費"}]
//	}
type Fixture struct {
	Profiles []struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"created_at"`
	} `json:"profiles"`
	Categories []struct {
		UserID    string `json:"user_id"`
		Name      string `json:"name"`
		Type      string `json:"type"`
		IsDefault bool   `json:"is_default"`
	} `json:"categories"`
	Transactions []struct {
		UserID      string `json:"user_id"`
		Type        string `json:"type"`
		Amount      string `json:"amount"`
		Date        string `json:"date"`
		Category    string `json:"category"`
		Description string `json:"description"`
	} `json:"transactions"`
}

// NewFromFixture builds a store from the fixture file at path.
// An empty path yields an empty store.
func NewFromFixture(ctx context.Context, path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	if err := s.Load(ctx, f); err != nil {
		return nil, fmt.Errorf("load fixture %s: %w", path, err)
	}
	return s, nil
}

// Load inserts the fixture's rows. Transactions refer to categories by name;
// missing categories are created as user categories.
func (s *Store) Load(ctx context.Context, f Fixture) error {
	for _, p := range f.Profiles {
		if _, err := s.CreateProfile(ctx, core.Profile{ID: p.ID, CreatedAt: p.CreatedAt}); err != nil {
			return err
		}
	}

	byKey := map[string]string{}
	key := func(userID string, k core.CategoryKey) string {
		return userID + "\x00" + k.Name + "\x00" + string(k.Type)
	}
	for _, c := range f.Categories {
		typ, err := core.ParseTransactionType(c.Type)
		if err != nil {
			return fmt.Errorf("category %q: %w", c.Name, err)
		}
		out, err := s.InsertCategories(ctx, []core.Category{{UserID: c.UserID, Name: c.Name, Type: typ, IsDefault: c.IsDefault}})
		if err != nil {
			return err
		}
		byKey[key(c.UserID, out[0].Key())] = out[0].ID
	}

	for i, t := range f.Transactions {
		typ, err := core.ParseTransactionType(t.Type)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		amount, err := core.ParseAmount(t.Amount)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		date, err := core.ParseDate(t.Date)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		tx := core.Transaction{UserID: t.UserID, Type: typ, Amount: amount, Date: date, Description: t.Description}
		if t.Category != "" {
			k := key(t.UserID, core.CategoryKey{Name: t.Category, Type: typ})
			id, ok := byKey[k]
			if !ok {
				out, err := s.InsertCategories(ctx, []core.Category{{UserID: t.UserID, Name: t.Category, Type: typ}})
				if err != nil {
					return fmt.Errorf("transaction %d: %w", i, err)
				}
				id = out[0].ID
				byKey[k] = id
			}
			tx.CategoryID = &id
		}
		if _, err := s.InsertTransaction(ctx, tx); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	return nil
}
