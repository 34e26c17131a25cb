package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/ports"
)

func TestCreateProfile(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := NewLedgerService(s, clock, log.Discard())

	p, err := svc.CreateProfile(ctx, " u1 ")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)
	assert.True(t, p.CreatedAt.Equal(testNow))

	_, err = svc.CreateProfile(ctx, "u1")
	assert.ErrorIs(t, err, ErrProfileExists)

	_, err = svc.CreateProfile(ctx, "  ")
	assert.ErrorIs(t, err, core.ErrEmptyUser)
}

func TestCreatedProfileOpensSeedingWindow(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_, err := NewLedgerService(s, clock, log.Discard()).CreateProfile(ctx, "u1")
	require.NoError(t, err)

	res := newSeeder(s, false).Bootstrap(ctx, "u1")
	assert.Equal(t, SkipNone, res.Categories.Skipped)
	assert.Positive(t, res.Categories.Inserted)
}

func TestRecordTransaction(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	svc := NewLedgerService(s, clock, log.Discard())
	var changed []string
	svc.OnChange(func(userID string) { changed = append(changed, userID) })

	cats, err := s.InsertCategories(ctx, []core.Category{{UserID: "u1", Name: "食費", Type: core.Expense}})
	require.NoError(t, err)
	food := cats[0].ID

	tx, err := svc.RecordTransaction(ctx, core.Transaction{
		UserID:     "u1",
		CategoryID: &food,
		Type:       core.Expense,
		Amount:     1200,
		Date:       core.NewDate(2024, 1, 10),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, "食費", tx.CategoryName)
	assert.Equal(t, []string{"u1"}, changed)

	_, err = svc.RecordTransaction(ctx, core.Transaction{UserID: "u1", Type: core.Expense, Amount: 0, Date: core.NewDate(2024, 1, 10)})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.RecordTransaction(ctx, core.Transaction{UserID: "u2", CategoryID: &food, Type: core.Expense, Amount: 1, Date: core.NewDate(2024, 1, 10)})
	assert.ErrorIs(t, err, core.ErrCategoryNotFound)
	assert.Len(t, changed, 1)

	jan := mustRange(t, "2024-01-01", "2024-01-31")
	txs, err := svc.ListTransactions(ctx, "u1", jan, ports.TransactionFilter{Type: core.Expense})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, tx.ID, txs[0].ID)

	_, err = svc.ListTransactions(ctx, "u1", core.DateRange{}, ports.TransactionFilter{})
	assert.ErrorIs(t, err, core.ErrInvalidRange)
}
