package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financas/internal/core"
)

func TestLedgerService_Transactions(t *testing.T) {
	repo := newRepo(t)
	inv := &countingInvalidator{}
	ledger := NewLedgerService(repo, inv)
	ctx := context.Background()

	created, err := ledger.CreateTransaction(ctx, core.Transaction{
		Description: "Freelance", Amount: core.Money{Cents: 80000}, Type: core.Income,
	})
	require.NoError(t, err)
	assert.False(t, created.Date.IsZero(), "date should default to today")
	assert.Equal(t, 1, inv.n)

	created.Amount = core.Money{Cents: 90000}
	updated, err := ledger.UpdateTransaction(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, int64(90000), updated.Amount.Cents)

	_, err = ledger.CreateTransaction(ctx, core.Transaction{Description: "x", Amount: core.Money{Cents: 1}, Type: "transfer"})
	assert.ErrorIs(t, err, core.ErrInvalidType)

	missing := int64(999)
	_, err = ledger.CreateTransaction(ctx, core.Transaction{
		Description: "x", Amount: core.Money{Cents: 1}, Type: core.Expense, CategoryID: &missing,
	})
	assert.ErrorIs(t, err, core.ErrUnknownCategory)

	require.NoError(t, ledger.DeleteTransaction(ctx, created.ID))
	assert.Equal(t, 3, inv.n)
	assert.ErrorIs(t, ledger.DeleteTransaction(ctx, created.ID), core.ErrNotFound)
}

func TestLedgerService_ImportSkipsKnownExternalIDs(t *testing.T) {
	repo := newRepo(t)
	ledger := NewLedgerService(repo, nil)
	ctx := context.Background()

	batch := []core.Transaction{
		{Description: "Pix", Amount: core.Money{Cents: 1200}, Type: core.Expense, Date: core.NewDate(2024, 5, 1), ExternalID: "A1"},
		{Description: "Salary", Amount: core.Money{Cents: 500000}, Type: core.Income, Date: core.NewDate(2024, 5, 5), ExternalID: "A2"},
	}
	calls := 0
	n, err := ledger.ImportTransactions(ctx, batch, func() { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, calls)

	n, err = ledger.ImportTransactions(ctx, batch, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	all, err := ledger.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLedgerService_Categories(t *testing.T) {
	repo := newRepo(t)
	ledger := NewLedgerService(repo, nil)
	ctx := context.Background()

	c, err := ledger.CreateCategory(ctx, core.Category{Name: "  Pets  ", Type: core.Expense})
	require.NoError(t, err)
	assert.Equal(t, "Pets", c.Name)

	_, err = ledger.CreateCategory(ctx, core.Category{Name: "Pets", Type: core.Expense})
	assert.ErrorIs(t, err, core.ErrDuplicateCategory)

	_, err = ledger.ListCategories(ctx, "other")
	assert.ErrorIs(t, err, core.ErrInvalidType)

	expenses, err := ledger.ListCategories(ctx, core.Expense)
	require.NoError(t, err)
	for _, e := range expenses {
		assert.Equal(t, core.Expense, e.Type)
	}

	_, err = ledger.CreateTransaction(ctx, core.Transaction{
		Description: "Vet", Amount: core.Money{Cents: 20000}, Type: core.Expense, CategoryID: &c.ID,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, ledger.DeleteCategory(ctx, c.ID), core.ErrCategoryInUse)

	c.Name = "Animals"
	renamed, err := ledger.UpdateCategory(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "Animals", renamed.Name)
}
