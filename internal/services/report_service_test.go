package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financas/internal/core"
)

type countingReportStore struct {
	ReportStore
	sums atomic.Int32
	fail bool
}

func (s *countingReportStore) SumByType(ctx context.Context, typ core.TransactionType, p core.Period) (core.Money, error) {
	s.sums.Add(1)
	if s.fail {
		return core.Money{}, errors.New("database is locked")
	}
	return s.ReportStore.SumByType(ctx, typ, p)
}

func seedLedger(t *testing.T, ledger *LedgerService) {
	t.Helper()
	ctx := context.Background()
	for _, tx := range []core.Transaction{
		{Description: "Salary", Amount: core.Money{Cents: 500000}, Type: core.Income, Date: core.NewDate(2024, 1, 5)},
		{Description: "Rent", Amount: core.Money{Cents: 150000}, Type: core.Expense, Date: core.NewDate(2024, 1, 10)},
		{Description: "Market", Amount: core.Money{Cents: 45000}, Type: core.Expense, Date: core.NewDate(2024, 2, 3)},
	} {
		_, err := ledger.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}
}

func TestReportService_Summary(t *testing.T) {
	repo := newRepo(t)
	reports := NewReportService(repo, time.Minute)
	ledger := NewLedgerService(repo, reports)
	seedLedger(t, ledger)
	ctx := context.Background()

	sum, err := reports.Summary(ctx, core.Period{})
	require.NoError(t, err)
	assert.Equal(t, int64(500000), sum.Income.Cents)
	assert.Equal(t, int64(195000), sum.Expense.Cents)
	assert.Equal(t, int64(305000), sum.Balance.Cents)

	jan, err := reports.Summary(ctx, core.Period{From: core.NewDate(2024, 1, 1), To: core.NewDate(2024, 1, 31)})
	require.NoError(t, err)
	assert.Equal(t, int64(150000), jan.Expense.Cents)
	assert.Equal(t, int64(350000), jan.Balance.Cents)
}

func TestReportService_CachesUntilInvalidated(t *testing.T) {
	repo := newRepo(t)
	store := &countingReportStore{ReportStore: repo}
	reports := NewReportService(store, time.Minute)
	ledger := NewLedgerService(repo, reports)
	seedLedger(t, ledger)
	ctx := context.Background()

	_, err := reports.Summary(ctx, core.Period{})
	require.NoError(t, err)
	_, err = reports.Summary(ctx, core.Period{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.sums.Load(), "second call should be served from cache")

	_, err = ledger.CreateTransaction(ctx, core.Transaction{
		Description: "Bonus", Amount: core.Money{Cents: 1000}, Type: core.Income, Date: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)

	sum, err := reports.Summary(ctx, core.Period{})
	require.NoError(t, err)
	assert.Equal(t, int32(4), store.sums.Load())
	assert.Equal(t, int64(501000), sum.Income.Cents)
}

// writeDuringReadStore simulates a writer invalidating the cache while a
// cash flow query is in flight.
type writeDuringReadStore struct {
	ReportStore
	reports *ReportService
	calls   atomic.Int32
}

func (s *writeDuringReadStore) MonthlyCashFlow(ctx context.Context, year int) ([]core.MonthlyFlow, error) {
	if s.calls.Add(1) == 1 {
		s.reports.Invalidate()
	}
	return s.ReportStore.MonthlyCashFlow(ctx, year)
}

func TestReportService_InvalidateDuringCompute(t *testing.T) {
	repo := newRepo(t)
	store := &writeDuringReadStore{ReportStore: repo}
	reports := NewReportService(store, time.Minute)
	store.reports = reports
	ctx := context.Background()

	_, err := reports.CashFlow(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, reports.Cache().Size(), "result computed across an invalidation must not be cached")

	_, err = reports.CashFlow(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.calls.Load())
	assert.Equal(t, 1, reports.Cache().Size())

	_, err = reports.CashFlow(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), store.calls.Load(), "third call should be served from cache")
}

func TestReportService_SummaryError(t *testing.T) {
	repo := newRepo(t)
	store := &countingReportStore{ReportStore: repo, fail: true}
	reports := NewReportService(store, time.Minute)

	_, err := reports.Summary(context.Background(), core.Period{})
	assert.ErrorContains(t, err, "database is locked")
	assert.Equal(t, 0, reports.Cache().Size())
}

func TestReportService_CategoryAndCashFlow(t *testing.T) {
	repo := newRepo(t)
	reports := NewReportService(repo, 0)
	ledger := NewLedgerService(repo, reports)
	ctx := context.Background()

	food, err := ledger.CreateCategory(ctx, core.Category{Name: "Groceries", Type: core.Expense})
	require.NoError(t, err)
	_, err = ledger.CreateTransaction(ctx, core.Transaction{
		Description: "Market", Amount: core.Money{Cents: 3000}, Type: core.Expense,
		Date: core.NewDate(2024, 4, 2), CategoryID: &food.ID,
	})
	require.NoError(t, err)
	seedLedger(t, ledger)

	totals, err := reports.ExpensesByCategory(ctx, core.Period{})
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, "Groceries", totals[0].Category)
	assert.Equal(t, int64(3000), totals[0].Total.Cents)

	income, err := reports.IncomeByCategory(ctx, core.Period{})
	require.NoError(t, err)
	assert.NotNil(t, income)
	assert.Empty(t, income)

	flows, err := reports.CashFlow(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, flows, 3)
	assert.Equal(t, "2024-01", flows[0].Month)
	assert.Equal(t, int64(350000), flows[0].Balance.Cents)
	assert.Equal(t, "2024-04", flows[2].Month)

	none, err := reports.CashFlow(ctx, 1999)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
