package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"financas/internal/cache"
	"financas/internal/core"
)

// ReportStore runs the aggregate queries behind the reports.
type ReportStore interface {
	SumByType(ctx context.Context, typ core.TransactionType, p core.Period) (core.Money, error)
	Balance(ctx context.Context, p core.Period) (core.Money, error)
	TotalsByCategory(ctx context.Context, typ core.TransactionType, p core.Period) ([]core.CategoryTotal, error)
	MonthlyCashFlow(ctx context.Context, year int) ([]core.MonthlyFlow, error)
}

const reportCacheSize = 128

// ReportService serves report aggregates through an LRU cache. Writers call
// Invalidate after changing transactions or categories.
type ReportService struct {
	store ReportStore
	cache *cache.LRUCache[any]

	// gen counts invalidations; a result computed across one is not cached.
	mu  sync.Mutex
	gen uint64
}

// NewReportService caches results for ttl; a zero ttl disables the cache.
func NewReportService(store ReportStore, ttl time.Duration) *ReportService {
	return &ReportService{
		store: store,
		cache: cache.NewLRUCache[any](reportCacheSize, ttl),
	}
}

// Cache exposes the underlying cache so it can be registered for cleanup.
func (s *ReportService) Cache() *cache.LRUCache[any] {
	return s.cache
}

func (s *ReportService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.Purge()
}

func (s *ReportService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Summary computes income, expense and balance concurrently.
func (s *ReportService) Summary(ctx context.Context, p core.Period) (core.Summary, error) {
	return cached(s, "summary:"+periodKey(p), func() (core.Summary, error) {
		var sum core.Summary
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			sum.Income, err = s.store.SumByType(gctx, core.Income, p)
			return err
		})
		g.Go(func() (err error) {
			sum.Expense, err = s.store.SumByType(gctx, core.Expense, p)
			return err
		})
		g.Go(func() (err error) {
			sum.Balance, err = s.store.Balance(gctx, p)
			return err
		})
		if err := g.Wait(); err != nil {
			return core.Summary{}, fmt.Errorf("summary report: %w", err)
		}
		return sum, nil
	})
}

func (s *ReportService) ExpensesByCategory(ctx context.Context, p core.Period) ([]core.CategoryTotal, error) {
	return s.byCategory(ctx, core.Expense, p)
}

func (s *ReportService) IncomeByCategory(ctx context.Context, p core.Period) ([]core.CategoryTotal, error) {
	return s.byCategory(ctx, core.Income, p)
}

func (s *ReportService) byCategory(ctx context.Context, typ core.TransactionType, p core.Period) ([]core.CategoryTotal, error) {
	return cached(s, "category:"+string(typ)+":"+periodKey(p), func() ([]core.CategoryTotal, error) {
		totals, err := s.store.TotalsByCategory(ctx, typ, p)
		if err != nil {
			return nil, err
		}
		if totals == nil {
			totals = []core.CategoryTotal{}
		}
		return totals, nil
	})
}

// CashFlow returns one row per month with activity; year 0 means all years.
func (s *ReportService) CashFlow(ctx context.Context, year int) ([]core.MonthlyFlow, error) {
	return cached(s, fmt.Sprintf("cashflow:%d", year), func() ([]core.MonthlyFlow, error) {
		flows, err := s.store.MonthlyCashFlow(ctx, year)
		if err != nil {
			return nil, err
		}
		if flows == nil {
			flows = []core.MonthlyFlow{}
		}
		return flows, nil
	})
}

func cached[T any](s *ReportService, key string, compute func() (T, error)) (T, error) {
	if v, ok := s.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	gen := s.generation()
	v, err := compute()
	if err != nil {
		return v, err
	}
	s.mu.Lock()
	if s.gen == gen {
		s.cache.Set(key, v)
	}
	s.mu.Unlock()
	return v, nil
}

func periodKey(p core.Period) string {
	return p.From.String() + ".." + p.To.String()
}
