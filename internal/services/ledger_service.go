package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"financas/internal/core"
)

// LedgerStore persists transactions and categories.
type LedgerStore interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	ImportTransaction(ctx context.Context, t core.Transaction) (bool, error)
	UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	ListCategories(ctx context.Context, typ core.TransactionType) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// LedgerService handles income and expense transactions and their
// categories. Every write invalidates cached reports.
type LedgerService struct {
	store   LedgerStore
	reports Invalidator
}

func NewLedgerService(store LedgerStore, reports Invalidator) *LedgerService {
	return &LedgerService{store: store, reports: reports}
}

func (s *LedgerService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// CreateTransaction stores t, dating it today when no date is given.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := s.prepare(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}
	s.invalidate()
	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", created.ID,
		"type", created.Type,
		"amount_cents", created.Amount.Cents)
	return created, nil
}

// ImportTransactions stores statement lines, skipping those whose external
// ID is already known. It returns how many were inserted. progress, when not
// nil, is called once per processed line.
func (s *LedgerService) ImportTransactions(ctx context.Context, txs []core.Transaction, progress func()) (int, error) {
	inserted := 0
	for _, t := range txs {
		if err := s.prepare(ctx, &t); err != nil {
			return inserted, fmt.Errorf("import %q: %w", t.ExternalID, err)
		}
		ok, err := s.store.ImportTransaction(ctx, t)
		if err != nil {
			return inserted, fmt.Errorf("import %q: %w", t.ExternalID, err)
		}
		if ok {
			inserted++
		}
		if progress != nil {
			progress()
		}
	}
	if inserted > 0 {
		s.invalidate()
	}
	slog.InfoContext(ctx, "Transactions imported", "total", len(txs), "inserted", inserted)
	return inserted, nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := s.prepare(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	updated, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}
	s.invalidate()
	return updated, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// ListCategories filters by type when typ is not empty.
func (s *LedgerService) ListCategories(ctx context.Context, typ core.TransactionType) ([]core.Category, error) {
	if typ != "" && !typ.Valid() {
		return nil, core.ErrInvalidType
	}
	return s.store.ListCategories(ctx, typ)
}

func (s *LedgerService) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *LedgerService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.invalidate()
	return created, nil
}

func (s *LedgerService) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	updated, err := s.store.UpdateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.invalidate()
	return updated, nil
}

func (s *LedgerService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.invalidate()
	return nil
}

func (s *LedgerService) prepare(ctx context.Context, t *core.Transaction) error {
	if t.Date.IsZero() {
		t.Date = core.Today()
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if t.CategoryID == nil {
		return nil
	}
	if _, err := s.store.GetCategory(ctx, *t.CategoryID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("category %d: %w", *t.CategoryID, core.ErrUnknownCategory)
		}
		return err
	}
	return nil
}

func (s *LedgerService) invalidate() {
	if s.reports != nil {
		s.reports.Invalidate()
	}
}
