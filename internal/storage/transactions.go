package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"financas/internal/core"
)

const transactionSelect = `
	SELECT t.id, t.description, t.amount_cents, t.type, t.category_id, COALESCE(c.name, ''),
	       t.date, t.card_id, t.purchase_id, COALESCE(t.external_id, '')
	FROM transactions t
	LEFT JOIN categories c ON c.id = t.category_id`

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t                        core.Transaction
		date                     string
		category, card, purchase sql.NullInt64
	)
	err := s.Scan(&t.ID, &t.Description, &t.Amount.Cents, &t.Type, &category, &t.CategoryName,
		&date, &card, &purchase, &t.ExternalID)
	if err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, err)
	}
	t.Date = d
	t.CategoryID = idPtr(category)
	t.CardID = idPtr(card)
	t.PurchaseID = idPtr(purchase)
	return t, nil
}

// ListTransactions returns all transactions, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, transactionSelect+` ORDER BY t.date DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	id, _, err := r.insertTransaction(ctx, t, false)
	if err != nil {
		return core.Transaction{}, err
	}
	return r.GetTransaction(ctx, id)
}

// ImportTransaction inserts t unless a transaction with the same ExternalID
// exists. It reports whether a row was written.
func (r *SQLiteRepository) ImportTransaction(ctx context.Context, t core.Transaction) (bool, error) {
	if t.ExternalID == "" {
		return false, errors.New("import transaction: missing external id")
	}
	_, inserted, err := r.insertTransaction(ctx, t, true)
	return inserted, err
}

func (r *SQLiteRepository) insertTransaction(ctx context.Context, t core.Transaction, skipDuplicates bool) (int64, bool, error) {
	query := `
		INSERT INTO transactions (description, amount_cents, type, category_id, date, card_id, purchase_id, external_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if skipDuplicates {
		query += ` ON CONFLICT (external_id) DO NOTHING`
	}
	res, err := r.db.ExecContext(ctx, query,
		t.Description, t.Amount.Cents, string(t.Type), nullableID(t.CategoryID), t.Date.String(),
		nullableID(t.CardID), nullableID(t.PurchaseID), nullableText(t.ExternalID))
	if err != nil {
		return 0, false, fmt.Errorf("create transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("create transaction: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite", "transaction_id", id, "type", t.Type, "amount_cents", t.Amount.Cents)
	return id, true, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions SET description = ?, amount_cents = ?, type = ?, category_id = ?, date = ?
		WHERE id = ?`,
		t.Description, t.Amount.Cents, string(t.Type), nullableID(t.CategoryID), t.Date.String(), t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if err := expectAffected(res, "transaction", t.ID); err != nil {
		return core.Transaction{}, err
	}
	return r.GetTransaction(ctx, t.ID)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectAffected(res, "transaction", id)
}
