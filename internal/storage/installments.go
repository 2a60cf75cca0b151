package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"financas/internal/core"
)

const installmentSelect = `
	SELECT i.id, i.purchase_id, i.card_id, i.number, i.amount_cents, i.due_date, i.paid,
	       p.description, p.category_id, COALESCE(cat.name, '')
	FROM installments i
	JOIN purchases p ON p.id = i.purchase_id
	LEFT JOIN categories cat ON cat.id = p.category_id`

func scanInstallment(s rowScanner) (core.Installment, error) {
	var (
		in       core.Installment
		due      string
		paid     int
		category sql.NullInt64
	)
	err := s.Scan(&in.ID, &in.PurchaseID, &in.CardID, &in.Number, &in.Amount.Cents, &due, &paid,
		&in.PurchaseDescription, &category, &in.CategoryName)
	if err != nil {
		return core.Installment{}, err
	}
	d, err := core.ParseDate(due)
	if err != nil {
		return core.Installment{}, fmt.Errorf("installment %d: %w", in.ID, err)
	}
	in.DueDate = d
	in.Paid = paid != 0
	in.CategoryID = idPtr(category)
	return in, nil
}

func collectInstallments(rows *sql.Rows) ([]core.Installment, error) {
	var out []core.Installment
	for rows.Next() {
		in, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// ListInstallmentsByCard returns the installments of a card sorted by due date.
func (r *SQLiteRepository) ListInstallmentsByCard(ctx context.Context, cardID int64) ([]core.Installment, error) {
	rows, err := r.db.QueryContext(ctx,
		installmentSelect+` WHERE i.card_id = ? ORDER BY i.due_date, i.purchase_id, i.number`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	defer rows.Close()
	return collectInstallments(rows)
}

func (r *SQLiteRepository) GetInstallment(ctx context.Context, id int64) (core.Installment, error) {
	in, err := scanInstallment(r.db.QueryRowContext(ctx, installmentSelect+` WHERE i.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Installment{}, fmt.Errorf("installment %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Installment{}, fmt.Errorf("get installment: %w", err)
	}
	return in, nil
}

// PayInstallment marks an installment as paid. Paying twice is a no-op and
// nothing in the repository clears the flag.
func (r *SQLiteRepository) PayInstallment(ctx context.Context, id int64) (core.Installment, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE installments SET paid = 1 WHERE id = ?`, id)
	if err != nil {
		return core.Installment{}, fmt.Errorf("pay installment: %w", err)
	}
	if err := expectAffected(res, "installment", id); err != nil {
		return core.Installment{}, err
	}
	return r.GetInstallment(ctx, id)
}
