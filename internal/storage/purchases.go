package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"financas/internal/core"
)

const purchaseSelect = `
	SELECT p.id, p.description, p.amount_cents, p.date, p.installments, p.card_id,
	       p.category_id, COALESCE(cat.name, '')
	FROM purchases p
	LEFT JOIN categories cat ON cat.id = p.category_id`

func scanPurchase(s rowScanner) (core.Purchase, error) {
	var (
		p        core.Purchase
		date     string
		category sql.NullInt64
	)
	if err := s.Scan(&p.ID, &p.Description, &p.Amount.Cents, &date, &p.Installments, &p.CardID, &category, &p.CategoryName); err != nil {
		return core.Purchase{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Purchase{}, fmt.Errorf("purchase %d: %w", p.ID, err)
	}
	p.Date = d
	p.CategoryID = idPtr(category)
	return p, nil
}

// CreatePurchase stores a purchase and its installments in one transaction.
// Either every row is committed or none is.
func (r *SQLiteRepository) CreatePurchase(ctx context.Context, p core.Purchase, installments []core.Installment) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM cards WHERE id = ?`, p.CardID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("card %d: %w", p.CardID, core.ErrInvalidCard)
		}
		if err != nil {
			return fmt.Errorf("resolve card: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO purchases (description, amount_cents, date, installments, card_id, category_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.Description, p.Amount.Cents, p.Date.String(), p.Installments, p.CardID, nullableID(p.CategoryID))
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO installments (purchase_id, card_id, number, amount_cents, due_date, paid)
			VALUES (?, ?, ?, ?, ?, 0)`)
		if err != nil {
			return fmt.Errorf("prepare installment insert: %w", err)
		}
		defer stmt.Close()

		for _, in := range installments {
			if _, err := stmt.ExecContext(ctx, id, p.CardID, in.Number, in.Amount.Cents, in.DueDate.String()); err != nil {
				return fmt.Errorf("insert installment %d: %w", in.Number, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	slog.InfoContext(ctx, "Purchase saved to SQLite",
		"purchase_id", id,
		"card_id", p.CardID,
		"amount_cents", p.Amount.Cents,
		"installments", len(installments))
	return id, nil
}

// GetPurchase returns a purchase with its installments ordered by number.
func (r *SQLiteRepository) GetPurchase(ctx context.Context, id int64) (core.Purchase, []core.Installment, error) {
	p, err := scanPurchase(r.db.QueryRowContext(ctx, purchaseSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Purchase{}, nil, fmt.Errorf("purchase %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Purchase{}, nil, fmt.Errorf("get purchase: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, installmentSelect+` WHERE i.purchase_id = ? ORDER BY i.number`, id)
	if err != nil {
		return core.Purchase{}, nil, fmt.Errorf("list purchase installments: %w", err)
	}
	defer rows.Close()

	installments, err := collectInstallments(rows)
	if err != nil {
		return core.Purchase{}, nil, err
	}
	return p, installments, nil
}

// ListPurchasesByCard returns the purchases of a card, newest first.
func (r *SQLiteRepository) ListPurchasesByCard(ctx context.Context, cardID int64) ([]core.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, purchaseSelect+` WHERE p.card_id = ? ORDER BY p.date DESC, p.id DESC`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var out []core.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdatePurchase changes only the description and category of a purchase.
// Transactions generated from the purchase follow the new values.
func (r *SQLiteRepository) UpdatePurchase(ctx context.Context, id int64, description string, categoryID *int64) (core.Purchase, error) {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE purchases SET description = ?, category_id = ? WHERE id = ?`,
			description, nullableID(categoryID), id)
		if err != nil {
			return fmt.Errorf("update purchase: %w", err)
		}
		if err := expectAffected(res, "purchase", id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE transactions SET description = ?, category_id = ? WHERE purchase_id = ?`,
			"[Card] "+description, nullableID(categoryID), id)
		if err != nil {
			return fmt.Errorf("update purchase transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Purchase{}, err
	}

	p, _, err := r.GetPurchase(ctx, id)
	return p, err
}

// DeletePurchase removes a purchase and its installments together and
// returns what was deleted.
func (r *SQLiteRepository) DeletePurchase(ctx context.Context, id int64) (core.Purchase, error) {
	var deleted core.Purchase
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		p, err := scanPurchase(tx.QueryRowContext(ctx, purchaseSelect+` WHERE p.id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("purchase %d: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get purchase: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM installments WHERE purchase_id = ?`, id); err != nil {
			return fmt.Errorf("delete installments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete purchase: %w", err)
		}
		deleted = p
		return nil
	})
	return deleted, err
}

// ListUnexportedPurchases returns up to limit purchase IDs not yet written to the journal.
func (r *SQLiteRepository) ListUnexportedPurchases(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM purchases WHERE exported_at IS NULL ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list unexported purchases: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan purchase id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClaimPurchaseExport marks the purchase as exported if nobody has yet. It
// returns false when another export already claimed it.
func (r *SQLiteRepository) ClaimPurchaseExport(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE purchases SET exported_at = CURRENT_TIMESTAMP WHERE id = ? AND exported_at IS NULL`, id)
	if err != nil {
		return false, fmt.Errorf("claim purchase export: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim purchase export: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	// Nothing updated: either already claimed or the purchase is gone.
	if _, err := r.IsPurchaseExported(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ReleasePurchaseExport undoes a claim so the reconciler picks the purchase up again.
func (r *SQLiteRepository) ReleasePurchaseExport(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE purchases SET exported_at = NULL WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("release purchase export: %w", err)
	}
	return expectAffected(res, "purchase", id)
}

// IsPurchaseExported reports whether the purchase schedule is already in the journal.
func (r *SQLiteRepository) IsPurchaseExported(ctx context.Context, id int64) (bool, error) {
	var exported bool
	err := r.db.QueryRowContext(ctx, `SELECT exported_at IS NOT NULL FROM purchases WHERE id = ?`, id).Scan(&exported)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("purchase %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("check purchase export: %w", err)
	}
	return exported, nil
}
