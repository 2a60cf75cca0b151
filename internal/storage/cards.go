package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"financas/internal/core"
)

const cardColumns = `c.id, c.name, c.limit_cents, c.closing_day, c.due_day, c.color`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(s rowScanner, extra ...any) (core.Card, error) {
	var c core.Card
	dest := append([]any{&c.ID, &c.Name, &c.Limit.Cents, &c.ClosingDay, &c.DueDay, &c.Color}, extra...)
	err := s.Scan(dest...)
	return c, err
}

// ListCards returns every card ordered by name with its used and available limit.
func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.CardUsage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+cardColumns+`,
		       COALESCE(SUM(CASE WHEN i.paid = 0 THEN i.amount_cents END), 0)
		FROM cards c
		LEFT JOIN installments i ON i.card_id = c.id
		GROUP BY c.id
		ORDER BY c.name, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var out []core.CardUsage
	for rows.Next() {
		var used core.Money
		card, err := scanCard(rows, &used.Cents)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		out = append(out, core.NewCardUsage(card, used))
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCard(ctx context.Context, id int64) (core.Card, error) {
	card, err := scanCard(r.db.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards c WHERE c.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Card{}, fmt.Errorf("card %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Card{}, fmt.Errorf("get card: %w", err)
	}
	return card, nil
}

// ResolveCard looks up the card a purchase is charged to.
func (r *SQLiteRepository) ResolveCard(ctx context.Context, id int64) (core.Card, error) {
	card, err := r.GetCard(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return core.Card{}, fmt.Errorf("card %d: %w", id, core.ErrInvalidCard)
	}
	return card, err
}

func (r *SQLiteRepository) CreateCard(ctx context.Context, c core.Card) (core.Card, error) {
	if c.Color == "" {
		c.Color = core.DefaultCardColor
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO cards (name, limit_cents, closing_day, due_day, color)
		VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Limit.Cents, c.ClosingDay, c.DueDay, c.Color)
	if err != nil {
		return core.Card{}, fmt.Errorf("create card: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Card{}, fmt.Errorf("create card: %w", err)
	}

	slog.InfoContext(ctx, "Card saved to SQLite", "card_id", c.ID, "name", c.Name, "limit_cents", c.Limit.Cents)
	return c, nil
}

func (r *SQLiteRepository) UpdateCard(ctx context.Context, c core.Card) (core.Card, error) {
	if c.Color == "" {
		c.Color = core.DefaultCardColor
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE cards SET name = ?, limit_cents = ?, closing_day = ?, due_day = ?, color = ?
		WHERE id = ?`,
		c.Name, c.Limit.Cents, c.ClosingDay, c.DueDay, c.Color, c.ID)
	if err != nil {
		return core.Card{}, fmt.Errorf("update card: %w", err)
	}
	if err := expectAffected(res, "card", c.ID); err != nil {
		return core.Card{}, err
	}
	return c, nil
}

// DeleteCard removes a card and, through the foreign keys, its purchases and
// installments. The statement itself refuses to delete a card with unpaid
// installments so a payment racing the guard cannot be lost.
func (r *SQLiteRepository) DeleteCard(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM cards
		WHERE id = ?
		  AND NOT EXISTS (SELECT 1 FROM installments WHERE card_id = ? AND paid = 0)`, id, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := r.GetCard(ctx, id); err != nil {
		return err
	}
	pending, err := r.CountUnpaidInstallments(ctx, id)
	if err != nil {
		return err
	}
	return &core.PendingInstallmentsError{CardID: id, Count: pending}
}

// SumUnpaidInstallments is the used limit of a card.
func (r *SQLiteRepository) SumUnpaidInstallments(ctx context.Context, cardID int64) (core.Money, error) {
	var used core.Money
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM installments WHERE card_id = ? AND paid = 0`,
		cardID).Scan(&used.Cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum unpaid installments: %w", err)
	}
	return used, nil
}

func (r *SQLiteRepository) CountUnpaidInstallments(ctx context.Context, cardID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM installments WHERE card_id = ? AND paid = 0`, cardID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unpaid installments: %w", err)
	}
	return n, nil
}

func expectAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, core.ErrNotFound)
	}
	return nil
}
