package storage

import (
	"context"
	"fmt"
	"strings"

	"financas/internal/core"
)

// periodFilter renders the optional date bounds of a report as SQL conditions.
func periodFilter(p core.Period, column string) ([]string, []any) {
	var (
		conds []string
		args  []any
	)
	if !p.From.IsZero() {
		conds = append(conds, column+" >= ?")
		args = append(args, p.From.String())
	}
	if !p.To.IsZero() {
		conds = append(conds, column+" <= ?")
		args = append(args, p.To.String())
	}
	return conds, args
}

func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// SumByType totals the transactions of one type inside the period.
func (r *SQLiteRepository) SumByType(ctx context.Context, typ core.TransactionType, p core.Period) (core.Money, error) {
	conds, args := periodFilter(p, "date")
	conds = append([]string{"type = ?"}, conds...)
	args = append([]any{string(typ)}, args...)

	var total core.Money
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions`+where(conds), args...).Scan(&total.Cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum %s transactions: %w", typ, err)
	}
	return total, nil
}

// Balance is income minus expense inside the period.
func (r *SQLiteRepository) Balance(ctx context.Context, p core.Period) (core.Money, error) {
	conds, args := periodFilter(p, "date")

	var balance core.Money
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE -amount_cents END), 0)
		FROM transactions`+where(conds), args...).Scan(&balance.Cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("balance: %w", err)
	}
	return balance, nil
}

// TotalsByCategory groups the transactions of one type by category, largest first.
// Uncategorized transactions are left out.
func (r *SQLiteRepository) TotalsByCategory(ctx context.Context, typ core.TransactionType, p core.Period) ([]core.CategoryTotal, error) {
	conds, args := periodFilter(p, "t.date")
	conds = append([]string{"t.type = ?"}, conds...)
	args = append([]any{string(typ)}, args...)

	rows, err := r.db.QueryContext(ctx, `
		SELECT c.name, COALESCE(SUM(t.amount_cents), 0) AS total
		FROM transactions t
		JOIN categories c ON c.id = t.category_id`+where(conds)+`
		GROUP BY c.id, c.name
		ORDER BY total DESC, c.name`, args...)
	if err != nil {
		return nil, fmt.Errorf("totals by category: %w", err)
	}
	defer rows.Close()

	var out []core.CategoryTotal
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// MonthlyCashFlow aggregates income, expense and balance per month. A zero
// year covers every month on record.
func (r *SQLiteRepository) MonthlyCashFlow(ctx context.Context, year int) ([]core.MonthlyFlow, error) {
	var (
		conds []string
		args  []any
	)
	if year > 0 {
		conds = append(conds, "strftime('%Y', date) = ?")
		args = append(args, fmt.Sprintf("%04d", year))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m', date) AS month,
		       COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE -amount_cents END), 0)
		FROM transactions`+where(conds)+`
		GROUP BY month
		ORDER BY month`, args...)
	if err != nil {
		return nil, fmt.Errorf("monthly cash flow: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyFlow
	for rows.Next() {
		var f core.MonthlyFlow
		if err := rows.Scan(&f.Month, &f.Income.Cents, &f.Expense.Cents, &f.Balance.Cents); err != nil {
			return nil, fmt.Errorf("scan monthly flow: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
