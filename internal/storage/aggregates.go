package storage

import (
	"context"
	"fmt"
	"strconv"

	"finan/internal/core"
)

const sumByKind = `SELECT
	COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents END), 0),
	COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents END), 0)
FROM transactions`

// MonthlySummary totals income and expense of one calendar month.
func (r *SQLiteRepository) MonthlySummary(ctx context.Context, userID int64, month, year int) (core.Summary, error) {
	m, y := monthArgs(month, year)
	var income, expense int64
	err := r.db.QueryRowContext(ctx,
		sumByKind+` WHERE user_id = ? AND strftime('%m', date) = ? AND strftime('%Y', date) = ?`,
		userID, m, y).Scan(&income, &expense)
	if err != nil {
		return core.Summary{}, fmt.Errorf("monthly summary: %w", err)
	}
	return core.NewSummary(income, expense), nil
}

// TotalSummary totals income and expense over all time.
func (r *SQLiteRepository) TotalSummary(ctx context.Context, userID int64) (core.Summary, error) {
	var income, expense int64
	if err := r.db.QueryRowContext(ctx, sumByKind+` WHERE user_id = ?`, userID).Scan(&income, &expense); err != nil {
		return core.Summary{}, fmt.Errorf("total summary: %w", err)
	}
	return core.NewSummary(income, expense), nil
}

// ExpenseByCategory sums one month's expenses per category, largest first.
func (r *SQLiteRepository) ExpenseByCategory(ctx context.Context, userID int64, month, year int) ([]core.CategoryTotal, error) {
	m, y := monthArgs(month, year)
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.icon, c.color, SUM(t.amount_cents) AS total
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.user_id = ? AND t.kind = 'expense'
		   AND strftime('%m', t.date) = ? AND strftime('%Y', t.date) = ?
		 GROUP BY c.id, c.name, c.icon, c.color
		 ORDER BY total DESC, c.id`, userID, m, y)
	if err != nil {
		return nil, fmt.Errorf("expense by category: %w", err)
	}
	defer rows.Close()

	totals := []core.CategoryTotal{}
	for rows.Next() {
		var (
			ct    core.CategoryTotal
			cents int64
		)
		if err := rows.Scan(&ct.CategoryID, &ct.Name, &ct.Icon, &ct.Color, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		ct.Total = core.Cents(cents)
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return totals, nil
}

// MonthlyHistory returns per-month totals, newest month first, at most limit
// buckets. A non-positive limit returns every month.
func (r *SQLiteRepository) MonthlyHistory(ctx context.Context, userID int64, limit int) ([]core.MonthHistory, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT strftime('%Y', date) AS y, strftime('%m', date) AS m,
			COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents END), 0),
			COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents END), 0)
		 FROM transactions
		 WHERE user_id = ?
		 GROUP BY y, m
		 ORDER BY y DESC, m DESC
		 LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("monthly history: %w", err)
	}
	defer rows.Close()

	history := []core.MonthHistory{}
	for rows.Next() {
		var (
			ys, ms          string
			income, expense int64
		)
		if err := rows.Scan(&ys, &ms, &income, &expense); err != nil {
			return nil, fmt.Errorf("scan history bucket: %w", err)
		}
		year, err := strconv.Atoi(ys)
		if err != nil {
			return nil, fmt.Errorf("parse history year %q: %w", ys, err)
		}
		month, err := strconv.Atoi(ms)
		if err != nil {
			return nil, fmt.Errorf("parse history month %q: %w", ms, err)
		}
		s := core.NewSummary(income, expense)
		history = append(history, core.MonthHistory{
			Month:      month,
			MonthLabel: core.MonthLabel(month),
			Year:       year,
			Income:     s.Income,
			Expense:    s.Expense,
			Balance:    s.Balance,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return history, nil
}
