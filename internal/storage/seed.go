package storage

import (
	"context"
	"fmt"

	"finan/internal/core"
)

// DefaultCategories is the global catalog installed on an empty database.
var DefaultCategories = []core.Category{
	{Name: "Food", Kind: core.KindExpense, Icon: "fast-food-outline", Color: "primary"},
	{Name: "Transport", Kind: core.KindExpense, Icon: "car-outline", Color: "warning"},
	{Name: "Entertainment", Kind: core.KindExpense, Icon: "game-controller-outline", Color: "tertiary"},
	{Name: "Health", Kind: core.KindExpense, Icon: "fitness-outline", Color: "danger"},
	{Name: "Education", Kind: core.KindExpense, Icon: "school-outline", Color: "secondary"},
	{Name: "Services", Kind: core.KindExpense, Icon: "receipt-outline", Color: "medium"},
	{Name: "Other Expenses", Kind: core.KindExpense, Icon: "ellipsis-horizontal-outline", Color: "dark"},
	{Name: "Salary", Kind: core.KindIncome, Icon: "cash-outline", Color: "success"},
	{Name: "Freelance", Kind: core.KindIncome, Icon: "briefcase-outline", Color: "success"},
	{Name: "Other Income", Kind: core.KindIncome, Icon: "wallet-outline", Color: "success"},
}

// seedDefaultCategories inserts the default catalog in one transaction when no
// global category exists. It returns the number of inserted rows.
func (r *SQLiteRepository) seedDefaultCategories(ctx context.Context) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE user_id IS NULL`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count global categories: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO categories (name, kind, icon, color, user_id) VALUES (?, ?, ?, ?, NULL)`)
	if err != nil {
		return 0, fmt.Errorf("prepare seed insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range DefaultCategories {
		if _, err := stmt.ExecContext(ctx, c.Name, string(c.Kind), c.Icon, c.Color); err != nil {
			return 0, fmt.Errorf("insert default category %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed transaction: %w", err)
	}
	return len(DefaultCategories), nil
}
