package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"finan/internal/core"
)

const categoryColumns = `id, name, kind, icon, color, user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

// ListCategories returns the global categories plus those owned by userID, ordered by id.
func (r *SQLiteRepository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id IS NULL OR user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		return core.Category{}, notFound(err, "category")
	}
	return c, nil
}

// CreateCategory inserts c and sets its ID.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, kind, icon, color, user_id) VALUES (?, ?, ?, ?, ?)`,
		c.Name, string(c.Kind), c.Icon, c.Color, nullInt64(c.OwnerID))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("category id: %w", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Category saved to SQLite", "category_id", id, "name", c.Name, "kind", c.Kind)
	return nil
}

// CountGlobalCategories counts categories without an owner.
func (r *SQLiteRepository) CountGlobalCategories(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE user_id IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count global categories: %w", err)
	}
	return n, nil
}

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c     core.Category
		kind  string
		owner sql.NullInt64
	)
	if err := s.Scan(&c.ID, &c.Name, &kind, &c.Icon, &c.Color, &owner); err != nil {
		return core.Category{}, err
	}
	c.Kind = core.Kind(kind)
	if owner.Valid {
		id := owner.Int64
		c.OwnerID = &id
	}
	return c, nil
}
