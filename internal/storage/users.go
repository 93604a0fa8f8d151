package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"finan/internal/core"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const userColumns = `id, name, email, password_hash, COALESCE(profile_photo, ''), created_at`

// CreateUser inserts u and sets its ID. A duplicate email yields core.ErrEmailTaken.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, profile_photo, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.PasswordHash, nullString(u.Photo), r.formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	u.ID = id

	slog.InfoContext(ctx, "User saved to SQLite", "user_id", id)
	return nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scanUser(row)
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return r.scanUser(row)
}

// UpdateUserProfile changes name and email. Duplicate email yields core.ErrEmailTaken.
func (r *SQLiteRepository) UpdateUserProfile(ctx context.Context, id int64, name, email string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET name = ?, email = ? WHERE id = ?`, name, email, id)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return fmt.Errorf("update user profile: %w", err)
	}
	return requireAffected(res, "user")
}

func (r *SQLiteRepository) UpdateProfilePhoto(ctx context.Context, id int64, photo string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET profile_photo = ? WHERE id = ?`, nullString(photo), id)
	if err != nil {
		return fmt.Errorf("update profile photo: %w", err)
	}
	return requireAffected(res, "user")
}

func (r *SQLiteRepository) scanUser(row *sql.Row) (core.User, error) {
	var (
		u       core.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Photo, &created); err != nil {
		return core.User{}, notFound(err, "user")
	}
	t, err := r.parseTime(created)
	if err != nil {
		return core.User{}, err
	}
	u.CreatedAt = t
	return u, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
