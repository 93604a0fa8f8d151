package storage

import (
	"context"
	"fmt"
	"log/slog"

	"finan/internal/core"
)

const transactionColumns = `id, user_id, kind, amount_cents, category_id, description, date, created_at, COALESCE(payment_method, '')`

// CreateTransaction inserts t and sets its ID.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, kind, amount_cents, category_id, description, date, created_at, payment_method)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, string(t.Kind), t.Amount.Cents, t.CategoryID, t.Description,
		r.formatTime(t.Date), r.formatTime(t.CreatedAt), nullString(t.PaymentMethod))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"transaction_id", id,
		"user_id", t.UserID,
		"kind", t.Kind,
		"amount_cents", t.Amount.Cents)
	return nil
}

// UpdateTransaction overwrites the editable fields of the row matching both
// t.ID and t.UserID. created_at is never touched.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET kind = ?, amount_cents = ?, category_id = ?, description = ?, date = ?, payment_method = ?
		 WHERE id = ? AND user_id = ?`,
		string(t.Kind), t.Amount.Cents, t.CategoryID, t.Description,
		r.formatTime(t.Date), nullString(t.PaymentMethod), t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return requireAffected(res, "transaction")
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireAffected(res, "transaction")
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := r.scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err, "transaction")
	}
	return t, nil
}

// ListTransactions returns every transaction of userID, newest date first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, id DESC`, userID)
}

// ListTransactionsInMonth returns the transactions of one calendar month, newest first.
func (r *SQLiteRepository) ListTransactionsInMonth(ctx context.Context, userID int64, month, year int) ([]core.Transaction, error) {
	m, y := monthArgs(month, year)
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE user_id = ? AND strftime('%m', date) = ? AND strftime('%Y', date) = ?
		 ORDER BY date DESC, id DESC`, userID, m, y)
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

func (r *SQLiteRepository) scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		t     core.Transaction
		kind  string
		cents int64
		date  string
		added string
	)
	if err := s.Scan(&t.ID, &t.UserID, &kind, &cents, &t.CategoryID, &t.Description, &date, &added, &t.PaymentMethod); err != nil {
		return core.Transaction{}, err
	}
	t.Kind = core.Kind(kind)
	t.Amount = core.Cents(cents)

	var err error
	if t.Date, err = r.parseTime(date); err != nil {
		return core.Transaction{}, err
	}
	if t.CreatedAt, err = r.parseTime(added); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}
