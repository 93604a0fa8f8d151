package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finan/internal/core"

	_ "modernc.org/sqlite"
)

// ErrInitialization marks a schema or seeding failure. It is fatal for the process.
var ErrInitialization = errors.New("ledger initialization failed")

// dateLayout keeps wall-clock time without an offset so SQLite's
// strftime works on the ledger's local calendar.
const dateLayout = "2006-01-02T15:04:05.000"

type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
	loc    *time.Location

	schemaMu  sync.Mutex
	ready     chan struct{}
	readyOnce sync.Once
}

type Option func(*SQLiteRepository)

// WithLocation sets the calendar used to store and group dates. Default time.Local.
func WithLocation(loc *time.Location) Option {
	return func(r *SQLiteRepository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// Open opens the database without touching the schema. Callers must run
// EnsureSchema before using the repository.
func Open(dbPath string, opts ...Option) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: statements are serialized by the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := &SQLiteRepository{
		db:     db,
		dbPath: dbPath,
		loc:    time.Local,
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo, nil
}

// NewSQLiteRepository opens the database and ensures its schema and seed data.
func NewSQLiteRepository(ctx context.Context, dbPath string, opts ...Option) (*SQLiteRepository, error) {
	repo, err := Open(dbPath, opts...)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

// EnsureSchema applies migrations, seeds the default catalog and signals readiness.
// It is idempotent.
func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	r.schemaMu.Lock()
	defer r.schemaMu.Unlock()

	if err := RunMigrations(r.dbPath); err != nil {
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	seeded, err := r.seedDefaultCategories(ctx)
	if err != nil {
		return fmt.Errorf("%w: seed categories: %w", ErrInitialization, err)
	}
	if seeded > 0 {
		slog.InfoContext(ctx, "Seeded default categories", "count", seeded)
	}

	r.readyOnce.Do(func() { close(r.ready) })
	return nil
}

// Ready is closed once the schema and seed data are confirmed.
func (r *SQLiteRepository) Ready() <-chan struct{} {
	return r.ready
}

func (r *SQLiteRepository) IsReady() bool {
	select {
	case <-r.ready:
		return true
	default:
		return false
	}
}

// Location is the calendar used for stored dates.
func (r *SQLiteRepository) Location() *time.Location {
	return r.loc
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) formatTime(t time.Time) string {
	return t.In(r.loc).Format(dateLayout)
}

func (r *SQLiteRepository) parseTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, r.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

// monthArgs renders month and year the way strftime('%m') and strftime('%Y') do.
func monthArgs(month, year int) (string, string) {
	return fmt.Sprintf("%02d", month), fmt.Sprintf("%04d", year)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", what, err)
}
