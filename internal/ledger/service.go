// Package ledger is the service layer over the SQLite store: it gates every
// operation on schema readiness, validates input before it reaches storage,
// classifies failures, refreshes the per-user snapshot feeds after writes and
// announces committed changes on the event bus.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finan/internal/amqp"
	"finan/internal/core"
	"finan/internal/log"
	"finan/internal/metrics"
	"finan/internal/notify"
	"finan/internal/snapshot"
)

// Store is the persistence the ledger needs. *storage.SQLiteRepository implements it.
type Store interface {
	Ready() <-chan struct{}

	GetUserByID(ctx context.Context, id int64) (core.User, error)

	ListCategories(ctx context.Context, userID int64) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	CreateCategory(ctx context.Context, c *core.Category) error

	CreateTransaction(ctx context.Context, t *core.Transaction) error
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, id int64) error
	GetTransaction(ctx context.Context, userID, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error)
	ListTransactionsInMonth(ctx context.Context, userID int64, month, year int) ([]core.Transaction, error)

	MonthlySummary(ctx context.Context, userID int64, month, year int) (core.Summary, error)
	TotalSummary(ctx context.Context, userID int64) (core.Summary, error)
	ExpenseByCategory(ctx context.Context, userID int64, month, year int) ([]core.CategoryTotal, error)
	MonthlyHistory(ctx context.Context, userID int64, limit int) ([]core.MonthHistory, error)
}

// Notifier shows short messages to the user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, level notify.Level, message string)
}

// EventPublisher announces committed changes.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.LedgerEvent) error
}

type Service struct {
	store        Store
	categories   *snapshot.Feed[[]core.Category]
	transactions *snapshot.Feed[[]core.Transaction]
	notifier     Notifier
	events       EventPublisher
	metrics      *metrics.Metrics
	logger       *log.Logger
	now          func() time.Time
	loc          *time.Location

	refreshes sync.WaitGroup
	// stopped is cancelled by Shutdown; background refreshes derive from it.
	stopped context.Context
	stop    context.CancelFunc
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithEvents enables change events. Pass nil to keep them disabled.
func WithEvents(p EventPublisher) Option { return func(s *Service) { s.events = p } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent(log.ComponentLedger) }
}

// WithClock replaces time.Now; used for "current month" and createdAt.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the calendar for "current month" computations.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithFeeds(categories *snapshot.Feed[[]core.Category], transactions *snapshot.Feed[[]core.Transaction]) Option {
	return func(s *Service) {
		s.categories = categories
		s.transactions = transactions
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		notifier: discardNotifier{},
		logger:   log.New(log.DefaultConfig()).WithComponent(log.ComponentLedger),
		now:      time.Now,
		loc:      time.Local,
	}
	s.stopped, s.stop = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(s)
	}
	if s.categories == nil {
		s.categories = snapshot.NewFeed[[]core.Category](1024, 30*time.Minute)
	}
	if s.transactions == nil {
		s.transactions = snapshot.NewFeed[[]core.Transaction](1024, 30*time.Minute)
	}
	return s
}

// Ready is closed once the store has confirmed schema and seed data.
func (s *Service) Ready() <-chan struct{} {
	return s.store.Ready()
}

// Wait blocks until in-flight snapshot refreshes finish.
func (s *Service) Wait() {
	s.refreshes.Wait()
}

// Shutdown abandons pending snapshot refreshes, including those still
// waiting for the store to become ready, and waits for them to return.
func (s *Service) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.refreshes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// detach returns a context that keeps ctx's values, outlives the request
// and ends on Shutdown.
func (s *Service) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	release := context.AfterFunc(s.stopped, cancel)
	return ctx, func() {
		release()
		cancel()
	}
}

func (s *Service) CategoryFeed() *snapshot.Feed[[]core.Category] { return s.categories }

func (s *Service) TransactionFeed() *snapshot.Feed[[]core.Transaction] { return s.transactions }

func (s *Service) waitReady(ctx context.Context) error {
	select {
	case <-s.store.Ready():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", core.ErrNotReady, ctx.Err())
	}
}

// today returns the current local month and year.
func (s *Service) today() (int, int) {
	now := s.now().In(s.loc)
	return int(now.Month()), now.Year()
}

// classify passes caller-facing errors through and turns everything else into
// a storage failure: logged with its cause, shown to the user, returned opaque.
func (s *Service) classify(ctx context.Context, userID int64, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrNotReady),
		errors.Is(err, core.ErrEmailTaken):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}

	log.LogError(ctx, s.logger, "Ledger storage operation failed", err, op,
		log.NewFields().WithUser(userID).WithErrorType(log.ErrorTypeDatabase))
	s.notifier.Notify(ctx, userID, notify.LevelError, failureMessage(op))
	return fmt.Errorf("%s: %w", op, core.ErrStorage)
}

func (s *Service) observe(op string, started time.Time, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, core.ErrValidation):
		outcome = metrics.OutcomeInvalid
	case errors.Is(err, core.ErrNotFound):
		outcome = metrics.OutcomeNotFound
	case errors.Is(err, core.ErrStorage):
		outcome = metrics.OutcomeStorage
	default:
		outcome = metrics.OutcomeOtherError
	}
	s.metrics.ObserveOperation(op, outcome, started)
}

// publish sends a change event without failing the write it follows.
func (s *Service) publish(ctx context.Context, t amqp.EventType, userID, entityID int64) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, amqp.NewLedgerEvent(t, userID, entityID))
	s.metrics.EventPublished(string(t), err)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger event",
			"type", t, log.FieldUserID, userID, log.FieldError, err)
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, int64, notify.Level, string) {}
