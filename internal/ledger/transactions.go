package ledger

import (
	"context"
	"time"

	"finan/internal/amqp"
	"finan/internal/core"
	"finan/internal/log"
	"finan/internal/notify"
)

// CreateTransaction validates in, records it for userID and returns the stored row.
// A zero Date means now.
func (s *Service) CreateTransaction(ctx context.Context, userID int64, in core.TransactionInput) (t core.Transaction, err error) {
	defer func(start time.Time) { s.observe(opCreateTransaction, start, err) }(time.Now())

	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.waitReady(ctx); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, userID, in); err != nil {
		return core.Transaction{}, s.classify(ctx, userID, opCreateTransaction, err)
	}

	now := s.now()
	t = core.Transaction{
		UserID:        userID,
		Kind:          in.Kind,
		Amount:        in.Amount,
		CategoryID:    in.CategoryID,
		Description:   in.Description,
		Date:          in.Date,
		CreatedAt:     now,
		PaymentMethod: in.PaymentMethod,
	}
	if t.Date.IsZero() {
		t.Date = now
	}

	if err := s.store.CreateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, s.classify(ctx, userID, opCreateTransaction, err)
	}

	s.afterWrite(ctx, userID, t, amqp.TransactionCreated, log.OpCreate, "Transaction recorded.")
	return t, nil
}

// UpdateTransaction overwrites the editable fields of one of the user's
// transactions. CreatedAt is preserved.
func (s *Service) UpdateTransaction(ctx context.Context, userID, id int64, in core.TransactionInput) (t core.Transaction, err error) {
	defer func(start time.Time) { s.observe(opUpdateTransaction, start, err) }(time.Now())

	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.waitReady(ctx); err != nil {
		return core.Transaction{}, err
	}

	existing, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, s.classify(ctx, userID, opUpdateTransaction, err)
	}
	if err := s.checkCategory(ctx, userID, in); err != nil {
		return core.Transaction{}, s.classify(ctx, userID, opUpdateTransaction, err)
	}

	t = existing
	t.Kind = in.Kind
	t.Amount = in.Amount
	t.CategoryID = in.CategoryID
	t.Description = in.Description
	t.PaymentMethod = in.PaymentMethod
	if !in.Date.IsZero() {
		t.Date = in.Date
	}

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return core.Transaction{}, s.classify(ctx, userID, opUpdateTransaction, err)
	}

	s.afterWrite(ctx, userID, t, amqp.TransactionUpdated, log.OpUpdate, "Transaction updated.")
	return t, nil
}

// DeleteTransaction removes one of the user's transactions.
func (s *Service) DeleteTransaction(ctx context.Context, userID, id int64) (err error) {
	defer func(start time.Time) { s.observe(opDeleteTransaction, start, err) }(time.Now())

	if err := s.waitReady(ctx); err != nil {
		return err
	}
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		return s.classify(ctx, userID, opDeleteTransaction, err)
	}

	s.afterWrite(ctx, userID, core.Transaction{ID: id, UserID: userID}, amqp.TransactionDeleted, log.OpDelete, "Transaction deleted.")
	return nil
}

func (s *Service) GetTransaction(ctx context.Context, userID, id int64) (t core.Transaction, err error) {
	defer func(start time.Time) { s.observe(opGetTransaction, start, err) }(time.Now())

	if err := s.waitReady(ctx); err != nil {
		return core.Transaction{}, err
	}
	t, err = s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, s.classify(ctx, userID, opGetTransaction, err)
	}
	return t, nil
}

// ListTransactions returns the user's transactions, newest date first, and
// publishes them on the transaction feed.
func (s *Service) ListTransactions(ctx context.Context, userID int64) (txs []core.Transaction, err error) {
	defer func(start time.Time) { s.observe(opListTransactions, start, err) }(time.Now())

	if err := s.waitReady(ctx); err != nil {
		return nil, err
	}
	version := s.transactions.NextVersion(userID)
	txs, err = s.store.ListTransactions(ctx, userID)
	if err != nil {
		return []core.Transaction{}, s.classify(ctx, userID, opListTransactions, err)
	}
	s.transactions.Publish(userID, version, txs)
	return txs, nil
}

// LabeledTransactions returns every transaction with its category name, for exports.
func (s *Service) LabeledTransactions(ctx context.Context, userID int64) (out []core.LabeledTransaction, err error) {
	defer func(start time.Time) { s.observe(opExport, start, err) }(time.Now())

	if err := s.waitReady(ctx); err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, s.classify(ctx, userID, opExport, err)
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, s.classify(ctx, userID, opExport, err)
	}
	return core.Label(txs, cats), nil
}

// WatchTransactions subscribes to the user's transaction listing. A snapshot
// is loaded when none is cached yet.
func (s *Service) WatchTransactions(ctx context.Context, userID int64) (<-chan []core.Transaction, func()) {
	ch, cancel := s.transactions.Subscribe(userID)
	if _, ok := s.transactions.Latest(userID); !ok {
		s.refreshTransactions(ctx, userID)
	}
	return ch, cancel
}

// checkCategory rejects categories the user cannot see or of the wrong kind.
func (s *Service) checkCategory(ctx context.Context, userID int64, in core.TransactionInput) error {
	c, err := s.lookupCategory(ctx, userID, in.CategoryID)
	if err != nil {
		return err
	}
	if c.Kind != in.Kind {
		return core.ErrCategoryKindMismatch
	}
	return nil
}

func (s *Service) afterWrite(ctx context.Context, userID int64, t core.Transaction, event amqp.EventType, op, notice string) {
	fields := log.NewFields().
		WithUser(userID).
		WithOperation(op).
		WithTransaction(t.ID, string(t.Kind), t.Amount.Cents, t.CategoryID)
	s.logger.InfoContext(ctx, "Ledger entry changed", fields.ToSlice()...)

	s.refreshTransactions(ctx, userID)
	s.publish(ctx, event, userID, t.ID)
	s.notifier.Notify(ctx, userID, notify.LevelInfo, notice)
}

// refreshTransactions reloads the user's listing in the background. The
// version is taken before returning so later writes always win.
func (s *Service) refreshTransactions(ctx context.Context, userID int64) {
	version := s.transactions.NextVersion(userID)
	ctx, release := s.detach(ctx)

	s.refreshes.Add(1)
	go func() {
		defer s.refreshes.Done()
		defer release()
		if err := s.waitReady(ctx); err != nil {
			return
		}
		txs, err := s.store.ListTransactions(ctx, userID)
		if err != nil {
			s.logger.WarnContext(ctx, "Transaction snapshot refresh failed",
				log.FieldUserID, userID, log.FieldOperation, log.OpRefresh, log.FieldError, err)
			return
		}
		if !s.transactions.Publish(userID, version, txs) {
			s.metrics.SnapshotDropped("transactions")
		}
	}()
}
