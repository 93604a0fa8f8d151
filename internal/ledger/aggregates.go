package ledger

import (
	"context"
	"time"

	"finan/internal/core"
)

// MonthlySummary totals income and expense for one calendar month.
func (s *Service) MonthlySummary(ctx context.Context, userID int64, month, year int) (sum core.Summary, err error) {
	defer func(start time.Time) { s.observe(opMonthlySummary, start, err) }(time.Now())

	if err := core.ValidateMonth(month, year); err != nil {
		return core.Summary{}, err
	}
	if err := s.waitReady(ctx); err != nil {
		return core.Summary{}, err
	}
	sum, err = s.store.MonthlySummary(ctx, userID, month, year)
	if err != nil {
		return core.Summary{}, s.classify(ctx, userID, opMonthlySummary, err)
	}
	return sum, nil
}

// CurrentMonthSummary is MonthlySummary for the clock's month.
func (s *Service) CurrentMonthSummary(ctx context.Context, userID int64) (core.Summary, error) {
	month, year := s.today()
	return s.MonthlySummary(ctx, userID, month, year)
}

// PreviousMonthSummary is MonthlySummary for the month before the clock's.
func (s *Service) PreviousMonthSummary(ctx context.Context, userID int64) (sum core.Summary, err error) {
	defer func(start time.Time) { s.observe(opPreviousMonth, start, err) }(time.Now())

	month, year := core.PreviousMonth(s.today())
	if err := s.waitReady(ctx); err != nil {
		return core.Summary{}, err
	}
	sum, err = s.store.MonthlySummary(ctx, userID, month, year)
	if err != nil {
		return core.Summary{}, s.classify(ctx, userID, opPreviousMonth, err)
	}
	return sum, nil
}

// ExpenseByCategory returns expense totals per category, largest first.
func (s *Service) ExpenseByCategory(ctx context.Context, userID int64, month, year int) (totals []core.CategoryTotal, err error) {
	defer func(start time.Time) { s.observe(opExpenseByCategory, start, err) }(time.Now())

	if err := core.ValidateMonth(month, year); err != nil {
		return []core.CategoryTotal{}, err
	}
	if err := s.waitReady(ctx); err != nil {
		return []core.CategoryTotal{}, err
	}
	totals, err = s.store.ExpenseByCategory(ctx, userID, month, year)
	if err != nil {
		return []core.CategoryTotal{}, s.classify(ctx, userID, opExpenseByCategory, err)
	}
	return totals, nil
}

// CategoryShares is ExpenseByCategory with each total's share of the month's expense.
func (s *Service) CategoryShares(ctx context.Context, userID int64, month, year int) ([]core.CategoryShare, error) {
	sum, err := s.MonthlySummary(ctx, userID, month, year)
	if err != nil {
		return []core.CategoryShare{}, err
	}
	totals, err := s.ExpenseByCategory(ctx, userID, month, year)
	if err != nil {
		return []core.CategoryShare{}, err
	}
	return core.CategoryShares(totals, sum.Expense), nil
}

// Compare sets the current month against the previous one.
func (s *Service) Compare(ctx context.Context, userID int64) (cmp core.Comparison, err error) {
	defer func(start time.Time) { s.observe(opComparison, start, err) }(time.Now())

	if err := s.waitReady(ctx); err != nil {
		return core.Comparison{}, err
	}
	month, year := s.today()
	pm, py := core.PreviousMonth(month, year)

	current, err := s.store.MonthlySummary(ctx, userID, month, year)
	if err != nil {
		return core.Comparison{}, s.classify(ctx, userID, opComparison, err)
	}
	previous, err := s.store.MonthlySummary(ctx, userID, pm, py)
	if err != nil {
		return core.Comparison{}, s.classify(ctx, userID, opComparison, err)
	}
	return core.Compare(current, previous), nil
}

// History returns up to count monthly buckets, newest first. A count of zero
// or less returns every month with activity.
func (s *Service) History(ctx context.Context, userID int64, count int) (hist []core.MonthHistory, err error) {
	defer func(start time.Time) { s.observe(opHistory, start, err) }(time.Now())

	if err := s.waitReady(ctx); err != nil {
		return []core.MonthHistory{}, err
	}
	hist, err = s.store.MonthlyHistory(ctx, userID, count)
	if err != nil {
		return []core.MonthHistory{}, s.classify(ctx, userID, opHistory, err)
	}
	return hist, nil
}

// TotalSummary totals every transaction the user ever recorded.
func (s *Service) TotalSummary(ctx context.Context, userID int64) (sum core.Summary, err error) {
	defer func(start time.Time) { s.observe(opTotalSummary, start, err) }(time.Now())

	if err := s.waitReady(ctx); err != nil {
		return core.Summary{}, err
	}
	sum, err = s.store.TotalSummary(ctx, userID)
	if err != nil {
		return core.Summary{}, s.classify(ctx, userID, opTotalSummary, err)
	}
	return sum, nil
}
