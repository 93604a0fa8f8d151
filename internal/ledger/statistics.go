package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"finan/internal/core"
)

// Period selects the range covered by Statistics.
type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodTotal   Period = "total"

	quarterMonths = 3
)

var ErrInvalidPeriod = fmt.Errorf("%w: period must be month, quarter or total", core.ErrValidation)

// ParsePeriod accepts the period names case-insensitively. Empty means month.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PeriodMonth, nil
	case PeriodMonth, PeriodQuarter, PeriodTotal:
		return p, nil
	}
	return "", ErrInvalidPeriod
}

// Statistics is the dashboard view of one period.
type Statistics struct {
	Period     Period                  `json:"period"`
	Summary    core.Summary            `json:"summary"`
	Spending   core.SpendingAssessment `json:"spending"`
	Comparison *core.Comparison        `json:"comparison,omitempty"`
	Categories []core.CategoryShare    `json:"categories"`
	History    []core.MonthHistory     `json:"history,omitempty"`
	HasData    bool                    `json:"hasData"`
}

func (s *Service) Statistics(ctx context.Context, userID int64, period Period) (st Statistics, err error) {
	defer func(start time.Time) { s.observe(opStatistics, start, err) }(time.Now())

	if err := s.waitReady(ctx); err != nil {
		return Statistics{}, err
	}

	switch period {
	case PeriodMonth:
		st, err = s.monthStatistics(ctx, userID)
	case PeriodQuarter:
		st, err = s.quarterStatistics(ctx, userID)
	case PeriodTotal:
		st, err = s.totalStatistics(ctx, userID)
	default:
		return Statistics{}, ErrInvalidPeriod
	}
	if err != nil {
		return Statistics{Period: period, Categories: []core.CategoryShare{}}, s.classify(ctx, userID, opStatistics, err)
	}
	st.Period = period
	st.Spending = core.AssessSpending(st.Summary)
	return st, nil
}

func (s *Service) monthStatistics(ctx context.Context, userID int64) (Statistics, error) {
	month, year := s.today()
	pm, py := core.PreviousMonth(month, year)

	var (
		current, previous core.Summary
		totals            []core.CategoryTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		current, err = s.store.MonthlySummary(gctx, userID, month, year)
		return err
	})
	g.Go(func() (err error) {
		previous, err = s.store.MonthlySummary(gctx, userID, pm, py)
		return err
	})
	g.Go(func() (err error) {
		totals, err = s.store.ExpenseByCategory(gctx, userID, month, year)
		return err
	})
	if err := g.Wait(); err != nil {
		return Statistics{}, err
	}

	cmp := core.Compare(current, previous)
	return Statistics{
		Summary:    current,
		Comparison: &cmp,
		Categories: core.CategoryShares(totals, current.Expense),
		HasData:    current.HasData(),
	}, nil
}

// quarterStatistics sums the three most recent months with activity.
func (s *Service) quarterStatistics(ctx context.Context, userID int64) (Statistics, error) {
	hist, err := s.store.MonthlyHistory(ctx, userID, quarterMonths)
	if err != nil {
		return Statistics{}, err
	}
	var sum core.Summary
	for _, h := range hist {
		sum = sum.Add(core.NewSummary(h.Income.Cents, h.Expense.Cents))
	}
	return Statistics{
		Summary:    sum,
		Categories: []core.CategoryShare{},
		History:    hist,
		HasData:    len(hist) > 0,
	}, nil
}

// totalStatistics pairs the all-time summary with the current month's
// categories, weighted against the all-time expense.
func (s *Service) totalStatistics(ctx context.Context, userID int64) (Statistics, error) {
	month, year := s.today()
	sum, err := s.store.TotalSummary(ctx, userID)
	if err != nil {
		return Statistics{}, err
	}
	totals, err := s.store.ExpenseByCategory(ctx, userID, month, year)
	if err != nil {
		return Statistics{}, err
	}
	return Statistics{
		Summary:    sum,
		Categories: core.CategoryShares(totals, sum.Expense),
		HasData:    sum.HasData(),
	}, nil
}

// Statement collects a month's figures and transactions for printing.
func (s *Service) Statement(ctx context.Context, userID int64, month, year int) (st core.Statement, err error) {
	defer func(start time.Time) { s.observe(opStatement, start, err) }(time.Now())

	if err := core.ValidateMonth(month, year); err != nil {
		return core.Statement{}, err
	}
	if err := s.waitReady(ctx); err != nil {
		return core.Statement{}, err
	}

	owner, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return core.Statement{}, s.classify(ctx, userID, opStatement, err)
	}
	sum, err := s.store.MonthlySummary(ctx, userID, month, year)
	if err != nil {
		return core.Statement{}, s.classify(ctx, userID, opStatement, err)
	}
	totals, err := s.store.ExpenseByCategory(ctx, userID, month, year)
	if err != nil {
		return core.Statement{}, s.classify(ctx, userID, opStatement, err)
	}
	txs, err := s.store.ListTransactionsInMonth(ctx, userID, month, year)
	if err != nil {
		return core.Statement{}, s.classify(ctx, userID, opStatement, err)
	}
	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return core.Statement{}, s.classify(ctx, userID, opStatement, err)
	}

	return core.Statement{
		Owner:        owner,
		Month:        month,
		Year:         year,
		Summary:      sum,
		Spending:     core.AssessSpending(sum),
		Categories:   core.CategoryShares(totals, sum.Expense),
		Transactions: core.Label(txs, cats),
	}, nil
}
