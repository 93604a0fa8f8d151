package core

import "time"

// Summary is the income/expense/balance triple of a period.
type Summary struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// CategoryTotal is the expense total of one category in a month.
type CategoryTotal struct {
	CategoryID int64  `json:"categoryId"`
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	Color      string `json:"color"`
	Total      Money  `json:"total"`
}

// CategoryShare is a CategoryTotal with its percentage of the period's expense.
type CategoryShare struct {
	CategoryTotal
	Percent int `json:"percent"`
}

// MonthHistory is one bucket of the multi-month history.
type MonthHistory struct {
	Month      int    `json:"month"` // 1-12
	MonthLabel string `json:"monthLabel"`
	Year       int    `json:"year"`
	Income     Money  `json:"income"`
	Expense    Money  `json:"expense"`
	Balance    Money  `json:"balance"`
}

// Comparison holds the current and previous month with percent changes.
type Comparison struct {
	Current       Summary `json:"current"`
	Previous      Summary `json:"previous"`
	IncomeChange  int     `json:"incomeChange"`
	ExpenseChange int     `json:"expenseChange"`
}

// SpendingLevel grades how much of the income was spent.
type SpendingLevel string

const (
	SpendingNoIncome  SpendingLevel = "no-income"
	SpendingExcellent SpendingLevel = "excellent"
	SpendingGood      SpendingLevel = "good"
	SpendingCaution   SpendingLevel = "caution"
	SpendingWarning   SpendingLevel = "warning"
	SpendingOverspent SpendingLevel = "overspent"
)

// SpendingAssessment pairs the spent ratio with its level and a short message.
type SpendingAssessment struct {
	Ratio   int           `json:"ratio"`
	Level   SpendingLevel `json:"level"`
	Message string        `json:"message"`
}

// NewSummary derives the balance from income and expense.
func NewSummary(income, expense int64) Summary {
	return Summary{Income: Cents(income), Expense: Cents(expense), Balance: Cents(income - expense)}
}

// HasData reports whether anything was recorded in the period.
func (s Summary) HasData() bool {
	return s.Income.Cents > 0 || s.Expense.Cents > 0
}

// Add merges two summaries.
func (s Summary) Add(o Summary) Summary {
	return NewSummary(s.Income.Cents+o.Income.Cents, s.Expense.Cents+o.Expense.Cents)
}

// MonthLabel returns the English month name, or "" for an invalid month.
func MonthLabel(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return time.Month(month).String()
}

func ValidateMonth(month, year int) error {
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	if year < 1 || year > 9999 {
		return ErrInvalidYear
	}
	return nil
}

// PreviousMonth steps one calendar month back; January rolls over to December.
func PreviousMonth(month, year int) (int, int) {
	if month == 1 {
		return 12, year - 1
	}
	return month - 1, year
}

// PercentChange is round((current-previous)/previous*100).
// A zero previous yields 100 when current is positive and 0 otherwise.
func PercentChange(current, previous Money) int {
	if previous.Cents == 0 {
		if current.Cents > 0 {
			return 100
		}
		return 0
	}
	return percentOf(current.Cents-previous.Cents, previous.Cents)
}

// Compare builds the month-over-month comparison.
func Compare(current, previous Summary) Comparison {
	return Comparison{
		Current:       current,
		Previous:      previous,
		IncomeChange:  PercentChange(current.Income, previous.Income),
		ExpenseChange: PercentChange(current.Expense, previous.Expense),
	}
}

// CategoryShares attaches each category's percentage of expense.
// Percentages are 0 when expense is 0.
func CategoryShares(totals []CategoryTotal, expense Money) []CategoryShare {
	out := make([]CategoryShare, 0, len(totals))
	for _, t := range totals {
		out = append(out, CategoryShare{CategoryTotal: t, Percent: percentOf(t.Total.Cents, expense.Cents)})
	}
	return out
}

// SpentRatio is the percentage of income spent, 0 when there is no income.
func SpentRatio(s Summary) int {
	if s.Income.Cents <= 0 {
		return 0
	}
	return percentOf(s.Expense.Cents, s.Income.Cents)
}

// AssessSpending grades a month by its spent ratio.
func AssessSpending(s Summary) SpendingAssessment {
	ratio := SpentRatio(s)
	a := SpendingAssessment{Ratio: ratio}
	switch {
	case s.Income.Cents <= 0:
		a.Level = SpendingNoIncome
		a.Message = "Start recording your income and expenses to keep track of your money."
	case ratio < 30:
		a.Level = SpendingExcellent
		a.Message = "Excellent! You have spent only a small part of your income this month."
	case ratio < 50:
		a.Level = SpendingGood
		a.Message = "Good job, your spending is well under control this month."
	case ratio < 70:
		a.Level = SpendingCaution
		a.Message = "Heads up: keep an eye on your expenses."
	case ratio < 100:
		a.Level = SpendingWarning
		a.Message = "Careful: you are close to spending all your income. Cut back where you can."
	default:
		a.Level = SpendingOverspent
		a.Message = "Alert: you spent more than you earned this month."
	}
	return a
}

// LabeledTransaction is a transaction with its category name resolved.
type LabeledTransaction struct {
	Transaction
	CategoryName string `json:"categoryName"`
}

// Statement gathers everything printed on a monthly statement.
type Statement struct {
	Owner        User                 `json:"owner"`
	Month        int                  `json:"month"`
	Year         int                  `json:"year"`
	Summary      Summary              `json:"summary"`
	Spending     SpendingAssessment   `json:"spending"`
	Categories   []CategoryShare      `json:"categories"`
	Transactions []LabeledTransaction `json:"transactions"`
}

// Label resolves category names for txs; unknown ids get an empty name.
func Label(txs []Transaction, categories []Category) []LabeledTransaction {
	names := make(map[int64]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	out := make([]LabeledTransaction, 0, len(txs))
	for _, t := range txs {
		out = append(out, LabeledTransaction{Transaction: t, CategoryName: names[t.CategoryID]})
	}
	return out
}
