package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/phpdave11/gofpdf"

	"finan/internal/core"
)

const (
	pageBreakY   = 270
	maxTitleRune = 60
)

// WriteStatementPDF renders a monthly statement: the summary block, the
// expense breakdown by category and the month's transactions.
func WriteStatementPDF(w io.Writer, st core.Statement) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetTitle(fmt.Sprintf("Statement %s %d", core.MonthLabel(st.Month), st.Year), false)
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Monthly statement")
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s %d", core.MonthLabel(st.Month), st.Year))
	pdf.Ln(5)
	pdf.Cell(0, 6, "Account: "+st.Owner.Name+" <"+st.Owner.Email+">")
	pdf.Ln(10)

	summaryBlock(pdf, st)
	categoryTable(pdf, st.Categories)
	transactionTable(pdf, st.Transactions)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render statement: %w", err)
	}
	return nil
}

func summaryBlock(pdf *gofpdf.Fpdf, st core.Statement) {
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)

	colW := 60.0
	pdf.CellFormat(colW, 10, "Income", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW, 10, "Expense", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW, 10, "Balance", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(colW, 10, formatAmount(st.Summary.Income), "1", 0, "C", false, 0, "")
	pdf.CellFormat(colW, 10, formatAmount(st.Summary.Expense), "1", 0, "C", false, 0, "")
	pdf.CellFormat(colW, 10, formatAmount(st.Summary.Balance), "1", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, fmt.Sprintf("Spent %d%% of income. %s", st.Spending.Ratio, st.Spending.Message), "", "L", false)
	pdf.Ln(4)
}

func categoryTable(pdf *gofpdf.Fpdf, shares []core.CategoryShare) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Expenses by category")
	pdf.Ln(9)

	if len(shares) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 6, "No expenses this month.")
		pdf.Ln(10)
		return
	}

	colW := []float64{100, 50, 30}
	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(colW[0], 8, "CATEGORY", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colW[1], 8, "TOTAL", "1", 0, "R", true, 0, "")
		pdf.CellFormat(colW[2], 8, "SHARE", "1", 1, "R", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}
	header()
	for _, c := range shares {
		if pdf.GetY() > pageBreakY {
			pdf.AddPage()
			header()
		}
		pdf.CellFormat(colW[0], 7, trimTo(c.Name, maxTitleRune), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[1], 7, formatAmount(c.Total), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[2], 7, strconv.Itoa(c.Percent)+"%", "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)
}

func transactionTable(pdf *gofpdf.Fpdf, txs []core.LabeledTransaction) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Transactions")
	pdf.Ln(9)

	if len(txs) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.Cell(0, 6, "No transactions this month.")
		pdf.Ln(6)
		return
	}

	colW := []float64{24, 40, 86, 30}
	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(colW[0], 8, "DATE", "1", 0, "C", true, 0, "")
		pdf.CellFormat(colW[1], 8, "CATEGORY", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colW[2], 8, "DESCRIPTION", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colW[3], 8, "AMOUNT", "1", 1, "R", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}
	header()
	for _, t := range txs {
		if pdf.GetY() > pageBreakY {
			pdf.AddPage()
			header()
		}
		pdf.CellFormat(colW[0], 7, t.Date.Format(dateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[1], 7, trimTo(t.CategoryName, 24), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[2], 7, trimTo(t.Description, maxTitleRune), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[3], 7, signedAmount(t.Transaction), "1", 1, "R", false, 0, "")
	}
}

// formatAmount prints cents with thousands separators, e.g. 1,234.50.
func formatAmount(m core.Money) string {
	s := m.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}

func signedAmount(t core.Transaction) string {
	if t.Kind == core.KindExpense {
		return "-" + formatAmount(t.Amount)
	}
	return formatAmount(t.Amount)
}

func trimTo(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
