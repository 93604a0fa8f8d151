// Package report renders ledger data as spreadsheets and printable statements.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"finan/internal/core"
)

const (
	SheetTransactions = "Transactions"
	dateLayout        = "2006-01-02"

	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypePDF  = "application/pdf"
)

var transactionHeader = []string{"Date", "Kind", "Category", "Description", "Amount", "Payment method"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func transactionRecord(t core.LabeledTransaction) []string {
	return []string{
		t.Date.Format(dateLayout),
		string(t.Kind),
		escapeFormula(t.CategoryName),
		escapeFormula(t.Description),
		t.Amount.String(),
		escapeFormula(t.PaymentMethod),
	}
}

// escapeFormula quotes user text that a spreadsheet would evaluate as a formula.
func escapeFormula(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

// WriteTransactionsCSV writes rows as CSV with a UTF-8 BOM so spreadsheet
// applications detect the encoding.
func WriteTransactionsCSV(w io.Writer, rows []core.LabeledTransaction) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, t := range rows {
		if err := cw.Write(transactionRecord(t)); err != nil {
			return fmt.Errorf("write transaction %d: %w", t.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTransactionsXLSX writes rows to a workbook with a single
// "Transactions" sheet. Amounts are numeric cells.
func WriteTransactionsXLSX(w io.Writer, rows []core.LabeledTransaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTransactions); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	if err := setRow(f, 1, toAny(transactionHeader)); err != nil {
		return err
	}
	for i, t := range rows {
		rec := transactionRecord(t)
		values := []any{rec[0], rec[1], rec[2], rec[3], t.Amount.Float(), rec[5]}
		if err := setRow(f, i+2, values); err != nil {
			return err
		}
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("amount style: %w", err)
	}
	if len(rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(5, len(rows)+1)
		if err := f.SetCellStyle(SheetTransactions, "E2", last, amountStyle); err != nil {
			return fmt.Errorf("apply amount style: %w", err)
		}
	}

	widths := map[string]float64{"A": 12, "B": 10, "C": 18, "D": 40, "E": 14, "F": 16}
	for col, width := range widths {
		if err := f.SetColWidth(SheetTransactions, col, col, width); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetTransactions, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
