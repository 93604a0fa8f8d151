package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"finan/internal/core"
	"finan/internal/report"
)

const (
	formatXLSX = "xlsx"
	formatCSV  = "csv"
)

var errInvalidFormat = fmt.Errorf("%w: format must be xlsx or csv", core.ErrValidation)

// handleExportTransactions downloads every transaction of the user as a
// spreadsheet. The document is rendered in memory so a failure still gets a
// JSON error.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request, userID int64) {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = formatXLSX
	}
	if format != formatXLSX && format != formatCSV {
		writeError(w, r, errInvalidFormat)
		return
	}

	rows, err := s.ledger.LabeledTransactions(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	contentType := report.ContentTypeXLSX
	if format == formatCSV {
		contentType = report.ContentTypeCSV
		err = report.WriteTransactionsCSV(&buf, rows)
	} else {
		err = report.WriteTransactionsXLSX(&buf, rows)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	name := fmt.Sprintf("transactions-%s.%s", s.today().Format(dateLayout), format)
	writeAttachment(w, contentType, name, buf.Bytes())
}

// handleStatement renders the monthly statement as PDF.
func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request, userID int64) {
	p, err := ParseMonthParams(r.URL.Query(), s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.ledger.Statement(r.Context(), userID, p.Month, p.Year)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteStatementPDF(&buf, st); err != nil {
		writeError(w, r, err)
		return
	}
	writeAttachment(w, report.ContentTypePDF, fmt.Sprintf("statement-%04d-%02d.pdf", p.Year, p.Month), buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
