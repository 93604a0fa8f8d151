// Package http exposes the ledger as a JSON API.
//
// This file implements request decoding: JSON bodies, query parameters and
// path values, turned into validated domain inputs.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finan/internal/core"
)

const (
	maxBodyBytes      = 64 << 10
	maxPhotoBodyBytes = 3 << 20
	dateLayout        = "2006-01-02"
)

var (
	errInvalidDate  = fmt.Errorf("%w: date must be YYYY-MM-DD or RFC 3339", core.ErrValidation)
	errInvalidCount = fmt.Errorf("%w: count must be an integer", core.ErrValidation)
	errInvalidID    = fmt.Errorf("%w: invalid id", core.ErrValidation)
	errBadJSON      = errors.New("request body must be a JSON object")
	errBodyTooLarge = errors.New("request body too large")
)

// MonthParams holds the year/month of a monthly query.
type MonthParams struct {
	Year  int
	Month int
}

// ParseMonthParams reads year and month from query, defaulting each to now.
// Present but malformed values are validation errors.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{Year: now.Year(), Month: int(now.Month())}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, core.ErrInvalidYear
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return MonthParams{}, core.ErrInvalidMonth
		}
		params.Month = m
	}
	if err := core.ValidateMonth(params.Month, params.Year); err != nil {
		return MonthParams{}, err
	}
	return params, nil
}

// ParseCount reads the history bucket count; missing means def.
func ParseCount(query url.Values, def int) (int, error) {
	v := strings.TrimSpace(query.Get("count"))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errInvalidCount
	}
	return n, nil
}

// ParseID reads a positive integer path value.
func ParseID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

// DecodeJSON reads a single JSON object of at most limit bytes into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return errBadJSON
	}
	if _, err := dec.Token(); err != io.EOF {
		return errBadJSON
	}
	return nil
}

// transactionRequest is the JSON body of create and update.
// Amount accepts a number or a string with either decimal separator.
type transactionRequest struct {
	Kind          string          `json:"kind"`
	Amount        json.RawMessage `json:"amount"`
	CategoryID    int64           `json:"categoryId"`
	Description   string          `json:"description"`
	Date          string          `json:"date"`
	PaymentMethod string          `json:"paymentMethod"`
}

func (req transactionRequest) toInput(loc *time.Location) (core.TransactionInput, error) {
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		return core.TransactionInput{}, err
	}
	amount, err := parseAmountJSON(req.Amount)
	if err != nil {
		return core.TransactionInput{}, err
	}
	date, err := parseDate(req.Date, loc)
	if err != nil {
		return core.TransactionInput{}, err
	}
	return core.TransactionInput{
		Kind:          kind,
		Amount:        amount,
		CategoryID:    req.CategoryID,
		Description:   sanitizeInput(req.Description),
		Date:          date,
		PaymentMethod: sanitizeInput(req.PaymentMethod),
	}, nil
}

func parseAmountJSON(raw json.RawMessage) (core.Money, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return core.Money{}, core.ErrInvalidAmount
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return core.Money{}, core.ErrInvalidAmount
		}
		return core.ParseAmount(s)
	}
	return core.ParseAmount(string(raw))
}

// parseDate accepts a calendar date (midnight in loc) or an RFC 3339 instant.
// Empty means "now", decided by the ledger.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errInvalidDate
	}
	return t.In(loc), nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
