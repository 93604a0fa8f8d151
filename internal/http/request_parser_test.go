package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"finan/internal/core"
)

func TestParseMonthParams(t *testing.T) {
	now := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		query   string
		want    MonthParams
		wantErr error
	}{
		{"", MonthParams{Year: 2025, Month: 3}, nil},
		{"year=2024&month=12", MonthParams{Year: 2024, Month: 12}, nil},
		{"month=1", MonthParams{Year: 2025, Month: 1}, nil},
		{"month=13", MonthParams{}, core.ErrInvalidMonth},
		{"month=0", MonthParams{}, core.ErrInvalidMonth},
		{"month=abc", MonthParams{}, core.ErrInvalidMonth},
		{"year=twenty", MonthParams{}, core.ErrInvalidYear},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			got, err := ParseMonthParams(q, now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	for query, want := range map[string]int{"": 3, "count=6": 6, "count=0": 0, "count=-1": -1} {
		q, _ := url.ParseQuery(query)
		got, err := ParseCount(q, 3)
		if err != nil || got != want {
			t.Errorf("ParseCount(%q) = %d, %v; want %d", query, got, err, want)
		}
	}
	q, _ := url.ParseQuery("count=many")
	if _, err := ParseCount(q, 3); !errors.Is(err, core.ErrValidation) {
		t.Errorf("err = %v", err)
	}
}

func TestTransactionRequestToInput(t *testing.T) {
	loc := time.FixedZone("UTC-3", -3*60*60)
	tests := []struct {
		name    string
		body    string
		want    core.TransactionInput
		wantErr error
	}{
		{
			name: "number amount and calendar date",
			body: `{"kind":"expense","amount":12.5,"categoryId":3,"description":" Lunch\u0007 ","date":"2025-03-01"}`,
			want: core.TransactionInput{Kind: core.KindExpense, Amount: core.Cents(1250), CategoryID: 3, Description: "Lunch",
				Date: time.Date(2025, time.March, 1, 0, 0, 0, 0, loc)},
		},
		{
			name: "comma string amount",
			body: `{"kind":"Income","amount":"1.234,5","categoryId":8,"description":"Salary"}`,
			wantErr: core.ErrInvalidAmount,
		},
		{
			name: "comma decimal",
			body: `{"kind":"income","amount":"1234,56","categoryId":8,"description":"Salary"}`,
			want: core.TransactionInput{Kind: core.KindIncome, Amount: core.Cents(123456), CategoryID: 8, Description: "Salary"},
		},
		{"negative", `{"kind":"expense","amount":-5,"categoryId":1,"description":"x"}`, core.TransactionInput{}, core.ErrInvalidAmount},
		{"missing amount", `{"kind":"expense","categoryId":1,"description":"x"}`, core.TransactionInput{}, core.ErrInvalidAmount},
		{"bad kind", `{"kind":"gift","amount":1,"categoryId":1,"description":"x"}`, core.TransactionInput{}, core.ErrInvalidKind},
		{"bad date", `{"kind":"expense","amount":1,"categoryId":1,"description":"x","date":"01/03/2025"}`, core.TransactionInput{}, errInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req transactionRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got, err := req.toInput(loc)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if got.Kind != tt.want.Kind || got.Amount != tt.want.Amount || got.CategoryID != tt.want.CategoryID ||
				got.Description != tt.want.Description || !got.Date.Equal(tt.want.Date) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst map[string]any
	tests := []struct {
		body    string
		limit   int64
		wantErr error
	}{
		{`{"a":1}`, 1024, nil},
		{`{"a":1}{"b":2}`, 1024, errBadJSON},
		{`not json`, 1024, errBadJSON},
		{`{"a":"` + strings.Repeat("x", 100) + `"}`, 16, errBodyTooLarge},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
		err := DecodeJSON(httptest.NewRecorder(), req, tt.limit, &dst)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("DecodeJSON(%.20q) err = %v, want %v", tt.body, err, tt.wantErr)
		}
	}
}

func TestParseID(t *testing.T) {
	mux := http.NewServeMux()
	var got int64
	var gotErr error
	mux.HandleFunc("/items/{id}", func(_ http.ResponseWriter, r *http.Request) {
		got, gotErr = ParseID(r, "id")
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/42", nil))
	if gotErr != nil || got != 42 {
		t.Errorf("ParseID = %d, %v", got, gotErr)
	}
	for _, bad := range []string{"/items/0", "/items/-3", "/items/abc"} {
		mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, bad, nil))
		if !errors.Is(gotErr, core.ErrValidation) {
			t.Errorf("%s: err = %v", bad, gotErr)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Errorf("sanitizeInput = %q", got)
	}
}
