package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"income", KindIncome, true},
		{" Expense ", KindExpense, true},
		{"transfer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && !errors.Is(err, ErrValidation) {
			t.Fatalf("%q expected validation error, got %v", tc.in, err)
		}
	}
}

func TestTransactionInputValidate(t *testing.T) {
	good := TransactionInput{
		Kind:        KindExpense,
		Amount:      Cents(250),
		CategoryID:  1,
		Description: "Lunch",
		Date:        time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*TransactionInput)
		want   error
	}{
		{"zero amount", func(in *TransactionInput) { in.Amount = Cents(0) }, ErrInvalidAmount},
		{"negative amount", func(in *TransactionInput) { in.Amount = Cents(-5) }, ErrInvalidAmount},
		{"missing category", func(in *TransactionInput) { in.CategoryID = 0 }, ErrMissingCategory},
		{"blank description", func(in *TransactionInput) { in.Description = "   " }, ErrEmptyDescription},
		{"bad kind", func(in *TransactionInput) { in.Kind = "gift" }, ErrInvalidKind},
		{"long description", func(in *TransactionInput) {
			b := make([]byte, 201)
			for i := range b {
				b[i] = 'x'
			}
			in.Description = string(b)
		}, ErrDescriptionTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := good
			tc.mutate(&in)
			err := in.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation class, got %v", err)
			}
		})
	}
}

func TestCategoryVisibility(t *testing.T) {
	owner := int64(7)
	global := Category{ID: 1, Name: "Food", Kind: KindExpense}
	owned := Category{ID: 11, Name: "Pets", Kind: KindExpense, OwnerID: &owner}

	if !global.IsGlobal() || !global.VisibleTo(99) {
		t.Fatalf("global category must be visible to everyone")
	}
	if owned.IsGlobal() {
		t.Fatalf("owned category reported as global")
	}
	if !owned.VisibleTo(7) || owned.VisibleTo(8) {
		t.Fatalf("owned category visibility wrong")
	}
}

func TestFilterByKind(t *testing.T) {
	cats := []Category{
		{ID: 1, Kind: KindExpense},
		{ID: 2, Kind: KindIncome},
		{ID: 3, Kind: KindExpense},
	}
	exp := FilterByKind(cats, KindExpense)
	inc := FilterByKind(cats, KindIncome)
	if len(exp)+len(inc) != len(cats) {
		t.Fatalf("partition lost elements: %d + %d", len(exp), len(inc))
	}
	if len(exp) != 2 || exp[0].ID != 1 || exp[1].ID != 3 {
		t.Fatalf("unexpected expense filter result: %+v", exp)
	}
	if len(FilterByKind(nil, KindIncome)) != 0 {
		t.Fatalf("expected empty result for nil input")
	}
}

func TestValidateProfile(t *testing.T) {
	if err := ValidateProfile("Ana", "ana@example.com"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := ValidateProfile(" ", "ana@example.com"); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	for _, email := range []string{"", "ana", "Ana <ana@example.com>"} {
		if err := ValidateEmail(email); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("%q expected ErrInvalidEmail, got %v", email, err)
		}
	}
	if err := ValidatePassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := ValidatePassword(strings.Repeat("p", 72)); err != nil {
		t.Fatalf("72 byte password: %v", err)
	}
	// 37 two-byte runes: 37 characters but 74 bytes
	if err := ValidatePassword(strings.Repeat("é", 37)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}
