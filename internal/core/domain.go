package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

const (
	maxDescriptionLen  = 200
	maxCategoryNameLen = 50
	maxUserNameLen     = 100
	minPasswordLen     = 8
	maxPasswordLen     = 72 // bcrypt input limit, in bytes

	DefaultCategoryIcon  = "pricetag-outline"
	DefaultCategoryColor = "medium"
)

type (
	// Kind tags both categories and transactions.
	Kind string

	User struct {
		ID           int64     `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		Photo        string    `json:"photo,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Category is global when OwnerID is nil.
	Category struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Kind    Kind   `json:"kind"`
		Icon    string `json:"icon"`
		Color   string `json:"color"`
		OwnerID *int64 `json:"userId,omitempty"`
	}

	Transaction struct {
		ID            int64     `json:"id"`
		UserID        int64     `json:"userId"`
		Kind          Kind      `json:"kind"`
		Amount        Money     `json:"amount"`
		CategoryID    int64     `json:"categoryId"`
		Description   string    `json:"description"`
		Date          time.Time `json:"date"`
		CreatedAt     time.Time `json:"createdAt"`
		PaymentMethod string    `json:"paymentMethod,omitempty"`
	}

	// TransactionInput carries the caller-editable fields of a transaction.
	TransactionInput struct {
		Kind          Kind      `json:"kind"`
		Amount        Money     `json:"amount"`
		CategoryID    int64     `json:"categoryId"`
		Description   string    `json:"description"`
		Date          time.Time `json:"date"`
		PaymentMethod string    `json:"paymentMethod,omitempty"`
	}
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrStorage     = errors.New("storage failure")
	ErrNotFound    = errors.New("not found")
	ErrNotReady    = errors.New("ledger not ready")
	ErrEmailTaken  = errors.New("email already registered")
	ErrInvalidKind = fmt.Errorf("%w: kind must be income or expense", ErrValidation)

	ErrInvalidAmount        = fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	ErrMissingCategory      = fmt.Errorf("%w: category is required", ErrValidation)
	ErrEmptyDescription     = fmt.Errorf("%w: empty description", ErrValidation)
	ErrDescriptionTooLong   = fmt.Errorf("%w: description too long (max %d characters)", ErrValidation, maxDescriptionLen)
	ErrInvalidMonth         = fmt.Errorf("%w: month must be between 1 and 12", ErrValidation)
	ErrInvalidYear          = fmt.Errorf("%w: invalid year", ErrValidation)
	ErrUnknownCategory      = fmt.Errorf("%w: unknown category", ErrValidation)
	ErrCategoryKindMismatch = fmt.Errorf("%w: category kind does not match transaction kind", ErrValidation)
	ErrEmptyName            = fmt.Errorf("%w: empty name", ErrValidation)
	ErrNameTooLong          = fmt.Errorf("%w: name too long", ErrValidation)
	ErrInvalidEmail         = fmt.Errorf("%w: invalid email", ErrValidation)
	ErrWeakPassword         = fmt.Errorf("%w: password must have at least %d characters", ErrValidation, minPasswordLen)
	ErrPasswordTooLong      = fmt.Errorf("%w: password must not exceed %d bytes", ErrValidation, maxPasswordLen)
	ErrInvalidPhoto         = fmt.Errorf("%w: photo must be a base64 image data URI", ErrValidation)
)

// ParseKind accepts the canonical kinds, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", ErrInvalidKind
	}
	return k, nil
}

func (k Kind) Valid() bool {
	return k == KindIncome || k == KindExpense
}

func (k Kind) String() string { return string(k) }

func (c Category) IsGlobal() bool { return c.OwnerID == nil }

// VisibleTo reports whether userID may use the category.
func (c Category) VisibleTo(userID int64) bool {
	return c.OwnerID == nil || *c.OwnerID == userID
}

func (c Category) Validate() error {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxCategoryNameLen {
		return ErrNameTooLong
	}
	if !c.Kind.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (in TransactionInput) Validate() error {
	if !in.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if in.CategoryID <= 0 {
		return ErrMissingCategory
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}

// Normalize trims free-text fields.
func (in TransactionInput) Normalize() TransactionInput {
	in.Description = strings.TrimSpace(in.Description)
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	return in
}

// ValidateProfile checks the user-editable profile fields.
func ValidateProfile(name, email string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxUserNameLen {
		return ErrNameTooLong
	}
	return ValidateEmail(email)
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}
	if len(password) > maxPasswordLen {
		return ErrPasswordTooLong
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FilterByKind returns the categories of the given kind, preserving order.
func FilterByKind(categories []Category, kind Kind) []Category {
	out := make([]Category, 0, len(categories))
	for _, c := range categories {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
