package auth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"finan/internal/core"
)

const maxPhotoBytes = 2 << 20

var ErrInvalidCredentials = errors.New("invalid email or password")

// UserStorage is the user persistence the authenticator needs.
type UserStorage interface {
	Ready() <-chan struct{}
	CreateUser(ctx context.Context, u *core.User) error
	GetUserByID(ctx context.Context, id int64) (core.User, error)
	GetUserByEmail(ctx context.Context, email string) (core.User, error)
	UpdateUserProfile(ctx context.Context, id int64, name, email string) error
	UpdateProfilePhoto(ctx context.Context, id int64, photo string) error
}

// PasswordAuthenticator registers and authenticates users with bcrypt hashed passwords.
type PasswordAuthenticator struct {
	storage UserStorage
	cost    int
	now     func() time.Time

	// dummyHash is compared against when the email is unknown so both
	// paths pay for one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash []byte
}

func NewPasswordAuthenticator(storage UserStorage, cost int) *PasswordAuthenticator {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordAuthenticator{storage: storage, cost: cost, now: time.Now}
}

// Register creates a user account. A taken email yields core.ErrEmailTaken.
func (a *PasswordAuthenticator) Register(ctx context.Context, name, email, password string) (core.User, error) {
	name = strings.TrimSpace(name)
	email = core.NormalizeEmail(email)
	if err := core.ValidateProfile(name, email); err != nil {
		return core.User{}, err
	}
	if err := core.ValidatePassword(password); err != nil {
		return core.User{}, err
	}
	if err := a.waitReady(ctx); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := core.User{Name: name, Email: email, PasswordHash: string(hash), CreatedAt: a.now()}
	if err := a.storage.CreateUser(ctx, &u); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// Authenticate returns the user when email and password match.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, password string) (core.User, error) {
	if err := a.waitReady(ctx); err != nil {
		return core.User{}, err
	}
	u, err := a.storage.GetUserByEmail(ctx, core.NormalizeEmail(email))
	if errors.Is(err, core.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(a.dummy(), []byte(password))
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return core.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (a *PasswordAuthenticator) dummy() []byte {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("finan-unknown-user"), a.cost)
	})
	return a.dummyHash
}

func (a *PasswordAuthenticator) Profile(ctx context.Context, userID int64) (core.User, error) {
	if err := a.waitReady(ctx); err != nil {
		return core.User{}, err
	}
	return a.storage.GetUserByID(ctx, userID)
}

// UpdateProfile changes the display name and email of userID.
func (a *PasswordAuthenticator) UpdateProfile(ctx context.Context, userID int64, name, email string) (core.User, error) {
	name = strings.TrimSpace(name)
	email = core.NormalizeEmail(email)
	if err := core.ValidateProfile(name, email); err != nil {
		return core.User{}, err
	}
	if err := a.waitReady(ctx); err != nil {
		return core.User{}, err
	}
	if err := a.storage.UpdateUserProfile(ctx, userID, name, email); err != nil {
		return core.User{}, err
	}
	return a.storage.GetUserByID(ctx, userID)
}

// UpdatePhoto stores a base64 image data URI as the profile photo.
func (a *PasswordAuthenticator) UpdatePhoto(ctx context.Context, userID int64, dataURI string) error {
	if err := ValidatePhoto(dataURI); err != nil {
		return err
	}
	if err := a.waitReady(ctx); err != nil {
		return err
	}
	return a.storage.UpdateProfilePhoto(ctx, userID, dataURI)
}

// ValidatePhoto accepts data:image/<type>;base64,<payload> up to 2 MiB decoded.
func ValidatePhoto(dataURI string) error {
	meta, payload, ok := strings.Cut(dataURI, ",")
	if !ok || !strings.HasPrefix(meta, "data:image/") || !strings.HasSuffix(meta, ";base64") {
		return core.ErrInvalidPhoto
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxPhotoBytes+2 {
		return core.ErrInvalidPhoto
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(raw) == 0 || len(raw) > maxPhotoBytes {
		return core.ErrInvalidPhoto
	}
	return nil
}

func (a *PasswordAuthenticator) waitReady(ctx context.Context) error {
	select {
	case <-a.storage.Ready():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", core.ErrNotReady, ctx.Err())
	}
}
