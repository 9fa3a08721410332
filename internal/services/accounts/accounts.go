// Package accounts handles email and password sign-in for locally
// provisioned users.
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 6

// ErrInvalidCredentials covers unknown emails, wrong passwords and users
// that have no local password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserLookup finds users by email. It wraps sql.ErrNoRows when none exists.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// SignInForm is the email/password form.
type SignInForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

var signInMessages = map[string]string{
	"Email.required":    "Email is required",
	"Email.email":       "Invalid email format",
	"Password.required": "Password is required",
	"Password.min":      "Password must be at least 6 characters",
}

// Normalize trims the email and lowercases it.
func (f *SignInForm) Normalize() {
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
}

// Validate returns per-field messages, keyed "email" and "password", or nil
// when the form is acceptable.
func (f *SignInForm) Validate() map[string]string {
	msgs := validation.FieldMessages(validation.Validate.Struct(f), signInMessages)
	if len(msgs) == 0 {
		return nil
	}
	out := make(map[string]string, len(msgs))
	for field, msg := range msgs {
		out[strings.ToLower(field)] = msg
	}
	return out
}

// Authenticator checks local credentials.
type Authenticator struct {
	users UserLookup
}

// NewAuthenticator creates an Authenticator over users.
func NewAuthenticator(users UserLookup) *Authenticator {
	return &Authenticator{users: users}
}

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("tagdesk-placeholder"), bcrypt.DefaultCost)

// Authenticate returns the user for email when password matches.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user.PasswordHash == nil || *user.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// HashPassword returns the bcrypt hash stored for a local user.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
