package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]*models.User

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if email == "broken@example.com" {
		return nil, errors.New("connection reset")
	}
	u, ok := f[email]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", sql.ErrNoRows)
	}
	return u, nil
}

func TestSignInForm_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		form SignInForm
		want map[string]string
	}{
		{"valid", SignInForm{Email: "a@b.co", Password: "secret"}, nil},
		{"empty", SignInForm{}, map[string]string{
			"email":    "Email is required",
			"password": "Password is required",
		}},
		{"bad email short password", SignInForm{Email: "nope", Password: "12345"}, map[string]string{
			"email":    "Invalid email format",
			"password": "Password must be at least 6 characters",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.form.Validate())
		})
	}
}

func TestSignInForm_Normalize(t *testing.T) {
	t.Parallel()
	f := SignInForm{Email: "  Ada@Example.COM "}
	f.Normalize()
	assert.Equal(t, "ada@example.com", f.Email)
}

func TestAuthenticator(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	users := fakeUsers{
		"ada@example.com":    {ID: uuid.New(), Email: "ada@example.com", PasswordHash: &hash},
		"google@example.com": {ID: uuid.New(), Email: "google@example.com"},
	}
	a := NewAuthenticator(users)
	ctx := context.Background()

	u, err := a.Authenticate(ctx, " ADA@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)

	for _, tc := range []struct{ email, password string }{
		{"ada@example.com", "wrong"},
		{"nobody@example.com", "correct horse"},
		{"google@example.com", "anything"},
	} {
		_, err := a.Authenticate(ctx, tc.email, tc.password)
		assert.ErrorIs(t, err, ErrInvalidCredentials, tc.email)
	}

	_, err = a.Authenticate(ctx, "broken@example.com", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestHashPassword_TooShort(t *testing.T) {
	t.Parallel()
	_, err := HashPassword("12345")
	assert.Error(t, err)
}
