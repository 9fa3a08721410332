package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system. A user signs in either through the
// configured identity provider (ProviderID set) or with a local password
// (PasswordHash set).
type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	ProviderID    *string   `json:"provider_id,omitempty"`
	Name          *string   `json:"name,omitempty"`
	Picture       *string   `json:"picture,omitempty"`
	PasswordHash  *string   `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DisplayName returns the user's name, falling back to the email address.
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}
