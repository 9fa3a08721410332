package models

import (
	"time"

	"github.com/google/uuid"
)

// Theme is the color-theme preference stored on a session.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Toggle returns the opposite theme. Unknown values toggle to dark.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// FlashKind is the style of a transient notification.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashInfo    FlashKind = "info"
)

// Flash is a one-shot notification shown on the next rendered page.
type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
}

// Session is the server-side state behind the session cookie. A session
// exists for anonymous visitors too; UserID is uuid.Nil until sign-in.
type Session struct {
	ID         string    `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name,omitempty"`
	Picture    string    `json:"picture,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	Theme      Theme     `json:"theme"`
	OAuthState string    `json:"oauth_state,omitempty"`
	OAuthNonce string    `json:"oauth_nonce,omitempty"`
	Flashes    []Flash   `json:"flashes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Authenticated reports whether a user has signed in on this session.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != uuid.Nil
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
