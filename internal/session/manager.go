package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// CookieName names the cookie carrying the session id.
	CookieName = "tagdesk_session"
	// DefaultTTL is the sliding lifetime of a session.
	DefaultTTL = 24 * time.Hour
)

// Manager binds sessions to cookies.
type Manager struct {
	store  Store
	ttl    time.Duration
	secure bool
	log    *zap.Logger
	now    func() time.Time
}

// NewManager creates a Manager. secure marks the cookie Secure and should be
// set whenever the site is served over HTTPS.
func NewManager(store Store, ttl time.Duration, secure bool, log *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		store:  store,
		ttl:    ttl,
		secure: secure,
		log:    log,
		now:    time.Now,
	}
}

// New returns a fresh anonymous session. It is not saved until Commit.
func (m *Manager) New() *models.Session {
	now := m.now()
	return &models.Session{
		ID:        uuid.NewString(),
		Theme:     models.ThemeLight,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
}

// Load returns the session named by the request cookie. A missing, unknown
// or expired cookie yields a new anonymous session. On a store failure the
// new session is returned together with the error.
func (m *Manager) Load(r *http.Request) (*models.Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return m.New(), nil
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return m.New(), nil
	}
	sess, err := m.store.Get(r.Context(), cookie.Value)
	if errors.Is(err, ErrNotFound) {
		return m.New(), nil
	}
	if err != nil {
		return m.New(), err
	}
	return sess, nil
}

// Commit extends the session's expiry, saves it and (re)sets the cookie. It
// must be called before the response header is written.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, s *models.Session) error {
	s.ExpiresAt = m.now().Add(m.ttl)
	if err := m.store.Save(ctx, s); err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(s.ID, s.ExpiresAt))
	return nil
}

// Renew moves the session to a new id, dropping the old one. Call it when
// the session's privilege changes, such as on sign-in.
func (m *Manager) Renew(ctx context.Context, w http.ResponseWriter, s *models.Session) error {
	old := s.ID
	s.ID = uuid.NewString()
	if err := m.store.Delete(ctx, old); err != nil {
		m.log.Warn("failed_to_delete_previous_session", zap.Error(err))
	}
	return m.Commit(ctx, w, s)
}

// Destroy deletes the session and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, s *models.Session) error {
	http.SetCookie(w, m.cookie("", time.Unix(0, 0)))
	if s == nil {
		return nil
	}
	return m.store.Delete(ctx, s.ID)
}

func (m *Manager) cookie(value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if value == "" {
		c.MaxAge = -1
	}
	return c
}

// AddFlash queues a notification for the next rendered page.
func AddFlash(s *models.Session, kind models.FlashKind, message string) {
	s.Flashes = append(s.Flashes, models.Flash{Kind: kind, Message: message})
}

// PopFlashes returns and clears the queued notifications.
func PopFlashes(s *models.Session) []models.Flash {
	if s == nil {
		return nil
	}
	out := s.Flashes
	s.Flashes = nil
	return out
}
