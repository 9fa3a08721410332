package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/benvon/tagdesk/internal/logger"
	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/request"
	"github.com/benvon/tagdesk/internal/services/accounts"
	"github.com/benvon/tagdesk/internal/services/oidc"
	"github.com/benvon/tagdesk/internal/session"
	"github.com/benvon/tagdesk/internal/workspace"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ProviderPassword marks sessions signed in with a local password.
const ProviderPassword = "password"

// IdentityProvider runs the redirect sign-in flow against an external
// provider.
type IdentityProvider interface {
	Name() string
	AuthURL(ctx context.Context, state, nonce string) (string, error)
	Complete(ctx context.Context, code, nonce string) (*models.JWTClaims, error)
}

// PasswordAuthenticator checks local credentials.
type PasswordAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// IdentityStore records users coming back from the identity provider.
type IdentityStore interface {
	UpsertFromClaims(ctx context.Context, claims *models.JWTClaims) (*models.User, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	render     *Renderer
	sessions   *session.Manager
	provider   IdentityProvider
	passwords  PasswordAuthenticator
	users      IdentityStore
	workspaces *workspace.Registry
	log        *zap.Logger
}

// NewAuthHandler creates a new auth handler. provider may be nil when no
// identity provider is configured.
func NewAuthHandler(render *Renderer, sessions *session.Manager, provider IdentityProvider, passwords PasswordAuthenticator, users IdentityStore, workspaces *workspace.Registry, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		render:     render,
		sessions:   sessions,
		provider:   provider,
		passwords:  passwords,
		users:      users,
		workspaces: workspaces,
		log:        log,
	}
}

// RegisterRoutes registers the browser sign-in routes on the root router
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/signin", h.SignInPage).Methods("GET")
	r.HandleFunc("/signin", h.SignIn).Methods("POST")
	r.HandleFunc("/auth/oidc/login", h.OIDCLogin).Methods("GET")
	r.HandleFunc("/auth/oidc/callback", h.OIDCCallback).Methods("GET")
	r.HandleFunc("/signout", h.SignOut).Methods("POST")
}

// RegisterAPIRoutes registers auth routes on the given router
// The router should already have the /api/v1/auth prefix
func (h *AuthHandler) RegisterAPIRoutes(r *mux.Router) {
	r.HandleFunc("/me", h.GetMe).Methods("GET")
}

// SignInPageData is the template data for the sign-in page.
type SignInPageData struct {
	PageData
	ProviderLabel string
	Email         string
	Errors        map[string]string
}

func (h *AuthHandler) signInPage(w http.ResponseWriter, r *http.Request, status int, email string, errs map[string]string) {
	data := SignInPageData{
		PageData: h.render.base(w, r, "Sign In", ""),
		Email:    email,
		Errors:   errs,
	}
	if h.provider != nil {
		data.ProviderLabel = titleize(h.provider.Name())
	}
	h.render.render(w, status, "signin", data)
}

// SignInPage renders the sign-in form.
func (h *AuthHandler) SignInPage(w http.ResponseWriter, r *http.Request) {
	if request.Authenticated(r) {
		http.Redirect(w, r, UploadPath, http.StatusFound)
		return
	}
	h.signInPage(w, r, http.StatusOK, "", nil)
}

// SignIn checks the email/password form.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		h.render.renderError(w, r, http.StatusInternalServerError, "Session unavailable")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.render.renderError(w, r, http.StatusBadRequest, "Invalid form submission")
		return
	}

	form := accounts.SignInForm{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}
	form.Normalize()
	if errs := form.Validate(); errs != nil {
		session.AddFlash(sess, models.FlashError, "Please fix the errors in the form")
		h.signInPage(w, r, http.StatusUnprocessableEntity, form.Email, errs)
		return
	}

	user, err := h.passwords.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidCredentials) {
			h.log.Info("sign_in_rejected",
				zap.String("email", logger.MaskEmail(form.Email)),
				zap.String("client_ip", request.ClientIP(r)),
			)
			session.AddFlash(sess, models.FlashError, "Invalid email or password")
			h.signInPage(w, r, http.StatusUnauthorized, form.Email, nil)
			return
		}
		h.log.Error("sign_in_failed", zap.Error(err))
		h.render.renderError(w, r, http.StatusInternalServerError, "Sign in is unavailable right now.")
		return
	}

	h.establish(w, r, sess, user, ProviderPassword)
}

// OIDCLogin starts the identity provider flow.
func (h *AuthHandler) OIDCLogin(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil || h.provider == nil {
		h.render.redirectWithFlash(w, r, models.FlashError, "Single sign-on is not available.", SignInPath)
		return
	}

	state, err := oidc.RandomToken()
	if err != nil {
		h.render.renderError(w, r, http.StatusInternalServerError, "Could not start sign in")
		return
	}
	nonce, err := oidc.RandomToken()
	if err != nil {
		h.render.renderError(w, r, http.StatusInternalServerError, "Could not start sign in")
		return
	}

	target, err := h.provider.AuthURL(r.Context(), state, nonce)
	if err != nil {
		h.log.Error("oidc_login_unavailable", zap.String("provider", h.provider.Name()), zap.Error(err))
		h.render.redirectWithFlash(w, r, models.FlashError, "Single sign-on is not available.", SignInPath)
		return
	}

	sess.OAuthState = state
	sess.OAuthNonce = nonce
	if err := h.sessions.Commit(r.Context(), w, sess); err != nil {
		h.log.Error("session_commit_failed", zap.Error(err))
		h.render.renderError(w, r, http.StatusInternalServerError, "Could not start sign in")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// OIDCCallback finishes the identity provider flow.
func (h *AuthHandler) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil || h.provider == nil {
		h.render.redirectWithFlash(w, r, models.FlashError, "Single sign-on is not available.", SignInPath)
		return
	}

	q := r.URL.Query()
	state, nonce := sess.OAuthState, sess.OAuthNonce
	sess.OAuthState, sess.OAuthNonce = "", ""

	if providerErr := q.Get("error"); providerErr != "" {
		h.log.Info("oidc_callback_denied", zap.String("error", logger.SanitizeString(providerErr, 100)))
		h.render.redirectWithFlash(w, r, models.FlashError, "Sign in was cancelled.", SignInPath)
		return
	}
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(q.Get("state"))) != 1 {
		h.log.Warn("security_event",
			zap.String("event_type", "oidc_state_mismatch"),
			zap.String("client_ip", request.ClientIP(r)),
		)
		h.render.redirectWithFlash(w, r, models.FlashError, "Sign in failed. Please try again.", SignInPath)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.render.redirectWithFlash(w, r, models.FlashError, "Sign in failed. Please try again.", SignInPath)
		return
	}

	claims, err := h.provider.Complete(r.Context(), code, nonce)
	if err != nil {
		h.log.Warn("oidc_callback_failed", zap.String("provider", h.provider.Name()), zap.Error(err))
		h.render.redirectWithFlash(w, r, models.FlashError, "Sign in failed. Please try again.", SignInPath)
		return
	}

	user, err := h.users.UpsertFromClaims(r.Context(), claims)
	if err != nil {
		h.log.Error("failed_to_record_user", zap.Error(err))
		h.render.redirectWithFlash(w, r, models.FlashError, "Sign in failed. Please try again.", SignInPath)
		return
	}
	if user.Picture == nil && claims.Picture != "" {
		user.Picture = &claims.Picture
	}

	h.establish(w, r, sess, user, h.provider.Name())
}

// establish binds user to the session under a fresh session id.
func (h *AuthHandler) establish(w http.ResponseWriter, r *http.Request, sess *models.Session, user *models.User, provider string) {
	sess.UserID = user.ID
	sess.Email = user.Email
	sess.Name = user.DisplayName()
	sess.Picture = ""
	if user.Picture != nil {
		sess.Picture = *user.Picture
	}
	sess.Provider = provider
	session.AddFlash(sess, models.FlashSuccess, "Sign in successful!")

	if err := h.sessions.Renew(r.Context(), w, sess); err != nil {
		h.log.Error("session_commit_failed", zap.Error(err))
		h.render.renderError(w, r, http.StatusInternalServerError, "Could not complete sign in")
		return
	}
	h.log.Info("user_signed_in",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", provider),
	)
	http.Redirect(w, r, UploadPath, http.StatusSeeOther)
}

// SignOut drops the user's workspace and identity. The theme survives.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		http.Redirect(w, r, SignInPath, http.StatusSeeOther)
		return
	}
	if h.workspaces != nil {
		h.workspaces.Remove(sess.ID)
	}
	if sess.Authenticated() {
		h.log.Info("user_signed_out", zap.String("user_id", sess.UserID.String()))
	}

	id, theme := sess.ID, sess.Theme
	*sess = *h.sessions.New()
	sess.ID, sess.Theme = id, theme
	session.AddFlash(sess, models.FlashInfo, "You have been signed out.")
	if err := h.sessions.Renew(r.Context(), w, sess); err != nil {
		h.log.Error("session_commit_failed", zap.Error(err))
	}
	http.Redirect(w, r, SignInPath, http.StatusSeeOther)
}

// GetMe returns current user information
func (h *AuthHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(request.SessionFromContext(r))
	if user == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	respondJSON(w, http.StatusOK, user)
}
