package handlers

import (
	"net/http"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/request"
	"github.com/benvon/tagdesk/internal/session"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	// UploadPath is where signed-in users land.
	UploadPath = "/dashboard/upload"
	// SignInPath is the sign-in page.
	SignInPath = "/signin"

	notSignedInMessage = "You haven't logged in. Please log in to continue."
)

// PageHandler serves the static pages and the theme toggle.
type PageHandler struct {
	render *Renderer
	log    *zap.Logger
}

// NewPageHandler creates a new page handler
func NewPageHandler(render *Renderer, log *zap.Logger) *PageHandler {
	return &PageHandler{render: render, log: log}
}

// RegisterRoutes registers page routes on the root router
func (h *PageHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/", h.Home).Methods("GET")
	r.HandleFunc("/dashboard", h.Dashboard).Methods("GET")
	r.HandleFunc("/dashboard/{section:invoice|schedule|notification|settings}", h.Placeholder).Methods("GET")
	r.HandleFunc("/theme", h.ToggleTheme).Methods("POST")
}

// Home sends signed-in users to the upload page and asks everyone else to
// sign in.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if request.Authenticated(r) {
		http.Redirect(w, r, UploadPath, http.StatusFound)
		return
	}
	if sess := request.SessionFromContext(r); sess != nil {
		session.AddFlash(sess, models.FlashError, notSignedInMessage)
	}
	h.render.render(w, http.StatusOK, "home", h.render.base(w, r, "Please log in", ""))
}

// Dashboard renders the landing page of the dashboard.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render.render(w, http.StatusOK, "dashboard", h.render.base(w, r, "Dashboard", "dashboard"))
}

// Placeholder renders the sidebar sections that have no content yet.
func (h *PageHandler) Placeholder(w http.ResponseWriter, r *http.Request) {
	section := mux.Vars(r)["section"]
	h.render.render(w, http.StatusOK, "placeholder", h.render.base(w, r, titleize(section), section))
}

// ToggleTheme flips the session theme and returns to the referring page.
func (h *PageHandler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		h.render.renderError(w, r, http.StatusInternalServerError, "Session unavailable")
		return
	}
	sess.Theme = sess.Theme.Toggle()
	h.render.commit(w, r)
	h.log.Debug("theme_toggled", zap.String("theme", string(sess.Theme)))

	http.Redirect(w, r, localRedirect(r.Referer(), r.Host, "/"), http.StatusSeeOther)
}
