package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/request"
	"github.com/benvon/tagdesk/internal/session"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// NavItem is one entry of the dashboard sidebar.
type NavItem struct {
	Key   string
	Label string
	Path  string
}

// Sidebar lists the dashboard menu in display order.
var Sidebar = []NavItem{
	{Key: "dashboard", Label: "Dashboard", Path: "/dashboard"},
	{Key: "upload", Label: "Upload", Path: "/dashboard/upload"},
	{Key: "invoice", Label: "Invoice", Path: "/dashboard/invoice"},
	{Key: "schedule", Label: "Schedule", Path: "/dashboard/schedule"},
	{Key: "notification", Label: "Notification", Path: "/dashboard/notification"},
	{Key: "settings", Label: "Settings", Path: "/dashboard/settings"},
}

// PageData carries the fields every page template uses.
type PageData struct {
	Title   string
	Nav     string
	Chrome  bool
	Theme   models.Theme
	User    *SessionUser
	Flashes []models.Flash
	Sidebar []NavItem
	Path    string
}

// SessionUser is the signed-in identity shown in the top bar.
type SessionUser struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Picture  string `json:"picture,omitempty"`
	Provider string `json:"provider,omitempty"`
}

func sessionUser(s *models.Session) *SessionUser {
	if !s.Authenticated() {
		return nil
	}
	return &SessionUser{Email: s.Email, Name: s.Name, Picture: s.Picture, Provider: s.Provider}
}

// Renderer parses the layout once and clones it for each page so that every
// page can define its own "content" block.
type Renderer struct {
	templates map[string]*template.Template
	sessions  *session.Manager
	log       *zap.Logger
}

// NewRenderer parses the embedded templates. It panics on a template error
// since those are compiled into the binary.
func NewRenderer(sessions *session.Manager, log *zap.Logger) *Renderer {
	funcMap := template.FuncMap{
		"initial":  initial,
		"titleize": titleize,
	}

	layout := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html"))

	pages := map[string]string{
		"home":        "templates/home.html",
		"signin":      "templates/signin.html",
		"dashboard":   "templates/dashboard.html",
		"upload":      "templates/upload.html",
		"placeholder": "templates/placeholder.html",
		"error":       "templates/error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layout.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{templates: templates, sessions: sessions, log: log}
}

// StaticHandler serves the embedded stylesheet and script under /static/.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// base fills the shared page fields from the request session. Pending
// flashes are consumed here, so the session is committed when any were shown.
func (rd *Renderer) base(w http.ResponseWriter, r *http.Request, title, nav string) PageData {
	data := PageData{
		Title:   title,
		Nav:     nav,
		Chrome:  strings.HasPrefix(r.URL.Path, "/dashboard"),
		Theme:   models.ThemeLight,
		Sidebar: Sidebar,
		Path:    r.URL.Path,
	}
	sess := request.SessionFromContext(r)
	if sess == nil {
		return data
	}
	if sess.Theme == models.ThemeDark {
		data.Theme = models.ThemeDark
	}
	data.User = sessionUser(sess)
	data.Flashes = session.PopFlashes(sess)
	if len(data.Flashes) > 0 && rd.sessions != nil {
		if err := rd.sessions.Commit(r.Context(), w, sess); err != nil {
			rd.log.Warn("session_commit_failed", zap.Error(err))
		}
	}
	return data
}

// render writes a full page. Templates run into a buffer first so a template
// failure still produces a clean 500.
func (rd *Renderer) render(w http.ResponseWriter, status int, name string, data any) {
	t, ok := rd.templates[name]
	if !ok {
		rd.log.Error("template_not_found", zap.String("template", name))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		rd.log.Error("template_execution_failed", zap.String("template", name), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// renderError answers with the JSON envelope for API callers and the error
// page for browsers.
func (rd *Renderer) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	if request.WantsJSON(r) {
		respondJSONError(w, status, http.StatusText(status), message)
		return
	}
	data := ErrorPageData{
		PageData:   rd.base(w, r, http.StatusText(status), ""),
		StatusCode: status,
		Message:    message,
	}
	rd.render(w, status, "error", data)
}

// NotFound is the router's fallback handler.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.renderError(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

// MethodNotAllowed is the router's handler for a known path with the wrong method.
func (rd *Renderer) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	rd.renderError(w, r, http.StatusMethodNotAllowed, "This action is not supported here.")
}

func initial(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "?"
	}
	return strings.ToUpper(string([]rune(s)[:1]))
}

func titleize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}
