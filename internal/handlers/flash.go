package handlers

import (
	"net/http"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/request"
	"github.com/benvon/tagdesk/internal/session"
	"go.uber.org/zap"
)

// commit saves the request session. Failures are logged; the response
// carries on without the update.
func (rd *Renderer) commit(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil || rd.sessions == nil {
		return
	}
	if err := rd.sessions.Commit(r.Context(), w, sess); err != nil {
		rd.log.Error("session_commit_failed", zap.Error(err))
	}
}

// redirectWithFlash queues a toast for the next page and redirects with 303
// so that a form POST becomes a GET.
func (rd *Renderer) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind models.FlashKind, message, target string) {
	if sess := request.SessionFromContext(r); sess != nil {
		session.AddFlash(sess, kind, message)
		rd.commit(w, r)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
