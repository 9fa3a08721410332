package handlers

import (
	"errors"
	"net/http"

	"github.com/benvon/tagdesk/internal/importer"
	"github.com/benvon/tagdesk/internal/logger"
	"github.com/benvon/tagdesk/internal/request"
	"github.com/benvon/tagdesk/internal/tagging"
	"github.com/benvon/tagdesk/internal/validation"
	"github.com/benvon/tagdesk/internal/workspace"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// WorkspaceHandler exposes the session workspace as JSON.
type WorkspaceHandler struct {
	workspaces *workspace.Registry
	parser     *importer.Parser
	log        *zap.Logger
}

// NewWorkspaceHandler creates a new workspace API handler
func NewWorkspaceHandler(workspaces *workspace.Registry, parser *importer.Parser, log *zap.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces, parser: parser, log: log}
}

// RegisterRoutes registers workspace routes on the given router
// The router should already have the /api/v1/workspace prefix and match
// encoded paths, with row IDs and tags sent through url.PathEscape.
func (h *WorkspaceHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.GetWorkspace).Methods("GET")
	r.HandleFunc("", h.DeleteWorkspace).Methods("DELETE")
	r.HandleFunc("/upload", h.Upload).Methods("POST")
	r.HandleFunc("/reset", h.ResetSelections).Methods("POST")
	r.HandleFunc("/rows/{rowID}/available", h.Available).Methods("GET")
	r.HandleFunc("/rows/{rowID}/tags", h.SelectTag).Methods("POST")
	r.HandleFunc("/rows/{rowID}/tags", h.DeselectTag).Methods("DELETE")
	r.HandleFunc("/rows/{rowID}/tags/{tag}", h.DeselectTag).Methods("DELETE")
}

// WorkspaceResponse is the JSON form of a workspace.
type WorkspaceResponse struct {
	Loaded bool `json:"loaded"`
	*workspace.View
}

// SelectTagRequest is the body of a tag selection. Tag is a pointer so that
// an empty-string candidate can still be selected.
type SelectTagRequest struct {
	Tag *string `json:"tag" validate:"required"`
}

func workspaceResponse(v *workspace.View) WorkspaceResponse {
	if v == nil {
		return WorkspaceResponse{}
	}
	return WorkspaceResponse{Loaded: v.Loaded(), View: v}
}

// GetWorkspace returns the loaded file and every row view.
func (h *WorkspaceHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	respondJSON(w, http.StatusOK, workspaceResponse(h.workspaces.View(sess.ID)))
}

// DeleteWorkspace discards the loaded file.
func (h *WorkspaceHandler) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	removed := h.workspaces.Remove(sess.ID)
	respondJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

// Upload replaces the workspace with the posted file.
func (h *WorkspaceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}

	batch, err := parseUpload(r, h.parser)
	if err != nil {
		msg, status := uploadErrorMessage(err)
		if !errors.Is(err, errNoFile) {
			h.workspaces.Remove(sess.ID)
		}
		if status == http.StatusInternalServerError {
			h.log.Error("upload_failed", zap.Error(err))
		} else {
			h.log.Info("upload_rejected", zap.String("reason", logger.SanitizeError(err)))
		}
		respondJSONError(w, status, http.StatusText(status), msg)
		return
	}

	view := h.workspaces.Load(sess.ID, batch)
	h.log.Info("file_uploaded",
		zap.String("file_name", logger.SanitizeFileName(batch.FileName)),
		zap.String("format", string(batch.Format)),
		zap.Int("rows", len(batch.Rows)),
	)
	respondJSON(w, http.StatusCreated, workspaceResponse(view))
}

// ResetSelections clears every row's selected tags and keeps the rows.
func (h *WorkspaceHandler) ResetSelections(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	if err := h.workspaces.ResetSelections(sess.ID); err != nil {
		h.respondTagError(w, err, "", "")
		return
	}
	respondJSON(w, http.StatusOK, workspaceResponse(h.workspaces.View(sess.ID)))
}

// Available lists the tags a row can still take.
func (h *WorkspaceHandler) Available(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}
	rowID, _ := pathVar(r, "rowID")
	tags, err := h.workspaces.Available(sess.ID, rowID)
	if err != nil {
		h.respondTagError(w, err, rowID, "")
		return
	}
	respondJSON(w, http.StatusOK, tags)
}

// SelectTag marks a candidate tag as selected on a row.
func (h *WorkspaceHandler) SelectTag(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}

	var req SelectTagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "tag is required")
		return
	}

	rowID, _ := pathVar(r, "rowID")
	if err := h.workspaces.Select(sess.ID, rowID, *req.Tag); err != nil {
		h.respondTagError(w, err, rowID, *req.Tag)
		return
	}
	h.respondRow(w, sess.ID, rowID)
}

// DeselectTag removes a tag from a row. The tag comes from the path or, for
// values a path cannot carry, the "tag" query parameter.
func (h *WorkspaceHandler) DeselectTag(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}

	tag, ok := pathVar(r, "tag")
	if !ok {
		values, present := r.URL.Query()["tag"]
		if !present || len(values) == 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "tag is required")
			return
		}
		tag = values[0]
	}

	rowID, _ := pathVar(r, "rowID")
	if err := h.workspaces.Deselect(sess.ID, rowID, tag); err != nil {
		h.respondTagError(w, err, rowID, tag)
		return
	}
	h.respondRow(w, sess.ID, rowID)
}

func (h *WorkspaceHandler) respondRow(w http.ResponseWriter, sessionID, rowID string) {
	if v := h.workspaces.View(sessionID); v != nil {
		for _, row := range v.Rows {
			if row.Row.ID == rowID {
				respondJSON(w, http.StatusOK, row)
				return
			}
		}
	}
	// The workspace was replaced between the change and the read.
	respondJSONError(w, http.StatusConflict, "Conflict", "workspace changed")
}

// respondTagError maps a rejected change: unknown rows are 404, tags that
// are not candidates of the row are 422.
func (h *WorkspaceHandler) respondTagError(w http.ResponseWriter, err error, rowID, tag string) {
	logTagError(h.log, err, rowID, tag)
	switch {
	case errors.Is(err, workspace.ErrNoWorkspace):
		respondJSONError(w, http.StatusNotFound, "Not Found", "no file is loaded")
	case errors.Is(err, tagging.ErrUnknownRow):
		respondJSONError(w, http.StatusNotFound, "Not Found", "unknown row")
	case errors.Is(err, tagging.ErrUnknownTag):
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", "tag is not a candidate for this row")
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "failed to update tags")
	}
}
