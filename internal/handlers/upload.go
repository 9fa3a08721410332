package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/benvon/tagdesk/internal/importer"
	"github.com/benvon/tagdesk/internal/logger"
	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/request"
	"github.com/benvon/tagdesk/internal/tagging"
	"github.com/benvon/tagdesk/internal/workspace"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// FileField is the multipart field that carries the uploaded sheet.
const FileField = "file"

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temporary files.
const multipartMemory = 1 << 20

var (
	errNoFile    = errors.New("no file was uploaded")
	errBadUpload = errors.New("malformed upload")
)

// UploadHandler serves the upload page and its form actions.
type UploadHandler struct {
	render     *Renderer
	workspaces *workspace.Registry
	parser     *importer.Parser
	log        *zap.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(render *Renderer, workspaces *workspace.Registry, parser *importer.Parser, log *zap.Logger) *UploadHandler {
	return &UploadHandler{render: render, workspaces: workspaces, parser: parser, log: log}
}

// RegisterRoutes registers upload routes on the given router
// The router should already have the /dashboard/upload prefix
func (h *UploadHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Page).Methods("GET")
	r.HandleFunc("", h.Upload).Methods("POST")
	r.HandleFunc("/remove", h.Remove).Methods("POST")
	r.HandleFunc("/tags", h.SelectTag).Methods("POST")
	r.HandleFunc("/tags/remove", h.DeselectTag).Methods("POST")
}

// UploadPageData is the template data for the upload page.
type UploadPageData struct {
	PageData
	Accept    string
	Workspace *workspace.View
}

// Page renders the upload form and, when a file is loaded, its rows.
func (h *UploadHandler) Page(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	view := &workspace.View{}
	if sess != nil {
		if v := h.workspaces.View(sess.ID); v != nil {
			view = v
		}
	}
	data := UploadPageData{
		PageData:  h.render.base(w, r, "Upload CSV", "upload"),
		Accept:    strings.Join(importer.AcceptedExtensions, ","),
		Workspace: view,
	}
	h.render.render(w, http.StatusOK, "upload", data)
}

// Upload parses the submitted sheet into the session's workspace. Any
// rejected upload other than an empty form leaves no file loaded.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		h.render.renderError(w, r, http.StatusInternalServerError, "Session unavailable")
		return
	}

	batch, err := parseUpload(r, h.parser)
	if err != nil {
		msg, status := uploadErrorMessage(err)
		if status == http.StatusInternalServerError {
			h.log.Error("upload_failed", zap.Error(err))
		} else {
			h.log.Info("upload_rejected", zap.String("reason", logger.SanitizeError(err)))
		}
		if !errors.Is(err, errNoFile) {
			h.workspaces.Remove(sess.ID)
		}
		h.render.redirectWithFlash(w, r, models.FlashError, msg, UploadPath)
		return
	}

	h.workspaces.Load(sess.ID, batch)
	h.log.Info("file_uploaded",
		zap.String("file_name", logger.SanitizeFileName(batch.FileName)),
		zap.String("format", string(batch.Format)),
		zap.Int("rows", len(batch.Rows)),
	)
	h.render.redirectWithFlash(w, r, models.FlashSuccess,
		fmt.Sprintf("Uploaded %s (%d rows)", batch.FileName, len(batch.Rows)), UploadPath)
}

// Remove discards the loaded file.
func (h *UploadHandler) Remove(w http.ResponseWriter, r *http.Request) {
	sess := request.SessionFromContext(r)
	if sess != nil {
		h.workspaces.Remove(sess.ID)
	}
	http.Redirect(w, r, UploadPath, http.StatusSeeOther)
}

// Row IDs come from the uploaded file and may hold any text, so the page
// forms post them as the "row" field rather than in the path.
const rowField = "row"

// SelectTag adds the posted tag to a row's selection.
func (h *UploadHandler) SelectTag(w http.ResponseWriter, r *http.Request) {
	h.changeTag(w, r, h.workspaces.Select)
}

// DeselectTag removes the posted tag from a row's selection.
func (h *UploadHandler) DeselectTag(w http.ResponseWriter, r *http.Request) {
	h.changeTag(w, r, h.workspaces.Deselect)
}

func (h *UploadHandler) changeTag(w http.ResponseWriter, r *http.Request, op func(sessionID, rowID, tag string) error) {
	sess := request.SessionFromContext(r)
	if sess == nil {
		h.render.renderError(w, r, http.StatusInternalServerError, "Session unavailable")
		return
	}
	if err := r.ParseForm(); err != nil {
		h.render.renderError(w, r, http.StatusBadRequest, "Invalid form submission")
		return
	}
	row, tag := r.PostForm[rowField], r.PostForm["tag"]
	if len(row) == 0 || len(tag) == 0 {
		http.Redirect(w, r, UploadPath, http.StatusSeeOther)
		return
	}
	rowID := row[0]

	if err := op(sess.ID, rowID, tag[0]); err != nil {
		logTagError(h.log, err, rowID, tag[0])
		h.render.redirectWithFlash(w, r, models.FlashError, "That row or tag is no longer available. The page has been refreshed.", UploadPath)
		return
	}
	http.Redirect(w, r, UploadPath+rowAnchor(h.workspaces.View(sess.ID), rowID), http.StatusSeeOther)
}

// rowAnchor is the fragment of a row's table line, keyed by its 1-based
// position so that any ID yields a valid URL.
func rowAnchor(v *workspace.View, rowID string) string {
	if v == nil {
		return ""
	}
	for _, rv := range v.Rows {
		if rv.Row.ID == rowID {
			return "#row-" + strconv.Itoa(rv.Index)
		}
	}
	return ""
}

// logTagError records a rejected selection change. Unknown rows and tags are
// stale pages or misbehaving clients, never user input the UI offers.
func logTagError(log *zap.Logger, err error, rowID, tag string) {
	var pe *tagging.PreconditionError
	if errors.As(err, &pe) || errors.Is(err, workspace.ErrNoWorkspace) {
		log.Warn("tag_precondition_violation",
			zap.String("row_id", logger.SanitizeString(rowID, 100)),
			zap.String("tag", logger.SanitizeString(tag, 100)),
			zap.Error(err),
		)
		return
	}
	log.Error("tag_update_failed", zap.Error(err))
}

// parseUpload reads the multipart file field and hands it to the parser.
func parseUpload(r *http.Request, parser *importer.Parser) (*importer.Batch, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, errNoFile
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errBadUpload, err)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile(FileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errNoFile
		}
		return nil, fmt.Errorf("%w: %v", errBadUpload, err)
	}
	defer func(f multipart.File) { _ = f.Close() }(file)

	return parser.Parse(logger.SanitizeFileName(header.Filename), file)
}

// uploadErrorMessage maps an upload failure to a user-facing message and
// the status an API caller should see.
func uploadErrorMessage(err error) (string, int) {
	var pe *importer.ParseError
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, errNoFile):
		return "Please choose a file to upload.", http.StatusBadRequest
	case errors.Is(err, errBadUpload):
		return "The upload could not be read. Please try again.", http.StatusBadRequest
	case errors.As(err, &maxBytesErr), errors.Is(err, multipart.ErrMessageTooLarge), errors.Is(err, importer.ErrTooLarge):
		return "The file is too large.", http.StatusRequestEntityTooLarge
	case errors.As(err, &pe):
		return pe.Error(), http.StatusUnprocessableEntity
	default:
		return "The file could not be read.", http.StatusInternalServerError
	}
}
