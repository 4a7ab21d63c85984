package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	apperrors "github.com/urpt/student-rotation-service/internal/errors"
	"github.com/urpt/student-rotation-service/internal/importer"
	"github.com/urpt/student-rotation-service/internal/services"
	"github.com/urpt/student-rotation-service/internal/utils"
	"github.com/urpt/student-rotation-service/internal/workflow"
)

const (
	uploadField  = "csv_file"
	replaceField = "is_master_sheet"
	tokenField   = "_token"
	warnField    = "include_warnings"
)

// ImportHandler exposes the upload, preview and confirm workflow.
type ImportHandler struct {
	BaseHandler
	imports   *workflow.Orchestrator
	audit     services.ImportAuditService
	maxUpload int64
}

func NewImportHandler(imports *workflow.Orchestrator, audit services.ImportAuditService, maxUpload int64, logger utils.Logger) *ImportHandler {
	return &ImportHandler{
		BaseHandler: NewBaseHandler(logger),
		imports:     imports,
		audit:       audit,
		maxUpload:   maxUpload,
	}
}

// actionForm is the JSON body accepted by confirm and finish. Browsers post
// the same fields as a form.
type actionForm struct {
	Token           string `json:"_token"`
	IncludeWarnings bool   `json:"include_warnings"`
}

// Begin opens a new import session
// @Router /imports [post]
func (h *ImportHandler) Begin(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}

	view, err := h.imports.Begin(c.Request.Context(), user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.LogInfo(c, "Import session opened", "handle", view.Handle)
	c.JSON(http.StatusCreated, view)
}

// View renders the session identified by :handle
// @Router /imports/{handle} [get]
func (h *ImportHandler) View(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	handle := ParseStringIDParam(c, "handle")
	if handle == "" {
		return
	}

	view, err := h.imports.View(c.Request.Context(), user, handle)
	h.respondView(c, view, err)
}

// Upload receives the import file, validates it and stores the preview
// @Router /imports/{handle}/upload [post]
func (h *ImportHandler) Upload(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	handle := ParseStringIDParam(c, "handle")
	if handle == "" {
		return
	}

	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	in := workflow.UploadInput{}
	header, err := c.FormFile(uploadField)
	switch {
	case err == nil:
		var file multipart.File
		if file, err = header.Open(); err != nil {
			in.TransportErr = err
			break
		}
		defer file.Close()
		in.File = file
		in.FileName = header.Filename
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		// No file: the workflow answers with its own prompt.
	default:
		in.TransportErr = err
	}

	in.Token = c.PostForm(tokenField)
	in.ReplaceExisting = parseFormBool(c.PostForm(replaceField))

	h.LogRequest(c, "Import file uploaded", "handle", handle, "file_name", in.FileName, "replace", in.ReplaceExisting)
	view, err := h.imports.Upload(c.Request.Context(), user, handle, in)
	h.respondView(c, view, err)
}

// Confirm executes the stored batch
// @Router /imports/{handle}/confirm [post]
func (h *ImportHandler) Confirm(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	handle := ParseStringIDParam(c, "handle")
	if handle == "" {
		return
	}

	form, ok := h.bindAction(c)
	if !ok {
		return
	}

	view, err := h.imports.Confirm(c.Request.Context(), user, handle, workflow.ConfirmInput{
		Token:           form.Token,
		IncludeWarnings: form.IncludeWarnings,
	})
	h.respondView(c, view, err)
}

// Finish closes the session after a confirmed import
// @Router /imports/{handle}/finish [post]
func (h *ImportHandler) Finish(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	handle := ParseStringIDParam(c, "handle")
	if handle == "" {
		return
	}

	form, ok := h.bindAction(c)
	if !ok {
		return
	}

	view, err := h.imports.Finish(c.Request.Context(), user, handle, form.Token)
	h.respondView(c, view, err)
}

// Abandon drops every open import session of the caller
// @Router /imports [delete]
func (h *ImportHandler) Abandon(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}

	if err := h.imports.Abandon(c.Request.Context(), user); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Template downloads an empty import file
// @Router /imports/template [get]
func (h *ImportHandler) Template(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", "csv"))

	switch format {
	case "csv":
		c.Header("Content-Disposition", `attachment; filename="rotations-template.csv"`)
		c.Header("Content-Type", "text/csv; charset=utf-8")
		if err := importer.WriteTemplateCSV(c.Writer); err != nil {
			h.LogError(c, err, "Failed to write CSV template")
		}
	case "xlsx":
		c.Header("Content-Disposition", `attachment; filename="rotations-template.xlsx"`)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := importer.WriteTemplateXLSX(c.Writer); err != nil {
			h.LogError(c, err, "Failed to write XLSX template")
		}
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid format",
			Details: fmt.Sprintf("format must be csv or xlsx, got %q", format),
		})
	}
}

// ListRuns lists the caller's confirmed imports, newest first
// @Router /imports/runs [get]
func (h *ImportHandler) ListRuns(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}

	runs, err := h.audit.ListRuns(c.Request.Context(), user, parseIntQuery(c, "limit", 20))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns one import run
// @Router /imports/runs/{id} [get]
func (h *ImportHandler) GetRun(c *gin.Context) {
	user := mustUser(c)
	if user == nil {
		return
	}
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	run, err := h.audit.GetRun(c.Request.Context(), user, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *ImportHandler) bindAction(c *gin.Context) (actionForm, bool) {
	var form actionForm
	if c.ContentType() == binding.MIMEJSON {
		if err := c.ShouldBindJSON(&form); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return form, false
		}
		return form, true
	}

	form.Token = c.PostForm(tokenField)
	form.IncludeWarnings = parseFormBool(c.PostForm(warnField))
	return form, true
}

// respondView writes view with the status matching err. Rejected actions
// still carry a view so the client can show the notice and retry.
func (h *ImportHandler) respondView(c *gin.Context, view *workflow.View, err error) {
	if err == nil {
		c.JSON(http.StatusOK, view)
		return
	}
	if view == nil {
		h.handleServiceError(c, err)
		return
	}

	status := statusForCode(apperrors.CodeOf(err))
	h.LogWarn(c, "Import action rejected", "status_code", status, "error", err)
	c.JSON(status, view)
}
