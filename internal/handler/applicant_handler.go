package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/foster-pipeline-api/internal/dto"
	"github.com/noah-isme/foster-pipeline-api/internal/models"
	appErrors "github.com/noah-isme/foster-pipeline-api/pkg/errors"
	"github.com/noah-isme/foster-pipeline-api/pkg/export"
	"github.com/noah-isme/foster-pipeline-api/pkg/response"
)

type applicantService interface {
	List(ctx context.Context, filter dto.ApplicantFilter) ([]models.Applicant, *models.Pagination, *dto.SyncStatus, error)
	Get(ctx context.Context, email string) (*models.Applicant, error)
	SetStatus(ctx context.Context, email string, req dto.UpdateStatusRequest) (*models.Applicant, error)
	BulkSetStatus(ctx context.Context, req dto.BulkStatusRequest) (*dto.BulkStatusResult, error)
	PromoteCleared(ctx context.Context) (*dto.PromoteResult, error)
	Refresh(ctx context.Context) (*dto.SyncStatus, error)
	Flush(ctx context.Context) (*dto.SyncStatus, error)
	SyncState() *dto.SyncStatus
	Export(ctx context.Context, w io.Writer, filter dto.ApplicantFilter, renderer export.Renderer) error
}

// ApplicantHandler exposes the synchronized roster.
type ApplicantHandler struct {
	service applicantService
	now     func() time.Time
}

// NewApplicantHandler constructs the handler.
func NewApplicantHandler(svc applicantService) *ApplicantHandler {
	return &ApplicantHandler{service: svc, now: time.Now}
}

// List godoc
// @Summary List applicants
// @Description Roster with local status changes applied. meta reports sync state.
// @Tags Applicants
// @Produce json
// @Param status query []string false "Status filter (repeatable)" collectionFormat(multi)
// @Param need query []string false "Special needs, all required (repeatable)" collectionFormat(multi)
// @Param search query string false "Name or email substring"
// @Param sort query string false "name-asc, name-desc, date-asc, date-desc or availability-asc"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /applicants [get]
func (h *ApplicantHandler) List(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	items, pagination, state, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination, syncMeta(state))
}

// Get godoc
// @Summary Get applicant
// @Tags Applicants
// @Produce json
// @Param email path string true "Applicant email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applicants/{email} [get]
func (h *ApplicantHandler) Get(c *gin.Context) {
	applicant, err := h.service.Get(c.Request.Context(), c.Param("email"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}

// SetStatus godoc
// @Summary Move applicant
// @Description Applies the status locally and queues it for the directory.
// @Tags Applicants
// @Accept json
// @Produce json
// @Param email path string true "Applicant email"
// @Param payload body dto.UpdateStatusRequest true "Target status"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /applicants/{email}/status [put]
func (h *ApplicantHandler) SetStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	applicant, err := h.service.SetStatus(c.Request.Context(), c.Param("email"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, applicant, syncMeta(h.service.SyncState()))
}

// BulkSetStatus godoc
// @Summary Move several applicants
// @Tags Applicants
// @Accept json
// @Produce json
// @Param payload body dto.BulkStatusRequest true "Emails and target status"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /applicants/status [post]
func (h *ApplicantHandler) BulkSetStatus(c *gin.Context) {
	var req dto.BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk status payload"))
		return
	}
	result, err := h.service.BulkSetStatus(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result, syncMeta(h.service.SyncState()))
}

// PromoteCleared godoc
// @Summary Approve cleared applicants
// @Description Moves every new applicant without review flags to approved.
// @Tags Applicants
// @Produce json
// @Success 202 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /applicants/promote-cleared [post]
func (h *ApplicantHandler) PromoteCleared(c *gin.Context) {
	result, err := h.service.PromoteCleared(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result, syncMeta(h.service.SyncState()))
}

// Refresh godoc
// @Summary Reload roster
// @Description Fetches the roster from the directory. Failures are reported in last_error.
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applicants/refresh [post]
func (h *ApplicantHandler) Refresh(c *gin.Context) {
	state, err := h.service.Refresh(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Export godoc
// @Summary Export applicants
// @Tags Applicants
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param status query []string false "Status filter (repeatable)" collectionFormat(multi)
// @Param need query []string false "Special needs (repeatable)" collectionFormat(multi)
// @Param search query string false "Name or email substring"
// @Param sort query string false "Sort order"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /applicants/export [get]
func (h *ApplicantHandler) Export(c *gin.Context) {
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))
	renderer, ok := export.ForFormat(format)
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
		return
	}
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.service.Export(c.Request.Context(), &buf, filter, renderer); err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("applicants-%s.%s", h.now().Format("20060102"), renderer.Extension())
	response.Attachment(c, filename, renderer.ContentType(), buf.Bytes())
}

// Sync godoc
// @Summary Sync state
// @Description Loading flag, last error and queued status writes.
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync [get]
func (h *ApplicantHandler) Sync(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.SyncState(), nil)
}

// Flush godoc
// @Summary Flush queued writes
// @Tags Sync
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /sync/flush [post]
func (h *ApplicantHandler) Flush(c *gin.Context) {
	state, err := h.service.Flush(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

func bindFilter(c *gin.Context) (dto.ApplicantFilter, bool) {
	var filter dto.ApplicantFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return filter, false
	}
	return filter, true
}

func syncMeta(state *dto.SyncStatus) map[string]interface{} {
	if state == nil {
		return nil
	}
	meta := map[string]interface{}{
		"loading": state.Loading,
		"pending": state.Pending,
	}
	if state.LastError != "" {
		meta["last_error"] = state.LastError
	}
	return meta
}
