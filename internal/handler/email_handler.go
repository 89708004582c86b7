package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/foster-pipeline-api/internal/dto"
	appErrors "github.com/noah-isme/foster-pipeline-api/pkg/errors"
	"github.com/noah-isme/foster-pipeline-api/pkg/response"
)

type emailService interface {
	Recipients(ctx context.Context, status string) (*dto.RecipientList, error)
	Send(ctx context.Context, req dto.SendEmailRequest) (*dto.SendEmailResult, error)
}

// EmailHandler exposes the foster interest mailing.
type EmailHandler struct {
	service emailService
}

// NewEmailHandler constructs the handler.
func NewEmailHandler(svc emailService) *EmailHandler {
	return &EmailHandler{service: svc}
}

// Recipients godoc
// @Summary Mailing candidates
// @Description Applicants at a status, split into cleared and flagged rows. Only flagged rows can be mailed.
// @Tags Emails
// @Produce json
// @Param status query string false "Applicant status"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /emails/recipients [get]
func (h *EmailHandler) Recipients(c *gin.Context) {
	list, err := h.service.Recipients(c.Request.Context(), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list, nil)
}

// Send godoc
// @Summary Send interest mailing
// @Description Mails the selected rows, then moves them to move_to (in-progress by default).
// @Tags Emails
// @Accept json
// @Produce json
// @Param payload body dto.SendEmailRequest true "Mailing"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /emails/send [post]
func (h *EmailHandler) Send(c *gin.Context) {
	var req dto.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid email payload"))
		return
	}
	result, err := h.service.Send(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
