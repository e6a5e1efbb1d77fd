package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/odl-api/internal/dto"
	"github.com/noah-isme/odl-api/internal/models"
	appErrors "github.com/noah-isme/odl-api/pkg/errors"
	"github.com/noah-isme/odl-api/pkg/response"
)

type approvalService interface {
	Decide(ctx context.Context, submissionID string, stage models.Stage, req dto.DecisionRequest, actor *models.JWTClaims) (*models.Submission, error)
	Resubmit(ctx context.Context, submissionID string, req dto.ResubmitRequest, actor *models.JWTClaims) (*models.Submission, error)
	Projection(ctx context.Context, submissionID string, actor *models.JWTClaims) (*dto.ApprovalProjection, error)
}

// ApprovalHandler exposes REST endpoints for the approval workflow.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler constructs the handler.
func NewApprovalHandler(service approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: service}
}

// Decide godoc
// @Summary Approve or reject a submission at a stage
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param stage path string true "Stage name"
// @Param payload body dto.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions/{id}/approvals/{stage} [post]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	stage := models.Stage(strings.ToUpper(strings.TrimSpace(c.Param("stage"))))
	sub, err := h.service.Decide(c.Request.Context(), c.Param("id"), stage, req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Resubmit godoc
// @Summary Resubmit a revision-requested submission
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.ResubmitRequest true "Resubmission payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /submissions/{id}/resubmit [post]
func (h *ApprovalHandler) Resubmit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ResubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resubmission payload"))
		return
	}
	sub, err := h.service.Resubmit(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sub, nil)
}

// Projection godoc
// @Summary Get the approval state of a submission
// @Tags Approvals
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /submissions/{id}/approvals [get]
func (h *ApprovalHandler) Projection(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	projection, err := h.service.Projection(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, projection, nil)
}
