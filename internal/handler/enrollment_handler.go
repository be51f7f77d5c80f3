package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-docs/internal/dto"
	"github.com/noah-isme/sma-enrollment-docs/internal/service"
	"github.com/noah-isme/sma-enrollment-docs/pkg/response"
)

// EnrollmentHandler exposes readiness and workflow endpoints.
type EnrollmentHandler struct {
	workflow  *service.EnrollmentWorkflowService
	readiness *service.ReadinessService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(workflow *service.EnrollmentWorkflowService, readiness *service.ReadinessService) *EnrollmentHandler {
	return &EnrollmentHandler{workflow: workflow, readiness: readiness}
}

// Get godoc
// @Summary Get enrollment with its current documents
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	record, err := h.workflow.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// Readiness godoc
// @Summary Compute document readiness
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/readiness [get]
func (h *EnrollmentHandler) Readiness(c *gin.Context) {
	readiness, err := h.readiness.ComputeReadiness(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, readiness)
}

// Transition godoc
// @Summary Advance the enrollment workflow status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.TransitionStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/status [post]
func (h *EnrollmentHandler) Transition(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.TransitionStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.workflow.Transition(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
