package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-docs/internal/service"
	"github.com/noah-isme/sma-enrollment-docs/pkg/response"
)

// ManualCheckHandler exposes the manual check register.
type ManualCheckHandler struct {
	checks *service.ManualCheckService
}

// NewManualCheckHandler constructs ManualCheckHandler.
func NewManualCheckHandler(checks *service.ManualCheckService) *ManualCheckHandler {
	return &ManualCheckHandler{checks: checks}
}

// Toggle godoc
// @Summary Toggle the in-person check of a requirement
// @Tags Manual Checks
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param type path string true "Document type"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/manual-checks/{type}/toggle [post]
func (h *ManualCheckHandler) Toggle(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	result, err := h.checks.Toggle(c.Request.Context(), c.Param("id"), c.Param("type"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// List godoc
// @Summary List manual checks of an enrollment
// @Tags Manual Checks
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/manual-checks [get]
func (h *ManualCheckHandler) List(c *gin.Context) {
	entries, err := h.checks.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}
