package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-docs/internal/dto"
	"github.com/noah-isme/sma-enrollment-docs/internal/service"
	"github.com/noah-isme/sma-enrollment-docs/pkg/response"
)

// RequirementHandler exposes the document requirement catalog.
type RequirementHandler struct {
	requirements *service.RequirementService
}

// NewRequirementHandler constructs RequirementHandler.
func NewRequirementHandler(requirements *service.RequirementService) *RequirementHandler {
	return &RequirementHandler{requirements: requirements}
}

// Resolve godoc
// @Summary Resolve document requirements
// @Tags Requirements
// @Produce json
// @Param gradeLevel query string true "Grade level"
// @Param enrollmentType query string false "Enrollment type"
// @Success 200 {object} response.Envelope
// @Router /requirements [get]
func (h *RequirementHandler) Resolve(c *gin.Context) {
	items, err := h.requirements.Resolve(c.Request.Context(), c.Query("gradeLevel"), c.Query("enrollmentType"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"count": len(items)})
}

// Catalog godoc
// @Summary List catalog entries including inactive ones
// @Tags Requirements
// @Produce json
// @Param gradeLevel query string false "Grade level"
// @Success 200 {object} response.Envelope
// @Router /requirements/catalog [get]
func (h *RequirementHandler) Catalog(c *gin.Context) {
	items, err := h.requirements.List(c.Request.Context(), c.Query("gradeLevel"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}

// Create godoc
// @Summary Create catalog entry
// @Tags Requirements
// @Accept json
// @Produce json
// @Param payload body dto.CreateRequirementRequest true "Requirement payload"
// @Success 201 {object} response.Envelope
// @Router /requirements [post]
func (h *RequirementHandler) Create(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.CreateRequirementRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.requirements.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update catalog entry
// @Tags Requirements
// @Accept json
// @Produce json
// @Param id path string true "Requirement ID"
// @Param payload body dto.UpdateRequirementRequest true "Requirement payload"
// @Success 200 {object} response.Envelope
// @Router /requirements/{id} [put]
func (h *RequirementHandler) Update(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.UpdateRequirementRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.requirements.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Deactivate godoc
// @Summary Deactivate catalog entry
// @Tags Requirements
// @Produce json
// @Param id path string true "Requirement ID"
// @Success 200 {object} response.Envelope
// @Router /requirements/{id} [delete]
func (h *RequirementHandler) Deactivate(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	item, err := h.requirements.Deactivate(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}
