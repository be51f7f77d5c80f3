package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-docs/internal/dto"
	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/service"
	"github.com/noah-isme/sma-enrollment-docs/pkg/response"
)

// DocumentHandler exposes document submission and verification endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// ListCurrent godoc
// @Summary List current document versions of an enrollment
// @Tags Documents
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/documents [get]
func (h *DocumentHandler) ListCurrent(c *gin.Context) {
	docs, err := h.documents.ListCurrent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, docs)
}

// GetCurrent godoc
// @Summary Get the current version of a document
// @Tags Documents
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param type path string true "Document type"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollments/{id}/documents/{type} [get]
func (h *DocumentHandler) GetCurrent(c *gin.Context) {
	doc, err := h.documents.GetCurrent(c.Request.Context(), c.Param("id"), c.Param("type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

// History godoc
// @Summary Get the version chain of a document, oldest first
// @Tags Documents
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param type path string true "Document type"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/documents/{type}/history [get]
func (h *DocumentHandler) History(c *gin.Context) {
	history, err := h.documents.History(c.Request.Context(), c.Param("id"), c.Param("type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, map[string]interface{}{"versions": len(history)})
}

// Upload godoc
// @Summary Upload a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param type path string true "Document type"
// @Param payload body dto.SubmitDocumentRequest true "Submission"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/documents/{type}/upload [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	h.submit(c, h.documents.Upload)
}

// Resubmit godoc
// @Summary Resubmit a rejected document
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param type path string true "Document type"
// @Param payload body dto.SubmitDocumentRequest true "Submission"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/documents/{type}/resubmit [post]
func (h *DocumentHandler) Resubmit(c *gin.Context) {
	h.submit(c, h.documents.Resubmit)
}

type submitFunc func(ctx context.Context, enrollmentID, documentType, fileRef string, method models.SubmissionMethod, actor string) (*models.DocumentVersion, error)

func (h *DocumentHandler) submit(c *gin.Context, fn submitFunc) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.SubmitDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	doc, err := fn(c.Request.Context(), c.Param("id"), c.Param("type"), req.FileRef, req.SubmissionMethod, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Verify godoc
// @Summary Verify the current version
// @Tags Verification
// @Accept json
// @Produce json
// @Param versionId path string true "Document version ID"
// @Param payload body dto.VerifyDocumentRequest false "Notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{versionId}/verify [post]
func (h *DocumentHandler) Verify(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.VerifyDocumentRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	doc, err := h.documents.Verify(c.Request.Context(), c.Param("versionId"), req.Notes, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

// Reject godoc
// @Summary Reject the current version
// @Tags Verification
// @Accept json
// @Produce json
// @Param versionId path string true "Document version ID"
// @Param payload body dto.RejectDocumentRequest true "Reason and notes"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{versionId}/reject [post]
func (h *DocumentHandler) Reject(c *gin.Context) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	var req dto.RejectDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	doc, err := h.documents.Reject(c.Request.Context(), c.Param("versionId"), req.Reason, req.Notes, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}

// CheckPhysical godoc
// @Summary Record the in-person check of the paper copy
// @Tags Verification
// @Produce json
// @Param versionId path string true "Document version ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{versionId}/physical-check [post]
func (h *DocumentHandler) CheckPhysical(c *gin.Context) {
	h.physical(c, h.documents.CheckPhysical)
}

// MarkPhysicalMissing godoc
// @Summary Record that the paper copy is missing
// @Tags Verification
// @Produce json
// @Param versionId path string true "Document version ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{versionId}/physical-missing [post]
func (h *DocumentHandler) MarkPhysicalMissing(c *gin.Context) {
	h.physical(c, h.documents.MarkPhysicalMissing)
}

func (h *DocumentHandler) physical(c *gin.Context, fn func(ctx context.Context, versionID, actor string) (*models.DocumentVersion, error)) {
	actor, ok := actorID(c)
	if !ok {
		return
	}
	doc, err := fn(c.Request.Context(), c.Param("versionId"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, doc)
}
