package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-enrollment-docs/internal/middleware"
)

// Routes groups the handlers mounted by Register.
type Routes struct {
	Requirements *RequirementHandler
	Documents    *DocumentHandler
	ManualChecks *ManualCheckHandler
	Enrollments  *EnrollmentHandler
	Metrics      *MetricsHandler
}

// Register mounts the public probes on the engine and the API under prefix.
// auth must populate middleware.ContextUserKey.
func (rt Routes) Register(r *gin.Engine, prefix string, auth gin.HandlerFunc) {
	r.GET("/health", rt.Metrics.Health)
	r.GET("/ready", rt.Metrics.Ready)
	r.GET("/metrics", rt.Metrics.Prometheus)

	api := r.Group(prefix)
	api.Use(auth)
	staff := middleware.RequireStaff()

	requirements := api.Group("/requirements")
	requirements.GET("", rt.Requirements.Resolve)
	requirements.GET("/catalog", staff, rt.Requirements.Catalog)
	requirements.POST("", staff, rt.Requirements.Create)
	requirements.PUT("/:id", staff, rt.Requirements.Update)
	requirements.DELETE("/:id", staff, rt.Requirements.Deactivate)

	enrollments := api.Group("/enrollments/:id")
	enrollments.GET("", rt.Enrollments.Get)
	enrollments.GET("/readiness", rt.Enrollments.Readiness)
	enrollments.POST("/status", staff, rt.Enrollments.Transition)

	enrollments.GET("/documents", rt.Documents.ListCurrent)
	enrollments.GET("/documents/:type", rt.Documents.GetCurrent)
	enrollments.GET("/documents/:type/history", rt.Documents.History)
	enrollments.POST("/documents/:type/upload", rt.Documents.Upload)
	enrollments.POST("/documents/:type/resubmit", rt.Documents.Resubmit)

	enrollments.GET("/manual-checks", rt.ManualChecks.List)
	enrollments.POST("/manual-checks/:type/toggle", staff, rt.ManualChecks.Toggle)

	documents := api.Group("/documents/:versionId", staff)
	documents.POST("/verify", rt.Documents.Verify)
	documents.POST("/reject", rt.Documents.Reject)
	documents.POST("/physical-check", rt.Documents.CheckPhysical)
	documents.POST("/physical-missing", rt.Documents.MarkPhysicalMissing)
}
