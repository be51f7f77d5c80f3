package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-docs/internal/dto"
	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository"
	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
)

type enrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentRecord, error)
	UpdateStatus(ctx context.Context, params repository.EnrollmentStatusUpdate) error
}

type readinessCalculator interface {
	ComputeReadiness(ctx context.Context, enrollmentID string) (*dto.Readiness, error)
}

// EnrollmentWorkflowService advances the manually driven enrollment status.
// Readiness is consulted but only gates approval unless overridden.
type EnrollmentWorkflowService struct {
	enrollments enrollmentStore
	readiness   readinessCalculator
	documents   currentDocuments
	events      *EventEmitter
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewEnrollmentWorkflowService constructs the service.
func NewEnrollmentWorkflowService(enrollments enrollmentStore, readiness readinessCalculator, documents currentDocuments, events *EventEmitter, metrics *MetricsService, logger *zap.Logger) *EnrollmentWorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentWorkflowService{
		enrollments: enrollments,
		readiness:   readiness,
		documents:   documents,
		events:      events,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Get returns the enrollment with its current document versions.
func (s *EnrollmentWorkflowService) Get(ctx context.Context, enrollmentID string) (*models.EnrollmentRecord, error) {
	record, err := s.load(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	docs, err := s.documents.ListCurrent(ctx, record.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list current documents")
	}
	record.Documents = docs
	return record, nil
}

// Transition moves the enrollment along one legal workflow edge.
func (s *EnrollmentWorkflowService) Transition(ctx context.Context, enrollmentID string, req dto.TransitionStatusRequest, actor string) (*dto.TransitionStatusResponse, error) {
	resp, err := s.transition(ctx, enrollmentID, req, actor)
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Status < 500 {
			s.metrics.RecordRejectedTransition(models.EventWorkflowTransition, appErr.Code)
		} else {
			s.logger.Error("workflow transition failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		}
		return nil, err
	}
	return resp, nil
}

func (s *EnrollmentWorkflowService) transition(ctx context.Context, enrollmentID string, req dto.TransitionStatusRequest, actor string) (*dto.TransitionStatusResponse, error) {
	target := models.WorkflowStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	if !target.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of PENDING, INCOMPLETE, UNDER_REVIEW, APPROVED, REJECTED")
	}

	record, err := s.load(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !record.Status.CanTransitionTo(target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment cannot move from "+string(record.Status)+" to "+string(target))
	}

	readiness, err := s.readiness.ComputeReadiness(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	if target == models.WorkflowApproved && !readiness.AllRequiredSatisfied && !req.OverrideReadiness {
		return nil, appErrors.Clone(appErrors.ErrValidation, "required documents are not satisfied; set overrideReadiness to approve anyway")
	}

	from := record.Status
	err = s.enrollments.UpdateStatus(ctx, repository.EnrollmentStatusUpdate{
		ID:        record.ID,
		From:      from,
		To:        target,
		Note:      optionalString(req.Note),
		UpdatedBy: actor,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "enrollment status changed concurrently; reload before retrying")
		}
		return nil, appErrors.Internal(err, "failed to update enrollment status")
	}

	reason := ""
	if target == models.WorkflowApproved && !readiness.AllRequiredSatisfied {
		reason = "READINESS_OVERRIDDEN"
	}
	s.events.Emit(ctx, models.DocumentEvent{
		EnrollmentID: record.ID,
		Kind:         models.EventWorkflowTransition,
		FromStatus:   string(from),
		ToStatus:     string(target),
		Actor:        actor,
		Reason:       reason,
	})

	updated, err := s.load(ctx, record.ID)
	if err != nil {
		return nil, err
	}
	return &dto.TransitionStatusResponse{Enrollment: updated, Readiness: readiness}, nil
}

func (s *EnrollmentWorkflowService) load(ctx context.Context, enrollmentID string) (*models.EnrollmentRecord, error) {
	enrollmentID = strings.TrimSpace(enrollmentID)
	if enrollmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollmentId is required")
	}
	record, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	return record, nil
}
