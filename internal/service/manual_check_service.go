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
	"github.com/noah-isme/sma-enrollment-docs/pkg/lock"
)

type manualCheckStore interface {
	Exists(ctx context.Context, enrollmentID, documentType string) (bool, error)
	Create(ctx context.Context, entry *models.ManualCheckEntry) error
	Delete(ctx context.Context, enrollmentID, documentType string) error
	List(ctx context.Context, enrollmentID string) ([]models.ManualCheckEntry, error)
}

type documentPresence interface {
	ExistsForPair(ctx context.Context, enrollmentID, documentType string) (bool, error)
}

// ManualCheckService keeps the register of requirements confirmed in person.
type ManualCheckService struct {
	store   manualCheckStore
	docs    documentPresence
	guard   *pairGuard
	events  *EventEmitter
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewManualCheckService constructs the service. The locker must be the one
// shared with DocumentService so uploads and toggles of a pair serialise.
func NewManualCheckService(store manualCheckStore, docs documentPresence, locker lock.Locker, events *EventEmitter, metrics *MetricsService, logger *zap.Logger) *ManualCheckService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal(0)
	}
	return &ManualCheckService{
		store:   store,
		docs:    docs,
		guard:   &pairGuard{locker: locker, metrics: metrics},
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Toggle flips the check for a pair and reports the resulting state. A pair
// that has ever had a document submitted cannot be checked manually.
func (s *ManualCheckService) Toggle(ctx context.Context, enrollmentID, documentType, actor string) (*dto.ManualCheckResponse, error) {
	enrollmentID, documentType, err := normalizePair(enrollmentID, documentType)
	if err != nil {
		s.metrics.RecordRejectedTransition(models.EventManualCheckSet, appErrors.FromError(err).Code)
		return nil, err
	}

	// A pair with a document never carries a check, so refusals before the
	// register is read are counted as attempts to set.
	attempted := models.EventManualCheckSet
	var checked bool
	err = s.guard.with(ctx, enrollmentID, documentType, func() error {
		hasDocument, err := s.docs.ExistsForPair(ctx, enrollmentID, documentType)
		if err != nil {
			return appErrors.Internal(err, "failed to check document records")
		}
		if hasDocument {
			return appErrors.Clone(appErrors.ErrConflict, "requirement already has a submitted document; verify it through the document instead")
		}

		present, err := s.store.Exists(ctx, enrollmentID, documentType)
		if err != nil {
			return appErrors.Internal(err, "failed to read manual register")
		}
		if present {
			attempted = models.EventManualCheckCleared
			if err := s.store.Delete(ctx, enrollmentID, documentType); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrInvalidState, "manual check changed concurrently")
				}
				return appErrors.Internal(err, "failed to clear manual check")
			}
			checked = false
			return nil
		}

		entry := &models.ManualCheckEntry{
			EnrollmentID: enrollmentID,
			DocumentType: documentType,
			CheckedBy:    actor,
			CheckedAt:    s.now().UTC(),
		}
		if err := s.store.Create(ctx, entry); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrInvalidState, "manual check changed concurrently")
			}
			return appErrors.Internal(err, "failed to record manual check")
		}
		checked = true
		return nil
	})
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Status < 500 {
			s.metrics.RecordRejectedTransition(attempted, appErr.Code)
		} else {
			s.logger.Error("manual check toggle failed", zap.String("enrollment_id", enrollmentID), zap.Error(err))
		}
		return nil, err
	}

	evt := models.DocumentEvent{
		EnrollmentID: enrollmentID,
		DocumentType: documentType,
		Kind:         models.EventManualCheckCleared,
		FromStatus:   "CHECKED",
		ToStatus:     "UNCHECKED",
		Actor:        actor,
	}
	if checked {
		evt.Kind = models.EventManualCheckSet
		evt.FromStatus, evt.ToStatus = evt.ToStatus, evt.FromStatus
	}
	s.events.Emit(ctx, evt)

	return &dto.ManualCheckResponse{EnrollmentID: enrollmentID, DocumentType: documentType, Checked: checked}, nil
}

// List returns the checked requirements of an enrollment.
func (s *ManualCheckService) List(ctx context.Context, enrollmentID string) ([]models.ManualCheckEntry, error) {
	enrollmentID = strings.TrimSpace(enrollmentID)
	if enrollmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollmentId is required")
	}
	entries, err := s.store.List(ctx, enrollmentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list manual checks")
	}
	if entries == nil {
		entries = []models.ManualCheckEntry{}
	}
	return entries, nil
}
