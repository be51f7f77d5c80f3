package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository"
	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
	"github.com/noah-isme/sma-enrollment-docs/pkg/lock"
)

type documentStore interface {
	Create(ctx context.Context, version *models.DocumentVersion) error
	Supersede(ctx context.Context, currentID string, next *models.DocumentVersion) error
	GetByID(ctx context.Context, id string) (*models.DocumentVersion, error)
	GetCurrent(ctx context.Context, enrollmentID, documentType string) (*models.DocumentVersion, error)
	ListByPair(ctx context.Context, enrollmentID, documentType string) ([]models.DocumentVersion, error)
	ListCurrent(ctx context.Context, enrollmentID string) ([]models.DocumentVersion, error)
	ExistsForPair(ctx context.Context, enrollmentID, documentType string) (bool, error)
	UpdateVerification(ctx context.Context, params repository.VerificationUpdate) error
	UpdatePhysical(ctx context.Context, params repository.PhysicalUpdate) error
}

type manualCheckReader interface {
	Exists(ctx context.Context, enrollmentID, documentType string) (bool, error)
}

// DocumentService owns document version chains and their verification.
type DocumentService struct {
	docs    documentStore
	manual  manualCheckReader
	guard   *pairGuard
	events  *EventEmitter
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// DocumentServiceOption configures the service.
type DocumentServiceOption func(*DocumentService)

// WithDocumentEvents sets the emitter for transition events.
func WithDocumentEvents(emitter *EventEmitter) DocumentServiceOption {
	return func(s *DocumentService) {
		s.events = emitter
	}
}

// WithDocumentMetrics records refused transitions and lock waits.
func WithDocumentMetrics(metrics *MetricsService) DocumentServiceOption {
	return func(s *DocumentService) {
		s.metrics = metrics
	}
}

// WithDocumentClock overrides the time source.
func WithDocumentClock(now func() time.Time) DocumentServiceOption {
	return func(s *DocumentService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(docs documentStore, manual manualCheckReader, locker lock.Locker, logger *zap.Logger, opts ...DocumentServiceOption) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lock.NewLocal(0)
	}
	svc := &DocumentService{docs: docs, manual: manual, logger: logger, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	svc.guard = &pairGuard{locker: locker, metrics: svc.metrics}
	return svc
}

// Upload records a submission. The first submission creates the chain; an
// upload over a rejected current version is recorded as a resubmission.
func (s *DocumentService) Upload(ctx context.Context, enrollmentID, documentType, fileRef string, method models.SubmissionMethod, actor string) (*models.DocumentVersion, error) {
	enrollmentID, documentType, err := normalizePair(enrollmentID, documentType)
	if err != nil {
		return nil, s.refuse(models.EventDocumentUploaded, err)
	}
	fileRef, method, err = validateSubmission(fileRef, method)
	if err != nil {
		return nil, s.refuse(models.EventDocumentUploaded, err)
	}

	var created *models.DocumentVersion
	var kind models.EventKind
	err = s.guard.with(ctx, enrollmentID, documentType, func() error {
		checked, err := s.manual.Exists(ctx, enrollmentID, documentType)
		if err != nil {
			return appErrors.Internal(err, "failed to check manual register")
		}
		if checked {
			return appErrors.Clone(appErrors.ErrConflict, "requirement is checked in person; clear the manual check before uploading")
		}

		current, err := s.docs.GetCurrent(ctx, enrollmentID, documentType)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			kind = models.EventDocumentUploaded
			created = firstVersion(enrollmentID, documentType, fileRef, method, actor)
			created.SubmittedAt = s.now().UTC()
			if err := s.docs.Create(ctx, created); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					return appErrors.Clone(appErrors.ErrConflict, "document was submitted concurrently; reload and resubmit if needed")
				}
				return appErrors.Internal(err, "failed to record upload")
			}
			return nil
		case err != nil:
			return appErrors.Internal(err, "failed to load current document")
		case current.VerificationStatus != models.VerificationRejected:
			return appErrors.Clone(appErrors.ErrConflict, "document already has a submission under review; resubmit after rejection instead of uploading again")
		}
		kind = models.EventDocumentResubmitted
		created, err = s.supersede(ctx, *current, fileRef, method, actor)
		return err
	})
	if err != nil {
		return nil, s.refuse(models.EventDocumentUploaded, err)
	}
	s.emitVersion(ctx, kind, created, string(fromStatusFor(kind)), string(created.VerificationStatus), actor, "")
	return created, nil
}

// Resubmit replaces a rejected current version with a new one.
func (s *DocumentService) Resubmit(ctx context.Context, enrollmentID, documentType, fileRef string, method models.SubmissionMethod, actor string) (*models.DocumentVersion, error) {
	enrollmentID, documentType, err := normalizePair(enrollmentID, documentType)
	if err != nil {
		return nil, s.refuse(models.EventDocumentResubmitted, err)
	}
	fileRef, method, err = validateSubmission(fileRef, method)
	if err != nil {
		return nil, s.refuse(models.EventDocumentResubmitted, err)
	}

	var created *models.DocumentVersion
	err = s.guard.with(ctx, enrollmentID, documentType, func() error {
		current, err := s.loadCurrent(ctx, enrollmentID, documentType)
		if err != nil {
			return err
		}
		created, err = s.supersede(ctx, *current, fileRef, method, actor)
		return err
	})
	if err != nil {
		return nil, s.refuse(models.EventDocumentResubmitted, err)
	}
	s.emitVersion(ctx, models.EventDocumentResubmitted, created, string(models.VerificationRejected), string(created.VerificationStatus), actor, "")
	return created, nil
}

func (s *DocumentService) supersede(ctx context.Context, current models.DocumentVersion, fileRef string, method models.SubmissionMethod, actor string) (*models.DocumentVersion, error) {
	next, err := supersedingVersion(current, fileRef, method, actor)
	if err != nil {
		return nil, err
	}
	next.SubmittedAt = s.now().UTC()
	if err := s.docs.Supersede(ctx, current.ID, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) || errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "document changed while resubmitting; reload and retry")
		}
		return nil, appErrors.Internal(err, "failed to record resubmission")
	}
	return next, nil
}

// GetCurrent returns the current version of a document.
func (s *DocumentService) GetCurrent(ctx context.Context, enrollmentID, documentType string) (*models.DocumentVersion, error) {
	enrollmentID, documentType, err := normalizePair(enrollmentID, documentType)
	if err != nil {
		return nil, err
	}
	return s.loadCurrent(ctx, enrollmentID, documentType)
}

// History returns the version chain oldest first, following the
// back-references from the current version.
func (s *DocumentService) History(ctx context.Context, enrollmentID, documentType string) ([]models.DocumentVersion, error) {
	enrollmentID, documentType, err := normalizePair(enrollmentID, documentType)
	if err != nil {
		return nil, err
	}
	versions, err := s.docs.ListByPair(ctx, enrollmentID, documentType)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load document history")
	}
	chain := buildChain(versions)
	if len(chain) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no document has been submitted")
	}
	return chain, nil
}

// ListCurrent returns every current version of an enrollment.
func (s *DocumentService) ListCurrent(ctx context.Context, enrollmentID string) ([]models.DocumentVersion, error) {
	if strings.TrimSpace(enrollmentID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollmentId is required")
	}
	versions, err := s.docs.ListCurrent(ctx, strings.TrimSpace(enrollmentID))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list documents")
	}
	if versions == nil {
		versions = []models.DocumentVersion{}
	}
	return versions, nil
}

// Verify marks the current pending version as verified.
func (s *DocumentService) Verify(ctx context.Context, versionID, notes, actor string) (*models.DocumentVersion, error) {
	kind := models.EventDocumentVerified
	version, err := s.decide(ctx, kind, versionID, func(v models.DocumentVersion, at time.Time) error {
		if err := checkVerify(v); err != nil {
			return err
		}
		return s.docs.UpdateVerification(ctx, repository.VerificationUpdate{
			ID:     v.ID,
			Status: models.VerificationVerified,
			Notes:  optionalString(notes),
			Actor:  actor,
			At:     at,
		})
	})
	if err != nil {
		return nil, err
	}
	s.emitVersion(ctx, kind, version, string(models.VerificationPending), string(version.VerificationStatus), actor, "")
	return version, nil
}

// Reject marks the current pending version as rejected with a reason.
func (s *DocumentService) Reject(ctx context.Context, versionID, rawReason, notes, actor string) (*models.DocumentVersion, error) {
	kind := models.EventDocumentRejected
	version, err := s.decide(ctx, kind, versionID, func(v models.DocumentVersion, at time.Time) error {
		reason, cleanNotes, err := checkReject(v, rawReason, notes)
		if err != nil {
			return err
		}
		return s.docs.UpdateVerification(ctx, repository.VerificationUpdate{
			ID:              v.ID,
			Status:          models.VerificationRejected,
			RejectionReason: &reason,
			Notes:           &cleanNotes,
			Actor:           actor,
			At:              at,
		})
	})
	if err != nil {
		return nil, err
	}
	s.emitVersion(ctx, kind, version, string(models.VerificationPending), string(version.VerificationStatus), actor, string(derefReason(version.RejectionReason)))
	return version, nil
}

// CheckPhysical records that the paper copy was checked in person.
func (s *DocumentService) CheckPhysical(ctx context.Context, versionID, actor string) (*models.DocumentVersion, error) {
	return s.physical(ctx, models.EventPhysicalChecked, models.PhysicalChecked, versionID, actor)
}

// MarkPhysicalMissing records that the expected paper copy never arrived.
func (s *DocumentService) MarkPhysicalMissing(ctx context.Context, versionID, actor string) (*models.DocumentVersion, error) {
	return s.physical(ctx, models.EventPhysicalMissing, models.PhysicalMissing, versionID, actor)
}

func (s *DocumentService) physical(ctx context.Context, kind models.EventKind, target models.PhysicalStatus, versionID, actor string) (*models.DocumentVersion, error) {
	version, err := s.decide(ctx, kind, versionID, func(v models.DocumentVersion, at time.Time) error {
		if err := checkPhysical(v); err != nil {
			return err
		}
		return s.docs.UpdatePhysical(ctx, repository.PhysicalUpdate{ID: v.ID, Status: target, Actor: actor, At: at})
	})
	if err != nil {
		return nil, err
	}
	s.emitVersion(ctx, kind, version, string(models.PhysicalPending), string(version.PhysicalStatus), actor, "")
	return version, nil
}

// decide runs apply against a fresh read of the version under its pair lock
// and returns the stored result. A conditional write that matched no row
// means another decision won the race.
func (s *DocumentService) decide(ctx context.Context, kind models.EventKind, versionID string, apply func(v models.DocumentVersion, at time.Time) error) (*models.DocumentVersion, error) {
	versionID = strings.TrimSpace(versionID)
	if versionID == "" {
		return nil, s.refuse(kind, appErrors.Clone(appErrors.ErrValidation, "versionId is required"))
	}
	version, err := s.loadVersion(ctx, versionID)
	if err != nil {
		return nil, s.refuse(kind, err)
	}

	var updated *models.DocumentVersion
	err = s.guard.with(ctx, version.EnrollmentID, version.DocumentType, func() error {
		fresh, err := s.loadVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if err := apply(*fresh, s.now().UTC()); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidState, "document changed concurrently; reload before deciding again")
			}
			var appErr *appErrors.Error
			if errors.As(err, &appErr) {
				return appErr
			}
			return appErrors.Internal(err, "failed to record decision")
		}
		updated, err = s.loadVersion(ctx, versionID)
		return err
	})
	if err != nil {
		return nil, s.refuse(kind, err)
	}
	return updated, nil
}

func (s *DocumentService) loadVersion(ctx context.Context, versionID string) (*models.DocumentVersion, error) {
	version, err := s.docs.GetByID(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document version not found")
		}
		return nil, appErrors.Internal(err, "failed to load document version")
	}
	return version, nil
}

func (s *DocumentService) loadCurrent(ctx context.Context, enrollmentID, documentType string) (*models.DocumentVersion, error) {
	current, err := s.docs.GetCurrent(ctx, enrollmentID, documentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no document has been submitted")
		}
		return nil, appErrors.Internal(err, "failed to load current document")
	}
	return current, nil
}

func (s *DocumentService) refuse(kind models.EventKind, err error) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Status < 500 {
		s.metrics.RecordRejectedTransition(kind, appErr.Code)
	} else {
		s.logger.Error("document transition failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	return err
}

func (s *DocumentService) emitVersion(ctx context.Context, kind models.EventKind, v *models.DocumentVersion, from, to, actor, reason string) {
	s.events.Emit(ctx, models.DocumentEvent{
		EnrollmentID: v.EnrollmentID,
		DocumentType: v.DocumentType,
		VersionID:    v.ID,
		Kind:         kind,
		FromStatus:   from,
		ToStatus:     to,
		Actor:        actor,
		Reason:       reason,
	})
}

func fromStatusFor(kind models.EventKind) models.VerificationStatus {
	if kind == models.EventDocumentResubmitted {
		return models.VerificationRejected
	}
	return ""
}

func derefReason(reason *models.RejectionReason) models.RejectionReason {
	if reason == nil {
		return ""
	}
	return *reason
}

// buildChain orders versions by walking back from the current version. With
// no current version it falls back to resubmission order.
func buildChain(versions []models.DocumentVersion) []models.DocumentVersion {
	if len(versions) == 0 {
		return nil
	}
	byID := make(map[string]models.DocumentVersion, len(versions))
	var head *models.DocumentVersion
	for i := range versions {
		byID[versions[i].ID] = versions[i]
		if versions[i].IsCurrentVersion {
			head = &versions[i]
		}
	}
	if head == nil {
		return versions
	}

	chain := make([]models.DocumentVersion, 0, len(versions))
	seen := make(map[string]struct{}, len(versions))
	for cursor, ok := *head, true; ok; {
		if _, loop := seen[cursor.ID]; loop {
			break
		}
		seen[cursor.ID] = struct{}{}
		chain = append(chain, cursor)
		if cursor.PreviousVersionID == nil {
			break
		}
		cursor, ok = byID[*cursor.PreviousVersionID]
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func normalizePair(enrollmentID, documentType string) (string, string, error) {
	enrollmentID = strings.TrimSpace(enrollmentID)
	documentType = strings.ToUpper(strings.TrimSpace(documentType))
	if enrollmentID == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "enrollmentId is required")
	}
	if !documentTypePattern.MatchString(documentType) {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "documentType must be an uppercase identifier such as BIRTH_CERTIFICATE")
	}
	return enrollmentID, documentType, nil
}
