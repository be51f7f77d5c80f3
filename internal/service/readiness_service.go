package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-enrollment-docs/internal/dto"
	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
)

type enrollmentReader interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentRecord, error)
}

type requirementResolver interface {
	Resolve(ctx context.Context, gradeLevel, enrollmentType string) ([]models.DocumentRequirement, error)
}

type currentDocuments interface {
	ListCurrent(ctx context.Context, enrollmentID string) ([]models.DocumentVersion, error)
}

type manualCheckLister interface {
	List(ctx context.Context, enrollmentID string) ([]models.ManualCheckEntry, error)
}

// ReadinessService derives whether an enrollment's required documents are
// satisfied. Nothing is stored; every call recomputes from current state.
type ReadinessService struct {
	enrollments  enrollmentReader
	requirements requirementResolver
	documents    currentDocuments
	manual       manualCheckLister
	metrics      *MetricsService
	logger       *zap.Logger
}

// NewReadinessService constructs the aggregator.
func NewReadinessService(enrollments enrollmentReader, requirements requirementResolver, documents currentDocuments, manual manualCheckLister, metrics *MetricsService, logger *zap.Logger) *ReadinessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadinessService{
		enrollments:  enrollments,
		requirements: requirements,
		documents:    documents,
		manual:       manual,
		metrics:      metrics,
		logger:       logger,
	}
}

// ComputeReadiness reads the enrollment's requirements, current versions and
// manual checks concurrently and derives the snapshot.
func (s *ReadinessService) ComputeReadiness(ctx context.Context, enrollmentID string) (*dto.Readiness, error) {
	enrollmentID = strings.TrimSpace(enrollmentID)
	if enrollmentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "enrollmentId is required")
	}
	start := time.Now()
	defer func() { s.metrics.ObserveReadiness(time.Since(start)) }()

	var (
		record       *models.EnrollmentRecord
		requirements []models.DocumentRequirement
		versions     []models.DocumentVersion
		checks       []models.ManualCheckEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		record, err = s.loadEnrollment(gctx, enrollmentID)
		if err != nil {
			return err
		}
		requirements, err = s.requirements.Resolve(gctx, record.GradeLevel, record.EnrollmentType)
		return err
	})
	g.Go(func() error {
		var err error
		if versions, err = s.documents.ListCurrent(gctx, enrollmentID); err != nil {
			return appErrors.Internal(err, "failed to list current documents")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if checks, err = s.manual.List(gctx, enrollmentID); err != nil {
			return appErrors.Internal(err, "failed to list manual checks")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	readiness := deriveReadiness(requirements, versions, checks)
	readiness.EnrollmentID = record.ID
	readiness.GradeLevel = record.GradeLevel
	readiness.EnrollmentType = record.EnrollmentType
	return readiness, nil
}

func (s *ReadinessService) loadEnrollment(ctx context.Context, enrollmentID string) (*models.EnrollmentRecord, error) {
	record, err := s.enrollments.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	return record, nil
}

// deriveReadiness evaluates each requirement against the manual register and
// the current versions. A manual check satisfies a requirement outright; a
// document does once it is verified and, when a paper copy is expected,
// physically checked.
func deriveReadiness(requirements []models.DocumentRequirement, versions []models.DocumentVersion, checks []models.ManualCheckEntry) *dto.Readiness {
	requirements = collapseRequirements(requirements)
	current := make(map[string]models.DocumentVersion, len(versions))
	for _, v := range versions {
		if v.IsCurrentVersion {
			current[v.DocumentType] = v
		}
	}
	checked := make(map[string]struct{}, len(checks))
	for _, c := range checks {
		checked[c.DocumentType] = struct{}{}
	}

	readiness := &dto.Readiness{
		SatisfiedRequirements: []string{},
		UnsatisfiedRequired:   []string{},
		UnsatisfiedOptional:   []string{},
		Items:                 make([]dto.ReadinessItem, 0, len(requirements)),
	}
	for _, req := range requirements {
		item := dto.ReadinessItem{
			DocumentType: req.DocumentType,
			DocumentName: req.DocumentName,
			IsRequired:   req.IsRequired,
		}
		if _, ok := checked[req.DocumentType]; ok {
			item.Satisfied = true
			item.SatisfiedBy = dto.SatisfiedByManualCheck
		} else if v, ok := current[req.DocumentType]; ok {
			status, physical := v.VerificationStatus, v.PhysicalStatus
			item.VersionID = v.ID
			item.Status = &status
			item.Physical = &physical
			if v.Satisfied() {
				item.Satisfied = true
				item.SatisfiedBy = dto.SatisfiedByDocument
			}
		}

		switch {
		case item.Satisfied:
			readiness.SatisfiedRequirements = append(readiness.SatisfiedRequirements, req.DocumentType)
		case req.IsRequired:
			readiness.UnsatisfiedRequired = append(readiness.UnsatisfiedRequired, req.DocumentType)
		default:
			readiness.UnsatisfiedOptional = append(readiness.UnsatisfiedOptional, req.DocumentType)
		}
		readiness.Items = append(readiness.Items, item)
	}
	readiness.AllRequiredSatisfied = len(readiness.UnsatisfiedRequired) == 0
	return readiness
}
