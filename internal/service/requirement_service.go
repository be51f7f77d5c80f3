package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-docs/internal/dto"
	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository"
	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
	"github.com/noah-isme/sma-enrollment-docs/pkg/middleware/requestid"
)

// DefaultContinuingEnrollmentType is exempt from document requirements.
const DefaultContinuingEnrollmentType = "Continuing Student"

var documentTypePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

type requirementStore interface {
	Resolve(ctx context.Context, gradeLevel, enrollmentType string) ([]models.DocumentRequirement, error)
	List(ctx context.Context, gradeLevel string) ([]models.DocumentRequirement, error)
	GetByID(ctx context.Context, id string) (*models.DocumentRequirement, error)
	Exists(ctx context.Context, gradeLevel string, enrollmentType *string, documentType, excludeID string) (bool, error)
	Create(ctx context.Context, item *models.DocumentRequirement) error
	Update(ctx context.Context, item *models.DocumentRequirement) error
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// RequirementService resolves and administers the document requirement
// catalog.
type RequirementService struct {
	repo           requirementStore
	cache          catalogCache
	cacheTTL       time.Duration
	audit          auditLogger
	validator      *validator.Validate
	logger         *zap.Logger
	continuingType string
}

// RequirementServiceOption configures the service.
type RequirementServiceOption func(*RequirementService)

// WithCatalogCache caches resolved lists for ttl.
func WithCatalogCache(cache catalogCache, ttl time.Duration) RequirementServiceOption {
	return func(s *RequirementService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithContinuingEnrollmentType overrides the exempt enrollment type.
func WithContinuingEnrollmentType(enrollmentType string) RequirementServiceOption {
	return func(s *RequirementService) {
		if strings.TrimSpace(enrollmentType) != "" {
			s.continuingType = enrollmentType
		}
	}
}

// WithRequirementAudit records catalog changes in the audit trail.
func WithRequirementAudit(audit auditLogger) RequirementServiceOption {
	return func(s *RequirementService) {
		s.audit = audit
	}
}

// NewRequirementService constructs the service with defaults.
func NewRequirementService(repo requirementStore, validate *validator.Validate, logger *zap.Logger, opts ...RequirementServiceOption) *RequirementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &RequirementService{
		repo:           repo,
		validator:      validate,
		logger:         logger,
		continuingType: DefaultContinuingEnrollmentType,
	}
	_ = svc.validator.RegisterValidation("documenttype", func(fl validator.FieldLevel) bool {
		return documentTypePattern.MatchString(fl.Field().String())
	})
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

func catalogKey(gradeLevel, enrollmentType string) string {
	return fmt.Sprintf("catalog:%s:%s", gradeLevel, enrollmentType)
}

// Resolve returns the ordered requirements for a grade level and enrollment
// type. Continuing students always get an empty list.
func (s *RequirementService) Resolve(ctx context.Context, gradeLevel, enrollmentType string) ([]models.DocumentRequirement, error) {
	enrollmentType = strings.TrimSpace(enrollmentType)
	if enrollmentType == s.continuingType {
		return []models.DocumentRequirement{}, nil
	}
	gradeLevel = strings.TrimSpace(gradeLevel)
	if gradeLevel == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "gradeLevel is required")
	}

	key := catalogKey(gradeLevel, enrollmentType)
	if s.cache != nil {
		var cached []models.DocumentRequirement
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	items, err := s.repo.Resolve(ctx, gradeLevel, enrollmentType)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to resolve requirements")
	}
	items = collapseRequirements(items)
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, items, s.cacheTTL)
	}
	return items, nil
}

// collapseRequirements keeps one row per document type. A row narrowed to an
// enrollment type wins over a catalog-wide row, and the type is required when
// any of its rows is required.
func collapseRequirements(items []models.DocumentRequirement) []models.DocumentRequirement {
	byType := make(map[string]int, len(items))
	out := make([]models.DocumentRequirement, 0, len(items))
	for _, item := range items {
		idx, seen := byType[item.DocumentType]
		if !seen {
			byType[item.DocumentType] = len(out)
			out = append(out, item)
			continue
		}
		required := out[idx].IsRequired || item.IsRequired
		if out[idx].EnrollmentType == nil && item.EnrollmentType != nil {
			out[idx] = item
		}
		out[idx].IsRequired = required
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].DocumentType < out[j].DocumentType
	})
	return out
}

// List returns every catalog entry for a grade level, active or not.
func (s *RequirementService) List(ctx context.Context, gradeLevel string) ([]models.DocumentRequirement, error) {
	items, err := s.repo.List(ctx, strings.TrimSpace(gradeLevel))
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list requirements")
	}
	if items == nil {
		items = []models.DocumentRequirement{}
	}
	return items, nil
}

// Create adds a catalog entry.
func (s *RequirementService) Create(ctx context.Context, req dto.CreateRequirementRequest, actor string) (*models.DocumentRequirement, error) {
	req.GradeLevel = strings.TrimSpace(req.GradeLevel)
	req.DocumentType = strings.ToUpper(strings.TrimSpace(req.DocumentType))
	req.DocumentName = strings.TrimSpace(req.DocumentName)
	req.EnrollmentType = optionalString(derefString(req.EnrollmentType))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}

	exists, err := s.repo.Exists(ctx, req.GradeLevel, req.EnrollmentType, req.DocumentType, "")
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check requirement uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "requirement already exists for this grade and enrollment type")
	}

	item := &models.DocumentRequirement{
		GradeLevel:     req.GradeLevel,
		EnrollmentType: req.EnrollmentType,
		DocumentType:   req.DocumentType,
		DocumentName:   req.DocumentName,
		IsRequired:     req.IsRequired,
		DisplayOrder:   req.DisplayOrder,
		IsActive:       true,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "requirement already exists for this grade and enrollment type")
		}
		return nil, appErrors.Internal(err, "failed to create requirement")
	}
	s.invalidate(ctx, item.GradeLevel)
	s.emitAudit(ctx, "REQUIREMENT_CREATE", actor, item.ID, nil, item)
	return item, nil
}

// Update edits a catalog entry.
func (s *RequirementService) Update(ctx context.Context, id string, req dto.UpdateRequirementRequest, actor string) (*models.DocumentRequirement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requirement payload")
	}
	item, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *item
	if req.DocumentName != nil {
		name := strings.TrimSpace(*req.DocumentName)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "documentName must not be blank")
		}
		item.DocumentName = name
	}
	if req.IsRequired != nil {
		item.IsRequired = *req.IsRequired
	}
	if req.DisplayOrder != nil {
		item.DisplayOrder = *req.DisplayOrder
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	if err := s.save(ctx, item); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "REQUIREMENT_UPDATE", actor, item.ID, &before, item)
	return item, nil
}

// Deactivate retires a catalog entry without deleting it.
func (s *RequirementService) Deactivate(ctx context.Context, id, actor string) (*models.DocumentRequirement, error) {
	item, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return item, nil
	}
	before := *item
	item.IsActive = false
	if err := s.save(ctx, item); err != nil {
		return nil, err
	}
	s.emitAudit(ctx, "REQUIREMENT_DEACTIVATE", actor, item.ID, &before, item)
	return item, nil
}

func (s *RequirementService) get(ctx context.Context, id string) (*models.DocumentRequirement, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return nil, appErrors.Internal(err, "failed to load requirement")
	}
	return item, nil
}

func (s *RequirementService) save(ctx context.Context, item *models.DocumentRequirement) error {
	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "requirement not found")
		}
		return appErrors.Internal(err, "failed to update requirement")
	}
	s.invalidate(ctx, item.GradeLevel)
	return nil
}

func (s *RequirementService) invalidate(ctx context.Context, gradeLevel string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, fmt.Sprintf("catalog:%s:*", gradeLevel))
}

func (s *RequirementService) emitAudit(ctx context.Context, action, actor, resourceID string, before, after *models.DocumentRequirement) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{
		UserID:     optionalString(actor),
		Action:     action,
		Resource:   models.AuditResourceRequirement,
		ResourceID: optionalString(resourceID),
		RequestID:  requestid.FromContext(ctx),
	}
	if before != nil {
		log.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		log.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.String("action", action), zap.Error(err))
	}
}

func optionalString(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
