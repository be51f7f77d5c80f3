package inmem

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository"
)

// RequirementStore is the in-memory catalog.
type RequirementStore struct {
	db *DB
}

// NewRequirementStore constructs the store.
func NewRequirementStore(db *DB) *RequirementStore {
	return &RequirementStore{db: db}
}

func sortRequirements(items []models.DocumentRequirement) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].GradeLevel != items[j].GradeLevel {
			return items[i].GradeLevel < items[j].GradeLevel
		}
		if items[i].DisplayOrder != items[j].DisplayOrder {
			return items[i].DisplayOrder < items[j].DisplayOrder
		}
		return items[i].DocumentType < items[j].DocumentType
	})
}

// Resolve implements the catalog lookup.
func (s *RequirementStore) Resolve(_ context.Context, gradeLevel, enrollmentType string) ([]models.DocumentRequirement, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	items := make([]models.DocumentRequirement, 0)
	for _, item := range s.db.requirements {
		if item.GradeLevel == gradeLevel && item.IsActive && item.AppliesTo(enrollmentType) {
			items = append(items, *item)
		}
	}
	sortRequirements(items)
	return items, nil
}

// List returns all entries for a grade level, or the whole catalog.
func (s *RequirementStore) List(_ context.Context, gradeLevel string) ([]models.DocumentRequirement, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	items := make([]models.DocumentRequirement, 0, len(s.db.requirements))
	for _, item := range s.db.requirements {
		if gradeLevel == "" || item.GradeLevel == gradeLevel {
			items = append(items, *item)
		}
	}
	sortRequirements(items)
	return items, nil
}

// GetByID returns a catalog entry or sql.ErrNoRows.
func (s *RequirementStore) GetByID(_ context.Context, id string) (*models.DocumentRequirement, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	item, ok := s.db.requirements[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *item
	return &clone, nil
}

func sameEnrollmentType(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *RequirementStore) exists(gradeLevel string, enrollmentType *string, documentType, excludeID string) bool {
	for id, item := range s.db.requirements {
		if id == excludeID {
			continue
		}
		if item.GradeLevel == gradeLevel && item.DocumentType == documentType && sameEnrollmentType(item.EnrollmentType, enrollmentType) {
			return true
		}
	}
	return false
}

// Exists reports whether the combination is already catalogued.
func (s *RequirementStore) Exists(_ context.Context, gradeLevel string, enrollmentType *string, documentType, excludeID string) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.exists(gradeLevel, enrollmentType, documentType, excludeID), nil
}

// Create inserts an entry, returning repository.ErrDuplicate on collision.
func (s *RequirementStore) Create(_ context.Context, item *models.DocumentRequirement) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if s.exists(item.GradeLevel, item.EnrollmentType, item.DocumentType, "") {
		return repository.ErrDuplicate
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	clone := *item
	s.db.requirements[item.ID] = &clone
	return nil
}

// Update writes the mutable fields of an entry.
func (s *RequirementStore) Update(_ context.Context, item *models.DocumentRequirement) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	stored, ok := s.db.requirements[item.ID]
	if !ok {
		return sql.ErrNoRows
	}
	item.UpdatedAt = time.Now().UTC()
	stored.DocumentName = item.DocumentName
	stored.IsRequired = item.IsRequired
	stored.DisplayOrder = item.DisplayOrder
	stored.IsActive = item.IsActive
	stored.UpdatedAt = item.UpdatedAt
	return nil
}
