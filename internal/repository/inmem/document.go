package inmem

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository"
)

// DocumentStore keeps every version in the arena and indexes the current
// version of each pair.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore constructs the store.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func prepare(version *models.DocumentVersion) {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.SubmittedAt.IsZero() {
		version.SubmittedAt = time.Now().UTC()
	}
}

func (s *DocumentStore) insert(version *models.DocumentVersion) {
	clone := *version
	s.db.versions[version.ID] = &clone
	if version.IsCurrentVersion {
		s.db.current[models.DocumentSlot{EnrollmentID: version.EnrollmentID, DocumentType: version.DocumentType}] = version.ID
	}
}

// Create inserts the first version of a pair.
func (s *DocumentStore) Create(_ context.Context, version *models.DocumentVersion) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := models.DocumentSlot{EnrollmentID: version.EnrollmentID, DocumentType: version.DocumentType}
	if _, ok := s.db.current[key]; ok && version.IsCurrentVersion {
		return repository.ErrDuplicate
	}
	prepare(version)
	s.insert(version)
	return nil
}

// Supersede retires currentID and stores next as current in one critical
// section.
func (s *DocumentStore) Supersede(_ context.Context, currentID string, next *models.DocumentVersion) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	old, ok := s.db.versions[currentID]
	if !ok || !old.IsCurrentVersion || old.VerificationStatus != models.VerificationRejected {
		return sql.ErrNoRows
	}
	if old.EnrollmentID != next.EnrollmentID || old.DocumentType != next.DocumentType {
		return fmt.Errorf("supersede %s: next version belongs to another document", currentID)
	}
	prepare(next)
	old.IsCurrentVersion = false
	next.IsCurrentVersion = true
	s.insert(next)
	return nil
}

// GetByID returns a version or sql.ErrNoRows.
func (s *DocumentStore) GetByID(_ context.Context, id string) (*models.DocumentVersion, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	version, ok := s.db.versions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *version
	return &clone, nil
}

// GetCurrent returns the current version of a pair or sql.ErrNoRows.
func (s *DocumentStore) GetCurrent(_ context.Context, enrollmentID, documentType string) (*models.DocumentVersion, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	id, ok := s.db.current[models.DocumentSlot{EnrollmentID: enrollmentID, DocumentType: documentType}]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *s.db.versions[id]
	return &clone, nil
}

// ListByPair returns every version of a pair in submission order.
func (s *DocumentStore) ListByPair(_ context.Context, enrollmentID, documentType string) ([]models.DocumentVersion, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	versions := make([]models.DocumentVersion, 0)
	for _, version := range s.db.versions {
		if version.EnrollmentID == enrollmentID && version.DocumentType == documentType {
			versions = append(versions, *version)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].ResubmissionCount < versions[j].ResubmissionCount })
	return versions, nil
}

// ListCurrent returns the current versions of an enrollment.
func (s *DocumentStore) ListCurrent(_ context.Context, enrollmentID string) ([]models.DocumentVersion, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	versions := make([]models.DocumentVersion, 0)
	for key, id := range s.db.current {
		if key.EnrollmentID == enrollmentID {
			versions = append(versions, *s.db.versions[id])
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].DocumentType < versions[j].DocumentType })
	return versions, nil
}

// ExistsForPair reports whether any version was ever stored for the pair.
func (s *DocumentStore) ExistsForPair(_ context.Context, enrollmentID, documentType string) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, version := range s.db.versions {
		if version.EnrollmentID == enrollmentID && version.DocumentType == documentType {
			return true, nil
		}
	}
	return false, nil
}

func (s *DocumentStore) currentByID(id string) (*models.DocumentVersion, bool) {
	version, ok := s.db.versions[id]
	if !ok || !version.IsCurrentVersion {
		return nil, false
	}
	return version, true
}

// UpdateVerification applies a decision while the version is current and
// pending, else returns sql.ErrNoRows.
func (s *DocumentStore) UpdateVerification(_ context.Context, params repository.VerificationUpdate) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	version, ok := s.currentByID(params.ID)
	if !ok || version.VerificationStatus != models.VerificationPending {
		return sql.ErrNoRows
	}
	actor, at := params.Actor, params.At
	switch params.Status {
	case models.VerificationVerified:
		version.VerifiedBy, version.VerifiedAt = &actor, &at
	case models.VerificationRejected:
		version.RejectedBy, version.RejectedAt = &actor, &at
		version.RejectionReason = params.RejectionReason
	default:
		return fmt.Errorf("unsupported verification status %q", params.Status)
	}
	version.VerificationStatus = params.Status
	version.VerificationNotes = params.Notes
	return nil
}

// UpdatePhysical records an in-person check while it is pending.
func (s *DocumentStore) UpdatePhysical(_ context.Context, params repository.PhysicalUpdate) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	version, ok := s.currentByID(params.ID)
	if !ok || version.PhysicalStatus != models.PhysicalPending {
		return sql.ErrNoRows
	}
	actor, at := params.Actor, params.At
	version.PhysicalStatus = params.Status
	version.PhysicalCheckedBy, version.PhysicalCheckedAt = &actor, &at
	return nil
}
