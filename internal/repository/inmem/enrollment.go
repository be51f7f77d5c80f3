package inmem

import (
	"context"
	"database/sql"
	"time"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository"
)

// EnrollmentStore holds enrollment records owned by the admissions system.
type EnrollmentStore struct {
	db *DB
}

// NewEnrollmentStore constructs the store.
func NewEnrollmentStore(db *DB) *EnrollmentStore {
	return &EnrollmentStore{db: db}
}

// Put inserts or replaces a record. It stands in for the external owner of
// enrollment records.
func (s *EnrollmentStore) Put(record models.EnrollmentRecord) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
	if record.Status == "" {
		record.Status = models.WorkflowPending
	}
	record.Documents = nil
	s.db.enrollments[record.ID] = &record
}

// FindByID returns a record or sql.ErrNoRows.
func (s *EnrollmentStore) FindByID(_ context.Context, id string) (*models.EnrollmentRecord, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	record, ok := s.db.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *record
	return &clone, nil
}

// UpdateStatus writes the new status only while the record still holds the
// observed status.
func (s *EnrollmentStore) UpdateStatus(_ context.Context, params repository.EnrollmentStatusUpdate) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	record, ok := s.db.enrollments[params.ID]
	if !ok || record.Status != params.From {
		return sql.ErrNoRows
	}
	if params.UpdatedAt.IsZero() {
		params.UpdatedAt = time.Now().UTC()
	}
	updatedBy := params.UpdatedBy
	record.Status = params.To
	record.StatusNote = params.Note
	record.UpdatedBy = &updatedBy
	record.UpdatedAt = params.UpdatedAt
	return nil
}
