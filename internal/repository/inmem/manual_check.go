package inmem

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository"
)

// ManualCheckStore is the in-memory manual check register.
type ManualCheckStore struct {
	db *DB
}

// NewManualCheckStore constructs the store.
func NewManualCheckStore(db *DB) *ManualCheckStore {
	return &ManualCheckStore{db: db}
}

// Exists reports whether the pair is checked.
func (s *ManualCheckStore) Exists(_ context.Context, enrollmentID, documentType string) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	_, ok := s.db.manual[models.DocumentSlot{EnrollmentID: enrollmentID, DocumentType: documentType}]
	return ok, nil
}

// Create marks the pair as checked.
func (s *ManualCheckStore) Create(_ context.Context, entry *models.ManualCheckEntry) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := models.DocumentSlot{EnrollmentID: entry.EnrollmentID, DocumentType: entry.DocumentType}
	if _, ok := s.db.manual[key]; ok {
		return repository.ErrDuplicate
	}
	if entry.CheckedAt.IsZero() {
		entry.CheckedAt = time.Now().UTC()
	}
	clone := *entry
	s.db.manual[key] = &clone
	return nil
}

// Delete clears the check, returning sql.ErrNoRows when absent.
func (s *ManualCheckStore) Delete(_ context.Context, enrollmentID, documentType string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	key := models.DocumentSlot{EnrollmentID: enrollmentID, DocumentType: documentType}
	if _, ok := s.db.manual[key]; !ok {
		return sql.ErrNoRows
	}
	delete(s.db.manual, key)
	return nil
}

// List returns the checks of an enrollment ordered by document type.
func (s *ManualCheckStore) List(_ context.Context, enrollmentID string) ([]models.ManualCheckEntry, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	entries := make([]models.ManualCheckEntry, 0)
	for key, entry := range s.db.manual {
		if key.EnrollmentID == enrollmentID {
			entries = append(entries, *entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DocumentType < entries[j].DocumentType })
	return entries, nil
}
