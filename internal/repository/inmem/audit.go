package inmem

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
)

// AuditStore keeps audit rows in insertion order.
type AuditStore struct {
	db *DB
}

// NewAuditStore constructs the store.
func NewAuditStore(db *DB) *AuditStore {
	return &AuditStore{db: db}
}

// CreateAuditLog appends an entry, ignoring a repeated ID.
func (s *AuditStore) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	for _, existing := range s.db.audit {
		if existing.ID == log.ID {
			return nil
		}
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	s.db.audit = append(s.db.audit, *log)
	return nil
}

// Entries returns a copy of the audit trail.
func (s *AuditStore) Entries() []models.AuditLog {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return append([]models.AuditLog(nil), s.db.audit...)
}
