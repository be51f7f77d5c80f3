// Package inmem holds mutex-guarded stores with the same contracts as the
// Postgres repositories. All stores built from one DB share a single lock, so
// superseding a version is one critical section.
package inmem

import (
	"sync"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
)

// DB is the shared arena behind every in-memory store.
type DB struct {
	mu sync.RWMutex

	requirements map[string]*models.DocumentRequirement
	versions     map[string]*models.DocumentVersion
	current      map[models.DocumentSlot]string
	manual       map[models.DocumentSlot]*models.ManualCheckEntry
	enrollments  map[string]*models.EnrollmentRecord
	audit        []models.AuditLog
}

// NewDB returns an empty arena.
func NewDB() *DB {
	return &DB{
		requirements: make(map[string]*models.DocumentRequirement),
		versions:     make(map[string]*models.DocumentVersion),
		current:      make(map[models.DocumentSlot]string),
		manual:       make(map[models.DocumentSlot]*models.ManualCheckEntry),
		enrollments:  make(map[string]*models.EnrollmentRecord),
	}
}
