package inmem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository"
)

// Seed is the fixture format loaded when running on the memory driver.
type Seed struct {
	Requirements []models.DocumentRequirement `json:"requirements"`
	Enrollments  []models.EnrollmentRecord    `json:"enrollments"`
}

// LoadSeedFile reads a JSON seed from path into db.
func LoadSeedFile(ctx context.Context, db *DB, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("decode seed file: %w", err)
	}
	return Apply(ctx, db, seed)
}

// Apply stores the seed contents. Duplicate catalog rows are skipped.
func Apply(ctx context.Context, db *DB, seed Seed) error {
	requirements := NewRequirementStore(db)
	for i := range seed.Requirements {
		item := seed.Requirements[i]
		if err := requirements.Create(ctx, &item); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("seed requirement %s: %w", item.DocumentType, err)
		}
	}
	enrollments := NewEnrollmentStore(db)
	for _, record := range seed.Enrollments {
		enrollments.Put(record)
	}
	return nil
}
