package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
)

// ManualCheckRepository stores in-person confirmations.
type ManualCheckRepository struct {
	db *sqlx.DB
}

// NewManualCheckRepository constructs the repository.
func NewManualCheckRepository(db *sqlx.DB) *ManualCheckRepository {
	return &ManualCheckRepository{db: db}
}

// Exists reports whether the pair is checked.
func (r *ManualCheckRepository) Exists(ctx context.Context, enrollmentID, documentType string) (bool, error) {
	const query = `SELECT 1 FROM manual_checks WHERE enrollment_id = $1 AND document_type = $2`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, documentType); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check manual check: %w", err)
	}
	return true, nil
}

// Create marks the pair as checked.
func (r *ManualCheckRepository) Create(ctx context.Context, entry *models.ManualCheckEntry) error {
	if entry.CheckedAt.IsZero() {
		entry.CheckedAt = time.Now().UTC()
	}
	const query = `INSERT INTO manual_checks (enrollment_id, document_type, checked_by, checked_at)
	VALUES (:enrollment_id, :document_type, :checked_by, :checked_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create manual check: %w", err)
	}
	return nil
}

// Delete clears the check. It returns sql.ErrNoRows when nothing was checked.
func (r *ManualCheckRepository) Delete(ctx context.Context, enrollmentID, documentType string) error {
	const query = `DELETE FROM manual_checks WHERE enrollment_id = $1 AND document_type = $2`
	result, err := r.db.ExecContext(ctx, query, enrollmentID, documentType)
	if err != nil {
		return fmt.Errorf("delete manual check: %w", err)
	}
	return expectOneRow(result, "manual check delete")
}

// List returns all checks of an enrollment.
func (r *ManualCheckRepository) List(ctx context.Context, enrollmentID string) ([]models.ManualCheckEntry, error) {
	const query = `SELECT enrollment_id, document_type, checked_by, checked_at FROM manual_checks
	WHERE enrollment_id = $1 ORDER BY document_type ASC`
	var entries []models.ManualCheckEntry
	if err := r.db.SelectContext(ctx, &entries, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list manual checks: %w", err)
	}
	return entries, nil
}
