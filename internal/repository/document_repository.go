package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/pkg/database"
)

const documentColumns = `id, enrollment_id, document_type, file_ref, submission_method, verification_status,
	rejection_reason, verification_notes, is_current_version, previous_version_id, resubmission_count,
	physical_verification_status, submitted_by, submitted_at, verified_by, verified_at, rejected_by, rejected_at,
	physical_checked_by, physical_checked_at`

const insertDocumentQuery = `INSERT INTO document_versions (` + documentColumns + `)
	VALUES (:id, :enrollment_id, :document_type, :file_ref, :submission_method, :verification_status,
	:rejection_reason, :verification_notes, :is_current_version, :previous_version_id, :resubmission_count,
	:physical_verification_status, :submitted_by, :submitted_at, :verified_by, :verified_at, :rejected_by, :rejected_at,
	:physical_checked_by, :physical_checked_at)`

// DocumentRepository persists document version chains. A partial unique
// index on (enrollment_id, document_type) WHERE is_current_version keeps a
// single current version per pair.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// VerificationUpdate describes a digital review decision. It is applied only
// while the version is current and still pending.
type VerificationUpdate struct {
	ID              string
	Status          models.VerificationStatus
	RejectionReason *models.RejectionReason
	Notes           *string
	Actor           string
	At              time.Time
}

// PhysicalUpdate describes the outcome of an in-person check.
type PhysicalUpdate struct {
	ID     string
	Status models.PhysicalStatus
	Actor  string
	At     time.Time
}

func prepareVersion(version *models.DocumentVersion) {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.SubmittedAt.IsZero() {
		version.SubmittedAt = time.Now().UTC()
	}
}

// Create inserts the first version of a pair.
func (r *DocumentRepository) Create(ctx context.Context, version *models.DocumentVersion) error {
	prepareVersion(version)
	if _, err := r.db.NamedExecContext(ctx, insertDocumentQuery, version); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create document version: %w", err)
	}
	return nil
}

// Supersede retires the current version identified by currentID and inserts
// next as the new current version in one transaction. It returns
// sql.ErrNoRows when currentID is no longer the current rejected version.
func (r *DocumentRepository) Supersede(ctx context.Context, currentID string, next *models.DocumentVersion) error {
	prepareVersion(next)
	return database.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var state struct {
			IsCurrent bool                      `db:"is_current_version"`
			Status    models.VerificationStatus `db:"verification_status"`
		}
		const lockQuery = `SELECT is_current_version, verification_status FROM document_versions WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &state, lockQuery, currentID); err != nil {
			if err == sql.ErrNoRows {
				return sql.ErrNoRows
			}
			return fmt.Errorf("lock document version: %w", err)
		}
		if !state.IsCurrent || state.Status != models.VerificationRejected {
			return sql.ErrNoRows
		}

		const retireQuery = `UPDATE document_versions SET is_current_version = FALSE WHERE id = $1`
		if _, err := tx.ExecContext(ctx, retireQuery, currentID); err != nil {
			return fmt.Errorf("retire document version: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, insertDocumentQuery, next); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert document version: %w", err)
		}
		return nil
	})
}

// GetByID returns a single version.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.DocumentVersion, error) {
	query := `SELECT ` + documentColumns + ` FROM document_versions WHERE id = $1`
	var version models.DocumentVersion
	if err := r.db.GetContext(ctx, &version, query, id); err != nil {
		return nil, err
	}
	return &version, nil
}

// GetCurrent returns the current version of a pair.
func (r *DocumentRepository) GetCurrent(ctx context.Context, enrollmentID, documentType string) (*models.DocumentVersion, error) {
	query := `SELECT ` + documentColumns + ` FROM document_versions
	WHERE enrollment_id = $1 AND document_type = $2 AND is_current_version = TRUE`
	var version models.DocumentVersion
	if err := r.db.GetContext(ctx, &version, query, enrollmentID, documentType); err != nil {
		return nil, err
	}
	return &version, nil
}

// ListByPair returns every version of a pair in submission order.
func (r *DocumentRepository) ListByPair(ctx context.Context, enrollmentID, documentType string) ([]models.DocumentVersion, error) {
	query := `SELECT ` + documentColumns + ` FROM document_versions
	WHERE enrollment_id = $1 AND document_type = $2 ORDER BY resubmission_count ASC, submitted_at ASC`
	var versions []models.DocumentVersion
	if err := r.db.SelectContext(ctx, &versions, query, enrollmentID, documentType); err != nil {
		return nil, fmt.Errorf("list document versions: %w", err)
	}
	return versions, nil
}

// ListCurrent returns the current version of every document type submitted
// for an enrollment.
func (r *DocumentRepository) ListCurrent(ctx context.Context, enrollmentID string) ([]models.DocumentVersion, error) {
	query := `SELECT ` + documentColumns + ` FROM document_versions
	WHERE enrollment_id = $1 AND is_current_version = TRUE ORDER BY document_type ASC`
	var versions []models.DocumentVersion
	if err := r.db.SelectContext(ctx, &versions, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list current documents: %w", err)
	}
	return versions, nil
}

// ExistsForPair reports whether any version, current or historical, exists.
func (r *DocumentRepository) ExistsForPair(ctx context.Context, enrollmentID, documentType string) (bool, error) {
	const query = `SELECT 1 FROM document_versions WHERE enrollment_id = $1 AND document_type = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, documentType); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check document versions: %w", err)
	}
	return true, nil
}

// UpdateVerification applies a verify or reject decision. It returns
// sql.ErrNoRows when the version is no longer current and pending.
func (r *DocumentRepository) UpdateVerification(ctx context.Context, params VerificationUpdate) error {
	var query string
	switch params.Status {
	case models.VerificationVerified:
		query = `UPDATE document_versions SET verification_status = :status, verification_notes = :notes,
		verified_by = :actor, verified_at = :at
		WHERE id = :id AND is_current_version = TRUE AND verification_status = 'PENDING'`
	case models.VerificationRejected:
		query = `UPDATE document_versions SET verification_status = :status, rejection_reason = :reason,
		verification_notes = :notes, rejected_by = :actor, rejected_at = :at
		WHERE id = :id AND is_current_version = TRUE AND verification_status = 'PENDING'`
	default:
		return fmt.Errorf("unsupported verification status %q", params.Status)
	}
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":     params.ID,
		"status": params.Status,
		"reason": params.RejectionReason,
		"notes":  params.Notes,
		"actor":  params.Actor,
		"at":     params.At,
	})
	if err != nil {
		return fmt.Errorf("update document verification: %w", err)
	}
	return expectOneRow(result, "document verification")
}

// UpdatePhysical records an in-person check outcome. It returns
// sql.ErrNoRows when the version is no longer current with a pending check.
func (r *DocumentRepository) UpdatePhysical(ctx context.Context, params PhysicalUpdate) error {
	const query = `UPDATE document_versions SET physical_verification_status = $2, physical_checked_by = $3, physical_checked_at = $4
	WHERE id = $1 AND is_current_version = TRUE AND physical_verification_status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, query, params.ID, params.Status, params.Actor, params.At)
	if err != nil {
		return fmt.Errorf("update physical verification: %w", err)
	}
	return expectOneRow(result, "physical verification")
}

func expectOneRow(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", what, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
