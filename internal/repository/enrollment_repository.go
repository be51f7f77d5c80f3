package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
)

// EnrollmentRepository reads enrollment records and writes their workflow
// status.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// EnrollmentStatusUpdate moves an enrollment from one workflow status to
// another.
type EnrollmentStatusUpdate struct {
	ID        string
	From      models.WorkflowStatus
	To        models.WorkflowStatus
	Note      *string
	UpdatedBy string
	UpdatedAt time.Time
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentRecord, error) {
	const query = `SELECT id, student_name, grade_level, enrollment_type, status, status_note, updated_by, created_at, updated_at
	FROM enrollments WHERE id = $1`
	var record models.EnrollmentRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateStatus writes the new status only if the record still holds the
// status the caller observed. It returns sql.ErrNoRows otherwise.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, params EnrollmentStatusUpdate) error {
	if params.UpdatedAt.IsZero() {
		params.UpdatedAt = time.Now().UTC()
	}
	const query = `UPDATE enrollments SET status = $3, status_note = $4, updated_by = $5, updated_at = $6
	WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, params.ID, params.From, params.To, params.Note, params.UpdatedBy, params.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return expectOneRow(result, "enrollment status")
}
