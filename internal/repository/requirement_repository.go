package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
)

const requirementColumns = `id, grade_level, enrollment_type, document_type, document_name, is_required, display_order, is_active, created_at, updated_at`

// RequirementRepository persists the document requirement catalog.
type RequirementRepository struct {
	db *sqlx.DB
}

// NewRequirementRepository constructs the repository.
func NewRequirementRepository(db *sqlx.DB) *RequirementRepository {
	return &RequirementRepository{db: db}
}

// Resolve returns active requirements for a grade level that apply to the
// enrollment type, in display order.
func (r *RequirementRepository) Resolve(ctx context.Context, gradeLevel, enrollmentType string) ([]models.DocumentRequirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM document_requirements
	WHERE grade_level = $1 AND is_active = TRUE AND (enrollment_type IS NULL OR enrollment_type = $2)
	ORDER BY display_order ASC, document_type ASC`
	var items []models.DocumentRequirement
	if err := r.db.SelectContext(ctx, &items, query, gradeLevel, enrollmentType); err != nil {
		return nil, fmt.Errorf("resolve requirements: %w", err)
	}
	return items, nil
}

// List returns every catalog entry, active or not, for a grade level. An
// empty grade level lists the whole catalog.
func (r *RequirementRepository) List(ctx context.Context, gradeLevel string) ([]models.DocumentRequirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM document_requirements`
	args := []interface{}{}
	if gradeLevel != "" {
		query += ` WHERE grade_level = $1`
		args = append(args, gradeLevel)
	}
	query += ` ORDER BY grade_level ASC, display_order ASC, document_type ASC`
	var items []models.DocumentRequirement
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list requirements: %w", err)
	}
	return items, nil
}

// GetByID returns a catalog entry.
func (r *RequirementRepository) GetByID(ctx context.Context, id string) (*models.DocumentRequirement, error) {
	query := `SELECT ` + requirementColumns + ` FROM document_requirements WHERE id = $1`
	var item models.DocumentRequirement
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// Exists checks whether an entry already covers the grade, enrollment type
// and document type combination.
func (r *RequirementRepository) Exists(ctx context.Context, gradeLevel string, enrollmentType *string, documentType, excludeID string) (bool, error) {
	query := `SELECT 1 FROM document_requirements
	WHERE grade_level = $1 AND document_type = $2 AND enrollment_type IS NOT DISTINCT FROM $3`
	args := []interface{}{gradeLevel, documentType, enrollmentType}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check requirement uniqueness: %w", err)
	}
	return true, nil
}

// Create inserts a catalog entry.
func (r *RequirementRepository) Create(ctx context.Context, item *models.DocumentRequirement) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	const query = `INSERT INTO document_requirements (` + requirementColumns + `)
	VALUES (:id, :grade_level, :enrollment_type, :document_type, :document_name, :is_required, :display_order, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create requirement: %w", err)
	}
	return nil
}

// Update writes the mutable fields of a catalog entry.
func (r *RequirementRepository) Update(ctx context.Context, item *models.DocumentRequirement) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE document_requirements SET document_name = :document_name, is_required = :is_required,
	display_order = :display_order, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update requirement: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check requirement update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
