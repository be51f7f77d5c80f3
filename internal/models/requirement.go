package models

import "time"

// DocumentRequirement is one catalog row: a document type required (or
// optional) for a grade level, optionally narrowed to one enrollment type.
type DocumentRequirement struct {
	ID             string    `db:"id" json:"id"`
	GradeLevel     string    `db:"grade_level" json:"gradeLevel"`
	EnrollmentType *string   `db:"enrollment_type" json:"enrollmentType,omitempty"`
	DocumentType   string    `db:"document_type" json:"documentType"`
	DocumentName   string    `db:"document_name" json:"documentName"`
	IsRequired     bool      `db:"is_required" json:"isRequired"`
	DisplayOrder   int       `db:"display_order" json:"displayOrder"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// AppliesTo reports whether the row matches the enrollment type. A nil
// enrollment type applies to every type.
func (r DocumentRequirement) AppliesTo(enrollmentType string) bool {
	return r.EnrollmentType == nil || *r.EnrollmentType == enrollmentType
}

