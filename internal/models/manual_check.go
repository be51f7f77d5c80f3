package models

import "time"

// ManualCheckEntry records that an officer confirmed a requirement in person
// without any uploaded record existing for it.
type ManualCheckEntry struct {
	EnrollmentID string    `db:"enrollment_id" json:"enrollmentId"`
	DocumentType string    `db:"document_type" json:"documentType"`
	CheckedBy    string    `db:"checked_by" json:"checkedBy"`
	CheckedAt    time.Time `db:"checked_at" json:"checkedAt"`
}
