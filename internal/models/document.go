package models

import "time"

// SubmissionMethod describes how a document reached the school.
type SubmissionMethod string

const (
	SubmissionUploaded SubmissionMethod = "UPLOADED"
	SubmissionPhysical SubmissionMethod = "PHYSICAL"
	SubmissionBoth     SubmissionMethod = "BOTH"
)

// Valid reports whether the method is one of the known values.
func (m SubmissionMethod) Valid() bool {
	switch m {
	case SubmissionUploaded, SubmissionPhysical, SubmissionBoth:
		return true
	}
	return false
}

// RequiresPhysical reports whether a paper copy must be checked in person.
func (m SubmissionMethod) RequiresPhysical() bool {
	return m == SubmissionPhysical || m == SubmissionBoth
}

// VerificationStatus is the digital review state of one document version.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// PhysicalStatus tracks the in-person check of a handed-in copy.
type PhysicalStatus string

const (
	PhysicalNotRequired PhysicalStatus = "NOT_REQUIRED"
	PhysicalPending     PhysicalStatus = "PENDING"
	PhysicalChecked     PhysicalStatus = "CHECKED"
	PhysicalMissing     PhysicalStatus = "MISSING"
)

// RejectionReason is the closed set of reasons an officer may give.
type RejectionReason string

const (
	RejectionWrongDocumentType       RejectionReason = "WRONG_DOCUMENT_TYPE"
	RejectionUnclearIllegible        RejectionReason = "UNCLEAR_ILLEGIBLE"
	RejectionIncompleteInformation   RejectionReason = "INCOMPLETE_INFORMATION"
	RejectionDocumentExpired         RejectionReason = "DOCUMENT_EXPIRED"
	RejectionDoesNotMatchRequirement RejectionReason = "DOES_NOT_MATCH_REQUIREMENTS"
	RejectionInvalidFormat           RejectionReason = "INVALID_FORMAT"
	RejectionOther                   RejectionReason = "OTHER"
)

// RejectionReasons lists every accepted reason in display order.
var RejectionReasons = []RejectionReason{
	RejectionWrongDocumentType,
	RejectionUnclearIllegible,
	RejectionIncompleteInformation,
	RejectionDocumentExpired,
	RejectionDoesNotMatchRequirement,
	RejectionInvalidFormat,
	RejectionOther,
}

// rejectionLabels maps the labels shown in the officer UI to reasons.
var rejectionLabels = map[string]RejectionReason{
	"wrong document type":         RejectionWrongDocumentType,
	"unclear/illegible":           RejectionUnclearIllegible,
	"incomplete information":      RejectionIncompleteInformation,
	"document expired":            RejectionDocumentExpired,
	"does not match requirements": RejectionDoesNotMatchRequirement,
	"invalid format":              RejectionInvalidFormat,
	"other":                       RejectionOther,
}

// RejectionReasonFromLabel resolves a display label to its reason.
func RejectionReasonFromLabel(label string) (RejectionReason, bool) {
	reason, ok := rejectionLabels[label]
	return reason, ok
}

// Valid reports whether the reason belongs to the closed set.
func (r RejectionReason) Valid() bool {
	for _, known := range RejectionReasons {
		if r == known {
			return true
		}
	}
	return false
}

// DocumentVersion is one submission of a document type for an enrollment.
// PreviousVersionID points at the version this one superseded and is never
// rewritten once set.
type DocumentVersion struct {
	ID                 string             `db:"id" json:"id"`
	EnrollmentID       string             `db:"enrollment_id" json:"enrollmentId"`
	DocumentType       string             `db:"document_type" json:"documentType"`
	FileRef            string             `db:"file_ref" json:"fileRef"`
	SubmissionMethod   SubmissionMethod   `db:"submission_method" json:"submissionMethod"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verificationStatus"`
	RejectionReason    *RejectionReason   `db:"rejection_reason" json:"rejectionReason,omitempty"`
	VerificationNotes  *string            `db:"verification_notes" json:"verificationNotes,omitempty"`
	IsCurrentVersion   bool               `db:"is_current_version" json:"isCurrentVersion"`
	PreviousVersionID  *string            `db:"previous_version_id" json:"previousVersionId,omitempty"`
	ResubmissionCount  int                `db:"resubmission_count" json:"resubmissionCount"`
	PhysicalStatus     PhysicalStatus     `db:"physical_verification_status" json:"physicalVerificationStatus"`
	SubmittedBy        string             `db:"submitted_by" json:"submittedBy"`
	SubmittedAt        time.Time          `db:"submitted_at" json:"submittedAt"`
	VerifiedBy         *string            `db:"verified_by" json:"verifiedBy,omitempty"`
	VerifiedAt         *time.Time         `db:"verified_at" json:"verifiedAt,omitempty"`
	RejectedBy         *string            `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt         *time.Time         `db:"rejected_at" json:"rejectedAt,omitempty"`
	PhysicalCheckedBy  *string            `db:"physical_checked_by" json:"physicalCheckedBy,omitempty"`
	PhysicalCheckedAt  *time.Time         `db:"physical_checked_at" json:"physicalCheckedAt,omitempty"`
}

// Satisfied reports whether this version fulfils its requirement: digitally
// verified and, when a paper copy is involved, checked in person as well.
func (v DocumentVersion) Satisfied() bool {
	if v.VerificationStatus != VerificationVerified {
		return false
	}
	if v.SubmissionMethod.RequiresPhysical() {
		return v.PhysicalStatus == PhysicalChecked
	}
	return true
}

// DocumentSlot identifies the (enrollment, document type) pair a version
// chain belongs to.
type DocumentSlot struct {
	EnrollmentID string
	DocumentType string
}
