package dto

import "github.com/noah-isme/sma-enrollment-docs/internal/models"

// SatisfactionKind tells how a requirement was satisfied.
type SatisfactionKind string

const (
	SatisfiedByManualCheck SatisfactionKind = "MANUAL_CHECK"
	SatisfiedByDocument    SatisfactionKind = "DOCUMENT"
)

// ReadinessItem describes one requirement in a readiness snapshot.
type ReadinessItem struct {
	DocumentType string                     `json:"documentType"`
	DocumentName string                     `json:"documentName"`
	IsRequired   bool                       `json:"isRequired"`
	Satisfied    bool                       `json:"satisfied"`
	SatisfiedBy  SatisfactionKind           `json:"satisfiedBy,omitempty"`
	VersionID    string                     `json:"versionId,omitempty"`
	Status       *models.VerificationStatus `json:"verificationStatus,omitempty"`
	Physical     *models.PhysicalStatus     `json:"physicalVerificationStatus,omitempty"`
}

// Readiness is the derived document readiness of an enrollment.
type Readiness struct {
	EnrollmentID          string          `json:"enrollmentId"`
	GradeLevel            string          `json:"gradeLevel"`
	EnrollmentType        string          `json:"enrollmentType"`
	SatisfiedRequirements []string        `json:"satisfiedRequirements"`
	UnsatisfiedRequired   []string        `json:"unsatisfiedRequired"`
	UnsatisfiedOptional   []string        `json:"unsatisfiedOptional"`
	AllRequiredSatisfied  bool            `json:"allRequiredSatisfied"`
	Items                 []ReadinessItem `json:"items"`
}

// TransitionStatusRequest advances the enrollment workflow.
type TransitionStatusRequest struct {
	Status            models.WorkflowStatus `json:"status"`
	Note              string                `json:"note"`
	OverrideReadiness bool                  `json:"overrideReadiness"`
}

// TransitionStatusResponse returns the updated record with the readiness
// snapshot the decision was made against.
type TransitionStatusResponse struct {
	Enrollment *models.EnrollmentRecord `json:"enrollment"`
	Readiness  *Readiness               `json:"readiness"`
}
