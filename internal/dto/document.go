package dto

import "github.com/noah-isme/sma-enrollment-docs/internal/models"

// SubmitDocumentRequest is shared by the upload and resubmit endpoints.
type SubmitDocumentRequest struct {
	FileRef          string                  `json:"fileRef"`
	SubmissionMethod models.SubmissionMethod `json:"submissionMethod"`
}

// VerifyDocumentRequest carries optional officer notes.
type VerifyDocumentRequest struct {
	Notes string `json:"notes"`
}

// RejectDocumentRequest requires a reason from the closed set and notes.
// Reason accepts either the code or its display label.
type RejectDocumentRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

// ManualCheckResponse reports the state after a toggle.
type ManualCheckResponse struct {
	EnrollmentID string `json:"enrollmentId"`
	DocumentType string `json:"documentType"`
	Checked      bool   `json:"checked"`
}
