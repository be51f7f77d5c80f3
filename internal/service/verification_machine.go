package service

import (
	"strings"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
)

// The functions below decide transitions without touching storage. They are
// applied under the per-document lock and persisted with a conditional write.

func initialPhysicalStatus(method models.SubmissionMethod) models.PhysicalStatus {
	if method.RequiresPhysical() {
		return models.PhysicalPending
	}
	return models.PhysicalNotRequired
}

func validateSubmission(fileRef string, method models.SubmissionMethod) (string, models.SubmissionMethod, error) {
	fileRef = strings.TrimSpace(fileRef)
	if fileRef == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "fileRef is required")
	}
	method = models.SubmissionMethod(strings.ToUpper(strings.TrimSpace(string(method))))
	if !method.Valid() {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "submissionMethod must be one of UPLOADED, PHYSICAL, BOTH")
	}
	return fileRef, method, nil
}

// firstVersion builds the version created by the first submission of a pair.
func firstVersion(enrollmentID, documentType, fileRef string, method models.SubmissionMethod, actor string) *models.DocumentVersion {
	return &models.DocumentVersion{
		EnrollmentID:       enrollmentID,
		DocumentType:       documentType,
		FileRef:            fileRef,
		SubmissionMethod:   method,
		VerificationStatus: models.VerificationPending,
		PhysicalStatus:     initialPhysicalStatus(method),
		IsCurrentVersion:   true,
		ResubmissionCount:  0,
		SubmittedBy:        actor,
	}
}

// supersedingVersion builds the version that replaces a rejected one. The
// rejection details stay on the previous version.
func supersedingVersion(previous models.DocumentVersion, fileRef string, method models.SubmissionMethod, actor string) (*models.DocumentVersion, error) {
	if !previous.IsCurrentVersion {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only the current version can be resubmitted")
	}
	if previous.VerificationStatus != models.VerificationRejected {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only a rejected document can be resubmitted")
	}
	previousID := previous.ID
	next := firstVersion(previous.EnrollmentID, previous.DocumentType, fileRef, method, actor)
	next.PreviousVersionID = &previousID
	next.ResubmissionCount = previous.ResubmissionCount + 1
	return next, nil
}

func checkVerify(version models.DocumentVersion) error {
	if !version.IsCurrentVersion {
		return appErrors.Clone(appErrors.ErrInvalidState, "superseded versions cannot be verified")
	}
	switch version.VerificationStatus {
	case models.VerificationPending:
		return nil
	case models.VerificationVerified:
		return appErrors.Clone(appErrors.ErrInvalidState, "document is already verified")
	default:
		return appErrors.Clone(appErrors.ErrInvalidState, "rejected documents must be resubmitted, not re-verified")
	}
}

// normalizeRejectionReason accepts a reason code or its display label.
func normalizeRejectionReason(raw string) (models.RejectionReason, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	if reason := models.RejectionReason(strings.ToUpper(trimmed)); reason.Valid() {
		return reason, nil
	}
	if reason, ok := models.RejectionReasonFromLabel(strings.ToLower(trimmed)); ok {
		return reason, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "unknown rejection reason")
}

// checkReject validates the decision input first and the state second, so a
// malformed request is reported as such regardless of state.
func checkReject(version models.DocumentVersion, rawReason, notes string) (models.RejectionReason, string, error) {
	reason, err := normalizeRejectionReason(rawReason)
	if err != nil {
		return "", "", err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "rejection notes are required")
	}
	if !version.IsCurrentVersion {
		return "", "", appErrors.Clone(appErrors.ErrInvalidState, "superseded versions cannot be rejected")
	}
	switch version.VerificationStatus {
	case models.VerificationPending:
		return reason, notes, nil
	case models.VerificationVerified:
		return "", "", appErrors.Clone(appErrors.ErrInvalidState, "verified documents cannot be rejected")
	default:
		return "", "", appErrors.Clone(appErrors.ErrInvalidState, "document is already rejected")
	}
}

func checkPhysical(version models.DocumentVersion) error {
	if !version.IsCurrentVersion {
		return appErrors.Clone(appErrors.ErrInvalidState, "superseded versions cannot be checked")
	}
	switch version.PhysicalStatus {
	case models.PhysicalPending:
		return nil
	case models.PhysicalNotRequired:
		return appErrors.Clone(appErrors.ErrInvalidState, "no physical copy is expected for this document")
	case models.PhysicalChecked:
		return appErrors.Clone(appErrors.ErrInvalidState, "physical copy is already checked")
	default:
		return appErrors.Clone(appErrors.ErrInvalidState, "physical copy was marked missing")
	}
}
