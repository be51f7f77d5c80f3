package models

import "time"

// EventKind names the transition a DocumentEvent describes.
type EventKind string

const (
	EventDocumentUploaded    EventKind = "DOCUMENT_UPLOADED"
	EventDocumentResubmitted EventKind = "DOCUMENT_RESUBMITTED"
	EventDocumentVerified    EventKind = "DOCUMENT_VERIFIED"
	EventDocumentRejected    EventKind = "DOCUMENT_REJECTED"
	EventPhysicalChecked     EventKind = "PHYSICAL_CHECKED"
	EventPhysicalMissing     EventKind = "PHYSICAL_MISSING"
	EventManualCheckSet      EventKind = "MANUAL_CHECK_SET"
	EventManualCheckCleared  EventKind = "MANUAL_CHECK_CLEARED"
	EventWorkflowTransition  EventKind = "WORKFLOW_TRANSITION"
)

// DocumentEvent is emitted after every committed state transition.
type DocumentEvent struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollmentId"`
	DocumentType string    `json:"documentType,omitempty"`
	VersionID    string    `json:"versionId,omitempty"`
	Kind         EventKind `json:"kind"`
	FromStatus   string    `json:"fromStatus,omitempty"`
	ToStatus     string    `json:"toStatus"`
	Actor        string    `json:"actor"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
