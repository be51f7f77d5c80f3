package models

import "time"

// WorkflowStatus is the manually advanced enrollment status.
type WorkflowStatus string

// Possible workflow statuses.
const (
	WorkflowPending     WorkflowStatus = "PENDING"
	WorkflowIncomplete  WorkflowStatus = "INCOMPLETE"
	WorkflowUnderReview WorkflowStatus = "UNDER_REVIEW"
	WorkflowApproved    WorkflowStatus = "APPROVED"
	WorkflowRejected    WorkflowStatus = "REJECTED"
)

// workflowEdges lists the legal transitions of the enrollment workflow.
var workflowEdges = map[WorkflowStatus][]WorkflowStatus{
	WorkflowPending:     {WorkflowUnderReview, WorkflowIncomplete, WorkflowRejected},
	WorkflowUnderReview: {WorkflowIncomplete, WorkflowApproved, WorkflowRejected},
	WorkflowIncomplete:  {WorkflowUnderReview},
}

// Valid reports whether the status is known.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowPending, WorkflowIncomplete, WorkflowUnderReview, WorkflowApproved, WorkflowRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s WorkflowStatus) CanTransitionTo(target WorkflowStatus) bool {
	for _, next := range workflowEdges[s] {
		if next == target {
			return true
		}
	}
	return false
}

// EnrollmentRecord is the enrollment as seen by the document core. The
// record itself is owned elsewhere; only Status is written here.
type EnrollmentRecord struct {
	ID             string            `db:"id" json:"id"`
	StudentName    string            `db:"student_name" json:"studentName"`
	GradeLevel     string            `db:"grade_level" json:"gradeLevel"`
	EnrollmentType string            `db:"enrollment_type" json:"enrollmentType"`
	Status         WorkflowStatus    `db:"status" json:"status"`
	StatusNote     *string           `db:"status_note" json:"statusNote,omitempty"`
	UpdatedBy      *string           `db:"updated_by" json:"updatedBy,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
	Documents      []DocumentVersion `db:"-" json:"documents,omitempty"`
}
