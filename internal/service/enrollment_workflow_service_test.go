package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-docs/internal/dto"
	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
)

func TestWorkflowTransitionFollowsEdges(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()

	_, err := f.workflow.Transition(ctx, testEnrollment, dto.TransitionStatusRequest{Status: models.WorkflowApproved}, "officer-1")
	assertKind(t, err, appErrors.ErrInvalidState)

	resp, err := f.workflow.Transition(ctx, testEnrollment, dto.TransitionStatusRequest{Status: "under_review", Note: "starting"}, "officer-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowUnderReview, resp.Enrollment.Status)
	require.NotNil(t, resp.Enrollment.StatusNote)
	assert.Equal(t, "starting", *resp.Enrollment.StatusNote)
	require.NotNil(t, resp.Readiness)
	assert.False(t, resp.Readiness.AllRequiredSatisfied)

	resp, err = f.workflow.Transition(ctx, testEnrollment, dto.TransitionStatusRequest{Status: models.WorkflowIncomplete}, "officer-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowIncomplete, resp.Enrollment.Status)

	_, err = f.workflow.Transition(ctx, testEnrollment, dto.TransitionStatusRequest{Status: models.WorkflowRejected}, "officer-1")
	assertKind(t, err, appErrors.ErrInvalidState)
	assert.Contains(t, f.publisher.kinds(), models.EventWorkflowTransition)
}

func TestWorkflowApprovalNeedsReadinessOrOverride(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	_, err := f.workflow.Transition(ctx, testEnrollment, dto.TransitionStatusRequest{Status: models.WorkflowUnderReview}, "officer-1")
	require.NoError(t, err)

	_, err = f.workflow.Transition(ctx, testEnrollment, dto.TransitionStatusRequest{Status: models.WorkflowApproved}, "officer-1")
	assertKind(t, err, appErrors.ErrValidation)

	resp, err := f.workflow.Transition(ctx, testEnrollment, dto.TransitionStatusRequest{Status: models.WorkflowApproved, OverrideReadiness: true}, "officer-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowApproved, resp.Enrollment.Status)
	assert.False(t, resp.Readiness.AllRequiredSatisfied)
}

func TestWorkflowApprovalWhenReady(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	v := f.upload(t, birthCert, models.SubmissionUploaded)
	_, err := f.documents.Verify(ctx, v.ID, "", "officer-1")
	require.NoError(t, err)

	_, err = f.workflow.Transition(ctx, testEnrollment, dto.TransitionStatusRequest{Status: models.WorkflowUnderReview}, "officer-1")
	require.NoError(t, err)
	resp, err := f.workflow.Transition(ctx, testEnrollment, dto.TransitionStatusRequest{Status: models.WorkflowApproved}, "officer-1")
	require.NoError(t, err)
	assert.True(t, resp.Readiness.AllRequiredSatisfied)
	require.NotNil(t, resp.Enrollment.UpdatedBy)
	assert.Equal(t, "officer-1", *resp.Enrollment.UpdatedBy)
}

func TestWorkflowInputErrors(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()

	_, err := f.workflow.Transition(ctx, testEnrollment, dto.TransitionStatusRequest{Status: "ARCHIVED"}, "officer-1")
	assertKind(t, err, appErrors.ErrValidation)
	_, err = f.workflow.Transition(ctx, "missing", dto.TransitionStatusRequest{Status: models.WorkflowUnderReview}, "officer-1")
	assertKind(t, err, appErrors.ErrNotFound)
}

func TestWorkflowGetIncludesCurrentDocuments(t *testing.T) {
	f := newDocFixture(t)
	f.upload(t, birthCert, models.SubmissionUploaded)

	record, err := f.workflow.Get(context.Background(), testEnrollment)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowPending, record.Status)
	require.Len(t, record.Documents, 1)
	assert.Equal(t, birthCert, record.Documents[0].DocumentType)

	_, err = f.workflow.Get(context.Background(), "missing")
	assertKind(t, err, appErrors.ErrNotFound)
}
