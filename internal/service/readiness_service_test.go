package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-docs/internal/dto"
	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository/inmem"
	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
)

func TestReadinessBirthCertificateExample(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()

	readiness, err := f.readiness.ComputeReadiness(ctx, testEnrollment)
	require.NoError(t, err)
	assert.False(t, readiness.AllRequiredSatisfied)
	assert.Equal(t, []string{birthCert}, readiness.UnsatisfiedRequired)
	assert.Equal(t, []string{photo}, readiness.UnsatisfiedOptional)
	assert.Empty(t, readiness.SatisfiedRequirements)
	require.Len(t, readiness.Items, 2)
	assert.Equal(t, "Birth Certificate", readiness.Items[0].DocumentName)

	v := f.upload(t, birthCert, models.SubmissionUploaded)
	_, err = f.documents.Verify(ctx, v.ID, "", "officer-1")
	require.NoError(t, err)

	readiness, err = f.readiness.ComputeReadiness(ctx, testEnrollment)
	require.NoError(t, err)
	assert.True(t, readiness.AllRequiredSatisfied)
	assert.Equal(t, []string{birthCert}, readiness.SatisfiedRequirements)
	assert.Equal(t, dto.SatisfiedByDocument, readiness.Items[0].SatisfiedBy)
	assert.Equal(t, v.ID, readiness.Items[0].VersionID)
	assert.Equal(t, []string{photo}, readiness.UnsatisfiedOptional)
}

func TestReadinessManualCheckSatisfiesRequirement(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	_, err := f.manual.Toggle(ctx, testEnrollment, birthCert, "officer-1")
	require.NoError(t, err)

	readiness, err := f.readiness.ComputeReadiness(ctx, testEnrollment)
	require.NoError(t, err)
	assert.True(t, readiness.AllRequiredSatisfied)
	assert.Equal(t, dto.SatisfiedByManualCheck, readiness.Items[0].SatisfiedBy)
	assert.Empty(t, readiness.Items[0].VersionID)
}

func TestReadinessPendingDocumentDoesNotCount(t *testing.T) {
	f := newDocFixture(t)
	v := f.upload(t, birthCert, models.SubmissionUploaded)

	readiness, err := f.readiness.ComputeReadiness(context.Background(), testEnrollment)
	require.NoError(t, err)
	assert.False(t, readiness.AllRequiredSatisfied)
	item := readiness.Items[0]
	assert.False(t, item.Satisfied)
	assert.Equal(t, v.ID, item.VersionID)
	require.NotNil(t, item.Status)
	assert.Equal(t, models.VerificationPending, *item.Status)
}

func TestReadinessContinuingStudentIsExempt(t *testing.T) {
	f := newDocFixture(t)
	readiness, err := f.readiness.ComputeReadiness(context.Background(), "enr-continuing")
	require.NoError(t, err)
	assert.True(t, readiness.AllRequiredSatisfied)
	assert.Empty(t, readiness.Items)
	assert.Equal(t, DefaultContinuingEnrollmentType, readiness.EnrollmentType)
}

func TestReadinessUnknownEnrollment(t *testing.T) {
	f := newDocFixture(t)
	_, err := f.readiness.ComputeReadiness(context.Background(), "nope")
	assertKind(t, err, appErrors.ErrNotFound)
	_, err = f.readiness.ComputeReadiness(context.Background(), "")
	assertKind(t, err, appErrors.ErrValidation)
}

func TestDeriveReadinessIgnoresUnlistedDocuments(t *testing.T) {
	requirements := []models.DocumentRequirement{{DocumentType: birthCert, IsRequired: true}}
	versions := []models.DocumentVersion{{
		ID: "v1", DocumentType: "REPORT_CARD", IsCurrentVersion: true,
		VerificationStatus: models.VerificationVerified, PhysicalStatus: models.PhysicalNotRequired,
	}}
	readiness := deriveReadiness(requirements, versions, nil)
	assert.False(t, readiness.AllRequiredSatisfied)
	assert.Equal(t, []string{birthCert}, readiness.UnsatisfiedRequired)

	empty := deriveReadiness(nil, nil, nil)
	assert.True(t, empty.AllRequiredSatisfied)
	assert.NotNil(t, empty.SatisfiedRequirements)
}

func TestReadinessCountsEachDocumentTypeOnce(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	newStudent := "New Student"
	require.NoError(t, inmem.Apply(ctx, f.db, inmem.Seed{Requirements: []models.DocumentRequirement{
		{GradeLevel: "10", EnrollmentType: &newStudent, DocumentType: birthCert, DocumentName: "Birth Certificate", IsRequired: true, DisplayOrder: 1, IsActive: true},
		{GradeLevel: "10", EnrollmentType: &newStudent, DocumentType: photo, DocumentName: "Photo", IsRequired: true, DisplayOrder: 2, IsActive: true},
	}}))

	readiness, err := f.readiness.ComputeReadiness(ctx, testEnrollment)
	require.NoError(t, err)
	assert.Equal(t, []string{birthCert, photo}, readiness.UnsatisfiedRequired)
	assert.Empty(t, readiness.UnsatisfiedOptional)
	assert.Len(t, readiness.Items, 2)

	_, err = f.manual.Toggle(ctx, testEnrollment, photo, "officer-1")
	require.NoError(t, err)
	readiness, err = f.readiness.ComputeReadiness(ctx, testEnrollment)
	require.NoError(t, err)
	assert.Equal(t, []string{photo}, readiness.SatisfiedRequirements)
	assert.Equal(t, []string{birthCert}, readiness.UnsatisfiedRequired)
}

func TestDeriveReadinessCollapsesRows(t *testing.T) {
	transfer := "Transfer Student"
	requirements := []models.DocumentRequirement{
		{DocumentType: photo, DocumentName: "Photo", DisplayOrder: 2},
		{DocumentType: photo, DocumentName: "Photo 3x4", EnrollmentType: &transfer, IsRequired: true, DisplayOrder: 2},
	}
	readiness := deriveReadiness(requirements, nil, nil)
	require.Len(t, readiness.Items, 1)
	assert.Equal(t, "Photo 3x4", readiness.Items[0].DocumentName)
	assert.Equal(t, []string{photo}, readiness.UnsatisfiedRequired)
	assert.Empty(t, readiness.UnsatisfiedOptional)
}
