//go:build integration

package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
)

func newPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("enrollment_docs"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.WithInitScripts(filepath.Join("..", "..", "db", "migrations", "0001_document_verification.sql")),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `INSERT INTO enrollments (id, student_name, grade_level, enrollment_type) VALUES ('enr-1', 'Siti', '10', 'New Student')`)
	require.NoError(t, err)
	return db
}

func TestPostgresDocumentChain(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()
	repo := NewDocumentRepository(db)

	first := &models.DocumentVersion{
		EnrollmentID: "enr-1", DocumentType: "BIRTH_CERTIFICATE", FileRef: "files/a",
		SubmissionMethod: models.SubmissionUploaded, VerificationStatus: models.VerificationPending,
		PhysicalStatus: models.PhysicalNotRequired, IsCurrentVersion: true, SubmittedBy: "parent-1",
		SubmittedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(ctx, first))

	duplicate := *first
	duplicate.ID = ""
	assert.ErrorIs(t, repo.Create(ctx, &duplicate), ErrDuplicate)

	reason, notes := models.RejectionUnclearIllegible, "blurry scan"
	require.NoError(t, repo.UpdateVerification(ctx, VerificationUpdate{
		ID: first.ID, Status: models.VerificationRejected, RejectionReason: &reason, Notes: &notes,
		Actor: "officer-1", At: time.Now().UTC(),
	}))
	assert.ErrorIs(t, repo.UpdateVerification(ctx, VerificationUpdate{
		ID: first.ID, Status: models.VerificationVerified, Actor: "officer-1", At: time.Now().UTC(),
	}), sql.ErrNoRows)

	previousID := first.ID
	next := &models.DocumentVersion{
		EnrollmentID: "enr-1", DocumentType: "BIRTH_CERTIFICATE", FileRef: "files/b",
		SubmissionMethod: models.SubmissionUploaded, VerificationStatus: models.VerificationPending,
		PhysicalStatus: models.PhysicalNotRequired, IsCurrentVersion: true, PreviousVersionID: &previousID,
		ResubmissionCount: 1, SubmittedBy: "parent-1", SubmittedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Supersede(ctx, first.ID, next))
	assert.ErrorIs(t, repo.Supersede(ctx, first.ID, next), sql.ErrNoRows)

	current, err := repo.GetCurrent(ctx, "enr-1", "BIRTH_CERTIFICATE")
	require.NoError(t, err)
	assert.Equal(t, next.ID, current.ID)

	chain, err := repo.ListByPair(ctx, "enr-1", "BIRTH_CERTIFICATE")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.False(t, chain[0].IsCurrentVersion)
	require.NotNil(t, chain[0].RejectionReason)
	assert.Equal(t, models.RejectionUnclearIllegible, *chain[0].RejectionReason)
}

func TestPostgresAuditAndManualChecks(t *testing.T) {
	db := newPostgres(t)
	ctx := context.Background()

	audit := NewAuditRepository(db)
	entry := &models.AuditLog{ID: "evt-1", Action: string(models.EventManualCheckSet), Resource: models.AuditResourceManualCheck, NewValues: []byte(`{"status":"CHECKED"}`)}
	require.NoError(t, audit.CreateAuditLog(ctx, entry))
	require.NoError(t, audit.CreateAuditLog(ctx, entry))
	var count int
	require.NoError(t, db.GetContext(ctx, &count, `SELECT COUNT(*) FROM audit_logs WHERE new_values->>'status' = 'CHECKED'`))
	assert.Equal(t, 1, count)

	checks := NewManualCheckRepository(db)
	require.NoError(t, checks.Create(ctx, &models.ManualCheckEntry{EnrollmentID: "enr-1", DocumentType: "PHOTO", CheckedBy: "officer-1"}))
	assert.ErrorIs(t, checks.Create(ctx, &models.ManualCheckEntry{EnrollmentID: "enr-1", DocumentType: "PHOTO", CheckedBy: "officer-1"}), ErrDuplicate)
	require.NoError(t, checks.Delete(ctx, "enr-1", "PHOTO"))
	assert.ErrorIs(t, checks.Delete(ctx, "enr-1", "PHOTO"), sql.ErrNoRows)
}
