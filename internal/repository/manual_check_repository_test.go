package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
)

func TestManualCheckRepositoryRoundTrip(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewManualCheckRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO manual_checks")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM manual_checks")).
		WithArgs("enr-1", "PHOTO").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT enrollment_id, document_type, checked_by, checked_at FROM manual_checks")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"enrollment_id", "document_type", "checked_by", "checked_at"}).
			AddRow("enr-1", "PHOTO", "officer-1", time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM manual_checks")).
		WithArgs("enr-1", "PHOTO").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM manual_checks")).
		WithArgs("enr-1", "PHOTO").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	entry := &models.ManualCheckEntry{EnrollmentID: "enr-1", DocumentType: "PHOTO", CheckedBy: "officer-1"}
	require.NoError(t, repo.Create(ctx, entry))
	require.False(t, entry.CheckedAt.IsZero())

	exists, err := repo.Exists(ctx, "enr-1", "PHOTO")
	require.NoError(t, err)
	require.True(t, exists)

	entries, err := repo.List(ctx, "enr-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, repo.Delete(ctx, "enr-1", "PHOTO"))
	require.ErrorIs(t, repo.Delete(ctx, "enr-1", "PHOTO"), sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
