package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository/inmem"
	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
	"github.com/noah-isme/sma-enrollment-docs/pkg/lock"
)

func TestManualCheckToggleRoundTrip(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()

	on, err := f.manual.Toggle(ctx, testEnrollment, "birth_certificate", "officer-1")
	require.NoError(t, err)
	assert.True(t, on.Checked)
	assert.Equal(t, birthCert, on.DocumentType)

	entries, err := f.manual.List(ctx, testEnrollment)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "officer-1", entries[0].CheckedBy)

	off, err := f.manual.Toggle(ctx, testEnrollment, birthCert, "officer-1")
	require.NoError(t, err)
	assert.False(t, off.Checked)

	entries, err = f.manual.List(ctx, testEnrollment)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, []models.EventKind{models.EventManualCheckSet, models.EventManualCheckCleared}, f.publisher.kinds())
}

func TestManualCheckConflictsWithDocumentRecords(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	v := f.upload(t, birthCert, models.SubmissionUploaded)

	_, err := f.manual.Toggle(ctx, testEnrollment, birthCert, "officer-1")
	assertKind(t, err, appErrors.ErrConflict)

	// A rejected chain still counts as a record of the requirement.
	f.reject(t, v.ID)
	_, err = f.manual.Toggle(ctx, testEnrollment, birthCert, "officer-1")
	assertKind(t, err, appErrors.ErrConflict)

	exists, err := f.manualStore.Exists(ctx, testEnrollment, birthCert)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestManualCheckRequiresDocumentType(t *testing.T) {
	f := newDocFixture(t)
	_, err := f.manual.Toggle(context.Background(), testEnrollment, " ", "officer-1")
	assertKind(t, err, appErrors.ErrValidation)
	_, err = f.manual.List(context.Background(), "")
	assertKind(t, err, appErrors.ErrValidation)
}

// racingManualStore loses every delete, as if another officer cleared the
// check first.
type racingManualStore struct {
	*inmem.ManualCheckStore
}

func (s racingManualStore) Delete(context.Context, string, string) error {
	return sql.ErrNoRows
}

func TestManualCheckRefusalsCountTheAttemptedAction(t *testing.T) {
	f := newDocFixture(t)
	ctx := context.Background()
	svc := NewManualCheckService(racingManualStore{f.manualStore}, f.docStore, lock.NewLocal(time.Second), nil, f.metrics, nil)

	_, err := svc.Toggle(ctx, testEnrollment, photo, "officer-1")
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, testEnrollment, photo, "officer-1")
	assertKind(t, err, appErrors.ErrInvalidState)

	rejected := f.metrics.transitionsRejected
	assert.Equal(t, 1.0, testutil.ToFloat64(rejected.WithLabelValues(string(models.EventManualCheckCleared), "INVALID_STATE")))
	assert.Equal(t, 0.0, testutil.ToFloat64(rejected.WithLabelValues(string(models.EventManualCheckSet), "INVALID_STATE")))

	f.upload(t, birthCert, models.SubmissionUploaded)
	_, err = svc.Toggle(ctx, testEnrollment, birthCert, "officer-1")
	assertKind(t, err, appErrors.ErrConflict)
	assert.Equal(t, 1.0, testutil.ToFloat64(rejected.WithLabelValues(string(models.EventManualCheckSet), "CONFLICT")))
}
