package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository/inmem"
	"github.com/noah-isme/sma-enrollment-docs/pkg/events"
	"github.com/noah-isme/sma-enrollment-docs/pkg/lock"
)

type recordingPublisher struct {
	mu       sync.Mutex
	messages []events.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg events.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingPublisher) kinds() []models.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]models.EventKind, 0, len(p.messages))
	for _, msg := range p.messages {
		kinds = append(kinds, models.EventKind(msg.Type))
	}
	return kinds
}

type docFixture struct {
	db           *inmem.DB
	docStore     *inmem.DocumentStore
	manualStore  *inmem.ManualCheckStore
	enrollments  *inmem.EnrollmentStore
	publisher    *recordingPublisher
	metrics      *MetricsService
	requirements *RequirementService
	documents    *DocumentService
	manual       *ManualCheckService
	readiness    *ReadinessService
	workflow     *EnrollmentWorkflowService
}

const (
	testEnrollment = "enr-1"
	birthCert      = "BIRTH_CERTIFICATE"
	photo          = "PHOTO"
)

func newDocFixture(t *testing.T) *docFixture {
	t.Helper()
	ctx := context.Background()
	db := inmem.NewDB()
	require.NoError(t, inmem.Apply(ctx, db, inmem.Seed{
		Requirements: []models.DocumentRequirement{
			{GradeLevel: "10", DocumentType: birthCert, DocumentName: "Birth Certificate", IsRequired: true, DisplayOrder: 1, IsActive: true},
			{GradeLevel: "10", DocumentType: photo, DocumentName: "Photo", IsRequired: false, DisplayOrder: 2, IsActive: true},
		},
		Enrollments: []models.EnrollmentRecord{
			{ID: testEnrollment, StudentName: "Siti Rahma", GradeLevel: "10", EnrollmentType: "New Student"},
			{ID: "enr-continuing", StudentName: "Budi", GradeLevel: "10", EnrollmentType: DefaultContinuingEnrollmentType},
		},
	}))

	f := &docFixture{
		db:          db,
		docStore:    inmem.NewDocumentStore(db),
		manualStore: inmem.NewManualCheckStore(db),
		enrollments: inmem.NewEnrollmentStore(db),
		publisher:   &recordingPublisher{},
		metrics:     NewMetricsService(),
	}
	locker := lock.NewLocal(2 * time.Second)
	emitter := NewEventEmitter(f.publisher, f.metrics, nil)
	f.requirements = NewRequirementService(inmem.NewRequirementStore(db), nil, nil)
	f.documents = NewDocumentService(f.docStore, f.manualStore, locker, nil,
		WithDocumentEvents(emitter), WithDocumentMetrics(f.metrics))
	f.manual = NewManualCheckService(f.manualStore, f.docStore, locker, emitter, f.metrics, nil)
	f.readiness = NewReadinessService(f.enrollments, f.requirements, f.docStore, f.manualStore, f.metrics, nil)
	f.workflow = NewEnrollmentWorkflowService(f.enrollments, f.readiness, f.docStore, emitter, f.metrics, nil)
	return f
}

func (f *docFixture) upload(t *testing.T, docType string, method models.SubmissionMethod) *models.DocumentVersion {
	t.Helper()
	v, err := f.documents.Upload(context.Background(), testEnrollment, docType, "files/"+docType, method, "parent-1")
	require.NoError(t, err)
	return v
}

func (f *docFixture) reject(t *testing.T, versionID string) *models.DocumentVersion {
	t.Helper()
	v, err := f.documents.Reject(context.Background(), versionID, "Unclear/Illegible", "blurry scan", "officer-1")
	require.NoError(t, err)
	return v
}

// currentCount returns how many versions of the pair are flagged current.
func (f *docFixture) currentCount(t *testing.T, docType string) int {
	t.Helper()
	versions, err := f.docStore.ListByPair(context.Background(), testEnrollment, docType)
	require.NoError(t, err)
	n := 0
	for _, v := range versions {
		if v.IsCurrentVersion {
			n++
		}
	}
	return n
}
