package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-enrollment-docs/internal/dto"
	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository/inmem"
	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
)

type stubCatalogCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
}

func newStubCatalogCache() *stubCatalogCache {
	return &stubCatalogCache{entries: make(map[string][]byte)}
}

func (c *stubCatalogCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *stubCatalogCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *stubCatalogCache) Invalidate(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

type countingRequirementStore struct {
	*inmem.RequirementStore
	resolves int
}

func (s *countingRequirementStore) Resolve(ctx context.Context, gradeLevel, enrollmentType string) ([]models.DocumentRequirement, error) {
	s.resolves++
	return s.RequirementStore.Resolve(ctx, gradeLevel, enrollmentType)
}

func newRequirementFixture(t *testing.T) (*RequirementService, *countingRequirementStore, *stubCatalogCache, *inmem.AuditStore) {
	t.Helper()
	db := inmem.NewDB()
	store := &countingRequirementStore{RequirementStore: inmem.NewRequirementStore(db)}
	cache := newStubCatalogCache()
	audit := inmem.NewAuditStore(db)
	svc := NewRequirementService(store, nil, nil, WithCatalogCache(cache, time.Minute), WithRequirementAudit(audit))
	return svc, store, cache, audit
}

func seedRequirement(t *testing.T, svc *RequirementService, req dto.CreateRequirementRequest) *models.DocumentRequirement {
	t.Helper()
	item, err := svc.Create(context.Background(), req, "admin-1")
	require.NoError(t, err)
	return item
}

func TestResolveFiltersAndOrders(t *testing.T) {
	svc, _, _, _ := newRequirementFixture(t)
	transfer := "Transfer Student"
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "PHOTO", DocumentName: "Photo", DisplayOrder: 2})
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "birth_certificate", DocumentName: "Birth Certificate", IsRequired: true, DisplayOrder: 1})
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", EnrollmentType: &transfer, DocumentType: "TRANSFER_LETTER", DocumentName: "Transfer Letter", IsRequired: true, DisplayOrder: 3})
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "11", DocumentType: "REPORT_CARD", DocumentName: "Report Card", DisplayOrder: 1})

	items, err := svc.Resolve(context.Background(), "10", "New Student")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "BIRTH_CERTIFICATE", items[0].DocumentType)
	assert.Equal(t, "PHOTO", items[1].DocumentType)

	items, err = svc.Resolve(context.Background(), "10", transfer)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "TRANSFER_LETTER", items[2].DocumentType)
}

func TestResolveContinuingStudentIsAlwaysEmpty(t *testing.T) {
	svc, store, _, _ := newRequirementFixture(t)
	continuing := DefaultContinuingEnrollmentType
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "PHOTO", DocumentName: "Photo"})
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", EnrollmentType: &continuing, DocumentType: "REPORT_CARD", DocumentName: "Report Card", IsRequired: true})

	items, err := svc.Resolve(context.Background(), "10", DefaultContinuingEnrollmentType)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)
	assert.Zero(t, store.resolves)

	items, err = svc.Resolve(context.Background(), "", DefaultContinuingEnrollmentType)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestResolveCollapsesOverlappingRows(t *testing.T) {
	svc, _, _, _ := newRequirementFixture(t)
	newStudent := "New Student"
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "PHOTO", DocumentName: "Photo", DisplayOrder: 2})
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "BIRTH_CERTIFICATE", DocumentName: "Birth Certificate", IsRequired: true, DisplayOrder: 1})
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", EnrollmentType: &newStudent, DocumentType: "PHOTO", DocumentName: "Photo 3x4", IsRequired: true, DisplayOrder: 0})
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", EnrollmentType: &newStudent, DocumentType: "BIRTH_CERTIFICATE", DocumentName: "Birth Certificate (copy)", DisplayOrder: 1})

	items, err := svc.Resolve(context.Background(), "10", newStudent)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "PHOTO", items[0].DocumentType)
	assert.Equal(t, "Photo 3x4", items[0].DocumentName)
	assert.True(t, items[0].IsRequired)
	assert.Equal(t, "BIRTH_CERTIFICATE", items[1].DocumentType)
	assert.Equal(t, "Birth Certificate (copy)", items[1].DocumentName)
	assert.True(t, items[1].IsRequired)

	items, err = svc.Resolve(context.Background(), "10", "Transfer Student")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.False(t, items[1].IsRequired)
}

func TestResolveTrimsContinuingType(t *testing.T) {
	svc, store, _, _ := newRequirementFixture(t)
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "PHOTO", DocumentName: "Photo", IsRequired: true})

	items, err := svc.Resolve(context.Background(), "10", " "+DefaultContinuingEnrollmentType+" ")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, store.resolves)
}

func TestResolveUsesCatalogCache(t *testing.T) {
	svc, store, cache, _ := newRequirementFixture(t)
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "PHOTO", DocumentName: "Photo"})
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "10", "New Student")
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, "10", "New Student")
	require.NoError(t, err)
	assert.Equal(t, 1, store.resolves)

	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "BIRTH_CERTIFICATE", DocumentName: "Birth Certificate", IsRequired: true})
	assert.Contains(t, cache.invalidated, "catalog:10:*")

	items, err := svc.Resolve(ctx, "10", "New Student")
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 2, store.resolves)
}

func TestResolveRequiresGradeLevel(t *testing.T) {
	svc, _, _, _ := newRequirementFixture(t)
	_, err := svc.Resolve(context.Background(), " ", "New Student")
	assertKind(t, err, appErrors.ErrValidation)
}

func TestCreateRequirementValidation(t *testing.T) {
	svc, _, _, _ := newRequirementFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "Birth Cert", DocumentName: "Birth Certificate"}, "admin-1")
	assertKind(t, err, appErrors.ErrValidation)
	_, err = svc.Create(ctx, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "PHOTO"}, "admin-1")
	assertKind(t, err, appErrors.ErrValidation)
	_, err = svc.Create(ctx, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "PHOTO", DocumentName: "Photo", DisplayOrder: -1}, "admin-1")
	assertKind(t, err, appErrors.ErrValidation)
}

func TestCreateRequirementDuplicateConflicts(t *testing.T) {
	svc, _, _, audit := newRequirementFixture(t)
	seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "PHOTO", DocumentName: "Photo"})

	_, err := svc.Create(context.Background(), dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "photo", DocumentName: "Photo again"}, "admin-1")
	assertKind(t, err, appErrors.ErrConflict)

	entries := audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "REQUIREMENT_CREATE", entries[0].Action)
	assert.Equal(t, models.AuditResourceRequirement, entries[0].Resource)
}

func TestUpdateAndDeactivateRequirement(t *testing.T) {
	svc, _, _, audit := newRequirementFixture(t)
	ctx := context.Background()
	item := seedRequirement(t, svc, dto.CreateRequirementRequest{GradeLevel: "10", DocumentType: "PHOTO", DocumentName: "Photo"})

	name, required := "Passport Photo", true
	updated, err := svc.Update(ctx, item.ID, dto.UpdateRequirementRequest{DocumentName: &name, IsRequired: &required}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, "Passport Photo", updated.DocumentName)
	assert.True(t, updated.IsRequired)

	blank := " "
	_, err = svc.Update(ctx, item.ID, dto.UpdateRequirementRequest{DocumentName: &blank}, "admin-1")
	assertKind(t, err, appErrors.ErrValidation)

	deactivated, err := svc.Deactivate(ctx, item.ID, "admin-1")
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	items, err := svc.Resolve(ctx, "10", "New Student")
	require.NoError(t, err)
	assert.Empty(t, items)

	all, err := svc.List(ctx, "10")
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.Deactivate(ctx, "missing", "admin-1")
	assertKind(t, err, appErrors.ErrNotFound)
	assert.Len(t, audit.Entries(), 3)
}
