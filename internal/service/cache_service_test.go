package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
)

type fakeCacheRepo struct {
	values   map[string][]byte
	ttls     map[string]time.Duration
	patterns []string
	getErr   error
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if f.getErr != nil {
		return f.getErr
	}
	raw, ok := f.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = raw
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	f.patterns = append(f.patterns, pattern)
	return nil
}

func TestCacheServiceHitAndMiss(t *testing.T) {
	repo := newFakeCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, 0, nil, true)
	ctx := context.Background()

	var got []string
	hit, err := svc.Get(ctx, "catalog:10:New Student", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "catalog:10:New Student", []string{"BIRTH_CERTIFICATE"}, 0))
	assert.Equal(t, 10*time.Minute, repo.ttls["enrollment-docs:catalog:10:New Student"])

	hit, err = svc.Get(ctx, "catalog:10:New Student", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"BIRTH_CERTIFICATE"}, got)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newFakeCacheRepo()
	repo.getErr = errors.New("connection refused")
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	metrics := NewMetricsService()
	svc.metrics = metrics

	var got []string
	hit, err := svc.Get(context.Background(), "catalog:10:*", &got)
	assert.False(t, hit)
	assert.EqualError(t, err, "connection refused")
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.cacheMisses))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, false)
	ctx := context.Background()

	assert.False(t, svc.Enabled())
	require.NoError(t, svc.Set(ctx, "catalog:10:x", []string{"PHOTO"}, 0))
	require.NoError(t, svc.Invalidate(ctx, "catalog:10:*"))
	assert.Empty(t, repo.values)
	assert.Empty(t, repo.patterns)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
}

func TestCacheServiceInvalidate(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)

	require.NoError(t, svc.Invalidate(context.Background(), "catalog:10:*"))
	assert.Equal(t, []string{"enrollment-docs:catalog:10:*"}, repo.patterns)
}

func TestCacheServiceNamespaceOption(t *testing.T) {
	repo := newFakeCacheRepo()
	svc := NewCacheService(repo, nil, time.Minute, nil, true, WithCacheNamespace("staging"))

	require.NoError(t, svc.Set(context.Background(), "catalog:11:x", []string{"PHOTO"}, 0))
	assert.Contains(t, repo.values, "staging:catalog:11:x")
	assert.Equal(t, time.Minute, repo.ttls["staging:catalog:11:x"])
}
