package service

import (
	"context"
	"errors"
	"time"

	appErrors "github.com/noah-isme/sma-enrollment-docs/pkg/errors"
	"github.com/noah-isme/sma-enrollment-docs/pkg/lock"
)

// pairGuard serialises every state change of one (enrollment, document type)
// pair, whether it touches a version chain or the manual register.
type pairGuard struct {
	locker  lock.Locker
	metrics *MetricsService
}

func (g *pairGuard) with(ctx context.Context, enrollmentID, documentType string, fn func() error) error {
	start := time.Now()
	release, err := g.locker.Acquire(ctx, lock.DocumentKey(enrollmentID, documentType))
	g.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return appErrors.Clone(appErrors.ErrLockTimeout, "")
		}
		return appErrors.Internal(err, "failed to acquire document lock")
	}
	defer release()
	return fn()
}
