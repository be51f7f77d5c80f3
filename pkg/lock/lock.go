// Package lock serialises state transitions per (enrollment, document type).
package lock

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout is returned when a key could not be acquired before the wait
// bound elapsed.
var ErrTimeout = errors.New("lock wait timed out")

// Release frees a held key. Calling it more than once is a no-op.
type Release func()

// Locker grants exclusive access to a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// DocumentKey builds the lock key guarding one document slot of an enrollment.
func DocumentKey(enrollmentID, documentType string) string {
	return fmt.Sprintf("doc:%s:%s", enrollmentID, documentType)
}

// waitError reports why a wait on key ended. A caller that gave up gets its
// own context error; only the wait bound yields ErrTimeout.
func waitError(parent context.Context, key string) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("lock %s: %w", key, err)
	}
	return fmt.Errorf("%w: %s", ErrTimeout, key)
}
