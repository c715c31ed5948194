package state

import (
	"fmt"
	"time"
)

// LockContentionError means another holder currently owns the deployment
// lock. The apply never starts; retry later.
type LockContentionError struct {
	Holder     string
	AcquiredAt time.Time
	TTL        time.Duration
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("state is locked by %s (acquired %s, ttl %s): another apply is in progress",
		e.Holder, e.AcquiredAt.UTC().Format(time.RFC3339), e.TTL)
}

// VersionConflictError means the state serial changed between read and
// write. Nothing was persisted; cloud resources created so far remain and
// the operator must re-run the apply.
type VersionConflictError struct {
	Expected int
	Actual   int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("state version conflict: expected serial %d, found %d (state changed concurrently)",
		e.Expected, e.Actual)
}

// PersistError wraps a failed state write. Always fatal, never retried
// silently: partial state persistence risks consistency.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist state to %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
