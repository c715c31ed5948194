// Package state persists the durable record of created resources for a
// deployment unit, guarded by a distributed lock and optimistic
// versioning.
package state

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/logging"
)

// Store wraps a Backend with lock management and optimistic concurrency.
// Writes are conditional on the serial read at lock-acquisition time, so
// a stale or concurrently-mutated state surfaces as a conflict instead of
// silent corruption.
type Store struct {
	backend Backend
	lock    *Lock
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Lock acquires the deployment lock. The holder string identifies this
// process in contention errors.
func (s *Store) Lock(ctx context.Context, ttl time.Duration) error {
	host, _ := os.Hostname()
	holder := fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])

	lock, err := s.backend.AcquireLock(ctx, holder, ttl)
	if err != nil {
		return err
	}
	s.lock = lock
	logging.Debug("acquired state lock", "holder", holder, "ttl", lock.TTL)
	return nil
}

// Unlock releases the lock if held.
func (s *Store) Unlock(ctx context.Context) error {
	if s.lock == nil {
		return nil
	}
	err := s.backend.ReleaseLock(ctx, s.lock)
	s.lock = nil
	return err
}

// Read loads the state, assigning a fresh lineage to a brand-new one.
func (s *Store) Read(ctx context.Context) (*ir.State, error) {
	st, err := s.backend.Read(ctx)
	if err != nil {
		return nil, err
	}
	if st.Lineage == "" {
		st.Lineage = uuid.NewString()
	}
	return st, nil
}

// Write persists st on the condition that the stored serial still equals
// expectedSerial. On success the stored serial becomes expectedSerial+1.
// A *VersionConflictError means nothing was persisted.
func (s *Store) Write(ctx context.Context, st *ir.State, expectedSerial int) error {
	current, err := s.backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to re-read state before write: %w", err)
	}
	if current.Serial != expectedSerial {
		return &VersionConflictError{Expected: expectedSerial, Actual: current.Serial}
	}
	if current.Lineage != "" && st.Lineage != "" && current.Lineage != st.Lineage {
		return fmt.Errorf("state lineage mismatch: refusing to overwrite %s with %s", current.Lineage, st.Lineage)
	}

	st.Serial = expectedSerial + 1
	if err := s.backend.Write(ctx, st); err != nil {
		return err
	}

	// Archive the new serial so a rollback can re-apply it later. History
	// is advisory; a failed archive never fails the write itself.
	if err := s.backend.Snapshot(ctx, st); err != nil {
		logging.Warn("failed to archive state snapshot", "serial", st.Serial, "error", err)
	}
	return nil
}

// ReadSnapshot loads the archived state at serial from the deployment
// history.
func (s *Store) ReadSnapshot(ctx context.Context, serial int) (*ir.State, error) {
	return s.backend.ReadSnapshot(ctx, serial)
}

// Snapshots lists the archived serials in ascending order.
func (s *Store) Snapshots(ctx context.Context) ([]int, error) {
	return s.backend.Snapshots(ctx)
}
