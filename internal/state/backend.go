package state

import (
	"context"
	"fmt"
	"time"

	"github.com/picket-io/picket/internal/ir"
)

// Backend is the storage interface for serialized state and its lock.
// Backends store bytes; versioning and serialization live in Store.
type Backend interface {
	// Read loads the state. A backend with no stored state returns an
	// empty state at serial zero, not an error.
	Read(ctx context.Context) (*ir.State, error)

	// Write persists the state. The caller holds the lock.
	Write(ctx context.Context, state *ir.State) error

	// AcquireLock takes the exclusive deployment lock, reclaiming an
	// expired one. Contention surfaces as *LockContentionError.
	AcquireLock(ctx context.Context, holder string, ttl time.Duration) (*Lock, error)

	// ReleaseLock releases a lock previously acquired by this holder.
	ReleaseLock(ctx context.Context, lock *Lock) error

	// Snapshot archives an immutable copy of the state, keyed by its
	// serial. Snapshots are the deployment history rollback reads from.
	Snapshot(ctx context.Context, state *ir.State) error

	// ReadSnapshot loads the archived state at serial.
	ReadSnapshot(ctx context.Context, serial int) (*ir.State, error)

	// Snapshots lists the archived serials in ascending order.
	Snapshots(ctx context.Context) ([]int, error)
}

// Config selects and configures a backend.
type Config struct {
	Type     string            // "local" (default) or "s3"
	Settings map[string]string // backend-specific keys
}

// NewBackend constructs a backend from configuration.
func NewBackend(cfg *Config) (Backend, error) {
	if cfg == nil {
		cfg = &Config{Type: "local"}
	}
	switch cfg.Type {
	case "local", "":
		path := cfg.Settings["path"]
		if path == "" {
			path = ".picket/state.json"
		}
		return NewLocalBackend(path), nil
	case "s3":
		return newS3Backend(cfg.Settings)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
