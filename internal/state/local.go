package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/logging"
)

// LocalBackend stores state as a JSON file next to the deployment, with a
// sibling lock file.
type LocalBackend struct {
	path string
}

func NewLocalBackend(path string) *LocalBackend {
	return &LocalBackend{path: path}
}

func (b *LocalBackend) Read(ctx context.Context) (*ir.State, error) {
	raw, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return ir.NewState(""), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file %s: %w", b.path, err)
	}

	raw, err = Decrypt(raw)
	if err != nil {
		return nil, err
	}

	var st ir.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", b.path, err)
	}
	return &st, nil
}

func (b *LocalBackend) Write(ctx context.Context, st *ir.State) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return &PersistError{Path: b.path, Err: err}
	}

	content, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return &PersistError{Path: b.path, Err: err}
	}
	content, err = Encrypt(content)
	if err != nil {
		return &PersistError{Path: b.path, Err: err}
	}

	// Write-then-rename so a crash never leaves a half-written state.
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return &PersistError{Path: b.path, Err: err}
	}
	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return &PersistError{Path: b.path, Err: err}
	}
	return nil
}

// Snapshot archives the state under a history directory beside the state
// file, one file per serial. Snapshots are never rewritten.
func (b *LocalBackend) Snapshot(ctx context.Context, st *ir.State) error {
	if err := os.MkdirAll(b.historyDir(), 0o755); err != nil {
		return &PersistError{Path: b.historyDir(), Err: err}
	}

	content, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return &PersistError{Path: b.snapshotPath(st.Serial), Err: err}
	}
	content, err = Encrypt(content)
	if err != nil {
		return &PersistError{Path: b.snapshotPath(st.Serial), Err: err}
	}
	if err := os.WriteFile(b.snapshotPath(st.Serial), content, 0o600); err != nil {
		return &PersistError{Path: b.snapshotPath(st.Serial), Err: err}
	}
	return nil
}

func (b *LocalBackend) ReadSnapshot(ctx context.Context, serial int) (*ir.State, error) {
	raw, err := os.ReadFile(b.snapshotPath(serial))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("no state snapshot for serial %d", serial)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state snapshot %s: %w", b.snapshotPath(serial), err)
	}

	raw, err = Decrypt(raw)
	if err != nil {
		return nil, err
	}

	var st ir.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("failed to parse state snapshot %s: %w", b.snapshotPath(serial), err)
	}
	return &st, nil
}

func (b *LocalBackend) Snapshots(ctx context.Context) ([]int, error) {
	entries, err := os.ReadDir(b.historyDir())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list state snapshots in %s: %w", b.historyDir(), err)
	}

	prefix := filepath.Base(b.path) + "."
	var serials []int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		serial, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), prefix))
		if err != nil {
			continue
		}
		serials = append(serials, serial)
	}
	sort.Ints(serials)
	return serials, nil
}

func (b *LocalBackend) historyDir() string {
	return filepath.Join(filepath.Dir(b.path), "history")
}

func (b *LocalBackend) snapshotPath(serial int) string {
	return filepath.Join(b.historyDir(), fmt.Sprintf("%s.%d", filepath.Base(b.path), serial))
}

type lockFile struct {
	ID         string    `json:"id"`
	Holder     string    `json:"holder"`
	AcquiredAt time.Time `json:"acquiredAt"`
	TTLSeconds int64     `json:"ttlSeconds"`
}

func (b *LocalBackend) AcquireLock(ctx context.Context, holder string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	lock := &Lock{
		ID:         uuid.NewString(),
		Holder:     holder,
		AcquiredAt: time.Now().UTC(),
		TTL:        ttl,
	}

	if err := b.tryCreateLock(lock); err == nil {
		return lock, nil
	} else if !os.IsExist(err) {
		return nil, &PersistError{Path: b.lockPath(), Err: err}
	}

	prior, raw, err := b.readLock()
	if err != nil {
		return nil, err
	}
	if !prior.Expired(time.Now()) {
		return nil, &LockContentionError{Holder: prior.Holder, AcquiredAt: prior.AcquiredAt, TTL: prior.TTL}
	}

	// Reclaim an expired lock, but only if it is still the exact lock we
	// observed: a live process replacing it in the meantime must win.
	current, err := os.ReadFile(b.lockPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, &PersistError{Path: b.lockPath(), Err: err}
	}
	if err == nil && !bytes.Equal(current, raw) {
		return nil, &LockContentionError{Holder: prior.Holder, AcquiredAt: prior.AcquiredAt, TTL: prior.TTL}
	}
	logging.Warn("reclaiming expired state lock", "holder", prior.Holder, "acquired_at", prior.AcquiredAt)
	if err := os.Remove(b.lockPath()); err != nil && !os.IsNotExist(err) {
		return nil, &PersistError{Path: b.lockPath(), Err: err}
	}
	if err := b.tryCreateLock(lock); err != nil {
		if os.IsExist(err) {
			return nil, &LockContentionError{Holder: prior.Holder, AcquiredAt: prior.AcquiredAt, TTL: prior.TTL}
		}
		return nil, &PersistError{Path: b.lockPath(), Err: err}
	}
	return lock, nil
}

func (b *LocalBackend) ReleaseLock(ctx context.Context, lock *Lock) error {
	prior, _, err := b.readLock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	// Never remove someone else's lock.
	if prior.ID != lock.ID {
		return nil
	}
	if err := os.Remove(b.lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}

// tryCreateLock creates the lock file exclusively; os.IsExist on the
// returned error means contention.
func (b *LocalBackend) tryCreateLock(lock *Lock) error {
	if err := os.MkdirAll(filepath.Dir(b.lockPath()), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(b.lockPath(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	content, err := json.Marshal(lockFile{
		ID:         lock.ID,
		Holder:     lock.Holder,
		AcquiredAt: lock.AcquiredAt,
		TTLSeconds: int64(lock.TTL.Seconds()),
	})
	if err != nil {
		return err
	}
	_, err = f.Write(content)
	return err
}

func (b *LocalBackend) readLock() (*Lock, []byte, error) {
	raw, err := os.ReadFile(b.lockPath())
	if err != nil {
		return nil, nil, err
	}
	var lf lockFile
	if err := json.Unmarshal(raw, &lf); err != nil {
		return nil, nil, fmt.Errorf("failed to parse lock file %s: %w", b.lockPath(), err)
	}
	return &Lock{
		ID:         lf.ID,
		Holder:     lf.Holder,
		AcquiredAt: lf.AcquiredAt,
		TTL:        time.Duration(lf.TTLSeconds) * time.Second,
	}, raw, nil
}

func (b *LocalBackend) lockPath() string {
	return b.path + ".lock"
}
