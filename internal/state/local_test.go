package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picket-io/picket/internal/ir"
)

func testBackend(t *testing.T) *LocalBackend {
	t.Helper()
	return NewLocalBackend(filepath.Join(t.TempDir(), "state.json"))
}

func TestLocalReadEmpty(t *testing.T) {
	b := testBackend(t)
	st, err := b.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, st.Serial)
	assert.Empty(t, st.Resources)
}

func TestLocalRoundTrip(t *testing.T) {
	b := testBackend(t)
	st := ir.NewState("lineage-1")
	st.Serial = 3
	st.Upsert(&ir.ResourceState{
		Type:       "aws:EC2.Vpc",
		Name:       "main",
		Provider:   "aws",
		ProviderID: "vpc-123",
		Inputs:     map[string]any{"cidrBlock": "10.0.0.0/16"},
		Outputs:    map[string]any{"id": "vpc-123"},
	})
	require.NoError(t, b.Write(context.Background(), st))

	got, err := b.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got.Serial)
	assert.Equal(t, "lineage-1", got.Lineage)
	rec := got.Resource("aws:EC2.Vpc.main")
	require.NotNil(t, rec)
	assert.Equal(t, "vpc-123", rec.ProviderID)
}

func TestLocalWriteCreatesDirectory(t *testing.T) {
	b := NewLocalBackend(filepath.Join(t.TempDir(), ".picket", "state.json"))
	require.NoError(t, b.Write(context.Background(), ir.NewState("l")))
	_, err := b.Read(context.Background())
	assert.NoError(t, err)
}

func TestLocalLockExclusion(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	lock, err := b.AcquireLock(ctx, "holder-one", time.Minute)
	require.NoError(t, err)

	_, err = b.AcquireLock(ctx, "holder-two", time.Minute)
	var contention *LockContentionError
	require.ErrorAs(t, err, &contention)
	assert.Equal(t, "holder-one", contention.Holder)

	require.NoError(t, b.ReleaseLock(ctx, lock))
	relocked, err := b.AcquireLock(ctx, "holder-two", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "holder-two", relocked.Holder)
}

func TestLocalLockExpiredReclaim(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	// A stale lock left behind by a crashed holder.
	stale, err := json.Marshal(lockFile{
		ID:         "stale-id",
		Holder:     "crashed-process",
		AcquiredAt: time.Now().Add(-time.Hour),
		TTLSeconds: 60,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(b.lockPath(), stale, 0o644))

	lock, err := b.AcquireLock(ctx, "new-holder", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "new-holder", lock.Holder)
	assert.NotEqual(t, "stale-id", lock.ID)
}

func TestLocalReleaseIgnoresForeignLock(t *testing.T) {
	b := testBackend(t)
	ctx := context.Background()

	held, err := b.AcquireLock(ctx, "owner", time.Minute)
	require.NoError(t, err)

	// Releasing a lock we do not hold must not disturb the owner's.
	require.NoError(t, b.ReleaseLock(ctx, &Lock{ID: "someone-else"}))
	_, err = b.AcquireLock(ctx, "intruder", time.Minute)
	var contention *LockContentionError
	assert.ErrorAs(t, err, &contention)

	require.NoError(t, b.ReleaseLock(ctx, held))
}

func TestLockExpired(t *testing.T) {
	l := &Lock{AcquiredAt: time.Now().Add(-20 * time.Minute), TTL: DefaultLockTTL}
	assert.True(t, l.Expired(time.Now()))

	l = &Lock{AcquiredAt: time.Now(), TTL: DefaultLockTTL}
	assert.False(t, l.Expired(time.Now()))
}
