package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picket-io/picket/internal/ir"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(NewLocalBackend(filepath.Join(t.TempDir(), "state.json")))
}

func TestStoreReadAssignsLineage(t *testing.T) {
	s := testStore(t)
	st, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, st.Lineage)
	assert.Equal(t, 0, st.Serial)
}

func TestStoreWriteIncrementsSerial(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	st, err := s.Read(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, st, 0))
	assert.Equal(t, 1, st.Serial)

	require.NoError(t, s.Write(ctx, st, 1))
	assert.Equal(t, 2, st.Serial)
}

func TestStoreWriteConflict(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	st, err := s.Read(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, st, 0))

	// A writer holding the pre-write serial loses.
	stale, err := s.Read(ctx)
	require.NoError(t, err)
	err = s.Write(ctx, stale, 0)
	var conflict *VersionConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 0, conflict.Expected)
	assert.Equal(t, 1, conflict.Actual)
}

func TestStoreLineageMismatch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	st := ir.NewState("lineage-a")
	require.NoError(t, s.Write(ctx, st, 0))

	other := ir.NewState("lineage-b")
	err := s.Write(ctx, other, 1)
	assert.ErrorContains(t, err, "lineage mismatch")
}

func TestStoreWriteArchivesHistory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	serials, err := s.Snapshots(ctx)
	require.NoError(t, err)
	assert.Empty(t, serials)

	st, err := s.Read(ctx)
	require.NoError(t, err)
	st.Upsert(&ir.ResourceState{Type: "null:Resource", Name: "a", Provider: "null", ProviderID: "id-1"})
	require.NoError(t, s.Write(ctx, st, 0))

	st.Upsert(&ir.ResourceState{Type: "null:Resource", Name: "b", Provider: "null", ProviderID: "id-2"})
	require.NoError(t, s.Write(ctx, st, 1))

	serials, err = s.Snapshots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, serials)

	first, err := s.ReadSnapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Serial)
	require.Len(t, first.Resources, 1)
	assert.Equal(t, "id-1", first.Resources[0].ProviderID)

	second, err := s.ReadSnapshot(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, second.Resources, 2)

	_, err = s.ReadSnapshot(ctx, 9)
	assert.ErrorContains(t, err, "no state snapshot for serial 9")
}

func TestStoreLockUnlock(t *testing.T) {
	backend := NewLocalBackend(filepath.Join(t.TempDir(), "state.json"))
	ctx := context.Background()

	first := NewStore(backend)
	require.NoError(t, first.Lock(ctx, time.Minute))

	second := NewStore(backend)
	err := second.Lock(ctx, time.Minute)
	var contention *LockContentionError
	require.ErrorAs(t, err, &contention)

	require.NoError(t, first.Unlock(ctx))
	require.NoError(t, second.Lock(ctx, time.Minute))
	require.NoError(t, second.Unlock(ctx))

	// Unlock without a held lock is a no-op.
	assert.NoError(t, first.Unlock(ctx))
}
