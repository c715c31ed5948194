package null

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picket-io/picket/internal/provider"
)

func TestLifecycle(t *testing.T) {
	p := New()
	ctx := context.Background()

	created, err := p.Create(ctx, &provider.CreateRequest{
		Type:       ResourceType,
		Name:       "marker",
		Attributes: map[string]any{"value": "hello"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ProviderID)
	assert.Equal(t, "hello", created.Computed["value"])
	assert.Equal(t, created.ProviderID, created.Computed["id"])

	got, err := p.Get(ctx, &provider.GetRequest{Type: ResourceType, ProviderID: created.ProviderID})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Computed["value"])

	updated, err := p.Update(ctx, &provider.UpdateRequest{
		Type:       ResourceType,
		Name:       "marker",
		ProviderID: created.ProviderID,
		Attributes: map[string]any{"value": "changed"},
	})
	require.NoError(t, err)
	assert.Equal(t, "changed", updated.Computed["value"])

	require.NoError(t, p.Destroy(ctx, &provider.DestroyRequest{Type: ResourceType, ProviderID: created.ProviderID}))
	_, err = p.Get(ctx, &provider.GetRequest{Type: ResourceType, ProviderID: created.ProviderID})
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestDistinctIDs(t *testing.T) {
	p := New()
	ctx := context.Background()

	a, err := p.Create(ctx, &provider.CreateRequest{Type: ResourceType, Name: "a"})
	require.NoError(t, err)
	b, err := p.Create(ctx, &provider.CreateRequest{Type: ResourceType, Name: "b"})
	require.NoError(t, err)
	assert.NotEqual(t, a.ProviderID, b.ProviderID)
}

func TestSchema(t *testing.T) {
	p := New()
	_, err := p.Schema(ResourceType)
	require.NoError(t, err)
	_, err = p.Schema("null:Other")
	assert.Error(t, err)
}
