package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPropertiesStable(t *testing.T) {
	a := HashProperties(map[string]any{"cidrBlock": "10.0.0.0/16", "name": "main"})
	b := HashProperties(map[string]any{"name": "main", "cidrBlock": "10.0.0.0/16"})
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHashPropertiesNormalizesMapShape(t *testing.T) {
	// PKL decoding can yield map[any]any where JSON yields map[string]any.
	a := HashProperties(map[string]any{
		"tags": map[any]any{"env": "prod", "tier": "web"},
	})
	b := HashProperties(map[string]any{
		"tags": map[string]any{"tier": "web", "env": "prod"},
	})
	assert.Equal(t, a, b)
}

func TestHashPropertiesDetectsChange(t *testing.T) {
	a := HashProperties(map[string]any{"retentionDays": 7})
	b := HashProperties(map[string]any{"retentionDays": 14})
	assert.NotEqual(t, a, b)
}

func TestHashPropertiesNested(t *testing.T) {
	a := HashProperties(map[string]any{
		"ingress": []any{map[string]any{"port": 443}, map[string]any{"port": 80}},
	})
	b := HashProperties(map[string]any{
		"ingress": []any{map[string]any{"port": 80}, map[string]any{"port": 443}},
	})
	// List order is meaningful.
	assert.NotEqual(t, a, b)
}
