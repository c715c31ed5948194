package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picket-io/picket/internal/ir"
)

func TestResolveVariables(t *testing.T) {
	decls := []*ir.Variable{
		{Name: "region", Type: "string", Default: "us-east-1"},
		{Name: "count", Type: "number", Default: 2},
		{Name: "public", Type: "bool"},
		{Name: "tags", Type: "map", Default: map[string]any{"team": "infra"}},
	}

	vars, err := ResolveVariables(decls, map[string]string{
		"public": "true",
		"count":  "5",
	})
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", vars["region"])
	assert.Equal(t, 5.0, vars["count"])
	assert.Equal(t, true, vars["public"])
	assert.Equal(t, map[string]any{"team": "infra"}, vars["tags"])
}

func TestResolveVariablesMapOverride(t *testing.T) {
	decls := []*ir.Variable{{Name: "tags", Type: "map"}}
	vars, err := ResolveVariables(decls, map[string]string{
		"tags": `{"env":"prod","tier":"web"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"env": "prod", "tier": "web"}, vars["tags"])
}

func TestResolveVariablesIssues(t *testing.T) {
	decls := []*ir.Variable{
		{Name: "region", Type: "string"},
		{Name: "count", Type: "number"},
	}

	_, err := ResolveVariables(decls, map[string]string{
		"count":   "not-a-number",
		"unknown": "x",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		`undeclared variable "unknown" supplied`,
		`variable "count": "not-a-number" is not a number`,
		`variable "region" is required and has no value`,
	}, verr.Issues)
}

func TestResolveVariablesBadCoercions(t *testing.T) {
	tests := []struct {
		name string
		decl *ir.Variable
		raw  string
	}{
		{name: "bad bool", decl: &ir.Variable{Name: "v", Type: "bool"}, raw: "yep"},
		{name: "bad map", decl: &ir.Variable{Name: "v", Type: "map"}, raw: "[1,2]"},
		{name: "unknown type", decl: &ir.Variable{Name: "v", Type: "set"}, raw: "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveVariables([]*ir.Variable{tt.decl}, map[string]string{"v": tt.raw})
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestSubstituteVars(t *testing.T) {
	vars := map[string]any{
		"count":  3.0,
		"region": "eu-west-1",
		"tags":   map[string]any{"env": "prod"},
	}

	got, err := SubstituteVars(map[string]any{
		"desiredCount": "var://count",
		"region":       "var://region",
		"tags":         "var://tags",
		"plain":        "unchanged",
		"nested": []any{
			map[string]any{"value": "var://region"},
		},
	}, vars)
	require.NoError(t, err)

	m := got.(map[string]any)
	// Whole-string references keep the variable's type.
	assert.Equal(t, 3.0, m["desiredCount"])
	assert.Equal(t, "eu-west-1", m["region"])
	assert.Equal(t, map[string]any{"env": "prod"}, m["tags"])
	assert.Equal(t, "unchanged", m["plain"])
	nested := m["nested"].([]any)[0].(map[string]any)
	assert.Equal(t, "eu-west-1", nested["value"])
}

func TestSubstituteVarsUndeclared(t *testing.T) {
	_, err := SubstituteVars("var://missing", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"missing"`)
}
