package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/provider"
	"github.com/picket-io/picket/providers/null"
)

func nullEngine() *Engine {
	reg := provider.NewRegistry(nil)
	reg.RegisterFactory("null", null.Factory)
	return NewEngine(reg)
}

func TestPrepare(t *testing.T) {
	eng := nullEngine()
	cfg := &ir.Config{
		DeploymentID: "demo",
		Variables: []*ir.Variable{
			{Name: "greeting", Type: "string", Default: "hello"},
		},
		Resources: []*ir.Resource{
			{
				Type:       null.ResourceType,
				Name:       "first",
				Provider:   "null",
				Properties: map[string]any{"value": "var://greeting"},
			},
			{
				Type:      null.ResourceType,
				Name:      "second",
				Provider:  "null",
				DependsOn: []string{"null:Resource.first"},
				Properties: map[string]any{
					"value": "ptr://null:Resource/first/id",
				},
			},
		},
		Outputs: map[string]any{
			"firstId": "ptr://null:Resource/first/id",
		},
	}

	prepared, err := eng.Prepare(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Len(t, prepared.Resources, 2)
	// Variable references resolve during preparation.
	assert.Equal(t, "hello", prepared.Resources[0].Properties["value"])
	assert.Equal(t, [][]string{
		{"null:Resource.first"},
		{"null:Resource.second"},
	}, prepared.Schedule.Phases)
	assert.Equal(t, map[string]any{"firstId": "ptr://null:Resource/first/id"}, prepared.Outputs)
}

func TestPrepareOverrideWins(t *testing.T) {
	eng := nullEngine()
	cfg := &ir.Config{
		Variables: []*ir.Variable{{Name: "greeting", Type: "string", Default: "hello"}},
		Resources: []*ir.Resource{{
			Type:       null.ResourceType,
			Name:       "x",
			Provider:   "null",
			Properties: map[string]any{"value": "var://greeting"},
		}},
	}
	prepared, err := eng.Prepare(context.Background(), cfg, map[string]string{"greeting": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", prepared.Resources[0].Properties["value"])
}

func TestPrepareRejectsUnknownProvider(t *testing.T) {
	eng := nullEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{{Type: "bogus:Thing", Name: "x", Provider: "bogus"}},
	}
	_, err := eng.Prepare(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown provider: bogus")
}

func TestPrepareRejectsSchemaViolation(t *testing.T) {
	eng := nullEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{{
			Type:       null.ResourceType,
			Name:       "x",
			Provider:   "null",
			Properties: map[string]any{"nonsense": "v"},
		}},
	}
	_, err := eng.Prepare(context.Background(), cfg, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Issues[0], `unknown attribute "nonsense"`)
}

func TestCreatePlanDiff(t *testing.T) {
	eng := nullEngine()
	prepared := prepare(t, []*ir.Resource{
		fakeResource("keep", map[string]any{"value": "same"}),
		fakeResource("change", map[string]any{"value": "new"}),
		fakeResource("fresh", map[string]any{"value": "x"}),
	}, nil)

	st := ir.NewState("test")
	st.Upsert(&ir.ResourceState{
		Type: "fake:Thing", Name: "keep",
		InputsHash: HashProperties(map[string]any{"value": "same"}),
	})
	st.Upsert(&ir.ResourceState{
		Type: "fake:Thing", Name: "change",
		InputsHash: HashProperties(map[string]any{"value": "old"}),
	})
	st.Upsert(&ir.ResourceState{Type: "fake:Thing", Name: "gone", InputsHash: "whatever"})

	plan := eng.CreatePlan(prepared, st)
	assert.Equal(t, 1, plan.Summary.Create)
	assert.Equal(t, 1, plan.Summary.Update)
	assert.Equal(t, 1, plan.Summary.Delete)
	assert.Equal(t, 1, plan.Summary.NoOp)

	actions := map[string]ir.Action{}
	for _, c := range plan.Changes {
		actions[c.Address] = c.Action
	}
	assert.Equal(t, ir.ActionCreate, actions["fake:Thing.fresh"])
	assert.Equal(t, ir.ActionUpdate, actions["fake:Thing.change"])
	assert.Equal(t, ir.ActionDelete, actions["fake:Thing.gone"])
	// No-ops stay out of the change list.
	_, present := actions["fake:Thing.keep"]
	assert.False(t, present)
}

func TestPlanDestroy(t *testing.T) {
	eng := nullEngine()
	st := ir.NewState("test")
	st.Upsert(&ir.ResourceState{Type: "null:Resource", Name: "a", Provider: "null"})
	st.Upsert(&ir.ResourceState{Type: "null:Resource", Name: "b", Provider: "null"})

	plan := eng.PlanDestroy(st)
	require.Len(t, plan.Changes, 2)
	assert.Equal(t, 2, plan.Summary.Delete)
	for _, c := range plan.Changes {
		assert.Equal(t, ir.ActionDelete, c.Action)
		require.NotNil(t, c.Prior)
	}
}
