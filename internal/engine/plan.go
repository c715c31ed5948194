package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/logging"
	"github.com/picket-io/picket/internal/provider"
	"github.com/picket-io/picket/internal/stack"
)

// Engine orchestrates the lifecycle of resources: validation, planning,
// and converging live state toward the desired graph.
type Engine struct {
	registry    *provider.Registry
	Parallelism int
	Retry       *RetryPolicy
}

func NewEngine(registry *provider.Registry) *Engine {
	return &Engine{
		registry:    registry,
		Parallelism: DefaultParallelism,
		Retry:       DefaultRetryPolicy(),
	}
}

// Prepared is the validated, scheduled desired graph for one apply. It is
// immutable once built; the executor owns it exclusively.
type Prepared struct {
	Resources []*ir.Resource
	Graph     *Graph
	Schedule  *Schedule
	Outputs   map[string]any
}

// Prepare resolves deployment inputs, expands stacks into plain
// resources, validates the graph, and schedules it. Any structural
// problem surfaces here, before a single provider call.
func (e *Engine) Prepare(ctx context.Context, cfg *ir.Config, overrides map[string]string) (*Prepared, error) {
	vars, err := ResolveVariables(cfg.Variables, overrides)
	if err != nil {
		return nil, err
	}

	var resources []*ir.Resource
	for _, call := range cfg.Stacks {
		params, err := SubstituteVars(normalizeValue(call.Params), vars)
		if err != nil {
			return nil, &ValidationError{Issues: []string{fmt.Sprintf("stack %s: %v", call.Name, err)}}
		}
		expanded, err := stack.Expand(call.Kind, call.Name, params.(map[string]any))
		if err != nil {
			return nil, &ValidationError{Issues: []string{fmt.Sprintf("stack %s: %v", call.Name, err)}}
		}
		resources = append(resources, expanded...)
	}
	for _, res := range cfg.Resources {
		props, err := SubstituteVars(normalizeValue(res.Properties), vars)
		if err != nil {
			return nil, &ValidationError{Issues: []string{fmt.Sprintf("%s: %v", res.Addr(), err)}}
		}
		clone := *res
		if props != nil {
			clone.Properties = props.(map[string]any)
		}
		resources = append(resources, &clone)
	}

	for _, res := range resources {
		if err := e.registry.Load(res.Provider); err != nil {
			return nil, err
		}
	}

	graph, err := BuildGraph(resources, func(providerName, resourceType string) (*provider.Schema, error) {
		prov, err := e.registry.Get(providerName)
		if err != nil {
			return nil, err
		}
		return prov.Schema(resourceType)
	})
	if err != nil {
		return nil, err
	}

	outputs, err := SubstituteVars(normalizeValue(cfg.Outputs), vars)
	if err != nil {
		return nil, &ValidationError{Issues: []string{fmt.Sprintf("outputs: %v", err)}}
	}
	var outputMap map[string]any
	if outputs != nil {
		outputMap = outputs.(map[string]any)
	}

	p := &Prepared{
		Resources: resources,
		Graph:     graph,
		Schedule:  BuildSchedule(graph),
		Outputs:   outputMap,
	}
	logging.Debug("prepared desired graph",
		"resources", len(resources), "phases", len(p.Schedule.Phases))
	return p, nil
}

// PrepareRollback turns an archived state snapshot back into a desired
// graph so apply can converge the deployment onto that serial. Recorded
// inputs keep their unresolved references, so the rebuilt graph carries
// the same edges the original declarations did.
func (e *Engine) PrepareRollback(snapshot *ir.State) (*Prepared, error) {
	resources := make([]*ir.Resource, 0, len(snapshot.Resources))
	for _, rec := range snapshot.Resources {
		resources = append(resources, &ir.Resource{
			Type:       rec.Type,
			Name:       rec.Name,
			Provider:   rec.Provider,
			DependsOn:  rec.Dependencies,
			Properties: rec.Inputs,
		})
		if err := e.registry.Load(rec.Provider); err != nil {
			return nil, err
		}
	}

	// Recorded inputs already passed schema validation when they were
	// first applied; a state-only graph skips it.
	graph, err := BuildGraph(resources, nil)
	if err != nil {
		return nil, err
	}

	p := &Prepared{
		Resources: resources,
		Graph:     graph,
		Schedule:  BuildSchedule(graph),
		// Snapshot outputs are already resolved values; re-applying them
		// as declared outputs restores the rolled-back output map.
		Outputs: snapshot.Outputs,
	}
	logging.Debug("prepared rollback graph",
		"serial", snapshot.Serial, "resources", len(resources), "phases", len(p.Schedule.Phases))
	return p, nil
}

// CreatePlan diffs the prepared desired graph against state. Creation and
// update decisions made here are advisory; the executor re-checks each
// resource against its resolved attribute hash, which is what makes apply
// idempotent.
func (e *Engine) CreatePlan(prepared *Prepared, state *ir.State) *ir.Plan {
	plan := &ir.Plan{
		Metadata: &ir.PlanMetadata{Timestamp: time.Now().UTC().Format(time.RFC3339)},
		Summary:  &ir.PlanSummary{},
		Outputs:  prepared.Outputs,
	}

	for _, addr := range prepared.Schedule.Linear() {
		res := prepared.Graph.Resource(addr)
		rec := state.Resource(addr)

		change := &ir.ResourceChange{Address: addr, Desired: res}
		switch {
		case rec == nil:
			change.Action = ir.ActionCreate
			plan.Summary.Create++
		case rec.InputsHash != HashProperties(res.Properties):
			change.Action = ir.ActionUpdate
			plan.Summary.Update++
		default:
			change.Action = ir.ActionNoop
			plan.Summary.NoOp++
		}
		if change.Action != ir.ActionNoop {
			plan.Changes = append(plan.Changes, change)
		}
	}

	// Records whose declarations are gone get destroyed, scheduled in
	// reverse dependency order during apply.
	for _, rec := range state.Resources {
		if prepared.Graph.Resource(rec.Addr()) != nil {
			continue
		}
		plan.Changes = append(plan.Changes, &ir.ResourceChange{
			Address: rec.Addr(),
			Action:  ir.ActionDelete,
			Prior: &ir.Resource{
				Type:       rec.Type,
				Name:       rec.Name,
				Provider:   rec.Provider,
				Properties: rec.Inputs,
			},
		})
		plan.Summary.Delete++
	}

	return plan
}

// LoadStateProviders loads the provider of every state record, needed
// before destroying resources whose declarations are gone.
func (e *Engine) LoadStateProviders(state *ir.State) error {
	for _, rec := range state.Resources {
		if err := e.registry.Load(rec.Provider); err != nil {
			return err
		}
	}
	return nil
}

// PlanDestroy schedules every state record for deletion. Used by the
// destroy command; the executor orders the deletions in reverse
// dependency order from the recorded edges.
func (e *Engine) PlanDestroy(state *ir.State) *ir.Plan {
	plan := &ir.Plan{
		Metadata: &ir.PlanMetadata{Timestamp: time.Now().UTC().Format(time.RFC3339)},
		Summary:  &ir.PlanSummary{},
	}
	for _, rec := range state.Resources {
		plan.Changes = append(plan.Changes, &ir.ResourceChange{
			Address: rec.Addr(),
			Action:  ir.ActionDelete,
			Prior: &ir.Resource{
				Type:       rec.Type,
				Name:       rec.Name,
				Provider:   rec.Provider,
				Properties: rec.Inputs,
			},
		})
		plan.Summary.Delete++
	}
	return plan
}
