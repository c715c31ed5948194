package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/picket-io/picket/internal/ir"
	"github.com/picket-io/picket/internal/logging"
	"github.com/picket-io/picket/internal/provider"
)

// ApplyEvent is a progress event emitted while converging one resource.
type ApplyEvent struct {
	Address  string
	Action   ir.Action
	Status   string // "started", "completed", "skipped", "failed"
	Duration time.Duration
	Error    error
}

// ApplyCallback receives progress events if set.
type ApplyCallback func(event ApplyEvent)

// Checkpoint persists intermediate state. The executor calls it after
// every phase so a fatal failure later never loses the records of what
// already converged.
type Checkpoint func(ctx context.Context, state *ir.State) error

// ApplyOptions tune one apply run.
type ApplyOptions struct {
	Callback   ApplyCallback
	Checkpoint Checkpoint
}

// Apply walks the schedule phase by phase, converging every resource the
// plan touches. Within a phase resources run concurrently, bounded by
// e.Parallelism. Cancellation is honored between phases only: in-flight
// provider calls drain so no resource is left mid-transition.
//
// On failure the returned *ApplyError lists what converged and what did
// not; state always reflects every successful create/update/destroy.
func (e *Engine) Apply(ctx context.Context, prepared *Prepared, plan *ir.Plan, state *ir.State, opts ApplyOptions) error {
	run := &applyRun{
		engine:   e,
		prepared: prepared,
		state:    state,
		opts:     opts,
		changes:  make(map[string]*ir.ResourceChange),
	}
	for _, change := range plan.Changes {
		run.changes[change.Address] = change
	}

	if err := run.createAndUpdate(ctx); err != nil {
		return err
	}
	if err := run.destroyRemoved(ctx); err != nil {
		return err
	}

	outputs, err := ExtractOutputs(prepared.Outputs, state)
	if err != nil {
		return err
	}
	state.Outputs = outputs
	return run.checkpoint(ctx)
}

// applyRun holds the mutable bookkeeping for one apply. The state and the
// completed/failed sets are shared with workers and guarded by mu.
type applyRun struct {
	engine   *Engine
	prepared *Prepared
	state    *ir.State
	opts     ApplyOptions
	changes  map[string]*ir.ResourceChange

	mu        sync.Mutex
	completed []string
	failed    []string
}

func (r *applyRun) emit(event ApplyEvent) {
	if r.opts.Callback != nil {
		r.opts.Callback(event)
	}
}

func (r *applyRun) checkpoint(ctx context.Context) error {
	if r.opts.Checkpoint == nil {
		return nil
	}
	return r.opts.Checkpoint(ctx, r.state)
}

// createAndUpdate walks the forward schedule, applying CREATE and UPDATE
// changes phase by phase.
func (r *applyRun) createAndUpdate(ctx context.Context) error {
	pending := make(map[string]bool)
	for addr, change := range r.changes {
		if change.Action == ir.ActionCreate || change.Action == ir.ActionUpdate {
			pending[addr] = true
		}
	}
	schedule := r.prepared.Schedule.Filter(pending)

	for i, phase := range schedule.Phases {
		if err := ctx.Err(); err != nil {
			if cpErr := r.checkpoint(context.WithoutCancel(ctx)); cpErr != nil {
				logging.Error("failed to checkpoint state after cancellation", "error", cpErr)
			}
			return &ApplyError{Phase: i + 1, Completed: r.completed, Err: fmt.Errorf("apply cancelled: %w", err)}
		}

		firstErr := r.runPhase(ctx, phase, func(ctx context.Context, addr string) error {
			return r.applyOne(ctx, addr)
		})

		// Checkpoint what this phase managed even when it failed.
		if cpErr := r.checkpoint(context.WithoutCancel(ctx)); cpErr != nil && firstErr == nil {
			firstErr = cpErr
		}
		if firstErr != nil {
			r.mu.Lock()
			failed := append([]string(nil), r.failed...)
			completed := append([]string(nil), r.completed...)
			r.mu.Unlock()
			return &ApplyError{Phase: i + 1, Completed: completed, Failed: failed, Err: firstErr}
		}
	}
	return nil
}

// destroyRemoved deletes resources whose declarations are gone, in
// reverse dependency order, after all creates/updates succeeded.
func (r *applyRun) destroyRemoved(ctx context.Context) error {
	doomed := make(map[string]bool)
	var records []*ir.ResourceState
	for addr, change := range r.changes {
		if change.Action == ir.ActionDelete {
			doomed[addr] = true
			if rec := r.state.Resource(addr); rec != nil {
				records = append(records, rec)
			}
		}
	}
	if len(records) == 0 {
		return nil
	}

	// Order deletions by the dependencies recorded at create time; the
	// full state graph keeps edges correct even when survivors sit
	// between two doomed resources.
	stateGraph := BuildGraphFromState(r.state.Resources)
	schedule := BuildSchedule(stateGraph).Reversed().Filter(doomed)

	for i, phase := range schedule.Phases {
		if err := ctx.Err(); err != nil {
			if cpErr := r.checkpoint(context.WithoutCancel(ctx)); cpErr != nil {
				logging.Error("failed to checkpoint state after cancellation", "error", cpErr)
			}
			return &ApplyError{Phase: i + 1, Completed: r.completed, Err: fmt.Errorf("destroy cancelled: %w", err)}
		}

		firstErr := r.runPhase(ctx, phase, func(ctx context.Context, addr string) error {
			return r.destroyOne(ctx, addr)
		})
		if cpErr := r.checkpoint(context.WithoutCancel(ctx)); cpErr != nil && firstErr == nil {
			firstErr = cpErr
		}
		if firstErr != nil {
			r.mu.Lock()
			failed := append([]string(nil), r.failed...)
			completed := append([]string(nil), r.completed...)
			r.mu.Unlock()
			return &ApplyError{Phase: i + 1, Completed: completed, Failed: failed, Err: firstErr}
		}
	}
	return nil
}

// runPhase executes fn for every address in the phase, bounded by the
// configured parallelism, and returns the first error. All workers run to
// completion; nothing is torn down mid-call.
func (r *applyRun) runPhase(ctx context.Context, phase []string, fn func(ctx context.Context, addr string) error) error {
	parallelism := r.engine.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	sem := make(chan struct{}, parallelism)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, addr := range phase {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := fn(ctx, addr); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				r.mu.Lock()
				r.failed = append(r.failed, addr)
				r.mu.Unlock()
			}
		}(addr)
	}
	wg.Wait()
	return firstErr
}

// applyOne converges a single resource: resolve references, compare the
// resolved hash against the record, then create, update, or skip.
func (r *applyRun) applyOne(ctx context.Context, addr string) error {
	res := r.prepared.Graph.Resource(addr)
	start := time.Now()

	r.mu.Lock()
	resolved, err := ResolveRefs(res.Properties, r.state)
	rec := r.state.Resource(addr)
	r.mu.Unlock()
	if err != nil {
		r.emit(ApplyEvent{Address: addr, Status: "failed", Error: err})
		return fmt.Errorf("%s: %w", addr, err)
	}

	resolvedProps := resolved.(map[string]any)
	resolvedHash := HashProperties(resolvedProps)

	if rec != nil && rec.AppliedHash == resolvedHash {
		r.emit(ApplyEvent{Address: addr, Action: ir.ActionNoop, Status: "skipped"})
		return nil
	}

	prov, err := r.engine.registry.Get(res.Provider)
	if err != nil {
		return fmt.Errorf("%s: %w", addr, err)
	}

	action := ir.ActionCreate
	if rec != nil {
		action = ir.ActionUpdate
	}
	r.emit(ApplyEvent{Address: addr, Action: action, Status: "started"})
	logging.Debug("applying resource", "address", addr, "action", action)

	// Cancellation is observed at phase boundaries and in retry sleeps
	// only; an in-flight provider call always drains so no resource is
	// left mid-transition.
	callCtx := context.WithoutCancel(ctx)

	newRec := &ir.ResourceState{
		Type:         res.Type,
		Name:         res.Name,
		Provider:     res.Provider,
		Inputs:       res.Properties,
		InputsHash:   HashProperties(res.Properties),
		AppliedHash:  resolvedHash,
		Dependencies: r.prepared.Graph.Dependencies(addr),
	}

	if rec == nil {
		var resp *provider.CreateResponse
		err = RetryWithBackoff(ctx, r.engine.Retry, func() error {
			var createErr error
			resp, createErr = prov.Create(callCtx, &provider.CreateRequest{
				Type:       res.Type,
				Name:       res.Name,
				Attributes: resolvedProps,
			})
			return createErr
		})
		if err != nil {
			r.emit(ApplyEvent{Address: addr, Action: action, Status: "failed", Duration: time.Since(start), Error: err})
			return fmt.Errorf("create failed for %s: %w", addr, err)
		}
		newRec.ProviderID = resp.ProviderID
		newRec.Outputs = resp.Computed
	} else {
		var resp *provider.UpdateResponse
		err = RetryWithBackoff(ctx, r.engine.Retry, func() error {
			var updateErr error
			resp, updateErr = prov.Update(callCtx, &provider.UpdateRequest{
				Type:       res.Type,
				Name:       res.Name,
				ProviderID: rec.ProviderID,
				Attributes: resolvedProps,
				Prior:      rec.Outputs,
			})
			return updateErr
		})
		if err != nil {
			r.emit(ApplyEvent{Address: addr, Action: action, Status: "failed", Duration: time.Since(start), Error: err})
			return fmt.Errorf("update failed for %s: %w", addr, err)
		}
		newRec.ProviderID = rec.ProviderID
		// A replacing update assigns a fresh id; adopt it or later
		// destroys would target the resource the provider already removed.
		if resp.ProviderID != "" {
			newRec.ProviderID = resp.ProviderID
		}
		newRec.Outputs = resp.Computed
	}

	r.mu.Lock()
	r.state.Upsert(newRec)
	r.completed = append(r.completed, addr)
	r.mu.Unlock()

	r.emit(ApplyEvent{Address: addr, Action: action, Status: "completed", Duration: time.Since(start)})
	return nil
}

// destroyOne removes a single resource and drops its record.
func (r *applyRun) destroyOne(ctx context.Context, addr string) error {
	r.mu.Lock()
	rec := r.state.Resource(addr)
	r.mu.Unlock()
	if rec == nil {
		return nil
	}

	prov, err := r.engine.registry.Get(rec.Provider)
	if err != nil {
		return fmt.Errorf("%s: %w", addr, err)
	}

	start := time.Now()
	r.emit(ApplyEvent{Address: addr, Action: ir.ActionDelete, Status: "started"})
	logging.Debug("destroying resource", "address", addr, "provider_id", rec.ProviderID)

	callCtx := context.WithoutCancel(ctx)
	err = RetryWithBackoff(ctx, r.engine.Retry, func() error {
		return prov.Destroy(callCtx, &provider.DestroyRequest{
			Type:       rec.Type,
			ProviderID: rec.ProviderID,
			Prior:      rec.Outputs,
		})
	})
	if err != nil {
		r.emit(ApplyEvent{Address: addr, Action: ir.ActionDelete, Status: "failed", Duration: time.Since(start), Error: err})
		return fmt.Errorf("destroy failed for %s: %w", addr, err)
	}

	r.mu.Lock()
	r.state.Remove(addr)
	r.completed = append(r.completed, addr)
	r.mu.Unlock()

	r.emit(ApplyEvent{Address: addr, Action: ir.ActionDelete, Status: "completed", Duration: time.Since(start)})
	return nil
}

// ResolveRefs substitutes every ptr:// reference with the referenced
// record's computed attribute (falling back to its declared input). A
// reference into a record that does not exist yet is an error: the
// scheduler guarantees dependencies applied first, so a miss means the
// dependency failed or the graph was tampered with.
func ResolveRefs(v any, state *ir.State) (any, error) {
	switch val := v.(type) {
	case string:
		if !strings.HasPrefix(val, "ptr://") {
			return val, nil
		}
		addr := RefAddr(val)
		attr := RefAttribute(val)
		if addr == "" || attr == "" {
			return nil, fmt.Errorf("malformed reference %q", val)
		}
		rec := state.Resource(addr)
		if rec == nil {
			return nil, fmt.Errorf("reference %q: resource %s has not been applied", val, addr)
		}
		if out, ok := rec.Outputs[attr]; ok {
			return out, nil
		}
		if in, ok := rec.Inputs[attr]; ok {
			return in, nil
		}
		return nil, fmt.Errorf("reference %q: %s has no attribute %q", val, addr, attr)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(val))
		for _, k := range keys {
			resolved, err := ResolveRefs(val[k], state)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			resolved, err := ResolveRefs(item, state)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
