package ir

import "fmt"

// State is the durable record of everything a previous apply created for
// one deployment unit. Serial is the optimistic-concurrency version: every
// successful write increments it, and writers must present the serial they
// read at lock-acquisition time.
type State struct {
	Version   int              `json:"version"`
	Serial    int              `json:"serial"`
	Lineage   string           `json:"lineage"`
	Resources []*ResourceState `json:"resources"`
	Outputs   map[string]any   `json:"outputs,omitempty"`
}

// ResourceState is one record per created resource.
type ResourceState struct {
	Type     string `json:"type"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	// ProviderID is the identifier the provider assigned on create.
	ProviderID string `json:"providerId"`
	// Inputs are the declared properties as written, references unresolved.
	Inputs map[string]any `json:"inputs,omitempty"`
	// InputsHash is the hash of Inputs, compared at plan time to detect
	// declaration changes without resolving references.
	InputsHash string `json:"inputsHash"`
	// AppliedHash is the hash of the fully resolved properties at the time
	// of the last successful create/update. Apply skips a resource whose
	// resolved hash still matches.
	AppliedHash string `json:"appliedHash"`
	// Outputs are the computed attributes the provider returned.
	Outputs map[string]any `json:"outputs,omitempty"`
	// Dependencies records the addresses this resource referenced, so a
	// destroy-only run can still order deletions safely.
	Dependencies []string `json:"dependencies,omitempty"`
}

// Addr returns the record's resource address, "type.name".
func (r *ResourceState) Addr() string {
	return fmt.Sprintf("%s.%s", r.Type, r.Name)
}

// NewState returns an empty state at serial zero.
func NewState(lineage string) *State {
	return &State{Version: 1, Serial: 0, Lineage: lineage}
}

// Resource returns the record at addr, or nil.
func (s *State) Resource(addr string) *ResourceState {
	for _, r := range s.Resources {
		if r.Addr() == addr {
			return r
		}
	}
	return nil
}

// Upsert inserts or replaces the record for rec's address.
func (s *State) Upsert(rec *ResourceState) {
	for i, r := range s.Resources {
		if r.Addr() == rec.Addr() {
			s.Resources[i] = rec
			return
		}
	}
	s.Resources = append(s.Resources, rec)
}

// Remove deletes the record at addr, if present.
func (s *State) Remove(addr string) {
	for i, r := range s.Resources {
		if r.Addr() == addr {
			s.Resources = append(s.Resources[:i], s.Resources[i+1:]...)
			return
		}
	}
}
