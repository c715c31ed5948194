package ir

// Action is the operation a plan schedules for one resource.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
	ActionNoop   Action = "NOOP"
)

// Plan is the calculated set of changes to converge state toward the
// desired graph.
type Plan struct {
	Metadata *PlanMetadata     `json:"metadata"`
	Changes  []*ResourceChange `json:"changes"`
	Summary  *PlanSummary      `json:"summary"`
	Outputs  map[string]any    `json:"outputs,omitempty"`
}

type PlanMetadata struct {
	Timestamp string `json:"timestamp"`
}

type ResourceChange struct {
	Address string    `json:"address"`
	Action  Action    `json:"action"`
	Desired *Resource `json:"resource,omitempty"`
	Prior   *Resource `json:"prior,omitempty"`
}

type PlanSummary struct {
	Create int `json:"create"`
	Update int `json:"update"`
	Delete int `json:"delete"`
	NoOp   int `json:"noop"`
}
