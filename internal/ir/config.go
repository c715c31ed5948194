package ir

// Config is the top-level deployment configuration for one deployment unit.
type Config struct {
	DeploymentID string            `pkl:"deploymentId"`
	Variables    []*Variable       `pkl:"variables"`
	Stacks       []*StackCall      `pkl:"stacks"`
	Resources    []*Resource       `pkl:"resources"`
	Outputs      map[string]any    `pkl:"outputs"`
	Backend      map[string]string `pkl:"backend"`
	Providers    map[string]string `pkl:"providers"`
}

// Variable declares a deployment input. A variable with no default must be
// supplied externally or validation fails before any apply begins.
type Variable struct {
	Name    string `pkl:"name"`
	Type    string `pkl:"type"` // "string", "number", "bool", "map"
	Default any    `pkl:"default"`
}

// StackCall invokes a composable sub-graph producer. Stacks expand into
// plain resources before the graph is built, so dependency resolution is
// single-source.
type StackCall struct {
	Kind   string         `pkl:"kind"` // "network", "app-service", "monitor"
	Name   string         `pkl:"name"`
	Params map[string]any `pkl:"params"`
}
