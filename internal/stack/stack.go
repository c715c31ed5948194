// Package stack provides composable sub-graph producers: functions that
// expand one declared stack into a set of plain resources consumed by the
// graph builder. Expansion keeps dependency resolution single-source:
// stacks never talk to providers or state.
package stack

import (
	"fmt"

	"github.com/picket-io/picket/internal/ir"
)

// Producer expands one stack call into resources.
type Producer func(name string, params map[string]any) ([]*ir.Resource, error)

var producers = map[string]Producer{
	"network":     Network,
	"app-service": AppService,
	"monitor":     Monitor,
}

// Expand produces the resources for one stack call. Kind selects the
// producer; name namespaces the produced resources so two stacks of the
// same kind can coexist in one deployment.
func Expand(kind, name string, params map[string]any) ([]*ir.Resource, error) {
	p, ok := producers[kind]
	if !ok {
		return nil, fmt.Errorf("unknown stack kind %q", kind)
	}
	if name == "" {
		return nil, fmt.Errorf("stack of kind %q has no name", kind)
	}
	return p(name, params)
}

// stringParam reads a required string parameter.
func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T", key, v)
	}
	return s, nil
}

// stringParamOr reads an optional string parameter.
func stringParamOr(params map[string]any, key, fallback string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// numberParamOr reads an optional numeric parameter.
func numberParamOr(params map[string]any, key string, fallback float64) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

// mapParamOr reads an optional map parameter.
func mapParamOr(params map[string]any, key string) map[string]any {
	if v, ok := params[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

// listParamOr reads an optional list parameter.
func listParamOr(params map[string]any, key string, fallback []any) []any {
	if v, ok := params[key].([]any); ok && len(v) > 0 {
		return v
	}
	return fallback
}
