package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/picket-io/picket/internal/ir"
)

// ResolveVariables merges declared variables with external overrides and
// checks types. A declared variable with no default and no override is a
// fatal validation issue: the apply never starts on incomplete inputs.
// Overrides arrive as strings and are coerced to the declared type
// (number, bool, and map values are parsed as JSON).
func ResolveVariables(decls []*ir.Variable, overrides map[string]string) (map[string]any, error) {
	vars := make(map[string]any, len(decls))
	var issues []string
	known := make(map[string]bool, len(decls))

	for _, decl := range decls {
		known[decl.Name] = true
		if raw, ok := overrides[decl.Name]; ok {
			val, err := coerceVariable(decl, raw)
			if err != nil {
				issues = append(issues, err.Error())
				continue
			}
			vars[decl.Name] = val
			continue
		}
		if decl.Default != nil {
			vars[decl.Name] = decl.Default
			continue
		}
		issues = append(issues, fmt.Sprintf("variable %q is required and has no value", decl.Name))
	}

	for name := range overrides {
		if !known[name] {
			issues = append(issues, fmt.Sprintf("undeclared variable %q supplied", name))
		}
	}

	if len(issues) > 0 {
		sort.Strings(issues)
		return nil, &ValidationError{Issues: issues}
	}
	return vars, nil
}

func coerceVariable(decl *ir.Variable, raw string) (any, error) {
	switch decl.Type {
	case "", "string":
		return raw, nil
	case "number":
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, nil
		}
		return nil, fmt.Errorf("variable %q: %q is not a number", decl.Name, raw)
	case "bool":
		if b, err := strconv.ParseBool(raw); err == nil {
			return b, nil
		}
		return nil, fmt.Errorf("variable %q: %q is not a bool", decl.Name, raw)
	case "map":
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("variable %q: not a JSON object: %v", decl.Name, err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("variable %q: unknown type %q", decl.Name, decl.Type)
	}
}

// SubstituteVars replaces var:// references in a value tree with resolved
// variable values. A whole-string reference takes the variable's typed
// value; unknown variables are collected as validation issues by the
// caller via the returned error.
func SubstituteVars(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		if !strings.HasPrefix(val, "var://") {
			return val, nil
		}
		name := val[6:]
		resolved, ok := vars[name]
		if !ok {
			return nil, fmt.Errorf("reference to undeclared variable %q", name)
		}
		return resolved, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			sub, err := SubstituteVars(item, vars)
			if err != nil {
				return nil, err
			}
			out[k] = sub
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			sub, err := SubstituteVars(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = sub
		}
		return out, nil
	default:
		return v, nil
	}
}
