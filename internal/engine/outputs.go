package engine

import (
	"sort"
	"strings"

	"github.com/picket-io/picket/internal/ir"
)

// ExtractOutputs resolves each declared output expression against the
// final state. Outputs are recomputed fresh on every successful apply; an
// output referencing a resource that was never created fails with
// *UnresolvedOutputError.
func ExtractOutputs(declared map[string]any, state *ir.State) (map[string]any, error) {
	if len(declared) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(declared))

	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		resolved, err := ResolveRefs(declared[name], state)
		if err != nil {
			ref := firstRef(declared[name])
			return nil, &UnresolvedOutputError{Output: name, Reference: ref}
		}
		out[name] = resolved
	}
	return out, nil
}

func firstRef(v any) string {
	refs := ExtractRefs(v)
	if len(refs) > 0 {
		return strings.TrimPrefix(refs[0], "ptr://")
	}
	return "unknown"
}
