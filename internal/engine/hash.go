package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashProperties returns the canonical hash of a property map. Map keys
// serialize in sorted order under encoding/json, so the hash is stable
// across runs and hosts. Stored per record; an unchanged hash is what
// makes re-applies no-ops.
func HashProperties(props map[string]any) string {
	content, err := json.Marshal(normalizeValue(props))
	if err != nil {
		// Property values come from JSON-compatible config; a marshal
		// failure here indicates a provider returned something exotic.
		content = []byte(fmt.Sprintf("%v", props))
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// normalizeValue rewrites map[any]any (PKL decoding artifact) into
// map[string]any so hashing and JSON marshalling see one shape.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return val
	}
}
