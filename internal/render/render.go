// Package render substitutes named variables into opaque text templates,
// such as instance bootstrap scripts. Rendering is a pure function: no
// environment access, no control flow, just ${name} substitution.
package render

import (
	"fmt"
	"sort"
	"strings"
)

// UnresolvedVariableError reports placeholders with no corresponding
// variable. Rendering fails closed rather than substituting an empty
// string, a bootstrap script with a silently blank target is worse than
// a loud failure.
type UnresolvedVariableError struct {
	Keys []string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("template references undefined variables: %s", strings.Join(e.Keys, ", "))
}

// Render substitutes every ${name} placeholder in body with vars[name].
// A literal dollar sign is written $$. Every placeholder must resolve.
func Render(body string, vars map[string]string) (string, error) {
	var out strings.Builder
	missing := map[string]bool{}

	for i := 0; i < len(body); {
		c := body[i]
		if c != '$' {
			out.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(body) && body[i+1] == '$' {
			out.WriteByte('$')
			i += 2
			continue
		}
		if i+1 < len(body) && body[i+1] == '{' {
			end := strings.IndexByte(body[i+2:], '}')
			if end >= 0 {
				name := body[i+2 : i+2+end]
				if val, ok := vars[name]; ok {
					out.WriteString(val)
				} else {
					missing[name] = true
				}
				i += 2 + end + 1
				continue
			}
		}
		// Bare dollar, not a placeholder.
		out.WriteByte('$')
		i++
	}

	if len(missing) > 0 {
		keys := make([]string, 0, len(missing))
		for k := range missing {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", &UnresolvedVariableError{Keys: keys}
	}
	return out.String(), nil
}
