// Package naming derives provider-legal, collision-resistant resource
// names from raw project names. Cloud APIs put tight limits on name
// length and character set (load balancer names cap at 32, key pairs and
// target groups have their own rules), so every generated name funnels
// through Normalize.
package naming

import (
	"fmt"
	"strconv"
	"time"
)

// InvalidNameError is returned when no valid name can be derived from the
// raw input.
type InvalidNameError struct {
	Raw string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("cannot derive a valid resource name from %q", e.Raw)
}

// Normalize truncates raw to maxLen, then keeps the longest prefix whose
// characters are all in [A-Za-z0-9-], stripped of trailing hyphens so it
// ends in an alphanumeric character. The result matches
// ^[A-Za-z0-9][A-Za-z0-9-]*[A-Za-z0-9]$ (single characters allowed), or
// an InvalidNameError when no valid non-empty prefix exists.
func Normalize(raw string, maxLen int) (string, error) {
	if maxLen <= 0 {
		return "", &InvalidNameError{Raw: raw}
	}
	if len(raw) > maxLen {
		raw = raw[:maxLen]
	}

	// Longest prefix within the legal character set.
	end := 0
	for end < len(raw) && (isAlnum(raw[end]) || raw[end] == '-') {
		end++
	}
	// Drop trailing hyphens so the name ends alphanumeric.
	for end > 0 && raw[end-1] == '-' {
		end--
	}
	candidate := raw[:end]

	if candidate == "" || !isAlnum(candidate[0]) {
		return "", &InvalidNameError{Raw: raw}
	}
	return candidate, nil
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// SuffixPolicy produces a uniqueness suffix appended to derived names.
type SuffixPolicy func() string

// EpochSuffix returns the current unix timestamp, the default uniqueness
// policy for names that must differ across deployments of the same
// project.
func EpochSuffix() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

// WithSuffix appends a uniqueness suffix to base, truncating base first
// so the suffix always fits within maxLen.
func WithSuffix(base string, policy SuffixPolicy, maxLen int) (string, error) {
	return ForKind(base, policy(), maxLen)
}

// ForKind builds a deterministic per-kind name: the normalized project
// name plus a kind suffix, re-normalized to the kind's length limit. The
// project portion is truncated first so the kind suffix always survives.
func ForKind(project, kind string, maxLen int) (string, error) {
	suffix := "-" + kind
	budget := maxLen - len(suffix)
	if budget < 1 {
		return "", &InvalidNameError{Raw: project + suffix}
	}
	base, err := Normalize(project, budget)
	if err != nil {
		return "", err
	}
	return base + suffix, nil
}
