package ir

import "fmt"

// Resource is a single declared resource node in the desired graph.
type Resource struct {
	Type       string         `pkl:"type"` // e.g. "aws:EC2.Vpc"
	Name       string         `pkl:"name"`
	Provider   string         `pkl:"provider"`
	DependsOn  []string       `pkl:"dependsOn"`
	Properties map[string]any `pkl:"properties"`
}

// Addr returns the resource address, "type.name". Addresses are unique
// within one desired graph.
func (r *Resource) Addr() string {
	return fmt.Sprintf("%s.%s", r.Type, r.Name)
}

// Ref builds a ptr:// reference to a computed attribute of this resource.
// References are resolved by the engine after the target has been applied.
func Ref(resourceType, name, attribute string) string {
	return fmt.Sprintf("ptr://%s/%s/%s", resourceType, name, attribute)
}
