package provider

import "fmt"

// AttrType is the declared type of a resource attribute.
type AttrType string

const (
	TypeString AttrType = "string"
	TypeNumber AttrType = "number"
	TypeBool   AttrType = "bool"
	TypeList   AttrType = "list"
	TypeMap    AttrType = "map"
)

// Schema describes the attributes a resource type accepts. Graph
// validation checks declared properties against it before any apply.
type Schema struct {
	Attributes map[string]AttrType
	Required   []string
}

// CheckValue reports whether v is assignable to the attribute type.
// Reference strings (ptr://) pass for any type since they resolve to the
// target's computed attribute at apply time.
func (t AttrType) CheckValue(v any) bool {
	if s, ok := v.(string); ok && len(s) > 6 && s[:6] == "ptr://" {
		return true
	}
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		switch v.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeList:
		_, ok := v.([]any)
		return ok
	case TypeMap:
		switch v.(type) {
		case map[string]any, map[any]any:
			return true
		}
		return false
	}
	return false
}

// Validate checks props against the schema: every required attribute is
// present and every present attribute has a declared, type-compatible
// value.
func (s *Schema) Validate(resourceType string, props map[string]any) error {
	for _, req := range s.Required {
		if _, ok := props[req]; !ok {
			return fmt.Errorf("%s: missing required attribute %q", resourceType, req)
		}
	}
	for name, val := range props {
		at, ok := s.Attributes[name]
		if !ok {
			return fmt.Errorf("%s: unknown attribute %q", resourceType, name)
		}
		if val == nil {
			continue
		}
		if !at.CheckValue(val) {
			return fmt.Errorf("%s: attribute %q: expected %s, got %T", resourceType, name, at, val)
		}
	}
	return nil
}
