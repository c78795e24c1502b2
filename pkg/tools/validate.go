package tools

import (
	"fmt"
	"sort"

	"taskmate/pkg/apperr"
)

// ValidateArgs checks args against the tool's declared schema: required
// fields must be present and primitive types must match. Unknown fields
// are rejected so typos surface to the model.
func ValidateArgs(t Tool, args map[string]any) error {
	props := t.Parameters()

	for _, name := range t.RequiredParameters() {
		v, ok := args[name]
		if !ok || v == nil {
			return &apperr.ToolInvocationError{Tool: t.Name(), Reason: fmt.Sprintf("missing required argument %q", name)}
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, ok := props[name].(map[string]any)
		if !ok {
			return &apperr.ToolInvocationError{Tool: t.Name(), Reason: fmt.Sprintf("unknown argument %q", name)}
		}
		v := args[name]
		if v == nil {
			continue
		}
		want, _ := prop["type"].(string)
		if !matchesType(want, v) {
			return &apperr.ToolInvocationError{Tool: t.Name(), Reason: fmt.Sprintf("argument %q must be of type %s", name, want)}
		}
	}
	return nil
}

func matchesType(want string, v any) bool {
	switch want {
	case "", "any":
		return true
	case "string":
		_, ok := v.(string)
		return ok
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "number":
		switch v.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch n := v.(type) {
		case int, int64:
			return true
		case float64:
			return n == float64(int64(n))
		}
		return false
	case "object":
		_, ok := v.(map[string]any)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	}
	return true
}
