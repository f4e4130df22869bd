package catalog

import (
	"fmt"

	"webpilot/internal/domain"
)

// ValidationError reports an argument that failed the tool's parameter
// specs. It is produced once at the catalog boundary, before the tool body
// runs; the RPC server maps it to InvalidToolParameters.
type ValidationError struct {
	Tool   string
	Param  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid parameters for %s: %s: %s", e.Tool, e.Param, e.Reason)
}

// ValidateArgs checks required presence, JSON type, and enum membership.
// Unknown argument keys are forwarded untouched for forward compatibility.
func ValidateArgs(desc domain.ToolDescriptor, args map[string]any) error {
	for _, p := range desc.Params {
		v, present := args[p.Name]
		if !present {
			if p.Optional {
				continue
			}
			return &ValidationError{Tool: desc.Name, Param: p.Name, Reason: "required parameter missing"}
		}
		if v == nil {
			return &ValidationError{Tool: desc.Name, Param: p.Name, Reason: "must not be null"}
		}
		if err := checkType(desc.Name, p, v); err != nil {
			return err
		}
		if len(p.Enum) > 0 {
			s, ok := v.(string)
			if !ok || !contains(p.Enum, s) {
				return &ValidationError{Tool: desc.Name, Param: p.Name, Reason: fmt.Sprintf("must be one of %v", p.Enum)}
			}
		}
	}
	return nil
}

// checkType accepts the Go shapes encoding/json produces for each declared
// JSON type.
func checkType(tool string, p domain.ParamSpec, v any) error {
	switch p.Type {
	case domain.ParamString:
		if _, ok := v.(string); !ok {
			return typeErr(tool, p.Name, "string", v)
		}
	case domain.ParamNumber:
		switch v.(type) {
		case float64, float32, int, int64:
		default:
			return typeErr(tool, p.Name, "number", v)
		}
	case domain.ParamBoolean:
		if _, ok := v.(bool); !ok {
			return typeErr(tool, p.Name, "boolean", v)
		}
	case domain.ParamArray:
		if _, ok := v.([]any); !ok {
			return typeErr(tool, p.Name, "array", v)
		}
	case domain.ParamObject:
		if _, ok := v.(map[string]any); !ok {
			return typeErr(tool, p.Name, "object", v)
		}
	}
	return nil
}

func typeErr(tool, param, want string, got any) error {
	return &ValidationError{Tool: tool, Param: param, Reason: fmt.Sprintf("expected %s, got %T", want, got)}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
