package tools

import (
	"fmt"
	"math"
)

// validateArgs checks decoded arguments against a tool's declared
// JSON-schema-style Parameters: required fields present, primitive
// types correct, enum membership. It returns nil or a *ValidationError
// naming the first offending field. Unknown properties pass through;
// models often add harmless extras.
func validateArgs(tool *Tool, args map[string]any) *ValidationError {
	props, _ := tool.Parameters["properties"].(map[string]any)

	if required, ok := tool.Parameters["required"].([]string); ok {
		for _, field := range required {
			v, present := args[field]
			if !present || v == nil {
				return &ValidationError{Tool: tool.Name, Field: field, Reason: "required"}
			}
			if s, isStr := v.(string); isStr && s == "" {
				return &ValidationError{Tool: tool.Name, Field: field, Reason: "required"}
			}
		}
	}

	for field, raw := range args {
		spec, ok := props[field].(map[string]any)
		if !ok {
			continue
		}
		if raw == nil {
			continue
		}
		if verr := checkType(tool.Name, field, spec, raw); verr != nil {
			return verr
		}
		if verr := checkEnum(tool.Name, field, spec, raw); verr != nil {
			return verr
		}
	}
	return nil
}

func checkType(toolName, field string, spec map[string]any, v any) *ValidationError {
	declared, _ := spec["type"].(string)
	switch declared {
	case "", "object":
		return nil
	case "string":
		if _, ok := v.(string); !ok {
			return &ValidationError{Tool: toolName, Field: field, Reason: fmt.Sprintf("expected string, got %T", v)}
		}
	case "integer":
		// JSON numbers decode as float64.
		f, ok := v.(float64)
		if !ok || f != math.Trunc(f) {
			return &ValidationError{Tool: toolName, Field: field, Reason: "expected integer"}
		}
	case "number":
		if _, ok := v.(float64); !ok {
			return &ValidationError{Tool: toolName, Field: field, Reason: "expected number"}
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return &ValidationError{Tool: toolName, Field: field, Reason: "expected boolean"}
		}
	case "array":
		if _, ok := v.([]any); !ok {
			return &ValidationError{Tool: toolName, Field: field, Reason: "expected array"}
		}
	}
	return nil
}

func checkEnum(toolName, field string, spec map[string]any, v any) *ValidationError {
	allowed, ok := spec["enum"].([]string)
	if !ok || len(allowed) == 0 {
		return nil
	}
	s, isStr := v.(string)
	if !isStr {
		return &ValidationError{Tool: toolName, Field: field, Reason: "expected string"}
	}
	for _, a := range allowed {
		if s == a {
			return nil
		}
	}
	return &ValidationError{Tool: toolName, Field: field,
		Reason: fmt.Sprintf("%q is not one of %v", s, allowed)}
}
