package mcp

import (
	"encoding/json"

	"webpilot/internal/domain"
)

// This file is the pure translation layer between catalog types and wire
// shapes. Nothing here has side effects.

// ToolToWire converts a catalog descriptor to the wire tool schema. The
// required array collects every parameter not explicitly marked optional and
// is present only when non-empty.
func ToolToWire(d domain.ToolDescriptor) Tool {
	properties := make(map[string]any, len(d.Params))
	var required []string

	for _, p := range d.Params {
		prop := map[string]any{
			"type":        string(p.Type),
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Type == domain.ParamArray {
			// Item type defaults to string until a richer schema is needed.
			prop["items"] = map[string]any{"type": "string"}
		}
		properties[p.Name] = prop
		if !p.Optional {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return Tool{Name: d.Name, Description: d.Description, InputSchema: schema}
}

// CatalogToWire converts a catalog snapshot in catalog order.
func CatalogToWire(descs []domain.ToolDescriptor) []Tool {
	tools := make([]Tool, 0, len(descs))
	for _, d := range descs {
		tools = append(tools, ToolToWire(d))
	}
	return tools
}

// ResultToWire converts a ToolResult to the tools/call response shape. Tool
// failure becomes isError content, never a protocol error.
func ResultToWire(r domain.ToolResult) CallToolResult {
	text := ResultText(r)
	return CallToolResult{
		Content: []ContentItem{{Type: "text", Text: text}},
		IsError: !r.Success,
	}
}

// ResultText renders a ToolResult as the text a model or user sees.
func ResultText(r domain.ToolResult) string {
	if !r.Success {
		if r.Error != "" {
			return r.Error
		}
		return "Tool execution failed"
	}
	if r.Message != "" {
		return r.Message
	}
	if r.Result != nil {
		if s, ok := r.Result.(string); ok {
			return s
		}
		data, err := json.MarshalIndent(r.Result, "", "  ")
		if err != nil {
			return "Tool executed successfully"
		}
		return string(data)
	}
	return "Tool executed successfully"
}

// ToFunctionSchema repackages a wire tool as the function-calling definition
// handed to the reasoning model. No information is lost: parameters is the
// tool's input schema verbatim.
func ToFunctionSchema(t Tool) domain.ToolDefinition {
	return domain.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  t.InputSchema,
	}
}

// FunctionSchemas converts a catalog snapshot straight to model definitions.
func FunctionSchemas(descs []domain.ToolDescriptor) []domain.ToolDefinition {
	defs := make([]domain.ToolDefinition, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, ToFunctionSchema(ToolToWire(d)))
	}
	return defs
}
