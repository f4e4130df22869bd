package domain

import (
	"context"
	"fmt"
)

// ParamType is the JSON type a tool parameter declares.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
	ParamObject  ParamType = "object"
)

// ParamSpec describes a single tool parameter. Parameters are required
// unless Optional is set.
type ParamSpec struct {
	Name        string
	Type        ParamType
	Description string
	Enum        []string
	Optional    bool
}

// ToolDescriptor describes one invocable capability. Names are unique within
// a catalog snapshot; the snapshot is fixed for the lifetime of a running
// server or orchestrator instance.
type ToolDescriptor struct {
	Name        string
	Description string
	Params      []ParamSpec
}

// ToolResult is the outcome of a tool execution. Exactly one semantic
// outcome: success (with optional Message/Result) or failure (with Error).
type ToolResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Succeed builds a successful ToolResult with a human-readable message.
func Succeed(message string) ToolResult {
	return ToolResult{Success: true, Message: message}
}

// SucceedWith builds a successful ToolResult carrying structured data.
func SucceedWith(result any) ToolResult {
	return ToolResult{Success: true, Result: result}
}

// Failf builds a failed ToolResult from a formatted error message.
func Failf(format string, args ...any) ToolResult {
	return ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ContextRef is an opaque handle to the external target tools currently act
// upon (for the browser toolset, the active tab). The catalog forwards it to
// executors without interpreting it.
type ContextRef interface {
	// Fingerprint returns a cheap stable identifier used for
	// context-change detection.
	Fingerprint() string
}

// ContextProvider reports the current external target, so the orchestrator
// can rebind the catalog after a context-mutating tool call.
type ContextProvider interface {
	Current() ContextRef
}

// Tool pairs a descriptor with its executor.
type Tool interface {
	Descriptor() ToolDescriptor
	Execute(ctx context.Context, args map[string]any, ref ContextRef) ToolResult
}

// Catalog is the fixed set of tools available to one session. Execute with a
// nil ref uses the catalog's current binding.
type Catalog interface {
	List() []ToolDescriptor
	Get(name string) (ToolDescriptor, bool)
	Execute(ctx context.Context, name string, args map[string]any, ref ContextRef) (ToolResult, error)
	Bind(ref ContextRef)
	Binding() ContextRef
}
