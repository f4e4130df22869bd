// Package mcp implements the tool-serving wire layer: JSON-RPC 2.0 framing
// over a newline-delimited byte stream, the MCP-shaped tool schema, and the
// server that exposes a tool catalog to remote clients.
package mcp

import "encoding/json"

// ProtocolVersion is the protocol revision advertised by initialize.
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes, plus the server-defined tool error range.
const (
	CodeParseError            = -32700
	CodeInvalidRequest        = -32600
	CodeMethodNotFound        = -32601
	CodeInvalidParams         = -32602
	CodeInternalError         = -32603
	CodeToolNotFound          = -32001
	CodeToolExecutionError    = -32002
	CodeInvalidToolParameters = -32003
)

// Request is an incoming JSON-RPC 2.0 request. A nil ID (absent or JSON
// null) marks a notification: it never produces a response.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"` // string, number or null per JSON-RPC 2.0
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r Request) IsNotification() bool {
	return r.ID == nil
}

// Response is an outgoing JSON-RPC 2.0 response. Exactly one of Result and
// Error is set; ID always echoes the originating request's ID verbatim.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// NewResult builds a success response echoing the request ID.
func NewResult(id any, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// NewError builds an error response echoing the request ID.
func NewError(id any, code int, message string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

// Tool is the wire-level tool descriptor: name, description and a JSON
// Schema object describing the accepted arguments.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ServerInfo identifies the serving process to clients.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities advertises which protocol surfaces this server implements.
// Resources and prompts are reserved for future use.
type Capabilities struct {
	Tools map[string]any `json:"tools"`
}

// InitializeResult is the response payload of the initialize method.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
}

// ListToolsResult is the response payload of tools/list.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams is the request payload of tools/call.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ContentItem is one block of tool output. Only text content is produced
// today.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the response payload of tools/call. A failed tool
// execution sets IsError instead of becoming a protocol-level error.
type CallToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}
