package domain

import "context"

// Provider is the interface all reasoning-model backends implement.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	Models() []string
	SupportsToolCalling() bool
	Healthy(ctx context.Context) error
}

// StreamingProvider is an optional extension for providers that deliver
// token-by-token output. Each token chunk carries only the newly appended
// text; complete tool calls arrive with the final TokenDone chunk.
type StreamingProvider interface {
	Provider
	ChatStream(ctx context.Context, req ChatRequest, out chan<- TokenChunk) error
}

// TokenChunkType classifies a streaming chunk from a provider.
type TokenChunkType string

const (
	TokenDelta TokenChunkType = "delta"
	TokenDone  TokenChunkType = "done"
)

// TokenChunk is one unit of streamed provider output.
type TokenChunk struct {
	Type      TokenChunkType
	Content   string     // appended text for delta chunks
	ToolCalls []ToolCall // populated on the done chunk when the model called tools
}

type ChatRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Model       string
	MaxTokens   int
	Temperature float64
}

type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string // stop | tool_calls | length
	Usage        Usage
	LatencyMs    int64
}

func (r *ChatResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

type Message struct {
	Role       string     `json:"role"` // system | user | assistant | tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall is the model's intent to invoke one tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition is the function-calling schema handed to the model:
// Parameters is the tool's JSON Schema input object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
