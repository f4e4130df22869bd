package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"webpilot/internal/domain"
)

const (
	ollamaDefaultBase  = "http://localhost:11434"
	ollamaDefaultModel = "llama3.1:8b"
)

// Ollama implements domain.Provider for Ollama (local or cloud).
type Ollama struct {
	apiBase      string
	defaultModel string
	client       *http.Client
	logger       *slog.Logger
}

type OllamaConfig struct {
	APIBase      string
	DefaultModel string
	Logger       *slog.Logger
}

func NewOllama(cfg OllamaConfig) *Ollama {
	return NewOllamaWithClient(cfg, SharedHTTPClient(defaultHTTPTimeout))
}

func NewOllamaWithClient(cfg OllamaConfig, client *http.Client) *Ollama {
	if cfg.APIBase == "" {
		cfg.APIBase = ollamaDefaultBase
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = ollamaDefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Ollama{
		apiBase:      cfg.APIBase,
		defaultModel: cfg.DefaultModel,
		client:       client,
		logger:       cfg.Logger,
	}
}

func (o *Ollama) Name() string { return "ollama" }

// Models returns common defaults; the full list would require GET /api/tags.
func (o *Ollama) Models() []string {
	return []string{"llama3.1:8b", "llama3.1:70b", "llama3.2:3b", "mistral", "qwen2.5"}
}

func (o *Ollama) SupportsToolCalling() bool { return true }

func (o *Ollama) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", o.apiBase+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama not reachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// ollamaRequest matches the Ollama /api/chat request body.
type ollamaRequest struct {
	Model       string       `json:"model"`
	Messages    []ollamaMsg  `json:"messages"`
	Stream      bool         `json:"stream"`
	Tools       []ollamaTool `json:"tools,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
}

type ollamaMsg struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type ollamaTool struct {
	Type     string     `json:"type"`
	Function ollamaFunc `json:"function"`
}

type ollamaFunc struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaToolCall struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	Function ollamaFuncCall `json:"function"`
}

type ollamaFuncCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // JSON object or JSON string
}

type ollamaResponse struct {
	Message    ollamaMsg `json:"message"`
	Done       bool      `json:"done"`
	DoneReason string    `json:"done_reason"`
}

func (o *Ollama) buildBody(req domain.ChatRequest, stream bool) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = o.defaultModel
	}

	msgs := make([]ollamaMsg, 0, len(req.Messages))
	for _, m := range req.Messages {
		om := ollamaMsg{Role: m.Role, Content: m.Content}
		if m.ToolCallID != "" {
			om.ToolCallID = m.ToolCallID
			om.Name = m.ToolName
		}
		for _, tc := range m.ToolCalls {
			argsRaw, err := json.Marshal(tc.Arguments)
			if err != nil {
				argsRaw = []byte("{}")
			}
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: ollamaFuncCall{
					Name:      tc.Name,
					Arguments: json.RawMessage(argsRaw),
				},
			})
		}
		msgs = append(msgs, om)
	}

	body := ollamaRequest{
		Model:    model,
		Messages: msgs,
		Stream:   stream,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, ollamaTool{
			Type: "function",
			Function: ollamaFunc{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return json.Marshal(body)
}

func (o *Ollama) post(ctx context.Context, jsonBody []byte) (*http.Response, error) {
	return doWithRetry(ctx, o.client, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, "POST", o.apiBase+"/api/chat", bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		return httpReq, nil
	}, o.logger)
}

func (o *Ollama) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	jsonBody, err := o.buildBody(req, false)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := o.post(ctx, jsonBody)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return o.buildResponse(ollamaResp), nil
}

// ChatStream reads the NDJSON response line by line, forwarding each content
// fragment as a delta chunk. Tool calls from the final message ride on the
// done chunk.
func (o *Ollama) ChatStream(ctx context.Context, req domain.ChatRequest, out chan<- domain.TokenChunk) error {
	jsonBody, err := o.buildBody(req, true)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := o.post(ctx, jsonBody)
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ollama returned %d: %s", resp.StatusCode, string(respBody))
	}

	var full strings.Builder
	var last ollamaResponse

	decoder := json.NewDecoder(resp.Body)
	for decoder.More() {
		var chunk ollamaResponse
		if err := decoder.Decode(&chunk); err != nil {
			if full.Len() > 0 {
				break // partial success
			}
			return fmt.Errorf("stream decode: %w", err)
		}

		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			select {
			case out <- domain.TokenChunk{Type: domain.TokenDelta, Content: chunk.Message.Content}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if len(chunk.Message.ToolCalls) > 0 {
			last.Message.ToolCalls = append(last.Message.ToolCalls, chunk.Message.ToolCalls...)
		}
		if chunk.Done {
			break
		}
	}

	done := domain.TokenChunk{Type: domain.TokenDone}
	built := o.buildResponse(last)
	done.ToolCalls = built.ToolCalls

	select {
	case out <- done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (o *Ollama) buildResponse(ollamaResp ollamaResponse) *domain.ChatResponse {
	out := &domain.ChatResponse{
		Content:      ollamaResp.Message.Content,
		FinishReason: ollamaResp.DoneReason,
	}

	for _, tc := range ollamaResp.Message.ToolCalls {
		var args map[string]any
		if len(tc.Function.Arguments) > 0 {
			raw := tc.Function.Arguments
			// Arguments can arrive as a JSON string or a JSON object.
			if raw[0] == '"' {
				var s string
				if err := json.Unmarshal(raw, &s); err == nil {
					_ = json.Unmarshal([]byte(s), &args)
				}
			} else {
				_ = json.Unmarshal(raw, &args)
			}
		}
		if args == nil {
			args = make(map[string]any)
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return out
}
