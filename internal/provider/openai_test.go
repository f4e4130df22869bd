package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"webpilot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatRequest() domain.ChatRequest {
	return domain.ChatRequest{
		Messages: []domain.Message{
			{Role: "system", Content: "rules"},
			{Role: "user", Content: "open example.com"},
		},
		Tools: []domain.ToolDefinition{{
			Name:        "navigate",
			Description: "open a url",
			Parameters:  map[string]any{"type": "object"},
		}},
	}
}

func TestOpenAI_Chat(t *testing.T) {
	var gotBody oaiRequest
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "navigate", "arguments": "{\"url\":\"https://example.com\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 40, "completion_tokens": 12, "total_tokens": 52}
		}`)
	}))
	defer server.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "sk-test", APIBase: server.URL, Model: "gpt-4o-mini", Logger: testLogger()})
	resp, err := p.Chat(context.Background(), chatRequest())
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotBody.Model != "gpt-4o-mini" || gotBody.Stream {
		t.Fatalf("request body = %+v", gotBody)
	}
	if len(gotBody.Tools) != 1 || gotBody.Tools[0].Function.Name != "navigate" {
		t.Fatalf("tools = %+v", gotBody.Tools)
	}

	if !resp.HasToolCalls() {
		t.Fatal("no tool calls parsed")
	}
	tc := resp.ToolCalls[0]
	if tc.Name != "navigate" || tc.Arguments["url"] != "https://example.com" {
		t.Fatalf("tool call = %+v", tc)
	}
	if resp.FinishReason != "tool_calls" {
		t.Fatalf("finishReason = %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 52 {
		t.Fatalf("usage = %+v", resp.Usage)
	}
}

func TestOpenAI_ChatErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	p := NewOpenAI(OpenAIConfig{APIBase: server.URL, Logger: testLogger()})
	if _, err := p.Chat(context.Background(), chatRequest()); err == nil {
		t.Fatal("expected an error for HTTP 400")
	}
}

func TestOpenAI_ChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body oaiRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || !body.Stream {
			t.Errorf("streaming request not marked: %+v err %v", body, err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"Open"}}]}

data: {"choices":[{"delta":{"content":"ing now"}}]}

data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"navigate","arguments":"{\"url\":"}}]}}]}

data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"https://example.com\"}"}}]}}]}

data: [DONE]
`)
	}))
	defer server.Close()

	p := NewOpenAI(OpenAIConfig{APIBase: server.URL, Logger: testLogger()})
	out := make(chan domain.TokenChunk, 16)
	if err := p.ChatStream(context.Background(), chatRequest(), out); err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	close(out)

	var deltas []string
	var done *domain.TokenChunk
	for chunk := range out {
		switch chunk.Type {
		case domain.TokenDelta:
			deltas = append(deltas, chunk.Content)
		case domain.TokenDone:
			c := chunk
			done = &c
		}
	}

	if len(deltas) != 2 || deltas[0] != "Open" || deltas[1] != "ing now" {
		t.Fatalf("deltas = %v", deltas)
	}
	if done == nil {
		t.Fatal("no done chunk")
	}
	if len(done.ToolCalls) != 1 {
		t.Fatalf("tool calls = %+v", done.ToolCalls)
	}
	tc := done.ToolCalls[0]
	if tc.ID != "call_1" || tc.Name != "navigate" {
		t.Fatalf("tool call = %+v", tc)
	}
	// Argument fragments spliced back into one JSON object.
	if tc.Arguments["url"] != "https://example.com" {
		t.Fatalf("arguments = %v", tc.Arguments)
	}
}

func TestOpenAI_ChatStreamSparseToolIndexes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"navigate","arguments":"{}"}}]}}]}

data: {"choices":[{"delta":{"tool_calls":[{"index":2,"id":"call_b","type":"function","function":{"name":"screenshot","arguments":"{}"}}]}}]}

data: [DONE]
`)
	}))
	defer server.Close()

	p := NewOpenAI(OpenAIConfig{APIBase: server.URL, Logger: testLogger()})
	out := make(chan domain.TokenChunk, 16)
	if err := p.ChatStream(context.Background(), chatRequest(), out); err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	close(out)

	var done *domain.TokenChunk
	for chunk := range out {
		if chunk.Type == domain.TokenDone {
			c := chunk
			done = &c
		}
	}
	if done == nil {
		t.Fatal("no done chunk")
	}
	// A gap in the index sequence must not lose a call.
	if len(done.ToolCalls) != 2 {
		t.Fatalf("tool calls = %+v, want both despite the index gap", done.ToolCalls)
	}
	if done.ToolCalls[0].Name != "navigate" || done.ToolCalls[1].Name != "screenshot" {
		t.Fatalf("tool calls out of order: %+v", done.ToolCalls)
	}
}

func TestOpenAI_HealthyUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	p := NewOpenAI(OpenAIConfig{APIBase: server.URL, APIKey: "sk-bad", Logger: testLogger()})
	if err := p.Healthy(context.Background()); err == nil {
		t.Fatal("expected an error for HTTP 401")
	}
}
