package agent

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"webpilot/internal/domain"
)

// PromptBuilder assembles the system prompt for a session: static identity
// plus a memory digest of relevant past patterns and failures.
type PromptBuilder struct {
	store  domain.PatternStore
	logger *slog.Logger

	// memoryLimit caps how many records of each kind the digest carries.
	memoryLimit int
}

func NewPromptBuilder(store domain.PatternStore, logger *slog.Logger) *PromptBuilder {
	return &PromptBuilder{
		store:       store,
		logger:      logger,
		memoryLimit: 5,
	}
}

// BuildSystemPrompt renders the system prompt for a task. The memory section
// is appended only when the store yields relevant records; store failures are
// logged and the prompt proceeds without memory.
func (p *PromptBuilder) BuildSystemPrompt(ctx context.Context, task string, tools []domain.ToolDescriptor) string {
	now := time.Now().Format("2006-01-02 15:04 (Monday)")

	var toolNames []string
	for _, td := range tools {
		toolNames = append(toolNames, td.Name)
	}

	identity := fmt.Sprintf(`# WebPilot

You are WebPilot, an assistant that drives a real web browser through tools.
You can navigate pages, discover what is on them, click elements, type into
fields, submit forms, manage tabs, and take screenshots.

## Current Time
%s

## Runtime
%s %s, Go %s

## Available Tools
%s

## RULES
1. Before interacting with page elements, run discover_page to learn what is
   on the page. Element references become stale after navigation.
2. Call at most one tool per step and wait for its result before deciding the
   next step.
3. Do NOT output raw JSON in your response. Use the tool calling mechanism.
4. After the task is done, summarize the outcome clearly for the user.
5. If a tool fails, read the error and adjust; do not repeat the same call
   unchanged.`,
		now, runtime.GOOS, runtime.GOARCH, runtime.Version(), strings.Join(toolNames, ", "))

	digest := p.Digest(ctx, task)
	if !digest.Empty() {
		identity += renderDigest(digest)
	}
	return identity
}

// Digest fetches memory relevant to the task. Errors degrade to an empty
// digest.
func (p *PromptBuilder) Digest(ctx context.Context, task string) domain.MemoryDigest {
	if p.store == nil {
		return domain.MemoryDigest{}
	}
	digest, err := p.store.GetRelevantMemories(ctx, task, p.memoryLimit)
	if err != nil {
		p.logger.Warn("failed to load memories for prompt", "err", err)
		return domain.MemoryDigest{}
	}
	return digest
}

func renderDigest(d domain.MemoryDigest) string {
	var buf strings.Builder
	buf.WriteString("\n\n## Memory From Past Sessions\n")
	if len(d.Patterns) > 0 {
		buf.WriteString("Approaches that worked before:\n")
		for _, pat := range d.Patterns {
			buf.WriteString("- ")
			buf.WriteString(pat.Task)
			if len(pat.Steps) > 0 {
				buf.WriteString(": ")
				buf.WriteString(strings.Join(pat.Steps, " -> "))
			}
			buf.WriteByte('\n')
		}
	}
	if len(d.Failures) > 0 {
		buf.WriteString("Mistakes to avoid:\n")
		for _, f := range d.Failures {
			buf.WriteString("- ")
			buf.WriteString(f.Task)
			buf.WriteString(": ")
			buf.WriteString(f.Error)
			if f.Solution != "" {
				buf.WriteString(" (fix: ")
				buf.WriteString(f.Solution)
				buf.WriteString(")")
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// BuildMessages constructs the initial [system, user] conversation for a
// session.
func (p *PromptBuilder) BuildMessages(ctx context.Context, task string, tools []domain.ToolDescriptor) []domain.Message {
	return []domain.Message{
		{Role: "system", Content: p.BuildSystemPrompt(ctx, task, tools)},
		{Role: "user", Content: task},
	}
}

// AddAssistantMessage appends the model's turn, preserving any tool calls.
func (p *PromptBuilder) AddAssistantMessage(messages []domain.Message, content string, toolCalls []domain.ToolCall) []domain.Message {
	msg := domain.Message{Role: "assistant", Content: content}
	if len(toolCalls) > 0 {
		msg.ToolCalls = toolCalls
	}
	return append(messages, msg)
}

// AddToolResult appends a tool result turn referencing the originating call.
func (p *PromptBuilder) AddToolResult(messages []domain.Message, toolCallID, toolName, result string) []domain.Message {
	return append(messages, domain.Message{
		Role:       "tool",
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Content:    result,
	})
}
