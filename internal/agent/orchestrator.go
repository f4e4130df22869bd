package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"webpilot/internal/domain"
	"webpilot/internal/mcp"
	"webpilot/internal/metrics"
)

// ErrSessionActive is returned by Run while an earlier session has not
// settled.
var ErrSessionActive = errors.New("a session is already active")

// ErrNoSession is returned by Cancel when no session matches.
var ErrNoSession = errors.New("no such active session")

// mutatorTools change which browser context is active; after one of these
// the orchestrator re-checks the binding.
var mutatorTools = map[string]bool{
	"navigate":   true,
	"switch_tab": true,
	"new_tab":    true,
	"back":       true,
}

// OrchestratorConfig wires the orchestrator's collaborators and tuning.
type OrchestratorConfig struct {
	Provider   domain.Provider
	Catalog    domain.Catalog
	Store      domain.PatternStore       // optional
	Contexts   domain.ContextProvider    // optional
	Interrupts domain.InterruptionSource // optional
	Sink       domain.EventSink
	Filter     *ToolFilter // optional
	Logger     *slog.Logger

	Model            string
	MaxSteps         int     // steps per session, default 20
	TokenWarnLimit   int     // estimate threshold for the strong budget warning
	TokenInfoLimit   int     // lower threshold for the informational notice, default half the warn limit
	AbortOnToolError bool    // fail the session on the first tool failure
	RateBurst        int     // provider call burst size
	RatePerMinute    float64 // provider calls per minute
}

// Orchestrator drives one task at a time through the model and the tool
// catalog, streaming progress to the event sink.
type Orchestrator struct {
	cfg     OrchestratorConfig
	prompts *PromptBuilder
	limiter *RateLimiter
	logger  *slog.Logger

	mu     sync.Mutex
	active *Session
}

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 20
	}
	if cfg.TokenWarnLimit <= 0 {
		cfg.TokenWarnLimit = 100000
	}
	if cfg.TokenInfoLimit <= 0 {
		cfg.TokenInfoLimit = cfg.TokenWarnLimit / 2
	}
	return &Orchestrator{
		cfg:     cfg,
		prompts: NewPromptBuilder(cfg.Store, logger),
		limiter: NewRateLimiter(cfg.RateBurst, cfg.RatePerMinute),
		logger:  logger,
	}
}

// Run starts a session for task and returns it immediately. While an
// earlier session is active the call is rejected with ErrSessionActive;
// callers wanting queueing queue themselves.
func (o *Orchestrator) Run(ctx context.Context, task string) (*Session, error) {
	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return nil, ErrSessionActive
	}
	sess := newSession(ctx, task)
	o.active = sess
	o.mu.Unlock()

	o.logger.Info("session started", "session", sess.ID, "task", task)
	metrics.SessionsTotal.Inc()
	metrics.ActiveSessions.Inc()
	go o.run(sess)
	return sess, nil
}

// Cancel requests cooperative cancellation of the active session.
func (o *Orchestrator) Cancel(sessionID string) error {
	o.mu.Lock()
	sess := o.active
	o.mu.Unlock()
	if sess == nil || sess.ID != sessionID {
		return fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}
	sess.Cancel()
	return nil
}

// Active returns the running session, or nil.
func (o *Orchestrator) Active() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Orchestrator) run(sess *Session) {
	defer o.finish(sess)

	ctx := sess.Context()

	// Preparing: bind the current context and assemble the prompt.
	o.emit(sess, domain.AgentEvent{Type: domain.AgentThinking, Content: "preparing"})
	o.bindContext(sess)

	unsubscribe := o.subscribeInterrupts(sess)
	defer unsubscribe()

	tools := o.cfg.Catalog.List()
	if o.cfg.Filter != nil {
		tools = o.cfg.Filter.FilterDescriptors(tools)
	}
	messages := o.prompts.BuildMessages(ctx, sess.Task, tools)
	defs := mcp.FunctionSchemas(tools)

	estimate := EstimateTokens(sess.Task, messages[0].Content, nil)
	switch {
	case estimate > o.cfg.TokenWarnLimit:
		o.emit(sess, domain.AgentEvent{
			Type:    domain.AgentWarning,
			Warning: domain.WarnTokenBudget,
			Content: fmt.Sprintf("estimated %d tokens exceeds the limit of %d", estimate, o.cfg.TokenWarnLimit),
		})
	case estimate > o.cfg.TokenInfoLimit:
		o.emit(sess, domain.AgentEvent{
			Type:    domain.AgentInfo,
			Warning: domain.WarnTokenBudget,
			Content: fmt.Sprintf("estimated %d tokens is approaching the limit of %d", estimate, o.cfg.TokenWarnLimit),
		})
	}

	sess.setState(StateStreaming)

	for step := 0; step < o.cfg.MaxSteps; step++ {
		if ctx.Err() != nil {
			o.cancelled(sess)
			return
		}
		if err := o.limiter.Wait(ctx); err != nil {
			o.cancelled(sess)
			return
		}

		if sess.takeInterruption() {
			note := "the user interacted with the browser outside this session; the page may have changed"
			o.emit(sess, domain.AgentEvent{
				Type:    domain.AgentWarning,
				Warning: domain.WarnInterruption,
				Content: note,
			})
			messages = append(messages, domain.Message{Role: "system", Content: note})
			// The human may have changed tabs; pick up wherever they left off.
			o.bindContext(sess)
		}

		resp, err := o.chat(sess, domain.ChatRequest{
			Messages: messages,
			Tools:    defs,
			Model:    o.cfg.Model,
		})
		if err != nil {
			if ctx.Err() != nil {
				o.cancelled(sess)
				return
			}
			o.failed(sess, fmt.Errorf("model call failed: %w", err))
			return
		}

		content := stripRolePrefix(resp.Content)
		calls := resp.ToolCalls
		if len(calls) == 0 {
			calls = extractToolCallsFromContent(content)
		}
		if len(calls) == 0 {
			o.completed(sess, content)
			return
		}

		// One tool per step keeps page state observable between actions.
		tc := calls[0]
		messages = o.prompts.AddAssistantMessage(messages, content, []domain.ToolCall{tc})

		if warn := CheckWorkflow(tc.Name, sess.LastCalls(recentWindow)); warn != "" {
			o.emit(sess, domain.AgentEvent{
				Type:    domain.AgentWarning,
				Warning: domain.WarnWorkflow,
				Content: warn,
				Tool:    tc.Name,
			})
		}

		resultText, ok := o.executeTool(sess, tc)
		if !ok {
			return
		}
		messages = o.prompts.AddToolResult(messages, tc.ID, tc.Name, resultText)
	}

	o.failed(sess, fmt.Errorf("step limit of %d reached without completion", o.cfg.MaxSteps))
}

// chat performs one model turn, streaming deltas downstream when the
// provider supports it. Each emitted delta carries only newly appended text.
func (o *Orchestrator) chat(sess *Session, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx := sess.Context()
	sess.resetTurn()

	metrics.ModelRequests.Inc()
	started := time.Now()
	defer func() { metrics.ModelLatency.Observe(time.Since(started).Seconds()) }()

	sp, streaming := o.cfg.Provider.(domain.StreamingProvider)
	if !streaming {
		resp, err := o.cfg.Provider.Chat(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.Content != "" && !resp.HasToolCalls() {
			o.emitDelta(sess, resp.Content)
		}
		return resp, nil
	}

	out := make(chan domain.TokenChunk, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- sp.ChatStream(ctx, req, out)
		close(out)
	}()

	var full []byte
	var toolCalls []domain.ToolCall
	for chunk := range out {
		switch chunk.Type {
		case domain.TokenDelta:
			full = append(full, chunk.Content...)
			o.emitDelta(sess, chunk.Content)
		case domain.TokenDone:
			if chunk.Content != "" && len(full) == 0 {
				full = append(full, chunk.Content...)
				o.emitDelta(sess, chunk.Content)
			}
			toolCalls = chunk.ToolCalls
		}
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return &domain.ChatResponse{Content: string(full), ToolCalls: toolCalls}, nil
}

// executeTool runs one call through the catalog and returns the text fed
// back to the model. ok is false when the session reached a terminal state.
func (o *Orchestrator) executeTool(sess *Session, tc domain.ToolCall) (string, bool) {
	ctx := sess.Context()

	o.emit(sess, domain.AgentEvent{Type: domain.AgentToolStart, Tool: tc.Name})
	metrics.ToolExecutions.Inc()
	started := time.Now()
	result, err := o.cfg.Catalog.Execute(ctx, tc.Name, tc.Arguments, nil)
	metrics.ToolLatency.Observe(time.Since(started).Seconds())
	sess.RecordCall(tc.Name)

	if err != nil {
		if ctx.Err() != nil {
			o.cancelled(sess)
			return "", false
		}
		// Unknown tools and bad arguments go back to the model as text so
		// it can correct itself.
		result = domain.Failf("%v", err)
	}

	text := mcp.ResultText(result)
	o.emit(sess, domain.AgentEvent{Type: domain.AgentToolEnd, Tool: tc.Name, Content: text})

	if !result.Success {
		metrics.ToolFailures.Inc()
		o.logger.Warn("tool failed", "session", sess.ID, "tool", tc.Name, "err", result.Error)
		if o.cfg.AbortOnToolError {
			o.failed(sess, fmt.Errorf("tool %s failed: %s", tc.Name, result.Error))
			return "", false
		}
	}

	if mutatorTools[tc.Name] {
		o.bindContext(sess)
	}
	return text, true
}

// bindContext points the catalog at the currently active browser context.
// Rebinding to an unchanged context is a no-op.
func (o *Orchestrator) bindContext(sess *Session) {
	if o.cfg.Contexts == nil {
		return
	}
	ref := o.cfg.Contexts.Current()
	if ref == nil {
		return
	}
	hash := ref.Fingerprint()
	if hash == sess.boundContextHash() {
		return
	}
	o.cfg.Catalog.Bind(ref)
	sess.setContextHash(hash)
	o.logger.Debug("context rebound", "session", sess.ID, "fingerprint", hash)
}

// subscribeInterrupts watches the bound context for out-of-band human
// activity and returns the unsubscribe func.
func (o *Orchestrator) subscribeInterrupts(sess *Session) func() {
	if o.cfg.Interrupts == nil {
		return func() {}
	}
	ch, unsub := o.cfg.Interrupts.Subscribe(o.cfg.Catalog.Binding())
	go func() {
		for {
			select {
			case _, open := <-ch:
				if !open {
					return
				}
				sess.noteInterruption()
			case <-sess.Context().Done():
				return
			}
		}
	}()
	return unsub
}

func (o *Orchestrator) completed(sess *Session, finalText string) {
	if !sess.markTerminal() {
		return
	}
	// Anything not yet streamed goes out with the terminal event.
	remaining := unstreamedTail(sess.turnStreamed(), finalText)
	sess.setState(StateCompleted)
	o.send(sess, domain.AgentEvent{Type: domain.AgentCompleted, Content: remaining})
	o.logger.Info("session completed", "session", sess.ID, "tools", len(sess.ToolsUsed()))
}

func (o *Orchestrator) failed(sess *Session, err error) {
	if !sess.markTerminal() {
		return
	}
	sess.setState(StateFailed)
	sess.setFailure(err.Error())
	o.send(sess, domain.AgentEvent{Type: domain.AgentFailed, Content: err.Error()})
	o.logger.Error("session failed", "session", sess.ID, "err", err)
}

func (o *Orchestrator) cancelled(sess *Session) {
	if !sess.markTerminal() {
		return
	}
	sess.setState(StateCancelled)
	o.send(sess, domain.AgentEvent{Type: domain.AgentCancelled})
	o.logger.Info("session cancelled", "session", sess.ID)
}

// finish runs exactly once per session: memory write-back, slot release,
// done signal.
func (o *Orchestrator) finish(sess *Session) {
	metrics.ActiveSessions.Dec()
	o.writeBack(sess)

	o.mu.Lock()
	if o.active == sess {
		o.active = nil
	}
	o.mu.Unlock()

	sess.cancel()
	close(sess.done)
}

func (o *Orchestrator) writeBack(sess *Session) {
	if o.cfg.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch sess.State() {
	case StateCompleted:
		tools := sess.ToolsUsed()
		if len(tools) == 0 {
			return
		}
		rec := domain.PatternRecord{Task: sess.Task, Steps: tools, Tools: dedupe(tools)}
		if err := o.cfg.Store.SaveSuccessfulPattern(ctx, rec); err != nil {
			o.logger.Warn("failed to save pattern", "session", sess.ID, "err", err)
		}
	case StateFailed:
		rec := domain.FailureRecord{Task: sess.Task, Error: sess.Failure()}
		if err := o.cfg.Store.SaveFailedAttempt(ctx, rec); err != nil {
			o.logger.Warn("failed to save failure", "session", sess.ID, "err", err)
		}
	}
}

// emit drops non-terminal events once the session settled, preserving the
// no-output-after-terminal guarantee.
func (o *Orchestrator) emit(sess *Session, ev domain.AgentEvent) {
	if sess.isTerminal() {
		return
	}
	o.send(sess, ev)
}

func (o *Orchestrator) send(sess *Session, ev domain.AgentEvent) {
	if o.cfg.Sink == nil {
		return
	}
	ev.SessionID = sess.ID
	ev.Timestamp = time.Now()
	o.cfg.Sink.Emit(ev)
}

func (o *Orchestrator) emitDelta(sess *Session, text string) {
	if text == "" || sess.isTerminal() {
		return
	}
	sess.recordStreamed(text)
	o.send(sess, domain.AgentEvent{Type: domain.AgentDelta, Content: text})
}

// unstreamedTail returns the part of final that has not been emitted as
// deltas this turn. The streamed text can carry a role prefix the final text
// had stripped, so the match is the longest prefix of final the stream ends
// with, not a plain length comparison.
func unstreamedTail(streamed, final string) string {
	n := min(len(streamed), len(final))
	for ; n > 0; n-- {
		if strings.HasSuffix(streamed, final[:n]) {
			return final[n:]
		}
	}
	return final
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
