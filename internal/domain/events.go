package domain

import "time"

// AgentEventType classifies an event streamed from the orchestrator to a UI
// sink. Exactly one terminal event (completed, failed or cancelled) is
// emitted per session, and no content delta follows a terminal event.
type AgentEventType string

const (
	AgentThinking  AgentEventType = "thinking"
	AgentDelta     AgentEventType = "delta"
	AgentToolStart AgentEventType = "tool_start"
	AgentToolEnd   AgentEventType = "tool_end"
	AgentInfo      AgentEventType = "info"
	AgentWarning   AgentEventType = "warning"
	AgentCompleted AgentEventType = "completed"
	AgentFailed    AgentEventType = "failed"
	AgentCancelled AgentEventType = "cancelled"
)

// Warning kinds carried on AgentWarning and AgentInfo events.
const (
	WarnWorkflow     = "workflow"
	WarnTokenBudget  = "token_budget"
	WarnInterruption = "interruption"
)

// AgentEvent is one observable step of a session. Content carries the newly
// appended text for delta events, the final text for completed events, and
// the diagnostic message for warning/failed events.
type AgentEvent struct {
	Type      AgentEventType `json:"type"`
	SessionID string         `json:"session_id"`
	Content   string         `json:"content,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Warning   string         `json:"warning,omitempty"` // workflow | token_budget | interruption
	Timestamp time.Time      `json:"timestamp"`
}

// EventSink receives session events in emission order.
type EventSink interface {
	Emit(ev AgentEvent)
}

// InterruptionSource reports out-of-band human interaction with the target a
// session is bound to. Subscribe returns a signal channel and an unsubscribe
// function; unsubscribe is safe to call more than once.
type InterruptionSource interface {
	Subscribe(ref ContextRef) (<-chan struct{}, func())
}
