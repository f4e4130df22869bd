package agent

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle phase of a session. Completed, Failed and
// Cancelled are terminal.
type State string

const (
	StatePreparing State = "preparing"
	StateStreaming State = "streaming"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// CallRecord is one entry of the session's tool-call log.
type CallRecord struct {
	Tool string
	At   time.Time
}

// Session is the transient state of one user request: created when the
// request starts, destroyed when it settles, never reused.
type Session struct {
	ID   string
	Task string

	ctx    context.Context
	cancel context.CancelFunc

	done chan struct{}

	mu               sync.Mutex
	state            State
	calls            []CallRecord
	streamed         strings.Builder // all text emitted downstream so far
	turnSent         int             // bytes of the current model turn already emitted
	contextHash      string
	failure          string
	interruptPending bool
	interruptWarned  bool
	terminal         bool
}

func newSession(parent context.Context, task string) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:     uuid.NewString(),
		Task:   task,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StatePreparing,
	}
}

// Done is closed after the session settles and cleanup has run.
func (s *Session) Done() <-chan struct{} { return s.done }

// Context returns the session's cancellation context.
func (s *Session) Context() context.Context { return s.ctx }

// Cancel requests cooperative cancellation; the loop observes it at the
// next checkpoint.
func (s *Session) Cancel() { s.cancel() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// markTerminal flips the terminal flag and reports whether this call was the
// first. Exactly one terminal event per session rides on this.
func (s *Session) markTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminal {
		return false
	}
	s.terminal = true
	return true
}

func (s *Session) isTerminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminal
}

// noteInterruption records that the bound context saw out-of-band human
// activity.
func (s *Session) noteInterruption() {
	s.mu.Lock()
	s.interruptPending = true
	s.mu.Unlock()
}

// takeInterruption reports whether an interruption advisory is due. It fires
// at most once per session.
func (s *Session) takeInterruption() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interruptPending && !s.interruptWarned {
		s.interruptWarned = true
		return true
	}
	return false
}

// RecordCall appends to the ordered tool-call log.
func (s *Session) RecordCall(tool string) {
	s.mu.Lock()
	s.calls = append(s.calls, CallRecord{Tool: tool, At: time.Now()})
	s.mu.Unlock()
}

// LastCalls returns up to n most recent log entries, oldest first.
func (s *Session) LastCalls(n int) []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.calls) {
		n = len(s.calls)
	}
	out := make([]CallRecord, n)
	copy(out, s.calls[len(s.calls)-n:])
	return out
}

// ToolsUsed returns the ordered tool names from the call log.
func (s *Session) ToolsUsed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tools := make([]string, len(s.calls))
	for i, c := range s.calls {
		tools[i] = c.Tool
	}
	return tools
}

func (s *Session) setFailure(msg string) {
	s.mu.Lock()
	s.failure = msg
	s.mu.Unlock()
}

// Failure returns the terminal error message for failed sessions.
func (s *Session) Failure() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Session) setContextHash(h string) {
	s.mu.Lock()
	s.contextHash = h
	s.mu.Unlock()
}

func (s *Session) boundContextHash() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextHash
}

// recordStreamed tracks text emitted downstream this turn so a suffix is
// never re-sent.
func (s *Session) recordStreamed(text string) {
	s.mu.Lock()
	s.streamed.WriteString(text)
	s.turnSent += len(text)
	s.mu.Unlock()
}

func (s *Session) resetTurn() {
	s.mu.Lock()
	s.turnSent = 0
	s.mu.Unlock()
}

// turnStreamed returns the text emitted downstream during the current model
// turn.
func (s *Session) turnStreamed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	full := s.streamed.String()
	return full[len(full)-s.turnSent:]
}

// Streamed returns everything emitted downstream for this session.
func (s *Session) Streamed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamed.String()
}
