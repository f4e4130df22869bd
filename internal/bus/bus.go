package bus

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	"webpilot/internal/domain"
)

// Handler is a callback for session events.
type Handler func(domain.AgentEvent)

// EventBus fans session events out to subscribers. It implements
// domain.EventSink; subscriptions are keyed by session ID, with "*"
// receiving everything. A bounded history buffer supports late readers.
type EventBus struct {
	handlers   map[string][]namedHandler
	mu         sync.RWMutex
	logger     *slog.Logger
	history    []domain.AgentEvent
	maxHistory int
}

// namedHandler pairs a handler with an ID for unsubscription.
type namedHandler struct {
	ID      string
	Handler Handler
}

func New(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		handlers:   make(map[string][]namedHandler),
		logger:     logger,
		maxHistory: 1000,
	}
}

// On registers a handler for events of one session. Use "*" to listen to all
// sessions. Returns the handler ID for Off.
func (eb *EventBus) On(sessionID string, handler Handler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	id := sessionID + "-" + strconv.Itoa(len(eb.handlers[sessionID]))
	eb.handlers[sessionID] = append(eb.handlers[sessionID], namedHandler{ID: id, Handler: handler})
	return id
}

// Off removes a handler by its ID.
func (eb *EventBus) Off(sessionID, handlerID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	handlers := eb.handlers[sessionID]
	for i, h := range handlers {
		if h.ID == handlerID {
			eb.handlers[sessionID] = append(handlers[:i], handlers[i+1:]...)
			return
		}
	}
}

// Emit delivers the event to the session's handlers and wildcard handlers,
// synchronously in registration order. A panicking handler is logged and
// does not stop delivery.
func (eb *EventBus) Emit(ev domain.AgentEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	eb.mu.Lock()
	if len(eb.history) >= eb.maxHistory {
		eb.history = eb.history[1:]
	}
	eb.history = append(eb.history, ev)
	eb.mu.Unlock()

	eb.mu.RLock()
	var handlers []namedHandler
	if h, ok := eb.handlers[ev.SessionID]; ok {
		handlers = append(handlers, h...)
	}
	if h, ok := eb.handlers["*"]; ok {
		handlers = append(handlers, h...)
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		func(nh namedHandler) {
			defer func() {
				if r := recover(); r != nil {
					eb.logger.Error("event handler panic", "event", string(ev.Type), "handler", nh.ID, "panic", r)
				}
			}()
			nh.Handler(ev)
		}(h)
	}
}

// History returns the buffered events for a session, oldest first. An empty
// sessionID returns everything.
func (eb *EventBus) History(sessionID string) []domain.AgentEvent {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	var out []domain.AgentEvent
	for _, ev := range eb.history {
		if sessionID == "" || ev.SessionID == sessionID {
			out = append(out, ev)
		}
	}
	return out
}

// HistoryLen returns the current number of buffered events.
func (eb *EventBus) HistoryLen() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.history)
}
