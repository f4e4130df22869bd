package domain

import (
	"context"
	"time"
)

// PatternStore persists what the agent learned from past sessions: tool-use
// patterns that worked and attempts that failed. Records are read-only input
// to future sessions, never replayed automatically.
type PatternStore interface {
	SaveSuccessfulPattern(ctx context.Context, rec PatternRecord) error
	SaveFailedAttempt(ctx context.Context, rec FailureRecord) error
	GetRelevantMemories(ctx context.Context, task string, limit int) (MemoryDigest, error)
	Close() error
}

// PatternRecord captures a task that completed with tool use.
type PatternRecord struct {
	ID        int64     `json:"id"`
	Task      string    `json:"task"`
	Steps     []string  `json:"steps"`
	Tools     []string  `json:"tools"`
	CreatedAt time.Time `json:"created_at"`
}

// FailureRecord captures a task that ended in a terminal error, optionally
// with a known remediation.
type FailureRecord struct {
	ID        int64     `json:"id"`
	Task      string    `json:"task"`
	Error     string    `json:"error"`
	Solution  string    `json:"solution,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MemoryDigest is the relevance-ranked slice of memory handed to the
// Preparing phase.
type MemoryDigest struct {
	Patterns []PatternRecord
	Failures []FailureRecord
}

// Empty reports whether the digest carries nothing worth injecting.
func (d MemoryDigest) Empty() bool {
	return len(d.Patterns) == 0 && len(d.Failures) == 0
}
