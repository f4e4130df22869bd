package memory

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"webpilot/internal/domain"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	store, err := NewSQLiteStore(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPatternRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rec := domain.PatternRecord{
		Task:  "search wikipedia for gophers",
		Steps: []string{"navigate", "discover_page", "type_text", "submit"},
		Tools: []string{"navigate", "discover_page", "type_text", "submit"},
	}
	if err := store.SaveSuccessfulPattern(ctx, rec); err != nil {
		t.Fatalf("SaveSuccessfulPattern: %v", err)
	}

	digest, err := store.GetRelevantMemories(ctx, "search wikipedia again", 5)
	if err != nil {
		t.Fatalf("GetRelevantMemories: %v", err)
	}
	if len(digest.Patterns) != 1 {
		t.Fatalf("patterns = %d, want 1", len(digest.Patterns))
	}
	got := digest.Patterns[0]
	if got.Task != rec.Task {
		t.Fatalf("task = %q", got.Task)
	}
	if len(got.Steps) != 4 || got.Steps[0] != "navigate" {
		t.Fatalf("steps = %v", got.Steps)
	}
	if len(got.Tools) != 4 {
		t.Fatalf("tools = %v", got.Tools)
	}
	if got.ID == 0 {
		t.Fatal("id not assigned")
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not persisted")
	}
}

func TestFailureRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	rec := domain.FailureRecord{
		Task:     "submit checkout form",
		Error:    "click: no element with ref 4",
		Solution: "rediscover the page after navigation",
	}
	if err := store.SaveFailedAttempt(ctx, rec); err != nil {
		t.Fatalf("SaveFailedAttempt: %v", err)
	}

	digest, err := store.GetRelevantMemories(ctx, "checkout flow", 5)
	if err != nil {
		t.Fatalf("GetRelevantMemories: %v", err)
	}
	if len(digest.Failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(digest.Failures))
	}
	got := digest.Failures[0]
	if got.Error != rec.Error || got.Solution != rec.Solution {
		t.Fatalf("failure = %+v", got)
	}
}

func TestGetRelevantMemories_UnrelatedTaskFindsNothing(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	err := store.SaveSuccessfulPattern(ctx, domain.PatternRecord{
		Task: "search wikipedia for gophers", Steps: []string{"navigate"},
	})
	if err != nil {
		t.Fatalf("SaveSuccessfulPattern: %v", err)
	}

	digest, err := store.GetRelevantMemories(ctx, "compose unrelated email", 5)
	if err != nil {
		t.Fatalf("GetRelevantMemories: %v", err)
	}
	if !digest.Empty() {
		t.Fatalf("digest = %+v, want empty", digest)
	}
}

func TestGetRelevantMemories_RanksByKeywordOverlap(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	patterns := []domain.PatternRecord{
		{Task: "book flight tickets", CreatedAt: time.Now().Add(-time.Hour)},
		{Task: "book flight tickets from berlin", CreatedAt: time.Now().Add(-2 * time.Hour)},
		{Task: "book a restaurant table", CreatedAt: time.Now()},
	}
	for _, rec := range patterns {
		if err := store.SaveSuccessfulPattern(ctx, rec); err != nil {
			t.Fatalf("SaveSuccessfulPattern: %v", err)
		}
	}

	digest, err := store.GetRelevantMemories(ctx, "book flight from berlin", 2)
	if err != nil {
		t.Fatalf("GetRelevantMemories: %v", err)
	}
	if len(digest.Patterns) != 2 {
		t.Fatalf("patterns = %d, want 2", len(digest.Patterns))
	}
	// Three keyword hits beat two, despite being the older record.
	if digest.Patterns[0].Task != "book flight tickets from berlin" {
		t.Fatalf("top pattern = %q", digest.Patterns[0].Task)
	}
}

func TestGetRelevantMemories_LimitRespected(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		err := store.SaveSuccessfulPattern(ctx, domain.PatternRecord{Task: "search wikipedia"})
		if err != nil {
			t.Fatalf("SaveSuccessfulPattern: %v", err)
		}
	}

	digest, err := store.GetRelevantMemories(ctx, "search wikipedia", 3)
	if err != nil {
		t.Fatalf("GetRelevantMemories: %v", err)
	}
	if len(digest.Patterns) != 3 {
		t.Fatalf("patterns = %d, want 3", len(digest.Patterns))
	}
}

func TestGetRelevantMemories_NoUsableKeywords(t *testing.T) {
	store := testStore(t)

	digest, err := store.GetRelevantMemories(context.Background(), "go to it", 5)
	if err != nil {
		t.Fatalf("GetRelevantMemories: %v", err)
	}
	if !digest.Empty() {
		t.Fatalf("digest = %+v, want empty", digest)
	}
}

func TestTaskKeywords(t *testing.T) {
	got := taskKeywords("Search Wikipedia, then search again for the gophers!")
	want := []string{"search", "wikipedia", "again", "gophers"}
	if len(got) != len(want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keywords = %v, want %v", got, want)
		}
	}
}
