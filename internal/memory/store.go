package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"webpilot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.PatternStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS patterns (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		task        TEXT NOT NULL,
		steps       TEXT,
		tools       TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_patterns_time ON patterns(created_at);

	CREATE TABLE IF NOT EXISTS failures (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		task        TEXT NOT NULL,
		error       TEXT NOT NULL,
		solution    TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_failures_time ON failures(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) SaveSuccessfulPattern(ctx context.Context, rec domain.PatternRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	steps, err := json.Marshal(rec.Steps)
	if err != nil {
		return fmt.Errorf("cannot encode steps: %w", err)
	}
	tools, err := json.Marshal(rec.Tools)
	if err != nil {
		return fmt.Errorf("cannot encode tools: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO patterns (task, steps, tools, created_at) VALUES (?, ?, ?, ?)`,
		rec.Task, string(steps), string(tools), rec.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) SaveFailedAttempt(ctx context.Context, rec domain.FailureRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO failures (task, error, solution, created_at) VALUES (?, ?, ?, ?)`,
		rec.Task, rec.Error, rec.Solution, rec.CreatedAt,
	)
	return err
}

// GetRelevantMemories returns the patterns and failures whose stored task
// shares keywords with the given task. Keyword match uses LIKE; records
// matching more keywords rank first, recency breaks ties.
func (s *SQLiteStore) GetRelevantMemories(ctx context.Context, task string, limit int) (domain.MemoryDigest, error) {
	if limit <= 0 {
		limit = 5
	}
	keywords := taskKeywords(task)
	if len(keywords) == 0 {
		return domain.MemoryDigest{}, nil
	}

	patterns, err := s.relevantPatterns(ctx, keywords, limit)
	if err != nil {
		return domain.MemoryDigest{}, err
	}
	failures, err := s.relevantFailures(ctx, keywords, limit)
	if err != nil {
		return domain.MemoryDigest{}, err
	}
	return domain.MemoryDigest{Patterns: patterns, Failures: failures}, nil
}

func (s *SQLiteStore) relevantPatterns(ctx context.Context, keywords []string, limit int) ([]domain.PatternRecord, error) {
	where, args := likeClause(keywords)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, steps, tools, created_at FROM patterns
		 WHERE `+where+` ORDER BY created_at DESC LIMIT ?`,
		append(args, limit*4)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		rec   domain.PatternRecord
		score int
	}
	var hits []scored
	for rows.Next() {
		var rec domain.PatternRecord
		var steps, tools sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Task, &steps, &tools, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if steps.Valid {
			_ = json.Unmarshal([]byte(steps.String), &rec.Steps)
		}
		if tools.Valid {
			_ = json.Unmarshal([]byte(tools.String), &rec.Tools)
		}
		hits = append(hits, scored{rec, keywordScore(rec.Task, keywords)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]domain.PatternRecord, len(hits))
	for i, h := range hits {
		out[i] = h.rec
	}
	return out, nil
}

func (s *SQLiteStore) relevantFailures(ctx context.Context, keywords []string, limit int) ([]domain.FailureRecord, error) {
	where, args := likeClause(keywords)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, error, solution, created_at FROM failures
		 WHERE `+where+` ORDER BY created_at DESC LIMIT ?`,
		append(args, limit*4)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scored struct {
		rec   domain.FailureRecord
		score int
	}
	var hits []scored
	for rows.Next() {
		var rec domain.FailureRecord
		var solution sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Task, &rec.Error, &solution, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Solution = solution.String
		hits = append(hits, scored{rec, keywordScore(rec.Task, keywords)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]domain.FailureRecord, len(hits))
	for i, h := range hits {
		out[i] = h.rec
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// stopwords are too common to signal task similarity.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "to": true, "of": true,
	"in": true, "on": true, "for": true, "with": true, "then": true,
	"please": true, "go": true, "it": true, "my": true, "me": true,
}

func taskKeywords(task string) []string {
	var words []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(task)) {
		w = strings.Trim(w, ".,!?;:()\"'")
		if len(w) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}
	return words
}

func likeClause(keywords []string) (string, []any) {
	parts := make([]string, len(keywords))
	args := make([]any, len(keywords))
	for i, kw := range keywords {
		parts[i] = "task LIKE ?"
		args[i] = "%" + kw + "%"
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func keywordScore(task string, keywords []string) int {
	lower := strings.ToLower(task)
	score := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			score++
		}
	}
	return score
}
