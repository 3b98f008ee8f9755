package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"notewriter/internal/config"
	"notewriter/internal/services"
)

// Store manages result persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Result is the stored outcome of classifying one post.
type Result struct {
	PostID        string    `json:"post_id"`
	RunID         string    `json:"run_id"`
	PostText      string    `json:"post_text"`
	Note          string    `json:"note"`
	ImagesSummary string    `json:"images_summary,omitempty"`
	Tags          []string  `json:"tags"`
	// Failed marks a post whose classification gave up without a usable reply.
	Failed        bool      `json:"failed,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Run summarizes one batch invocation.
type Run struct {
	ID         string     `json:"id"`
	InputPath  string     `json:"input_path,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Total      int        `json:"total"`
	Tagged     int        `json:"tagged"`
	Skipped    int        `json:"skipped"`
}

// ListFilter narrows List. Zero values select everything.
type ListFilter struct {
	RunID      string
	TaggedOnly bool
	Limit      int
}

// Open initializes or connects to the results database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.ResultsDBPath())
}

// OpenPath opens the database at dbPath directly.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps the pragmas below in force and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Save inserts or replaces the result for a post. CreatedAt is preserved
// across replacements.
func (s *Store) Save(ctx context.Context, result Result) error {
	postID := strings.TrimSpace(result.PostID)
	if postID == "" {
		return services.Wrap(services.ErrValidation, "store", "save", "post id required", nil)
	}
	tags := result.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	timestamp := now()

	return s.execWithRetry(ctx,
		`INSERT INTO results (
            post_id, run_id, post_text, note, images_summary, tags_json, failed, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(post_id) DO UPDATE SET
            run_id = excluded.run_id,
            post_text = excluded.post_text,
            note = excluded.note,
            images_summary = excluded.images_summary,
            tags_json = excluded.tags_json,
            failed = excluded.failed,
            updated_at = excluded.updated_at`,
		postID,
		result.RunID,
		result.PostText,
		result.Note,
		nullableString(result.ImagesSummary),
		string(tagsJSON),
		result.Failed,
		timestamp,
		timestamp,
	)
}

// Get returns the stored result for postID or an error wrapping
// services.ErrNotFound.
func (s *Store) Get(ctx context.Context, postID string) (*Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE post_id = ?`, strings.TrimSpace(postID))
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get", fmt.Sprintf("post %q", postID), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	return result, nil
}

// Has reports whether a result exists for postID.
func (s *Store) Has(ctx context.Context, postID string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM results WHERE post_id = ?`, strings.TrimSpace(postID)).Scan(&count); err != nil {
		return false, fmt.Errorf("check result: %w", err)
	}
	return count > 0, nil
}

// Classified reports whether postID has a result that did not fail.
func (s *Store) Classified(ctx context.Context, postID string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM results WHERE post_id = ? AND failed = 0`, strings.TrimSpace(postID)).Scan(&count); err != nil {
		return false, fmt.Errorf("check result: %w", err)
	}
	return count > 0, nil
}

// List returns results ordered by creation time.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Result, error) {
	query := `SELECT ` + resultColumns + ` FROM results`
	var (
		clauses []string
		args    []any
	)
	if runID := strings.TrimSpace(filter.RunID); runID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, runID)
	}
	if filter.TaggedOnly {
		clauses = append(clauses, "tags_json <> '[]'")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, post_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, rows.Err()
}

// TagCounts returns how many stored results carry each tag.
func (s *Store) TagCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tags_json FROM results`)
	if err != nil {
		return nil, fmt.Errorf("tag counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		for _, tag := range decodeTags(raw) {
			counts[tag]++
		}
	}
	return counts, rows.Err()
}

// Clear removes every stored result and run.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM results`)
	if err != nil {
		return 0, fmt.Errorf("clear results: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

// BeginRun records the start of a batch run.
func (s *Store) BeginRun(ctx context.Context, runID, inputPath string) error {
	if strings.TrimSpace(runID) == "" {
		return services.Wrap(services.ErrValidation, "store", "begin run", "run id required", nil)
	}
	return s.execWithRetry(ctx,
		`INSERT INTO runs (id, input_path, started_at) VALUES (?, ?, ?)`,
		runID,
		nullableString(inputPath),
		now(),
	)
}

// FinishRun stores the final counts for a batch run.
func (s *Store) FinishRun(ctx context.Context, runID string, total, tagged, skipped int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, tagged = ?, skipped = ? WHERE id = ?`,
		now(),
		total,
		tagged,
		skipped,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "store", "finish run", fmt.Sprintf("run %q", runID), nil)
	}
	return nil
}

// Runs returns recorded runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, input_path, started_at, finished_at, total, tagged, skipped FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run         Run
			inputPath   sql.NullString
			startedRaw  string
			finishedRaw sql.NullString
		)
		if err := rows.Scan(&run.ID, &inputPath, &startedRaw, &finishedRaw, &run.Total, &run.Tagged, &run.Skipped); err != nil {
			return nil, err
		}
		run.InputPath = inputPath.String
		if started, err := parseTimeString(startedRaw); err == nil {
			run.StartedAt = started
		}
		if finishedRaw.Valid {
			if finished, err := parseTimeString(finishedRaw.String); err == nil {
				run.FinishedAt = &finished
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
