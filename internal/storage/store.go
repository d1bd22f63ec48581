// Package storage persists harvested repository records and sweep
// checkpoints in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/repoharvest/ghfetch/pkg/search"
)

const schema = `
CREATE TABLE IF NOT EXISTS repo_raw (
	id INTEGER PRIMARY KEY,
	name_with_owner TEXT NOT NULL,
	stars INTEGER NOT NULL,
	is_fork INTEGER NOT NULL,
	kilobytes INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	description TEXT,
	closed_issue_count INTEGER NOT NULL,
	commit_count INTEGER NOT NULL,
	topic_count INTEGER NOT NULL,
	topics TEXT NOT NULL,
	fetched_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_repo_raw_name ON repo_raw (name_with_owner);

CREATE TABLE IF NOT EXISTS checkpoints (
	query TEXT PRIMARY KEY,
	window_min TEXT NOT NULL,
	window_max TEXT NOT NULL,
	total_fetched INTEGER NOT NULL,
	completed INTEGER NOT NULL,
	updated_at TEXT NOT NULL
);
`

// Checkpoint records how far a sweep got for one base query, so an
// interrupted harvest resumes at the window it stopped in.
type Checkpoint struct {
	Query        string
	WindowMin    time.Time
	WindowMax    time.Time
	TotalFetched int
	Completed    bool
}

// RepoStore is a SQLite-backed store for repository records.
type RepoStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*RepoStore, error) {
	if path == "" {
		return nil, errors.New("storage: database path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &RepoStore{
		db:     db,
		logger: log.With().Str("component", "storage").Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *RepoStore) Close() error {
	return s.db.Close()
}

// SaveRecords upserts a batch of records in one transaction. Records
// already present are overwritten, so re-fetching a window is safe.
func (s *RepoStore) SaveRecords(ctx context.Context, records []search.RepositoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO repo_raw (
			id, name_with_owner, stars, is_fork, kilobytes,
			created_at, updated_at, description,
			closed_issue_count, commit_count, topic_count, topics, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name_with_owner = excluded.name_with_owner,
			stars = excluded.stars,
			is_fork = excluded.is_fork,
			kilobytes = excluded.kilobytes,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			description = excluded.description,
			closed_issue_count = excluded.closed_issue_count,
			commit_count = excluded.commit_count,
			topic_count = excluded.topic_count,
			topics = excluded.topics,
			fetched_at = excluded.fetched_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.NameWithOwner, r.Stars, r.IsFork, r.Kilobytes,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UpdatedAt.UTC().Format(time.RFC3339),
			r.Description,
			r.ClosedIssueCount, r.CommitCount, r.TopicCount,
			strings.Join(r.Topics, "|"), now)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", r.NameWithOwner, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Debug().Int("records", len(records)).Msg("Batch saved")
	return nil
}

// Count returns the number of stored records.
func (s *RepoStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM repo_raw`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// GetRecord loads one record by id. Returns nil when absent.
func (s *RepoStore) GetRecord(ctx context.Context, id int64) (*search.RepositoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name_with_owner, stars, is_fork, kilobytes,
			created_at, updated_at, description,
			closed_issue_count, commit_count, topic_count, topics
		FROM repo_raw WHERE id = ?`, id)

	var r search.RepositoryRecord
	var createdAt, updatedAt, topics string
	var description sql.NullString
	err := row.Scan(&r.ID, &r.NameWithOwner, &r.Stars, &r.IsFork, &r.Kilobytes,
		&createdAt, &updatedAt, &description,
		&r.ClosedIssueCount, &r.CommitCount, &r.TopicCount, &topics)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load record %d: %w", id, err)
	}

	r.Description = description.String
	if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if topics != "" {
		r.Topics = strings.Split(topics, "|")
	}
	return &r, nil
}

// SaveCheckpoint upserts the sweep checkpoint for a base query.
func (s *RepoStore) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (query, window_min, window_max, total_fetched, completed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (query) DO UPDATE SET
			window_min = excluded.window_min,
			window_max = excluded.window_max,
			total_fetched = excluded.total_fetched,
			completed = excluded.completed,
			updated_at = excluded.updated_at`,
		cp.Query,
		cp.WindowMin.UTC().Format(time.RFC3339),
		cp.WindowMax.UTC().Format(time.RFC3339),
		cp.TotalFetched, cp.Completed,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns the checkpoint for a base query, or nil when
// no harvest of that query has been recorded.
func (s *RepoStore) LoadCheckpoint(ctx context.Context, queryText string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT query, window_min, window_max, total_fetched, completed
		FROM checkpoints WHERE query = ?`, queryText)

	var cp Checkpoint
	var min, max string
	err := row.Scan(&cp.Query, &min, &max, &cp.TotalFetched, &cp.Completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	if cp.WindowMin, err = time.Parse(time.RFC3339, min); err != nil {
		return nil, fmt.Errorf("parse window_min: %w", err)
	}
	if cp.WindowMax, err = time.Parse(time.RFC3339, max); err != nil {
		return nil, fmt.Errorf("parse window_max: %w", err)
	}
	return &cp, nil
}
