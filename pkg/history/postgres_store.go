package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"igbackend/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS download_runs (
	id                 TEXT PRIMARY KEY,
	username           TEXT NOT NULL,
	started_at         TIMESTAMPTZ NOT NULL,
	finished_at        TIMESTAMPTZ NOT NULL,
	attempted          INTEGER NOT NULL DEFAULT 0,
	posts_downloaded   INTEGER NOT NULL DEFAULT 0,
	reels_downloaded   INTEGER NOT NULL DEFAULT 0,
	stories_status     TEXT NOT NULL DEFAULT '',
	stories_saved      INTEGER NOT NULL DEFAULT 0,
	errors             INTEGER NOT NULL DEFAULT 0,
	rate_limit_retries INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS download_runs_username_started
	ON download_runs (username, started_at DESC);
`

// PostgresStore keeps runs in a download_runs table
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

// NewPostgresStore connects, pings and creates the schema if needed
func NewPostgresStore(ctx context.Context, databaseURL string, log logger.Logger) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, errors.New("history database_url is empty")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	if log == nil {
		log = logger.GetLogger()
	}
	s := &PostgresStore{db: db, logger: log.WithField("component", "history")}
	s.logger.Info("history database connection established")
	return s, nil
}

// Record inserts run; recording the same id twice keeps the first row
func (s *PostgresStore) Record(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("nil run")
	}
	query := `
		INSERT INTO download_runs (
			id, username, started_at, finished_at, attempted,
			posts_downloaded, reels_downloaded, stories_status,
			stories_saved, errors, rate_limit_retries
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Username, run.StartedAt, run.FinishedAt, run.Attempted,
		run.PostsDownloaded, run.ReelsDownloaded, run.StoriesStatus,
		run.StoriesSaved, run.Errors, run.RateLimitRetries,
	)
	if err != nil {
		s.logger.WithError(err).WithField("username", run.Username).Error("failed to record run")
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// List returns the newest runs first
func (s *PostgresStore) List(ctx context.Context, username string, limit int) ([]Run, error) {
	query := `
		SELECT id, username, started_at, finished_at, attempted,
		       posts_downloaded, reels_downloaded, stories_status,
		       stories_saved, errors, rate_limit_retries
		FROM download_runs
		WHERE ($1 = '' OR username = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, username, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.Username, &r.StartedAt, &r.FinishedAt, &r.Attempted,
			&r.PostsDownloaded, &r.ReelsDownloaded, &r.StoriesStatus,
			&r.StoriesSaved, &r.Errors, &r.RateLimitRetries,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
