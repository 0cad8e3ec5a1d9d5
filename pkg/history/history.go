// Package history records finished download runs so they can be listed
// later through the API.
package history

import (
	"context"
	"fmt"
	"time"

	"igbackend/pkg/config"
	"igbackend/pkg/logger"
)

// Run summarizes one download request
type Run struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Attempted        int       `json:"attempted"`
	PostsDownloaded  int       `json:"posts_downloaded"`
	ReelsDownloaded  int       `json:"reels_downloaded"`
	StoriesStatus    string    `json:"stories_status"`
	StoriesSaved     int       `json:"stories_saved"`
	Errors           int       `json:"errors"`
	RateLimitRetries int       `json:"rate_limit_retries"`
}

// Duration is how long the run took
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Recorder stores runs
type Recorder interface {
	Record(ctx context.Context, run *Run) error
	// List returns the newest runs first. An empty username lists all
	// accounts; limit <= 0 means DefaultListLimit.
	List(ctx context.Context, username string, limit int) ([]Run, error)
	Close() error
}

// DefaultListLimit caps List when the caller passes no limit
const DefaultListLimit = 20

// Drivers accepted by Open
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Open builds the recorder selected by cfg. DriverNone returns nil.
func Open(ctx context.Context, cfg config.HistoryConfig, log logger.Logger) (Recorder, error) {
	switch cfg.Driver {
	case DriverFile:
		return NewFileStore(cfg.Path, log)
	case DriverPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL, log)
	case DriverNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
