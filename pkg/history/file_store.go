package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"igbackend/pkg/logger"
)

// MaxFileRuns bounds the JSON file; older runs are dropped on write
const MaxFileRuns = 500

// FileStore keeps runs in a single JSON file
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger logger.Logger
}

// NewFileStore creates a store writing to path, creating its directory
func NewFileStore(path string, log logger.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &FileStore{path: path, logger: log.WithField("component", "history")}, nil
}

func (s *FileStore) load() ([]Run, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var runs []Run
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	return runs, nil
}

// save writes runs atomically through a synced temp file
func (s *FileStore) save(runs []Run) error {
	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary history file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(runs); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync history file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close history file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

// Record appends run
func (s *FileStore) Record(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("nil run")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.load()
	if err != nil {
		return err
	}
	runs = append(runs, *run)
	if len(runs) > MaxFileRuns {
		runs = runs[len(runs)-MaxFileRuns:]
	}
	if err := s.save(runs); err != nil {
		return err
	}

	s.logger.DebugWithFields("Run recorded", map[string]interface{}{
		"run_id":   run.ID,
		"username": run.Username,
	})
	return nil
}

// List returns the newest runs first
func (s *FileStore) List(ctx context.Context, username string, limit int) ([]Run, error) {
	s.mu.Lock()
	runs, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Run, 0, len(runs))
	for _, r := range runs {
		if username == "" || r.Username == username {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}
