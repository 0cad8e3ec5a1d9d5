// Package storage lays out downloaded media on disk:
// <root>/<account>/{posts,reels,stories}.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Kind names one of the per-account media folders
type Kind string

const (
	KindPost  Kind = "posts"
	KindReel  Kind = "reels"
	KindStory Kind = "stories"
)

// StoryPrefix marks every story media file
const StoryPrefix = "story_"

// RunLogName is the per-account plain-text log appended after each run
const RunLogName = "download_log.txt"

// ErrInvalidAccount is returned for names that would escape the root directory
var ErrInvalidAccount = errors.New("invalid account name")

// Folders lists the directories a run writes into
type Folders struct {
	Base    string `json:"base"`
	Posts   string `json:"posts"`
	Reels   string `json:"reels"`
	Stories string `json:"stories"`
}

// Workspace handles file storage for one account
type Workspace struct {
	account string
	folders Folders
}

// NewWorkspace creates (or reuses) the account folders under root
func NewWorkspace(root, account string) (*Workspace, error) {
	if account == "" || account == "." || account == ".." || filepath.Base(account) != account || strings.ContainsAny(account, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccount, account)
	}

	base := filepath.Join(root, account)
	w := &Workspace{
		account: account,
		folders: Folders{
			Base:    base,
			Posts:   filepath.Join(base, string(KindPost)),
			Reels:   filepath.Join(base, string(KindReel)),
			Stories: filepath.Join(base, string(KindStory)),
		},
	}

	for _, dir := range w.dirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	return w, nil
}

// Folders returns the run's directories
func (w *Workspace) Folders() Folders {
	return w.folders
}

// Dir returns the directory for a media kind
func (w *Workspace) Dir(kind Kind) string {
	switch kind {
	case KindReel:
		return w.folders.Reels
	case KindStory:
		return w.folders.Stories
	default:
		return w.folders.Posts
	}
}

func (w *Workspace) dirs() []string {
	return []string{w.folders.Posts, w.folders.Reels, w.folders.Stories}
}

// Exists checks whether a media file is already on disk. Story files are
// also looked up under their prefixed name from an earlier run.
func (w *Workspace) Exists(kind Kind, name string) bool {
	dir := w.Dir(kind)
	if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
		return true
	}
	if kind == KindStory && !strings.HasPrefix(name, StoryPrefix) {
		if _, err := os.Stat(filepath.Join(dir, StoryPrefix+name)); err == nil {
			return true
		}
	}
	return false
}

// Path returns where name lives in the kind folder. For stories an existing
// prefixed file wins over the bare name.
func (w *Workspace) Path(kind Kind, name string) string {
	dir := w.Dir(kind)
	if kind == KindStory && !strings.HasPrefix(name, StoryPrefix) {
		prefixed := filepath.Join(dir, StoryPrefix+name)
		if _, err := os.Stat(prefixed); err == nil {
			return prefixed
		}
	}
	return filepath.Join(dir, name)
}

// Save writes r to <dir>/<name> atomically and returns the final path
func (w *Workspace) Save(kind Kind, name string, r io.Reader) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	filename := filepath.Join(w.Dir(kind), name)

	// The temp file does not end in .jpg/.mp4, so Cleanup removes leftovers
	tempFile := filename + ".part"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()
	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to save media data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return filename, nil
}

// keep reports whether a file survives Cleanup
func keep(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".mp4")
}

// Cleanup removes every file that is not .jpg or .mp4 from the three media
// folders. It is best effort: failures are collected and returned but the
// sweep always visits every folder.
func (w *Workspace) Cleanup() (int, error) {
	removed := 0
	var errs []error
	for _, dir := range w.dirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || keep(entry.Name()) {
				continue
			}
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// PrefixStories renames story media lacking the story_ prefix
func (w *Workspace) PrefixStories() (int, error) {
	entries, err := os.ReadDir(w.folders.Stories)
	if err != nil {
		return 0, err
	}

	renamed := 0
	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !keep(name) || strings.HasPrefix(name, StoryPrefix) {
			continue
		}
		from := filepath.Join(w.folders.Stories, name)
		to := filepath.Join(w.folders.Stories, StoryPrefix+name)
		if err := os.Rename(from, to); err != nil {
			errs = append(errs, err)
			continue
		}
		renamed++
	}
	return renamed, errors.Join(errs...)
}

// AppendRunLog appends text to <base>/download_log.txt
func (w *Workspace) AppendRunLog(text string) error {
	f, err := os.OpenFile(filepath.Join(w.folders.Base, RunLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	if _, err := io.WriteString(f, text); err != nil {
		f.Close()
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return f.Close()
}

// FileName builds "<YYYY-MM-DD_HH-MM-SS>_UTC_<id>[_<index>].<ext>".
// An index of 0 means no suffix; sidecar children use 1-based indexes.
func FileName(taken time.Time, id string, index int, ext string) string {
	stamp := taken.UTC().Format("2006-01-02_15-04-05")
	ext = strings.TrimPrefix(ext, ".")
	if index > 0 {
		return fmt.Sprintf("%s_UTC_%s_%d.%s", stamp, id, index, ext)
	}
	return fmt.Sprintf("%s_UTC_%s.%s", stamp, id, ext)
}
