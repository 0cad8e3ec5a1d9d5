package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkspaceCreatesFolders(t *testing.T) {
	root := t.TempDir()

	w, err := NewWorkspace(root, "natgeo")
	require.NoError(t, err)

	f := w.Folders()
	assert.Equal(t, filepath.Join(root, "natgeo"), f.Base)
	for _, dir := range []string{f.Posts, f.Reels, f.Stories} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// idempotent
	_, err = NewWorkspace(root, "natgeo")
	require.NoError(t, err)
}

func TestNewWorkspaceRejectsTraversal(t *testing.T) {
	for _, name := range []string{"", ".", "..", "../etc", "a/b", `a\b`} {
		_, err := NewWorkspace(t.TempDir(), name)
		assert.ErrorIs(t, err, ErrInvalidAccount, name)
	}
}

func TestSaveAndExists(t *testing.T) {
	w, err := NewWorkspace(t.TempDir(), "natgeo")
	require.NoError(t, err)

	assert.False(t, w.Exists(KindReel, "clip.mp4"))

	path, err := w.Save(KindReel, "clip.mp4", bytes.NewReader([]byte("video")))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(w.Folders().Reels, "clip.mp4"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "video", string(content))
	assert.True(t, w.Exists(KindReel, "clip.mp4"))
	assert.False(t, w.Exists(KindPost, "clip.mp4"))

	_, err = os.Stat(path + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestSaveRejectsNestedNames(t *testing.T) {
	w, err := NewWorkspace(t.TempDir(), "natgeo")
	require.NoError(t, err)

	_, err = w.Save(KindPost, "../escape.jpg", strings.NewReader("x"))
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSaveRemovesTempFileOnError(t *testing.T) {
	w, err := NewWorkspace(t.TempDir(), "natgeo")
	require.NoError(t, err)

	_, err = w.Save(KindPost, "a.jpg", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(w.Folders().Posts)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStoryExistsUnderPrefixedName(t *testing.T) {
	w, err := NewWorkspace(t.TempDir(), "natgeo")
	require.NoError(t, err)

	_, err = w.Save(KindStory, StoryPrefix+"s.jpg", strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, w.Exists(KindStory, "s.jpg"))
	assert.Equal(t, filepath.Join(w.Folders().Stories, StoryPrefix+"s.jpg"), w.Path(KindStory, "s.jpg"))
	assert.Equal(t, filepath.Join(w.Folders().Posts, "p.jpg"), w.Path(KindPost, "p.jpg"))
}

func TestCleanupKeepsOnlyMedia(t *testing.T) {
	w, err := NewWorkspace(t.TempDir(), "natgeo")
	require.NoError(t, err)

	files := map[string]string{
		w.Folders().Posts:   "a.jpg",
		w.Folders().Reels:   "b.MP4",
		w.Folders().Stories: "c.jpg",
	}
	junk := []string{
		filepath.Join(w.Folders().Posts, "a.json.xz"),
		filepath.Join(w.Folders().Posts, "a.txt"),
		filepath.Join(w.Folders().Reels, "b.jpg.part"),
		filepath.Join(w.Folders().Stories, "c.webp"),
	}
	for dir, name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	for _, p := range junk {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}

	removed, err := w.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, len(junk), removed)

	for dir := range files {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			assert.True(t, keep(e.Name()), e.Name())
		}
	}
}

func TestPrefixStories(t *testing.T) {
	w, err := NewWorkspace(t.TempDir(), "natgeo")
	require.NoError(t, err)

	dir := w.Folders().Stories
	for _, name := range []string{"one.jpg", "story_two.mp4", "three.mp4"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	renamed, err := w.PrefixStories()
	require.NoError(t, err)
	assert.Equal(t, 2, renamed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), StoryPrefix), e.Name())
	}
}

func TestAppendRunLog(t *testing.T) {
	w, err := NewWorkspace(t.TempDir(), "natgeo")
	require.NoError(t, err)

	require.NoError(t, w.AppendRunLog("run 1\n"))
	require.NoError(t, w.AppendRunLog("run 2\n"))

	content, err := os.ReadFile(filepath.Join(w.Folders().Base, RunLogName))
	require.NoError(t, err)
	assert.Equal(t, "run 1\nrun 2\n", string(content))
}

func TestFileName(t *testing.T) {
	taken := time.Date(2024, 3, 5, 7, 8, 9, 0, time.FixedZone("CET", 3600))

	assert.Equal(t, "2024-03-05_06-08-09_UTC_Cxyz.jpg", FileName(taken, "Cxyz", 0, "jpg"))
	assert.Equal(t, "2024-03-05_06-08-09_UTC_Cxyz_2.mp4", FileName(taken, "Cxyz", 2, ".mp4"))
}
