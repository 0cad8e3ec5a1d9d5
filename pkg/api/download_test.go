package api

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igbackend/pkg/config"
	errs "igbackend/pkg/errors"
	"igbackend/pkg/history"
	"igbackend/pkg/instagram"
	"igbackend/pkg/logger"
	"igbackend/pkg/scraper"
)

func TestDownloadEnvelope(t *testing.T) {
	env := newTestEnv(t, withProfiles)

	w := env.do(http.MethodGet, "/download?username=alice", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)

	assert.Equal(t, "Downloaded 2 posts/reels for alice", body["message"])
	assert.NotEmpty(t, body["run_id"])
	assert.Nil(t, body["logged_in_as"])
	assert.Equal(t, "not_requested", body["stories_status"])
	assert.Equal(t, map[string]interface{}{
		"posts_downloaded":   float64(1),
		"reels_downloaded":   float64(1),
		"rate_limit_retries": float64(0),
	}, body["stats"])
	assert.Equal(t, map[string]interface{}{
		"include_posts":   true,
		"include_reels":   true,
		"include_stories": false,
	}, body["selection"])
	assert.Equal(t, map[string]interface{}{
		"username":   "alice",
		"mediacount": float64(2),
		"is_private": false,
		"logged_in":  false,
	}, body["profile_info"])

	folders := body["folders"].(map[string]interface{})
	assert.Equal(t, filepath.Join(env.root, "alice"), folders["base"])
	assert.Equal(t, filepath.Join(env.root, "alice", "reels"), folders["reels"])

	posts := body["posts"].([]interface{})
	require.Len(t, posts, 2)
	assert.Equal(t, map[string]interface{}{
		"shortcode": "P1",
		"date_utc":  "2023-11-14T22:13:20",
		"is_video":  false,
		"type":      "post",
	}, posts[0])
	assert.Equal(t, []interface{}{}, body["stories"])
}

func TestDownloadStoriesWithoutSession(t *testing.T) {
	env := newTestEnv(t, withProfiles)

	body := decode(t, env.do(http.MethodGet, "/download?username=alice&stories=1&include_posts=0&include_reels=0", ""))
	assert.Equal(t, "Downloaded 0 posts/reels for alice + stories", body["message"])
	assert.Equal(t, "login_required", body["stories_status"])
	assert.Equal(t, []interface{}{map[string]interface{}{"error": "login_required_for_stories"}}, body["stories"])
}

func TestDownloadWithSession(t *testing.T) {
	env := newTestEnv(t, func(m *instagram.MockAdapter) {
		withProfiles(m)
		m.StoryContainers = []instagram.StoryContainer{{
			UserID: "2",
			Items:  []instagram.StoryItem{{ID: "9001", TakenAt: time.Unix(1700000000, 0)}},
		}}
	})
	env.login()

	w := env.do(http.MethodGet, "/download?username=priv&stories=true&limit=0", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "alice", body["logged_in_as"])
	assert.Equal(t, "downloaded", body["stories_status"])
	assert.Equal(t, true, body["profile_info"].(map[string]interface{})["logged_in"])
	assert.FileExists(t, filepath.Join(env.root, "priv", "stories", "story_2023-11-14_22-13-20_UTC_9001.jpg"))
}

func TestDownloadErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*instagram.MockAdapter)
		query  string
		status int
		want   map[string]interface{}
	}{
		{"missing username", nil, "", http.StatusBadRequest, map[string]interface{}{"error": "username parameter required"}},
		{"blank username", nil, "username=%20", http.StatusBadRequest, map[string]interface{}{"error": "username parameter required"}},
		{"bad limit", nil, "username=alice&limit=abc", http.StatusBadRequest, map[string]interface{}{"error": "numeric parameters invalid"}},
		{"empty limit", nil, "username=alice&limit=", http.StatusBadRequest, map[string]interface{}{"error": "numeric parameters invalid"}},
		{"bad delay", nil, "username=alice&delay=soon", http.StatusBadRequest, map[string]interface{}{"error": "numeric parameters invalid"}},
		{"infinite backoff", nil, "username=alice&backoff=inf", http.StatusBadRequest, map[string]interface{}{"error": "numeric parameters invalid"}},
		{"bad stories limit", nil, "username=alice&stories_limit=1.5", http.StatusBadRequest, map[string]interface{}{"error": "numeric parameters invalid"}},
		{"missing profile", nil, "username=ghost&limit=5", http.StatusNotFound, map[string]interface{}{"error": "Profile not found"}},
		{"private without session", withProfiles, "username=priv&stories=1", http.StatusUnauthorized, map[string]interface{}{"error": "Login required to access this profile."}},
		{
			"challenge",
			func(m *instagram.MockAdapter) { m.ProfileErr = errors.New("challenge_required") },
			"username=alice", http.StatusTooManyRequests,
			map[string]interface{}{
				"error":              msgDownloadChallenge,
				"challenge_required": true,
				"suggestion":         "Try logging in through Instagram.com, complete any challenges, then retry.",
			},
		},
		{
			"rate limited",
			func(m *instagram.MockAdapter) { m.ProfileErr = errs.New(errs.ErrorTypeRateLimit, 429, "slow down") },
			"username=alice", http.StatusTooManyRequests,
			map[string]interface{}{"error": "Rate limited by Instagram: slow down", "rate_limited": true},
		},
		{
			"throttled behind login wall",
			func(m *instagram.MockAdapter) { m.ProfileErr = errs.FromStatusCode(http.StatusUnauthorized, throttledBody) },
			"username=alice", http.StatusTooManyRequests,
			map[string]interface{}{"error": "Rate limited by Instagram: please wait a few minutes before you try again", "rate_limited": true},
		},
		{
			"connection",
			func(m *instagram.MockAdapter) { m.ProfileErr = errs.New(errs.ErrorTypeNetwork, 0, "connection error: dial tcp") },
			"username=alice", http.StatusServiceUnavailable,
			map[string]interface{}{"error": "Connection error: connection error: dial tcp"},
		},
		{
			"unexpected",
			func(m *instagram.MockAdapter) { m.ProfileErr = errors.New("boom") },
			"username=alice", http.StatusInternalServerError,
			map[string]interface{}{"error": "failed to resolve profile alice: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.setup)
			w := env.do(http.MethodGet, "/download?"+tt.query, "")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.want, decode(t, w))
		})
	}
}

// recordingDownloader captures the parsed request
type recordingDownloader struct {
	got scraper.Request
}

func (d *recordingDownloader) Download(ctx context.Context, req scraper.Request) (*scraper.Result, error) {
	d.got = req
	return &scraper.Result{Username: req.Username, StoriesRequest: req.IncludeStories}, nil
}

func TestDownloadQueryParsing(t *testing.T) {
	defaults := config.DefaultConfig().Download

	tests := []struct {
		query string
		want  scraper.Request
	}{
		{
			"username=alice",
			scraper.Request{Username: "alice", Limit: 5, IncludePosts: true, IncludeReels: true, Backoff: 15 * time.Second, StoriesLimit: 50},
		},
		{
			"username=alice&limit=12&delay=1.5&backoff=&stories_limit=&include_posts=no&include_reels=TRUE&stories=yes",
			scraper.Request{Username: "alice", Limit: 12, Delay: 1500 * time.Millisecond, IncludeReels: true, IncludeStories: true, Backoff: 15 * time.Second, StoriesLimit: 50},
		},
		{
			"username=alice&backoff=0.25&stories_limit=3&stories=0&include_posts=1",
			scraper.Request{Username: "alice", Limit: 5, IncludePosts: true, IncludeReels: true, Backoff: 250 * time.Millisecond, StoriesLimit: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			d := &recordingDownloader{}
			env := newTestEnv(t, nil)
			env.router = New(Options{Sessions: env.sessions, Downloader: d, Defaults: defaults, Logger: logger.NewNopLogger()}).Router()

			w := env.do(http.MethodGet, "/download?"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, d.got)
		})
	}
}

func TestDownloadFailureMapping(t *testing.T) {
	status, body := downloadFailure(scraper.ErrUsernameRequired)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, gin.H{"error": msgUsernameRequired}, body)

	status, body = downloadFailure(errs.New(errs.ErrorTypeCheckpointRequired, 400, "checkpoint_required"))
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, true, body["challenge_required"])
}

func TestHistory(t *testing.T) {
	store, err := history.NewFileStore(filepath.Join(t.TempDir(), "history.json"), logger.NewNopLogger())
	require.NoError(t, err)

	env := newTestEnv(t, withProfiles)
	downloads := scraper.New(env.sessions, scraper.Options{
		Root:    env.root,
		History: store,
		Sleep:   func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
		Logger:  logger.NewNopLogger(),
	})
	env.router = New(Options{Sessions: env.sessions, Downloader: downloads, History: store, Defaults: config.DefaultConfig().Download}).Router()

	body := decode(t, env.do(http.MethodGet, "/history", ""))
	assert.Equal(t, []interface{}{}, body["runs"])

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/download?username=alice", "").Code)

	body = decode(t, env.do(http.MethodGet, "/history?username=alice&limit=5", ""))
	runs := body["runs"].([]interface{})
	require.Len(t, runs, 1)
	run := runs[0].(map[string]interface{})
	assert.Equal(t, "alice", run["username"])
	assert.Equal(t, float64(2), run["attempted"])

	body = decode(t, env.do(http.MethodGet, "/history?username=bob", ""))
	assert.Empty(t, body["runs"])

	w := env.do(http.MethodGet, "/history?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryDisabled(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/history", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
