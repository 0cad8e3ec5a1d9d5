package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igbackend/pkg/api"
	"igbackend/pkg/config"
	"igbackend/pkg/instagram"
	"igbackend/pkg/logger"
	"igbackend/pkg/scraper"
	"igbackend/pkg/session"
	"igbackend/pkg/ui"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// startBackend serves the real router over mock adapters and points the
// client commands at it
func startBackend(t *testing.T) {
	t.Helper()

	factory := func() instagram.Adapter {
		m := instagram.NewMockAdapter()
		m.Accounts["alice"] = "pw"
		m.Profiles["natgeo"] = &instagram.Profile{Username: "natgeo", UserID: "7", MediaCount: 12}
		m.PostList = []*instagram.Post{
			{Shortcode: "C1", TakenAt: time.Unix(1700000000, 0)},
			{Shortcode: "C2", TakenAt: time.Unix(1700003600, 0), IsVideo: true},
		}
		return m
	}
	sessions := session.NewManager(factory, nil, nil, logger.NewNopLogger())
	downloads := scraper.New(sessions, scraper.Options{
		Root:   t.TempDir(),
		Sleep:  func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
		Logger: logger.NewNopLogger(),
	})
	router := api.New(api.Options{
		Sessions:   sessions,
		Downloader: downloads,
		Defaults:   config.DefaultConfig().Download,
		Logger:     logger.NewNopLogger(),
	}).Router()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	serverURL = srv.URL
	t.Cleanup(func() { serverURL = "" })
}

// execute runs the root command with args and returns its output
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestListenerURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"127.0.0.1", "http://127.0.0.1:5000"},
		{"0.0.0.0", "http://127.0.0.1:5000"},
		{"::", "http://127.0.0.1:5000"},
		{"", "http://127.0.0.1:5000"},
		{"localhost", "http://localhost:5000"},
		{"::1", "http://[::1]:5000"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, listenerURL(config.ServerConfig{Host: tt.host, Port: 5000}))
		})
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "", redactURL(""))
	assert.Equal(t, "postgres://ig:xxxxx@db:5432/runs", redactURL("postgres://ig:secret@db:5432/runs"))
}

type stubDownloader struct {
	res *scraper.Result
	err error
}

func (s stubDownloader) Download(context.Context, scraper.Request) (*scraper.Result, error) {
	return s.res, s.err
}

type recordingSender struct {
	titles   []string
	messages []string
}

func (r *recordingSender) Send(_ context.Context, title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return errors.New("no notification daemon")
}

func TestNotifyingDownloader(t *testing.T) {
	sender := &recordingSender{}
	log := logger.NewTestLogger()

	d := &notifyingDownloader{
		next:     stubDownloader{err: errors.New("profile not found")},
		notifier: ui.NewNotifierWithSender(sender),
		log:      log,
	}
	_, err := d.Download(context.Background(), scraper.Request{Username: "ghost"})
	require.Error(t, err, "the download error is passed through")

	require.Len(t, sender.titles, 1)
	assert.Equal(t, "Instagram download failed", sender.titles[0])
	assert.Equal(t, "ghost: profile not found", sender.messages[0])
	assert.True(t, log.HasMessage("Desktop notification failed"))
}

func TestBuildBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Session.Directory = filepath.Join(dir, "sessions")
	cfg.Session.UseKeyring = false
	cfg.Download.BaseDirectory = filepath.Join(dir, "downloads")
	cfg.History.Driver = "file"
	cfg.History.Path = filepath.Join(dir, "history.json")
	cfg.Server.Mode = gin.TestMode

	handler, cleanup, err := buildBackend(context.Background(), cfg, logger.NewNopLogger())
	require.NoError(t, err)
	defer cleanup()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBuildBackendUnknownHistoryDriver(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Session.Directory = t.TempDir()
	cfg.Session.UseKeyring = false
	cfg.History.Driver = "mongo"

	_, _, err := buildBackend(context.Background(), cfg, logger.NewNopLogger())
	assert.ErrorContains(t, err, "unknown history driver")
}

func TestStatusCommand(t *testing.T) {
	startBackend(t)

	out, err := execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged In: false")
	assert.Contains(t, out, "Status: not_logged_in")
}

func TestLoginLogoutCommands(t *testing.T) {
	startBackend(t)
	t.Setenv("IGBACKEND_PASSWORD", "")

	out, err := execute(t, "nope\n", "login", "alice")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Login failed (HTTP 401)")

	out, err = execute(t, "pw\n", "login", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")

	out, err = execute(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Username: alice")

	out, err = execute(t, "", "logout")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
}

func TestDownloadCommand(t *testing.T) {
	startBackend(t)

	out, err := execute(t, "", "download", "natgeo", "--limit", "2", "--delay", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "Response Status: 200")
	assert.Contains(t, out, "Success 1: C1 (post)")
	assert.Contains(t, out, "Success 2: C2 (reel)")
	assert.Contains(t, out, "Stories: not_requested")
	assert.Contains(t, out, "Posts folder: ")
}

func TestDownloadCommandErrorReply(t *testing.T) {
	startBackend(t)

	out, err := execute(t, "", "download", "ghost", "--delay", "0s")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Response Status: 404")
	assert.Contains(t, out, "Error Response:")
}

func TestHistoryCommandDisabled(t *testing.T) {
	startBackend(t)

	out, err := execute(t, "", "history")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Run history is disabled on the backend")
}

func TestCommandBackendDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	serverURL = srv.URL
	srv.Close()
	t.Cleanup(func() { serverURL = "" })

	out, err := execute(t, "", "status")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Cannot connect to backend server")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Cleanup(func() { configFile = ""; configForce = false })

	_, err := execute(t, "", "config", "init", "--config", path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	out, err := execute(t, "", "config", "init", "--config", path)
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "Configuration file already exists")

	_, err = execute(t, "", "config", "init", "--config", path, "--force")
	require.NoError(t, err)
}
