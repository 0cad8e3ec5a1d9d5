package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igbackend/pkg/config"
	"igbackend/pkg/instagram"
	"igbackend/pkg/logger"
	"igbackend/pkg/scraper"
	"igbackend/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testEnv wires the real session manager and scraper to mock adapters
type testEnv struct {
	t        *testing.T
	setup    func(*instagram.MockAdapter)
	adapters []*instagram.MockAdapter
	sessions *session.Manager
	root     string
	log      *logger.TestLogger
	router   *gin.Engine
}

func newTestEnv(t *testing.T, setup func(*instagram.MockAdapter)) *testEnv {
	t.Helper()
	env := &testEnv{t: t, setup: setup, root: t.TempDir(), log: logger.NewTestLogger()}

	env.sessions = session.NewManager(env.factory, nil, nil, logger.NewNopLogger())
	downloads := scraper.New(env.sessions, scraper.Options{
		Root:   env.root,
		Sleep:  func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
		Logger: logger.NewNopLogger(),
	})

	env.router = New(Options{
		Sessions:   env.sessions,
		Downloader: downloads,
		Defaults:   config.DefaultConfig().Download,
		Logger:     env.log,
	}).Router()
	return env
}

func (e *testEnv) factory() instagram.Adapter {
	m := instagram.NewMockAdapter()
	m.Accounts["alice"] = "pw"
	if e.setup != nil {
		e.setup(m)
	}
	e.adapters = append(e.adapters, m)
	return m
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	e.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login() {
	e.t.Helper()
	w := e.do(http.MethodPost, "/login", `{"username":"alice","password":"pw"}`)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func withProfiles(m *instagram.MockAdapter) {
	m.Profiles["alice"] = &instagram.Profile{Username: "alice", UserID: "1", MediaCount: 2}
	m.Profiles["priv"] = &instagram.Profile{Username: "priv", UserID: "2", IsPrivate: true}
	m.PostList = []*instagram.Post{
		{Shortcode: "P1", TakenAt: time.Unix(1700000000, 0)},
		{Shortcode: "R1", TakenAt: time.Unix(1700003600, 0), IsVideo: true},
	}
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t, nil)

	body := decode(t, env.do(http.MethodGet, "/", ""))
	assert.Equal(t, map[string]interface{}{
		"status":       "ok",
		"info":         "IG Story Downloader backend running",
		"logged_in_as": nil,
	}, body)

	env.login()
	body = decode(t, env.do(http.MethodGet, "/", ""))
	assert.Equal(t, "alice", body["logged_in_as"])
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", decode(t, w)["error"])
}
