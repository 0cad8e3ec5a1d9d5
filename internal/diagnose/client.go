// Package diagnose talks to a running igbackend over HTTP and explains what
// a small test download reveals about a profile.
package diagnose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"igbackend/pkg/history"
	"igbackend/pkg/logger"
	"igbackend/pkg/scraper"
	"igbackend/pkg/storage"
)

// DefaultBaseURL is where the backend listens by default
const DefaultBaseURL = "http://localhost:5000"

// Per-call timeouts
const (
	StatusTimeout   = 10 * time.Second
	LoginTimeout    = 60 * time.Second
	DownloadTimeout = 2 * time.Minute
)

var (
	// ErrUnreachable is returned when nothing answers at the base URL
	ErrUnreachable = errors.New("cannot connect to backend server")
	// ErrTimeout is returned when the backend did not answer in time
	ErrTimeout = errors.New("request timed out")
	// ErrHistoryDisabled is returned when the backend records no history
	ErrHistoryDisabled = errors.New("run history is disabled on the backend")
)

// StatusReply is the body of GET /status
type StatusReply struct {
	LoggedIn   bool   `json:"logged_in"`
	LoggedInAs string `json:"logged_in_as"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// LoginReply is the body of POST /login and POST /logout
type LoginReply struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message,omitempty"`
	LoggedIn   bool   `json:"logged_in"`
	Method     string `json:"method,omitempty"`
	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	// RateLimited is only present on throttled replies
	RateLimited bool `json:"rate_limited,omitempty"`
}

// OK reports whether the backend accepted the call
func (r *LoginReply) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Report is the body of GET /download, success or failure
type Report struct {
	StatusCode    int                   `json:"-"`
	Message       string                `json:"message,omitempty"`
	Error         string                `json:"error,omitempty"`
	Suggestion    string                `json:"suggestion,omitempty"`
	RateLimited   *bool                 `json:"rate_limited,omitempty"`
	RunID         string                `json:"run_id,omitempty"`
	Folders       *storage.Folders      `json:"folders,omitempty"`
	Posts         []scraper.PostRecord  `json:"posts"`
	Stories       []scraper.StoryRecord `json:"stories"`
	StoriesStatus scraper.StoriesStatus `json:"stories_status,omitempty"`
	Stats         scraper.Stats         `json:"stats"`
	ProfileInfo   *scraper.ProfileInfo  `json:"profile_info,omitempty"`
}

// OK reports whether the download call succeeded
func (r *Report) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Downloaded is the number of posts and reels saved
func (r *Report) Downloaded() int {
	return r.Stats.PostsDownloaded + r.Stats.ReelsDownloaded
}

// DownloadParams are the query parameters of a test download
type DownloadParams struct {
	Username     string
	Limit        int
	IncludePosts bool
	IncludeReels bool
	Stories      bool
	Delay        time.Duration
}

// DiagnosticParams is the small probe the diagnose command sends: two
// items, posts and reels, no stories, no pause
func DiagnosticParams(username string) DownloadParams {
	return DownloadParams{
		Username:     username,
		Limit:        2,
		IncludePosts: true,
		IncludeReels: true,
	}
}

func (p DownloadParams) query() url.Values {
	q := url.Values{}
	q.Set("username", p.Username)
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("include_posts", boolParam(p.IncludePosts))
	q.Set("include_reels", boolParam(p.IncludeReels))
	q.Set("stories", boolParam(p.Stories))
	q.Set("delay", strconv.FormatFloat(p.Delay.Seconds(), 'f', -1, 64))
	return q
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Client calls the backend's HTTP surface
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     log.WithField("component", "diagnose"),
	}
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status asks whether the backend holds a working session
func (c *Client) Status(ctx context.Context) (*StatusReply, error) {
	ctx, cancel := context.WithTimeout(ctx, StatusTimeout)
	defer cancel()

	var reply StatusReply
	if _, err := c.call(ctx, http.MethodGet, "/status", nil, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// Download runs a download through the backend. Non-200 replies are
// returned as a Report, not as an error.
func (c *Client) Download(ctx context.Context, params DownloadParams) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, DownloadTimeout)
	defer cancel()

	var report Report
	code, err := c.call(ctx, http.MethodGet, "/download?"+params.query().Encode(), nil, &report)
	if err != nil {
		return nil, err
	}
	report.StatusCode = code
	return &report, nil
}

// Login logs the backend in with a password or with browser cookies
func (c *Client) Login(ctx context.Context, username, password string, browser bool) (*LoginReply, error) {
	ctx, cancel := context.WithTimeout(ctx, LoginTimeout)
	defer cancel()

	body := map[string]interface{}{"use_browser_cookies": browser}
	if !browser {
		body["username"] = username
		body["password"] = password
	}

	var reply LoginReply
	code, err := c.call(ctx, http.MethodPost, "/login", body, &reply)
	if err != nil {
		return nil, err
	}
	reply.StatusCode = code
	return &reply, nil
}

// Logout drops the backend's active session
func (c *Client) Logout(ctx context.Context) (*LoginReply, error) {
	ctx, cancel := context.WithTimeout(ctx, StatusTimeout)
	defer cancel()

	var reply LoginReply
	code, err := c.call(ctx, http.MethodPost, "/logout", nil, &reply)
	if err != nil {
		return nil, err
	}
	reply.StatusCode = code
	return &reply, nil
}

// History lists recorded runs, newest first. A 404 means the backend runs
// without history.
func (c *Client) History(ctx context.Context, username string, limit int) ([]history.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, StatusTimeout)
	defer cancel()

	q := url.Values{}
	if username != "" {
		q.Set("username", username)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/history"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var reply struct {
		Runs  []history.Run `json:"runs"`
		Error string        `json:"error"`
	}
	code, err := c.call(ctx, http.MethodGet, path, nil, &reply)
	if err != nil {
		return nil, err
	}
	switch {
	case code == http.StatusNotFound:
		return nil, ErrHistoryDisabled
	case code != http.StatusOK:
		return nil, fmt.Errorf("history request failed (HTTP %d): %s", code, reply.Error)
	}
	return reply.Runs, nil
}

// call performs one request and decodes the JSON reply into target
func (c *Client) call(ctx context.Context, method, path string, body, target interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).WithField("path", path).Debug("backend request failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w after %s", ErrTimeout, time.Since(start).Round(time.Second))
		}
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("%w at %s: %v", ErrUnreachable, c.baseURL, err)
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("backend replied", map[string]interface{}{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read reply: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return resp.StatusCode, fmt.Errorf("unexpected reply (HTTP %d): %s", resp.StatusCode, preview)
	}
	return resp.StatusCode, nil
}
