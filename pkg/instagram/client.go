package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	errs "igbackend/pkg/errors"
	"igbackend/pkg/logger"
	"igbackend/pkg/ratelimit"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// maxErrorBody bounds how much of an error response is read for classification
const maxErrorBody = 4096

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL   string
	UserAgent string
	AppID     string
	Timeout   time.Duration
	Limiter   ratelimit.Limiter
	Cookies   CookieSource
	Transport http.RoundTripper
}

// Client talks to Instagram's web endpoints. It is safe for concurrent use;
// the login state is guarded by mu.
type Client struct {
	httpClient *http.Client
	jar        http.CookieJar
	headers    map[string]string
	baseURL    string
	base       *url.URL
	limiter    ratelimit.Limiter
	cookies    CookieSource
	logger     logger.Logger

	mu       sync.RWMutex
	username string
	userID   string
}

// NewClient creates a new Instagram client
func NewClient(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.AppID == "" {
		opts.AppID = DefaultAppID
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited()
	}
	if opts.Cookies == nil {
		opts.Cookies = KookySource{}
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		base, _ = url.Parse(BaseURL)
	}

	// cookiejar.New only fails on a broken PublicSuffixList, and we pass none
	jar, _ := cookiejar.New(nil)

	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Jar:       jar,
			Transport: opts.Transport,
		},
		jar: jar,
		headers: map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"X-IG-App-ID":     opts.AppID,
			"X-ASBD-ID":       "198387",
		},
		baseURL: base.String(),
		base:    base,
		limiter: opts.Limiter,
		cookies: opts.Cookies,
		logger:  log,
	}
}

// doRequest waits for the throttle, applies the configured headers and
// performs the request
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("request throttle: %w", err)
	}

	for key, value := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	if token := c.cookieValue("csrftoken"); token != "" && c.sameHost(req.URL) {
		req.Header.Set("X-CSRFToken", token)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    redactURL(req.URL),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		// a cancelled caller is not a network failure and must not be retried
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      redactURL(req.URL),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "connection error: %v", err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      redactURL(req.URL),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// get performs a GET request and checks the response status. The caller
// owns the returned body.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	if err := c.checkResponseStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// getJSON performs a GET request and decodes the JSON response
func (c *Client) getJSON(ctx context.Context, rawURL string, target interface{}) error {
	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.decode(resp, target)
}

func (c *Client) decode(resp *http.Response, target interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          redactURL(resp.Request.URL),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		// Instagram answers a login wall with an HTML page
		if strings.Contains(bodyPreview, "<html") || strings.Contains(bodyPreview, "<!DOCTYPE") {
			return errs.New(errs.ErrorTypeLoginRequired, resp.StatusCode, "received HTML instead of JSON, login required")
		}
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus turns a non-2xx response into a typed error
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	typed := errs.FromStatusCode(resp.StatusCode, string(body))

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    redactURL(resp.Request.URL),
		"type":   string(typed.Type),
	}
	if typed.Type == errs.ErrorTypeNetwork {
		c.logger.ErrorWithFields("server error", fields)
	} else {
		c.logger.WarnWithFields("unexpected API response", fields)
	}

	return typed
}

// apiStatus converts a {"status":"fail","message":...} payload into a typed error
func apiStatus(status, message string) error {
	if status == "" || status == "ok" {
		return nil
	}
	if message == "" {
		message = "instagram api returned status " + status
	}
	return errs.New(errs.ClassifyMessage(message), 0, "%s", message)
}

func (c *Client) cookieValue(name string) string {
	for _, ck := range c.jar.Cookies(c.base) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func (c *Client) sameHost(u *url.URL) bool {
	return u != nil && u.Host == c.base.Host
}

// redactURL drops the query string so tokens in signed CDN links stay out of logs
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	cp := *u
	cp.RawQuery = ""
	return cp.String()
}

// IsLoggedIn reports whether the client holds an authenticated session
func (c *Client) IsLoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username != ""
}

// Username returns the authenticated account or ""
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Client) setIdentity(username, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = username
	c.userID = userID
}
