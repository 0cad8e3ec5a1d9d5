package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"igbackend/pkg/auth"
	errs "igbackend/pkg/errors"
)

// Login performs Instagram's web login: seed the csrftoken cookie from the
// login page, then post the form to the ajax endpoint.
func (c *Client) Login(ctx context.Context, username, password string) error {
	username = SanitizeUsername(username)
	if username == "" || password == "" {
		return errs.New(errs.ErrorTypeInvalidCredentials, 0, "username and password are required")
	}

	if err := c.seedCSRF(ctx); err != nil {
		return err
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("enc_password", fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:0:%d:%s", time.Now().Unix(), password))
	form.Set("queryParams", "{}")
	form.Set("optIntoOneTap", "false")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+LoginEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-IG-WWW-Claim", "0")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", c.baseURL+LoginPageEndpoint)

	c.logger.InfoWithFields("logging in with password", map[string]interface{}{
		"username": username,
	})

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read login response: %v", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return errs.FromStatusCode(resp.StatusCode, string(body))
	}

	var result loginResponse
	if err := json.Unmarshal(body, &result); err != nil {
		if resp.StatusCode >= 400 {
			return errs.FromStatusCode(resp.StatusCode, string(body))
		}
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse login response: %v", err)
	}

	if err := loginFailure(username, resp.StatusCode, &result); err != nil {
		c.logger.WarnWithFields("login rejected", map[string]interface{}{
			"username": username,
			"reason":   err.Error(),
		})
		return err
	}

	userID := result.UserID
	if userID == "" {
		userID = c.cookieValue("ds_user_id")
	}
	c.setIdentity(username, userID)

	c.logger.InfoWithFields("login succeeded", map[string]interface{}{
		"username": username,
		"user_id":  userID,
	})
	return nil
}

// loginFailure maps a login payload to a typed error, or nil when authenticated
func loginFailure(username string, code int, r *loginResponse) error {
	msg := strings.ToLower(r.Message + " " + r.ErrorType)
	switch {
	case strings.Contains(msg, "challenge_required"):
		return errs.New(errs.ErrorTypeChallengeRequired, code, "challenge_required")
	case r.CheckpointURL != "" || strings.Contains(msg, "checkpoint_required"):
		return errs.New(errs.ErrorTypeCheckpointRequired, code, "checkpoint_required")
	case r.TwoFactorRequired:
		// two-factor is a step-up verification this backend does not complete
		return errs.New(errs.ErrorTypeChallengeRequired, code, "challenge_required: two-factor authentication")
	case r.Authenticated:
		return nil
	case errs.ClassifyMessage(r.Message) == errs.ErrorTypeRateLimit:
		return errs.New(errs.ErrorTypeRateLimit, code, "%s", r.Message)
	case r.Status == "ok" && !r.User:
		return errs.New(errs.ErrorTypeInvalidCredentials, code, "Login error: user %s does not exist", username)
	case r.Status == "ok":
		return errs.New(errs.ErrorTypeInvalidCredentials, code, "Login error: incorrect password")
	default:
		if r.Message == "" {
			r.Message = "login failed with status " + r.Status
		}
		return errs.New(errs.ClassifyMessage(r.Message), code, "%s", r.Message)
	}
}

// seedCSRF loads the login page so the jar holds csrftoken and mid
func (c *Client) seedCSRF(ctx context.Context) error {
	if c.cookieValue("csrftoken") != "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+LoginPageEndpoint, nil)
	if err != nil {
		return errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return errs.FromStatusCode(resp.StatusCode, "")
	}
	if c.cookieValue("csrftoken") == "" {
		return errs.New(errs.ErrorTypeUnknown, resp.StatusCode, "failed to get CSRF token")
	}
	return nil
}

// TestLogin returns the account the current cookies belong to, or "" when
// they are anonymous
func (c *Client) TestLogin(ctx context.Context) (string, error) {
	var response struct {
		Data struct {
			User *struct {
				Username string `json:"username"`
			} `json:"user"`
		} `json:"data"`
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.getJSON(ctx, c.viewerURL(), &response); err != nil {
		return "", err
	}
	if err := apiStatus(response.Status, response.Message); err != nil {
		return "", err
	}
	if response.Data.User == nil {
		return "", nil
	}
	return response.Data.User.Username, nil
}

// ExportSession snapshots the cookie jar for persistence
func (c *Client) ExportSession() *auth.Session {
	c.mu.RLock()
	username, userID := c.username, c.userID
	c.mu.RUnlock()

	cookies := c.jar.Cookies(c.base)
	for _, ck := range cookies {
		ck.Domain = c.base.Hostname()
		ck.Path = "/"
	}
	return &auth.Session{
		Username: username,
		UserID:   userID,
		Cookies:  auth.FromHTTPCookies(cookies),
	}
}

// ImportSession loads a saved bundle into the jar and adopts its identity.
// The bundle is trusted as-is; callers verify it with TestLogin.
func (c *Client) ImportSession(session *auth.Session) error {
	if session == nil || session.CookieValue("sessionid") == "" {
		return fmt.Errorf("%w: no sessionid cookie", auth.ErrInvalidSession)
	}
	c.setCookies(session.HTTPCookies())

	userID := session.UserID
	if userID == "" {
		userID = session.CookieValue("ds_user_id")
	}
	c.setIdentity(session.Username, userID)
	return nil
}

// setCookies installs cookies as host cookies of the configured base URL,
// so bundles saved against www.instagram.com also work against test servers
func (c *Client) setCookies(cookies []*http.Cookie) {
	plain := c.base.Scheme == "http"
	for _, ck := range cookies {
		ck.Domain = ""
		if plain {
			ck.Secure = false
		}
		if ck.Path == "" {
			ck.Path = "/"
		}
	}
	c.jar.SetCookies(c.base, cookies)
}

// LoadBrowserCookies imports the browser's instagram.com cookies and
// verifies them. It returns the account they belong to.
func (c *Client) LoadBrowserCookies(ctx context.Context, browser string) (string, error) {
	cookies, err := c.cookies.Cookies(ctx, browser)
	if err != nil {
		return "", fmt.Errorf("read %s cookies: %w", browser, err)
	}

	var hasSession bool
	var userID string
	for _, ck := range cookies {
		switch ck.Name {
		case "sessionid":
			hasSession = ck.Value != ""
		case "ds_user_id":
			userID = ck.Value
		}
	}
	if !hasSession {
		return "", errs.New(errs.ErrorTypeLoginRequired, 0, "no Instagram session in %s", browser)
	}

	c.setCookies(cookies)
	username, err := c.TestLogin(ctx)
	if err != nil {
		return "", err
	}
	if username == "" {
		return "", errs.New(errs.ErrorTypeLoginRequired, 0, "%s cookies are not logged in", browser)
	}

	c.setIdentity(username, userID)
	c.logger.InfoWithFields("imported browser session", map[string]interface{}{
		"browser":  browser,
		"username": username,
	})
	return username, nil
}
