package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	errs "igbackend/pkg/errors"
	"igbackend/pkg/session"
)

// Messages clients match on
const (
	serviceInfo = "IG Story Downloader backend running"

	msgBrowserCookiesFailed = "Could not load valid Instagram session from any browser. Please log in to Instagram.com in your browser first."
	msgLoginChallenge       = "Instagram requires additional verification (challenge). Please log in through Instagram's website/app first, complete any required verification, then try again."
	msgLoginChallengeAdvice = "Try using browser cookies instead of username/password"
	msgLoginCheckpoint      = "Instagram checkpoint required. Please log in through Instagram's website/app and complete the security check."
	msgInvalidCredentials   = "Invalid username or password"
	msgLoginRateLimited     = "Instagram is rate limiting login attempts. Please wait a few minutes and try again."
	msgLoggedOut            = "Logged out"
)

// flag accepts JSON booleans, numbers and "1"/"true"/"yes" strings
type flag bool

func (f *flag) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = flag(t)
	case float64:
		*f = t != 0
	case string:
		*f = flag(truthy(t))
	default:
		*f = false
	}
	return nil
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

type loginRequest struct {
	Username          string `json:"username"`
	Password          string `json:"password"`
	UseBrowserCookies flag   `json:"use_browser_cookies"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"info":         serviceInfo,
		"logged_in_as": nullable(s.sessions.LoggedInAs()),
	})
}

// handleLogin accepts a JSON body; a missing or malformed body counts as empty
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = loginRequest{}
	}

	res, err := s.sessions.Login(c.Request.Context(), session.Credentials{
		Username:          strings.TrimSpace(req.Username),
		Password:          req.Password,
		UseBrowserCookies: bool(req.UseBrowserCookies),
	})
	if err != nil {
		status, body := loginFailure(err)
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"username": req.Username,
			"browser":  bool(req.UseBrowserCookies),
			"status":   status,
		}).Warn("Login failed")
		c.JSON(status, body)
		return
	}

	message := fmt.Sprintf("Logged in as %s", res.Username)
	if res.Method == session.MethodBrowserCookies {
		message = fmt.Sprintf("Logged in using browser cookies as %s", res.Username)
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   message,
		"logged_in": true,
		"method":    res.Method,
	})
}

func loginFailure(err error) (int, gin.H) {
	switch {
	case errors.Is(err, session.ErrCredentialsRequired):
		return http.StatusBadRequest, gin.H{"error": session.ErrCredentialsRequired.Error()}
	case errors.Is(err, session.ErrBrowserCookiesFailed):
		return http.StatusUnauthorized, gin.H{"error": msgBrowserCookiesFailed, "browser_cookies_failed": true}
	}

	switch errs.Classify(err) {
	case errs.ErrorTypeChallengeRequired:
		return http.StatusUnauthorized, gin.H{
			"error":              msgLoginChallenge,
			"challenge_required": true,
			"suggestion":         msgLoginChallengeAdvice,
		}
	case errs.ErrorTypeCheckpointRequired:
		return http.StatusUnauthorized, gin.H{"error": msgLoginCheckpoint, "checkpoint_required": true}
	case errs.ErrorTypeInvalidCredentials:
		return http.StatusUnauthorized, gin.H{"error": msgInvalidCredentials}
	case errs.ErrorTypeRateLimit:
		return http.StatusTooManyRequests, gin.H{"error": msgLoginRateLimited, "rate_limited": true}
	default:
		return http.StatusUnauthorized, gin.H{"error": err.Error()}
	}
}

func (s *Server) handleLogout(c *gin.Context) {
	s.sessions.Logout()
	c.JSON(http.StatusOK, gin.H{
		"message":      msgLoggedOut,
		"logged_out":   true,
		"logged_in_as": nil,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	st := s.sessions.Status(c.Request.Context())
	body := gin.H{
		"logged_in":    st.LoggedIn,
		"logged_in_as": nullable(st.LoggedInAs),
		"status":       st.State,
	}
	if st.Error != "" {
		body["error"] = st.Error
	}
	c.JSON(http.StatusOK, body)
}
