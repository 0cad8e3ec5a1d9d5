package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	errs "igbackend/pkg/errors"
	"igbackend/pkg/scraper"
)

const (
	msgUsernameRequired      = "username parameter required"
	msgNumericInvalid        = "numeric parameters invalid"
	msgProfileNotFound       = "Profile not found"
	msgLoginRequired         = "Login required to access this profile."
	msgDownloadChallenge     = "Instagram challenge required. Please log in through Instagram web/app first and complete any verification."
	msgDownloadChallengeHint = "Try logging in through Instagram.com, complete any challenges, then retry."
)

var errNumeric = errors.New(msgNumericInvalid)

// parseDownload reads the /download query. Omitted values fall back to the
// configured defaults; an empty delay, backoff or stories_limit does too,
// while an empty limit is rejected.
func (s *Server) parseDownload(c *gin.Context) (scraper.Request, error) {
	req := scraper.Request{
		Username:       strings.TrimSpace(c.Query("username")),
		Limit:          s.defaults.Limit,
		Delay:          s.defaults.Delay,
		Backoff:        s.defaults.Backoff,
		StoriesLimit:   s.defaults.StoriesLimit,
		IncludePosts:   truthy(c.DefaultQuery("include_posts", "1")),
		IncludeReels:   truthy(c.DefaultQuery("include_reels", "1")),
		IncludeStories: truthy(c.DefaultQuery("stories", "0")),
	}

	if v, ok := c.GetQuery("limit"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return req, errNumeric
		}
		req.Limit = n
	}
	if v := c.Query("delay"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return req, err
		}
		req.Delay = d
	}
	if v := c.Query("backoff"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return req, err
		}
		req.Backoff = d
	}
	if v := c.Query("stories_limit"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return req, errNumeric
		}
		req.StoriesLimit = n
	}
	return req, nil
}

// parseSeconds reads a possibly fractional number of seconds
func parseSeconds(v string) (time.Duration, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNumeric
	}
	return time.Duration(f * float64(time.Second)), nil
}

func (s *Server) handleDownload(c *gin.Context) {
	req, err := s.parseDownload(c)
	if req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgUsernameRequired})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgNumericInvalid})
		return
	}

	res, err := s.downloads.Download(c.Request.Context(), req)
	if err != nil {
		status, body := downloadFailure(err)
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"username": req.Username,
			"status":   status,
		}).Warn("Download failed")
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        res.Message(),
		"run_id":         res.RunID,
		"folders":        res.Folders,
		"posts":          res.Posts,
		"stories":        res.Stories,
		"stories_status": res.StoriesStatus,
		"stats":          res.Stats,
		"profile_info":   res.ProfileInfo,
		"selection": gin.H{
			"include_posts":   req.IncludePosts,
			"include_reels":   req.IncludeReels,
			"include_stories": req.IncludeStories,
		},
		"logged_in_as": nullable(s.sessions.LoggedInAs()),
	})
}

func downloadFailure(err error) (int, gin.H) {
	if errors.Is(err, scraper.ErrUsernameRequired) {
		return http.StatusBadRequest, gin.H{"error": msgUsernameRequired}
	}

	switch errs.Classify(err) {
	case errs.ErrorTypeNotFound:
		return http.StatusNotFound, gin.H{"error": msgProfileNotFound}
	case errs.ErrorTypeLoginRequired:
		return http.StatusUnauthorized, gin.H{"error": msgLoginRequired}
	case errs.ErrorTypeChallengeRequired, errs.ErrorTypeCheckpointRequired:
		return http.StatusTooManyRequests, gin.H{
			"error":              msgDownloadChallenge,
			"challenge_required": true,
			"suggestion":         msgDownloadChallengeHint,
		}
	case errs.ErrorTypeRateLimit:
		return http.StatusTooManyRequests, gin.H{"error": "Rate limited by Instagram: " + errorMessage(err), "rate_limited": true}
	case errs.ErrorTypeNetwork:
		return http.StatusServiceUnavailable, gin.H{"error": "Connection error: " + errorMessage(err)}
	default:
		return http.StatusInternalServerError, gin.H{"error": err.Error()}
	}
}

// errorMessage prefers the bare message of a typed error
func errorMessage(err error) string {
	var typed *errs.Error
	if errors.As(err, &typed) && typed.Message != "" {
		return typed.Message
	}
	return err.Error()
}
