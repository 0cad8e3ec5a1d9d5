package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs a served HTTP request
func LogRequest(l Logger, method, path string, statusCode int, duration time.Duration, requestID string) {
	fields := map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration":    duration,
		"request_id":  requestID,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.InfoWithFields("HTTP request completed", fields)
	}
}

// LogDownload logs the outcome of one media item
func LogDownload(l Logger, username, shortcode, kind string, err error) {
	entry := l.WithFields(map[string]interface{}{
		"username":  username,
		"shortcode": shortcode,
		"kind":      kind,
	})

	if err != nil {
		entry.WithError(err).Warn("Download failed")
		return
	}
	entry.Debug("Download completed")
}

// LogRateLimit logs a backoff before the next attempt
func LogRateLimit(l Logger, username string, attempt int, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"username": username,
		"attempt":  attempt,
		"wait":     wait.String(),
		"action":   "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogComponentStart logs component initialization
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	l.WithField("component", component).InfoWithFields("Component started", settings)
}

// LogComponentStop logs component shutdown
func LogComponentStop(l Logger, component string, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() Logger {
	return &zerologLogger{zl: zerolog.Nop()}
}
