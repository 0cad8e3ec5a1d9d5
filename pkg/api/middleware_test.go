package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodGet, "/", "")
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "ext-123")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, "ext-123", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	req.Header.Set("Access-Control-Request-Private-Network", "true")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
	assert.Contains(t, strings.ToLower(w.Header().Get("Access-Control-Allow-Headers")), "x-request-id")
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Private-Network"))
	assert.Empty(t, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "chrome-extension://abcdef")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.EqualFold(RequestIDHeader, w.Header().Get("Access-Control-Expose-Headers")))
}

func TestAccessLog(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodGet, "/status", "")
	env.do(http.MethodGet, "/download", "")

	completed := env.log.GetMessagesByLevel("INFO")
	require.NotEmpty(t, completed)
	last := completed[len(completed)-1]
	assert.Equal(t, "HTTP request completed", last.Message)
	assert.Equal(t, "/status", last.Fields["path"])
	assert.NotEmpty(t, last.Fields["request_id"])

	assert.True(t, env.log.HasMessage("HTTP request client error"))
}

func TestRecovery(t *testing.T) {
	env := newTestEnv(t, nil)
	env.router.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	w := env.do(http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w)["error"])
	assert.True(t, env.log.HasMessage("panic recovered"))
}
