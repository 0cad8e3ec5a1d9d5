package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"igbackend/pkg/logger"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID reuses the caller's X-Request-ID or assigns a new one
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog logs every request once it has been served
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.LogRequest(log, c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.GetString(requestIDKey))
	}
}

// CORS allows any origin; the extension calls from a chrome-extension:// origin
// and pages reach the backend on loopback, so private network preflights pass
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:     true,
		AllowMethods:        []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:        []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders:       []string{RequestIDHeader},
		AllowPrivateNetwork: true,
		MaxAge:              10 * time.Minute,
	})
}

// Recovery turns a handler panic into a 500 and logs it
func Recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.ErrorWithFields("panic recovered", map[string]interface{}{
			"panic":      recovered,
			"path":       c.Request.URL.Path,
			"request_id": c.GetString(requestIDKey),
		})
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}
