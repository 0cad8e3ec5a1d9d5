package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"igbackend/pkg/history"
)

func (s *Server) handleHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgNumericInvalid})
			return
		}
		limit = n
	}

	runs, err := s.history.List(c.Request.Context(), strings.TrimSpace(c.Query("username")), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list run history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read run history"})
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
