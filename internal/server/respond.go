package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/simplegantt/planner/internal/planner"
)

const projectIDQuery = "projectId"

func (h *httpHandler) bindJSON(c *gin.Context, target any) bool {
	if err := c.ShouldBindJSON(target); err != nil {
		h.logger.Warn("malformed request body", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return false
	}
	return true
}

func (h *httpHandler) rejectIssues(c *gin.Context, problems issues) bool {
	if len(problems) == 0 {
		return false
	}
	h.logger.Warn("request validation failed", zap.String("path", c.Request.URL.Path), zap.Any("issues", problems))
	c.JSON(http.StatusBadRequest, gin.H{"error": "Validation Error", "details": problems})
	return true
}

func requireProjectID(c *gin.Context) (string, bool) {
	projectID := strings.TrimSpace(c.Query(projectIDQuery))
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId query parameter is required"})
		return "", false
	}
	return projectID, true
}

func respondNotFound(c *gin.Context, entity string) {
	c.JSON(http.StatusNotFound, gin.H{"error": entity + " not found"})
}

// respondError maps service errors onto HTTP statuses.
func (h *httpHandler) respondError(c *gin.Context, err error) {
	var validationErr *planner.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason()})
	case errors.Is(err, planner.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, planner.ErrOptimisticLock):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		code := "internal_error"
		var serviceErr *planner.ServiceError
		if errors.As(err, &serviceErr) {
			code = serviceErr.Code()
		}
		h.logger.Error("unhandled service error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "code": code})
	}
}
