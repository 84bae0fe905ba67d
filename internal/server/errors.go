// file: internal/server/errors.go
// version: 2.0.0
// guid: 5d6e7f8a-9b0c-1d2e-3f4a-5b6c7d8e9f0a

package server

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/book-catalog/internal/database"
	"github.com/jdfalk/book-catalog/internal/metadata"
)

// ErrorResponse provides a consistent error response format
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Status int    `json:"status"`
}

// ItemResponse wraps a single result
type ItemResponse struct {
	Data any `json:"data"`
}

// BulkResponse reports a bulk import
type BulkResponse struct {
	Total     int        `json:"total"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Results   []BulkItem `json:"results"`
}

// BulkItem is the result for one ISBN in a bulk import
type BulkItem struct {
	ISBN   string `json:"isbn"`
	Status string `json:"status"` // "success", "not_found", "failed"
	Error  string `json:"error,omitempty"`
}

// RespondWithError sends a standardized error response and logs the error
func RespondWithError(c *gin.Context, statusCode int, message string, code string) {
	logErrorWithContext(c, statusCode, message)
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error:  message,
		Code:   code,
		Status: statusCode,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error response
func RespondWithBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, message, "BAD_REQUEST")
}

// RespondWithNotFound sends a 404 Not Found error response
func RespondWithNotFound(c *gin.Context, resourceType string, id string) {
	message := resourceType + " not found"
	if id != "" {
		message = message + ": " + id
	}
	RespondWithError(c, http.StatusNotFound, message, "NOT_FOUND")
}

// RespondWithOK sends a 200 OK response
func RespondWithOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, ItemResponse{Data: data})
}

// RespondWithDomainError maps catalog and provider errors to HTTP statuses.
func RespondWithDomainError(c *gin.Context, err error) {
	var rl *metadata.RateLimitError
	switch {
	case errors.Is(err, metadata.ErrNotFound), errors.Is(err, database.ErrNotFound):
		RespondWithError(c, http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.As(err, &rl):
		if rl.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds()+0.5)))
		}
		RespondWithError(c, http.StatusTooManyRequests, err.Error(), "PROVIDER_RATE_LIMITED")
	case errors.Is(err, metadata.ErrRateLimited):
		RespondWithError(c, http.StatusTooManyRequests, err.Error(), "PROVIDER_RATE_LIMITED")
	case errors.Is(err, metadata.ErrProvider):
		RespondWithError(c, http.StatusBadGateway, err.Error(), "PROVIDER_ERROR")
	default:
		RespondWithError(c, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

// logErrorWithContext logs an error with request context for debugging
func logErrorWithContext(c *gin.Context, statusCode int, message string) {
	level := "WARN"
	if statusCode >= 500 {
		level = "ERROR"
	}
	log.Printf("[%s] %s %s %d - %s (from %s)", level, c.Request.Method, c.Request.URL.Path, statusCode, message, c.ClientIP())
}

// ParseQueryInt parses an integer query parameter with a default value
func ParseQueryInt(c *gin.Context, key string, defaultValue int) int {
	value, err := strconv.Atoi(c.DefaultQuery(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// ParseQueryBool parses a boolean query parameter with a default value
func ParseQueryBool(c *gin.Context, key string, defaultValue bool) bool {
	valueStr := c.DefaultQuery(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.ToLower(valueStr) == "true" || valueStr == "1"
}
