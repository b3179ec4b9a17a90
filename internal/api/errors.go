package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthError indicates a missing or invalid authorization token.
type AuthError struct {
	Reason string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("authorization failed: %s", e.Reason)
}

// ValidationError indicates a malformed request.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError indicates a request for a resource that does not exist.
type NotFoundError struct {
	Resource string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Resource)
}

// MethodNotAllowedError indicates an unsupported verb on a known resource.
type MethodNotAllowedError struct {
	Method string
}

// Error implements the error interface.
func (e *MethodNotAllowedError) Error() string {
	return fmt.Sprintf("method not allowed: %s", e.Method)
}

// writeError maps a typed error to an HTTP response. Handlers return
// typed errors and the status code is decided only here, at the
// boundary.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch e := err.(type) {
	case *AuthError:
		// The body is withheld so an unauthenticated caller learns
		// nothing about the API surface.
		c.AbortWithStatus(http.StatusForbidden)
	case *ValidationError:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "bad request",
			"message": e.Message,
		})
	case *NotFoundError:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"error":   "not found",
			"message": e.Error(),
		})
	case *MethodNotAllowedError:
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{
			"error":   "method not allowed",
			"message": e.Error(),
		})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
		})
	}
}
