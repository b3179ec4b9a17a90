package api

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/vyrodovalexey/gochp/internal/observability"
)

// authScheme is the Authorization header scheme for admin requests.
const authScheme = "token"

// TokenSource returns the currently valid admin token. Indirection
// lets configuration reloads rotate the token without restarting the
// listener.
type TokenSource func() string

// StaticTokenSource returns a TokenSource for a fixed token.
func StaticTokenSource(token string) TokenSource {
	return func() string {
		return token
	}
}

// TokenAuth returns a middleware that requires an Authorization header
// of the form "token <secret>" on every request. It runs before any
// routing decision and never reads the request body.
func TokenAuth(tokens TokenSource, logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := tokens()
		if secret == "" {
			// Fail closed rather than accept "token " with no secret.
			writeError(c, &AuthError{Reason: "no token configured"})
			return
		}

		expected := authScheme + " " + secret
		provided := c.GetHeader("Authorization")

		if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			logger.Warn("rejected unauthorized admin request",
				observability.String("method", c.Request.Method),
				observability.String("path", c.Request.URL.Path),
				observability.String("remote_addr", c.Request.RemoteAddr),
			)
			writeError(c, &AuthError{Reason: "invalid authorization token"})
			return
		}

		c.Next()
	}
}
