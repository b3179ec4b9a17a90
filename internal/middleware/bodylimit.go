package middleware

import (
	"io"
	"net/http"

	"github.com/vyrodovalexey/gochp/internal/observability"
)

// BodyLimit returns a middleware that limits the request body size. A
// request whose body exceeds the limit is rejected with 413 Request
// Entity Too Large. A limit of zero or less disables the check.
func BodyLimit(maxSize int64, logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxSize <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Check Content-Length header first for early rejection
			if r.ContentLength > maxSize {
				logger.Warn("request body too large",
					observability.Int64("content_length", r.ContentLength),
					observability.Int64("max_size", maxSize),
					observability.String("path", r.URL.Path),
				)

				w.Header().Set(HeaderContentType, ContentTypeJSON)
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_, _ = io.WriteString(w, ErrRequestEntityTooLarge)
				return
			}

			// Wrap the body so chunked uploads cannot bypass the limit
			if r.Body != nil {
				r.Body = &limitedReadCloser{
					ReadCloser: r.Body,
					remaining:  maxSize,
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// limitedReadCloser wraps an io.ReadCloser and limits the number of bytes that can be read.
type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

// Read reads up to len(p) bytes into p, respecting the remaining limit.
func (l *limitedReadCloser) Read(p []byte) (n int, err error) {
	if l.remaining <= 0 {
		l.exceeded = true
		return 0, &bodySizeExceededError{}
	}

	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}

	n, err = l.ReadCloser.Read(p)
	l.remaining -= int64(n)

	return n, err
}

// bodySizeExceededError is returned when the body size limit is exceeded.
type bodySizeExceededError struct{}

func (e *bodySizeExceededError) Error() string {
	return "request body size exceeded"
}
