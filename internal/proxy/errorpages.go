package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/vyrodovalexey/gochp/internal/observability"
)

// errorFetchTimeout bounds how long a single error-page fetch from the
// error target may take.
const errorFetchTimeout = 10 * time.Second

// ErrorResponder renders routing misses and upstream failures.
//
// Three strategies, in priority order: relay the page from a dedicated
// error server, serve static HTML from a directory, or emit a JSON
// body. The error target wins when both a target and a directory are
// configured; either source failing falls back to JSON so the client
// always receives the original status code.
type ErrorResponder struct {
	target *url.URL
	dir    string
	client *http.Client
	logger observability.Logger
}

// NewErrorResponder creates an error responder. Both target and dir
// may be empty, in which case every error is a JSON response.
func NewErrorResponder(target *url.URL, dir string, logger observability.Logger) *ErrorResponder {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ErrorResponder{
		target: target,
		dir:    dir,
		client: &http.Client{Timeout: errorFetchTimeout},
		logger: logger,
	}
}

// Respond writes an error response with the given status code. The
// message only appears in the JSON fallback body.
func (er *ErrorResponder) Respond(w http.ResponseWriter, r *http.Request, code int, message string) {
	if er.target != nil {
		if er.respondFromTarget(w, r, code) {
			return
		}
	} else if er.dir != "" {
		if er.respondFromDir(w, code) {
			return
		}
	}
	er.respondJSON(w, code, message)
}

// respondFromTarget fetches GET <target>/<code>?url=<original path>
// from the error server and relays its body. The status code stays the
// original error code regardless of what the error server answers.
func (er *ErrorResponder) respondFromTarget(w http.ResponseWriter, r *http.Request, code int) bool {
	u := *er.target
	u.Path = singleJoiningSlash(u.Path, strconv.Itoa(code))

	q := u.Query()
	q.Set("url", r.URL.Path)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		er.logger.Error("building error page request failed",
			observability.String("url", u.String()),
			observability.Error(err),
		)
		return false
	}

	resp, err := er.client.Do(req)
	if err != nil {
		er.logger.Error("error page fetch failed",
			observability.String("url", u.String()),
			observability.Error(err),
		)
		return false
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(code)
	_, _ = io.Copy(w, resp.Body)
	return true
}

// respondFromDir serves <dir>/<code>.html, falling back to
// <dir>/error.html when no page exists for the specific code.
func (er *ErrorResponder) respondFromDir(w http.ResponseWriter, code int) bool {
	body, err := os.ReadFile(filepath.Join(er.dir, strconv.Itoa(code)+".html"))
	if err != nil {
		body, err = os.ReadFile(filepath.Join(er.dir, "error.html"))
	}
	if err != nil {
		er.logger.Debug("no error page on disk",
			observability.String("dir", er.dir),
			observability.Int("code", code),
		)
		return false
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(body)
	return true
}

// respondJSON is the last-resort body.
func (er *ErrorResponder) respondJSON(w http.ResponseWriter, code int, message string) {
	resp := struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}{
		Error:   strings.ToLower(http.StatusText(code)),
		Message: message,
	}

	data, err := json.Marshal(resp)
	if err != nil {
		http.Error(w, message, code)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}
