package crm

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/JonMunkholm/crmsync/internal/logging"
)

// secretArgs are masked before a request is logged.
var secretArgs = []string{"password"}

// loggingTransport logs every remote call at debug level.
//
// Log fields:
//   - method: HTTP method
//   - path: request path
//   - query: query string with secrets masked
//   - status: response status code, 0 on transport failure
//   - duration_ms: round-trip time in milliseconds
type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	resp, err := t.next.RoundTrip(r)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}

	logger := logging.FromContext(r.Context())
	args := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"query", maskQuery(r.URL.RawQuery),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		logger.Debug("remote call failed", append(args, "error", err)...)
	} else {
		logger.Debug("remote call", args...)
	}

	return resp, err
}

// maskQuery replaces secret argument values, keeping everything else byte
// for byte so the logged query matches what was sent.
func maskQuery(raw string) string {
	if raw == "" {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, part := range parts {
		k, _, found := strings.Cut(part, "=")
		if !found {
			continue
		}
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		if slices.Contains(secretArgs, key) {
			parts[i] = k + "=[MASKED]"
		}
	}
	return strings.Join(parts, "&")
}
