package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

const defaultRequestTimeout = 45 * time.Second

// Timeout answers 503 REQUEST_TIMEOUT when the handler runs past timeout.
// A finalize that times out here still completes on the platform; the
// outcome arrives over the event stream.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	body, _ := json.Marshal(errorEnvelope("REQUEST_TIMEOUT", "Request timed out after "+timeout.String()))
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, string(body))
	}
}
