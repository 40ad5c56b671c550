// Package security provides request hardening middleware for the API.
package security

import (
	"encoding/json"
	"net/http"
)

// MaxBodySizeMiddleware caps request bodies at maxSizeMB megabytes. Requests
// that announce a larger Content-Length are refused up front with 413; bodies
// that grow past the cap while streaming fail on read.
func MaxBodySizeMiddleware(maxSizeMB int) func(http.Handler) http.Handler {
	maxBytes := int64(maxSizeMB) * 1024 * 1024

	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "PAYLOAD_TOO_LARGE",
						"message": "Request body too large",
					},
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
