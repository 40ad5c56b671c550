package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// probePaths are never filtered
var probePaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// scannerPrefixes are path prefixes only vulnerability scanners ask for.
// Nothing under them is served by the ledger API.
var scannerPrefixes = []string{
	"/.env",
	"/.git/",
	"/.htaccess",
	"/.htpasswd",
	"/.php",
	"/admin/",
	"/cgi-bin/",
	"/config.",
	"/phpinfo",
	"/phpmyadmin",
	"/server-status",
	"/shell",
	"/web-inf/",
	"/wp-admin",
	"/wp-content",
	"/wp-includes",
	"/wp-login",
	"/xmlrpc.php",
}

// hostilePatterns mark traversal and null byte injection, raw or encoded
var hostilePatterns = []string{
	"../",
	"..\\",
	"..%2f",
	"..%5c",
	"%2e%2e/",
	"%00",
	"\x00",
}

// Blocked reports whether a request path looks like scanner or attack traffic.
// rawPath is the escaped form when it differs from path, as in url.URL.
func Blocked(path, rawPath string) bool {
	lower := strings.ToLower(path)
	for _, prefix := range scannerPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	if containsAny(lower, hostilePatterns) {
		return true
	}

	if rawPath == "" {
		return false
	}
	raw := strings.ToLower(rawPath)
	if containsAny(raw, hostilePatterns) {
		return true
	}
	// double encoding survives one round of unescaping
	if decoded, err := url.PathUnescape(raw); err == nil && containsAny(strings.ToLower(decoded), hostilePatterns) {
		return true
	}
	return false
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// FilterMiddleware rejects scanner probes, path traversal and null bytes with
// a generic 400 that does not say which rule matched.
func FilterMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !probePaths[r.URL.Path] && Blocked(r.URL.Path, r.URL.RawPath) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "BAD_REQUEST",
						"message": "Invalid request",
					},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
