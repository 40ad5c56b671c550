// Package auth resolves the caller address of a request, either from an API
// key bound to an address or, in development, from the X-Caller-Address header.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/nomadhouse/nomadhouse/internal/chain"
	"github.com/nomadhouse/nomadhouse/internal/middleware/logging"
	"github.com/nomadhouse/nomadhouse/internal/storage"
)

// CallerHeader carries the caller address when authentication is disabled
const CallerHeader = "X-Caller-Address"

// Context key type for avoiding collisions
type contextKey string

const (
	apiKeyContextKey contextKey = "apiKey"
	callerContextKey contextKey = "caller"
)

// ErrorWriter writes an error envelope
type ErrorWriter func(w http.ResponseWriter, status int, code, message string)

// GetAPIKeyFromContext retrieves the API key info from context.
func GetAPIKeyFromContext(ctx context.Context) *storage.APIKey {
	if key, ok := ctx.Value(apiKeyContextKey).(*storage.APIKey); ok {
		return key
	}
	return nil
}

// CallerFromContext returns the authenticated caller address
func CallerFromContext(ctx context.Context) (common.Address, bool) {
	addr, ok := ctx.Value(callerContextKey).(common.Address)
	return addr, ok
}

// WithCaller returns a context carrying caller and tags the request log line
// with it.
func WithCaller(ctx context.Context, caller common.Address) context.Context {
	logging.Annotate(ctx, "caller", caller.Hex())
	return context.WithValue(ctx, callerContextKey, caller)
}

func keyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// Middleware returns an HTTP middleware that requires a valid API key and
// sets the caller to the key's bound address. A key already resolved by
// OptionalMiddleware earlier in the chain is reused without a second lookup.
func Middleware(store storage.APIKeyStore, writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetAPIKeyFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := keyFromRequest(r)
			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "API key required")
				return
			}
			if !WellFormed(apiKey) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
				return
			}

			key, err := store.ValidateAPIKey(r.Context(), apiKey)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
			ctx = WithCaller(ctx, key.Address)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalMiddleware validates an API key if present, but allows requests
// without keys to proceed.
func OptionalMiddleware(store storage.APIKeyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := keyFromRequest(r); WellFormed(apiKey) {
				key, err := store.ValidateAPIKey(r.Context(), apiKey)
				if err == nil && key != nil {
					ctx := context.WithValue(r.Context(), apiKeyContextKey, key)
					r = r.WithContext(WithCaller(ctx, key.Address))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HeaderMiddleware takes the caller from the X-Caller-Address header. It is
// only mounted when authentication is disabled.
func HeaderMiddleware(writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := r.Header.Get(CallerHeader); raw != "" {
				addr, err := chain.ParseAddress(raw)
				if err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid "+CallerHeader+" header")
					return
				}
				r = r.WithContext(WithCaller(r.Context(), addr))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCaller rejects requests that carry no caller address
func RequireCaller(writeError ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := CallerFromContext(r.Context()); !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Caller address required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
