package server

import (
	"net/http"
	"strings"

	"github.com/nomadhouse/nomadhouse/internal/auth"
)

var corsHeaders = strings.Join([]string{
	"Accept",
	"Authorization",
	"Content-Type",
	"X-API-Key",
	auth.CallerHeader,
}, ", ")

// cors allows browser wallets and dashboards on other origins to call the API
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
