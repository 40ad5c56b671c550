//go:build e2e

package e2e

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, method, path string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(testContext(t), method, testCtx.TestServer.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// TestProbes checks liveness and readiness against the Postgres ledger
func TestProbes(t *testing.T) {
	probes := map[string]string{
		"/health":  "ok",
		"/healthz": "ok",
		"/readyz":  "ready",
	}

	for path, status := range probes {
		t.Run(path, func(t *testing.T) {
			resp := get(t, http.MethodGet, path, nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, status, body["status"])
		})
	}
}

// TestCORSPreflight checks that browsers may send keys and caller headers
func TestCORSPreflight(t *testing.T) {
	resp := get(t, http.MethodOptions, "/api/v1/marketplace/listings/1/buy", map[string]string{
		"Origin":                        "https://app.nomadhouse.example",
		"Access-Control-Request-Method": "POST",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
	allowed := resp.Header.Get("Access-Control-Allow-Headers")
	assert.Contains(t, allowed, "X-API-Key")
	assert.Contains(t, allowed, "X-Caller-Address")
}

// TestUnknownResources checks 404s for unknown routes and ids
func TestUnknownResources(t *testing.T) {
	tests := []struct {
		path string
		code string
	}{
		{"/api/v1/nonexistent", ""},
		{"/api/v1/collection/deeds/999999", "NOT_FOUND"},
		{"/api/v1/collection/titles/never-verified.json", "NOT_FOUND"},
		{"/api/v1/marketplace/listings/999999", "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp := get(t, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
			if tt.code == "" {
				return
			}
			var body struct {
				Error struct{ Code string } `json:"error"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}
