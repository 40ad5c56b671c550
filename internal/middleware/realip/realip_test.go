package realip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware_ClientIP(t *testing.T) {
	trusted := []string{"10.0.0.0/8", "192.168.0.0/16", "172.20.0.7"}

	tests := []struct {
		name       string
		trustProxy bool
		remote     string
		xff        string
		xri        string
		want       string
	}{
		{"proxy trust disabled", false, "10.0.0.1:1234", "203.0.113.50", "", "10.0.0.1"},
		{"trusted peer", true, "10.0.0.1:1234", "203.0.113.50, 10.0.0.5", "", "203.0.113.50"},
		{"untrusted peer ignores headers", true, "198.51.100.1:1234", "203.0.113.50", "", "198.51.100.1"},
		{"real ip fallback", true, "10.0.0.1:1234", "", "203.0.113.77", "203.0.113.77"},
		{"no headers", true, "10.0.0.1:1234", "", "", "10.0.0.1"},
		{"spoofed leftmost skipped", true, "10.0.0.1:1234", "1.1.1.1, 203.0.113.50, 192.168.3.3", "", "203.0.113.50"},
		{"all hops trusted", true, "10.0.0.1:1234", "10.0.0.9, 192.168.1.1", "", "10.0.0.9"},
		{"single trusted address", true, "172.20.0.7:443", "203.0.113.8", "", "203.0.113.8"},
		{"peer without port", true, "198.51.100.4", "", "", "198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware(Config{TrustProxy: tt.trustProxy, TrustedProxies: trusted})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					got = GetClientIP(r)
				}))

			req := httptest.NewRequest("GET", "/api/v1/marketplace/listings", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetClientIP_NoContext(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "192.0.2.10", GetClientIP(req))
}

func TestResolver_Trusted(t *testing.T) {
	res := NewResolver(Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8", "::1", "bogus", "2001:db8::/32"}})

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.200.1.1", true},
		{"11.0.0.1", false},
		{"::1", true},
		{"2001:db8::42", true},
		{"::ffff:10.0.0.1", true},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, res.Trusted(tt.ip), tt.ip)
	}

	assert.False(t, NewResolver(Config{TrustedProxies: []string{"10.0.0.0/8"}}).Trusted("10.0.0.1"),
		"trust list is ignored while proxy trust is off")
}
