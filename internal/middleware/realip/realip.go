// Package realip resolves the client address of API requests that reach the
// server through trusted reverse proxies.
package realip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

type contextKey string

// ClientIPKey is the context key for the resolved client IP
const ClientIPKey contextKey = "client_ip"

// Config holds the configuration for the real IP middleware
type Config struct {
	// TrustProxy enables X-Forwarded-For and X-Real-IP parsing
	TrustProxy bool
	// TrustedProxies lists CIDR ranges or single addresses of trusted proxies
	TrustedProxies []string
}

// Resolver extracts client addresses for one proxy configuration
type Resolver struct {
	trustProxy bool
	trusted    []netip.Prefix
}

// NewResolver parses cfg. Entries that are neither a prefix nor an address
// are ignored.
func NewResolver(cfg Config) *Resolver {
	res := &Resolver{trustProxy: cfg.TrustProxy}
	if !cfg.TrustProxy {
		return res
	}
	for _, entry := range cfg.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if p, err := netip.ParsePrefix(entry); err == nil {
			res.trusted = append(res.trusted, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			res.trusted = append(res.trusted, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return res
}

// Trusted reports whether ip belongs to a trusted proxy
func (res *Resolver) Trusted(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range res.trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ClientIP returns the address of the client that originated r. Forwarding
// headers are only honoured when the direct peer is a trusted proxy; the
// X-Forwarded-For chain is walked right to left and the first untrusted hop
// wins.
func (res *Resolver) ClientIP(r *http.Request) string {
	peer := hostOnly(r.RemoteAddr)
	if !res.trustProxy || !res.Trusted(peer) {
		return peer
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
		return peer
	}

	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop != "" && !res.Trusted(hop) {
			return hop
		}
	}
	// Every hop is a proxy we trust; the leftmost is the origin.
	return strings.TrimSpace(hops[0])
}

// Middleware stores the resolved client IP in the request context.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	res := NewResolver(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), ClientIPKey, res.ClientIP(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClientIP returns the IP stored by Middleware, falling back to the
// request's peer address.
func GetClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(ClientIPKey).(string); ok && ip != "" {
		return ip
	}
	return hostOnly(r.RemoteAddr)
}

func hostOnly(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
