package server

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"appsuite/internal/ratelimit"
)

// RealIP rewrites RemoteAddr from X-Forwarded-For or X-Real-IP when the
// connection comes from one of trusted (addresses or CIDR blocks). Requests
// from anywhere else keep their socket address, so forged headers cannot pick
// a fresh rate limit bucket.
func RealIP(trusted []string) func(http.Handler) http.Handler {
	nets := parseTrusted(trusted)
	return func(next http.Handler) http.Handler {
		if len(nets) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := forwardedFor(r, nets); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseTrusted(list []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(list))
	for _, s := range list {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			a = a.Unmap()
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		slog.Warn("Ignoring invalid trusted proxy", "value", s)
	}
	return out
}

func trustedAddr(nets []netip.Prefix, s string) bool {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range nets {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// forwardedFor walks X-Forwarded-For from the right and returns the first hop
// that is not a trusted proxy. Hops left of it were written by the client.
func forwardedFor(r *http.Request, nets []netip.Prefix) string {
	if !trustedAddr(nets, ratelimit.ClientIP(r)) {
		return ""
	}
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if _, err := netip.ParseAddr(hop); err != nil {
				return ""
			}
			if !trustedAddr(nets, hop) || i == 0 {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return ""
}
