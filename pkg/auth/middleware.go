package auth

import (
	"net"
	"net/http"
	"strings"

	"teamfeed/pkg/logger"
)

// Role is the resolved API-key tier for a request. It is distinct from the
// sender role on messages: key tiers gate transport access, sender roles
// gate pin/delete.
type KeyRole int

const (
	KeyUnauth KeyRole = iota
	KeyFrontend
	KeyBackend
	KeyAdmin
)

// SecConfig mirrors the security-related configuration driving
// authentication, CORS and rate limiting.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
}

// Gateway authenticates API keys, applies CORS, IP whitelisting and per-key
// rate limits, and stamps the resolved tier into X-Role-Name for downstream
// middleware.
func Gateway(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.LogRequest(r)

			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,PATCH,OPTIONS")
				w.Header().Set("Access-Control-Max-Age", "600")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,X-User-ID,X-User-Name,X-User-Role,X-User-Signature")
				w.Header().Set("Access-Control-Expose-Headers", "X-Role-Name")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if len(cfg.IPWhitelist) > 0 {
				ip := clientIP(r)
				if !ipWhitelisted(ip, cfg.IPWhitelist) {
					logger.Warn("request_blocked", "reason", "ip_not_whitelisted", "ip", ip, "path", r.URL.Path)
					http.Error(w, `{"success":false,"error":"forbidden"}`, http.StatusForbidden)
					return
				}
			}

			role, key := authenticate(r, cfg)

			// Deployment probes cannot send API keys; accept GET /healthz
			// without authentication.
			if r.URL.Path == "/healthz" && r.Method == http.MethodGet {
				r.Header.Set("X-Role-Name", "unauth")
				next.ServeHTTP(w, r)
				return
			}

			if role == KeyUnauth {
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, `{"success":false,"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			limKey := key
			if limKey == "" {
				limKey = clientIP(r)
			}
			if !limiters.Allow(limKey) {
				logger.Warn("request_rate_limited", "path", r.URL.Path)
				http.Error(w, `{"success":false,"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			var roleName string
			switch role {
			case KeyFrontend:
				roleName = "frontend"
			case KeyBackend:
				roleName = "backend"
			case KeyAdmin:
				roleName = "admin"
			default:
				roleName = "unauth"
			}
			r.Header.Set("X-Role-Name", roleName)
			next.ServeHTTP(w, r)
		})
	}
}

func authenticate(r *http.Request, cfg SecConfig) (KeyRole, string) {
	key := apiKey(r)
	if key == "" {
		return KeyUnauth, ""
	}
	if _, ok := cfg.AdminKeys[key]; ok {
		return KeyAdmin, key
	}
	if _, ok := cfg.BackendKeys[key]; ok {
		return KeyBackend, key
	}
	if _, ok := cfg.FrontendKeys[key]; ok {
		return KeyFrontend, key
	}
	return KeyUnauth, ""
}

func apiKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func ipWhitelisted(ip string, whitelist []string) bool {
	parsed := net.ParseIP(ip)
	for _, entry := range whitelist {
		if entry == ip {
			return true
		}
		if _, cidr, err := net.ParseCIDR(entry); err == nil && parsed != nil && cidr.Contains(parsed) {
			return true
		}
	}
	return false
}
