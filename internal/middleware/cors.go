package middleware

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Headers the scanner and back-office clients send and read
var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	corsAllowedHeaders = []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader}
	corsExposedHeaders = []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", middleware.RequestIDHeader}
)

// originPolicy decides which browser origins may call the API. Configured
// origins always pass; in development any loopback origin does too, so
// a scanner UI served from a local dev port works without extra config.
type originPolicy struct {
	allowed       map[string]bool
	allowLoopback bool
}

func newOriginPolicy(allowedOrigins []string, isDevelopment bool) originPolicy {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.ToLower(strings.TrimSpace(o)), "/"); o != "" {
			allowed[o] = true
		}
	}
	return originPolicy{allowed: allowed, allowLoopback: isDevelopment}
}

func (p originPolicy) permits(_ *http.Request, origin string) bool {
	origin = strings.ToLower(origin)
	if p.allowed[origin] {
		return true
	}
	if !p.allowLoopback {
		return false
	}

	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// CORSMiddleware lets the configured browser origins call the API with credentials
func CORSMiddleware(allowedOrigins []string, isDevelopment bool) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins, isDevelopment)

	return cors.Handler(cors.Options{
		AllowOriginFunc:  policy.permits,
		AllowedMethods:   corsAllowedMethods,
		AllowedHeaders:   corsAllowedHeaders,
		ExposedHeaders:   corsExposedHeaders,
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// DefaultMiddlewareStack returns the chi middleware every route runs behind
func DefaultMiddlewareStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Compress(5, "application/json", "text/plain"),
	}
}
