package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
	TokenSecret       string        // JWT secret used to key bearer requests by user
}

// clientKey identifies the caller: the authenticated user when known, the
// address otherwise. The limiter runs ahead of AuthMiddleware, so a valid
// bearer token is verified here as well; an invalid one counts against the address.
func clientKey(r *http.Request, tokenSecret string) string {
	if p, ok := PrincipalFrom(r.Context()); ok && p.UserID != "" {
		return "user:" + p.UserID
	}
	if tokenSecret != "" {
		if p, err := principalFromHeader(r.Header.Get("Authorization"), tokenSecret); err == nil && p.UserID != "" {
			return "user:" + p.UserID
		}
	}
	return "ip:" + r.RemoteAddr
}

// RateLimitMiddleware implements a fixed-window limiter shared through Redis
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientKey(r, config.TokenSecret)
			key := fmt.Sprintf("%s:%s", config.KeyPrefix, clientID)
			ctx := r.Context()

			count, err := redisClient.Incr(ctx, key).Result()
			if err != nil {
				logger.Error("Failed to increment rate limit counter",
					zap.Error(err),
					zap.String("key", key),
				)
				// On Redis error, allow request to proceed
				next.ServeHTTP(w, r)
				return
			}

			if count == 1 {
				redisClient.Expire(ctx, key, config.Window)
			}

			if count > int64(config.RequestsPerWindow) {
				ttl, err := redisClient.TTL(ctx, key).Result()
				if err != nil || ttl < 0 {
					ttl = config.Window
				}

				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int64("count", count),
					zap.Int("limit", config.RequestsPerWindow),
				)

				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(int(ttl.Seconds())))

				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			remaining := config.RequestsPerWindow - int(count)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}

// LocalRateLimitMiddleware limits per process with httprate, for deployments without Redis
func LocalRateLimitMiddleware(config RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(config.RequestsPerWindow, config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return clientKey(r, config.TokenSecret), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		}),
	)
}
