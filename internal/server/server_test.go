package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockroom/internal/config"
	"stockroom/internal/database"
	"stockroom/internal/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "test"},
		Database: config.DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     "1",
			User:     "stockroom",
			Password: "stockroom",
			Database: "stockroom",
			SSLMode:  "disable",
		},
		JWT:       config.JWTConfig{Secret: "test-secret", AccessExpiry: 15, RefreshExpiry: 7},
		RateLimit: config.RateLimitConfig{Requests: 100, Window: time.Minute},
		Import:    config.ImportConfig{MaxBytes: 1 << 20},
	}
}

func newTestServer(t *testing.T, redisClient *redis.Client, adjust ...func(*config.Config)) *Server {
	t.Helper()
	cfg := testConfig()
	for _, fn := range adjust {
		fn(cfg)
	}

	// Nothing listens on port 1, so the pool opens lazily and every ping fails
	db, err := database.New(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewServer(cfg, zap.NewNop(), db, redisClient, metrics.New())
}

func limitTo(n int) func(*config.Config) {
	return func(cfg *config.Config) {
		cfg.RateLimit.Requests = n
	}
}

func TestHealthReportsDatabaseDown(t *testing.T) {
	srv := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var health map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "down", health["status"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/api/orders/", "/api/products/", "/api/inventory/", "/api/users/profile"} {
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/", nil))

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "stockroom_http_requests_total"))
}

func TestRateLimiterUsesRedisWhenConfigured(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	srv := newTestServer(t, client, limitTo(2))

	codes := []int{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/", nil))
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
	assert.NotEmpty(t, mr.Keys())
}

func TestLocalRateLimiter(t *testing.T) {
	srv := newTestServer(t, nil, limitTo(2))

	var last int
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/", nil))
		last = w.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestRateLimiterKeysAuthenticatedCallersByUser(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	srv := newTestServer(t, client)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-42",
		"role":    "user",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testConfig().JWT.Secret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	srv.Handler.ServeHTTP(httptest.NewRecorder(), req)

	anonymous := httptest.NewRequest(http.MethodGet, "/api/orders/", nil)
	srv.Handler.ServeHTTP(httptest.NewRecorder(), anonymous)

	assert.True(t, mr.Exists("rl:user:user-42"))
	assert.True(t, mr.Exists("rl:ip:"+anonymous.RemoteAddr))
}

func TestRecoveredPanicsAreCounted(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.Handler.(chi.Router).Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `stockroom_http_requests_total{code="500",route="/boom"} 1`)
}
