package server

import (
	"fmt"
	"net/http"
	"time"

	"stockroom/internal/config"
	"stockroom/internal/database"
	"stockroom/internal/metrics"
	custommiddleware "stockroom/internal/middleware"
	"stockroom/internal/repository"
	"stockroom/internal/service"
	"stockroom/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	db      *database.Service
	redis   *redis.Client
	metrics *metrics.Metrics
}

// NewServer wires repositories, services and handlers onto a chi router.
// redisClient may be nil, in which case rate limiting is kept in process.
func NewServer(cfg *config.Config, logger *zap.Logger, db *database.Service, redisClient *redis.Client, m *metrics.Metrics) *Server {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.SecurityHeaders(!cfg.IsDevelopment()))
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(m.Middleware)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(rateLimiter(cfg, redisClient, logger))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := db.Health(r.Context())
		status := http.StatusOK
		if health["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, health)
	})
	router.Handle("/metrics", m.Handler())

	sqlDB := db.DB()

	// Repositories
	userRepo := repository.NewUserRepository(sqlDB)
	sessionRepo := repository.NewSessionRepository(sqlDB)
	productRepo := repository.NewProductRepository(sqlDB)
	orderRepo := repository.NewOrderRepository(sqlDB)

	// Services
	userService := service.NewUserService(userRepo, sessionRepo, service.TokenSettings{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	}, logger)
	catalogService := service.NewCatalogService(productRepo, m, logger)
	orderService := service.NewOrderService(orderRepo, m, logger)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	transport.NewUserHandler(userService, logger).RegisterRoutes(router, authMiddleware, adminMiddleware)
	transport.NewProductHandler(catalogService, cfg.Import.MaxBytes, logger).RegisterRoutes(router, authMiddleware, adminMiddleware)
	transport.NewOrderHandler(orderService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewPickingHandler(logger).RegisterRoutes(router, authMiddleware)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:  cfg,
		logger:  logger,
		db:      db,
		redis:   redisClient,
		metrics: m,
	}
}

func rateLimiter(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) func(http.Handler) http.Handler {
	limits := custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "rl",
		TokenSecret:       cfg.JWT.Secret,
	}
	if redisClient != nil {
		return custommiddleware.RateLimitMiddleware(redisClient, limits, logger)
	}
	return custommiddleware.LocalRateLimitMiddleware(limits)
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
