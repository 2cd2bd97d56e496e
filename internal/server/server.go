package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketmint/internal/config"
	"marketmint/internal/database"
	custommiddleware "marketmint/internal/middleware"
	"marketmint/internal/repository"
	"marketmint/internal/service"
	"marketmint/internal/storage"
	"marketmint/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// memoryLimiterSweep is how often idle in-process limiter entries are dropped
	memoryLimiterSweep = time.Minute
)

type Server struct {
	*http.Server
	config      *config.Config
	logger      *zap.Logger
	db          database.Service
	redis       *redis.Client
	stopLimiter context.CancelFunc
}

// NewServer wires repositories, services and handlers into one router.
// redisClient is optional; without it rate limits are kept in process.
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, store storage.Storage, redisClient *redis.Client) *Server {
	limiterCtx, stopLimiter := context.WithCancel(context.Background())

	server := &Server{
		config:      cfg,
		logger:      logger,
		db:          db,
		redis:       redisClient,
		stopLimiter: stopLimiter,
	}

	server.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      server.routes(limiterCtx, store),
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func (s *Server) routes(limiterCtx context.Context, store storage.Storage) http.Handler {
	cfg := s.config
	metrics := custommiddleware.NewMetrics()

	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(metrics.Middleware)
	router.Use(custommiddleware.LoggingMiddleware(s.logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(s.logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins))

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("MarketMint API is running"))
	})

	router.Get("/health", s.health)
	router.Handle("/metrics", metrics.Handler())

	if local, ok := store.(*storage.Local); ok {
		files := http.FileServer(http.Dir(local.Dir()))
		router.Handle(storage.URLPrefix+"*", http.StripPrefix(storage.URLPrefix, noDirectoryListing(files)))
	}

	// Initialize repositories
	db := s.db.DB()
	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)

	// Initialize services
	userService := service.NewUserService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiry())
	productService := service.NewProductService(productRepo, categoryRepo, store, cfg.Storage.MaxUploadBytes, s.logger)
	favoriteService := service.NewFavoriteService(favoriteRepo)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, cfg.Server.IsProduction(), s.logger)
	productHandler := transport.NewProductHandler(productService, cfg.Storage.MaxUploadBytes, s.logger)
	favoriteHandler := transport.NewFavoriteHandler(favoriteService, s.logger)

	authMiddleware := custommiddleware.AuthMiddleware(userService, s.logger)
	rateLimit := custommiddleware.RateLimitMiddleware(s.newRateLimiter(limiterCtx), s.logger)

	router.Route("/api", func(r chi.Router) {
		userHandler.RegisterRoutes(r, authMiddleware, rateLimit)
		productHandler.RegisterRoutes(r, authMiddleware)
		favoriteHandler.RegisterRoutes(r, authMiddleware)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusNotFound, "Route not found")
	})

	return router
}

func (s *Server) newRateLimiter(ctx context.Context) custommiddleware.RateLimiter {
	limits := custommiddleware.RateLimitConfig{
		RequestsPerWindow: s.config.RateLimit.Requests,
		Window:            s.config.RateLimit.Window,
		KeyPrefix:         "ratelimit:auth",
	}

	if s.redis != nil {
		s.logger.Info("Using Redis rate limiter", zap.Int("requests", limits.RequestsPerWindow), zap.Duration("window", limits.Window))
		return custommiddleware.NewRedisRateLimiter(s.redis, limits)
	}

	s.logger.Info("Using in-process rate limiter", zap.Int("requests", limits.RequestsPerWindow), zap.Duration("window", limits.Window))
	limiter := custommiddleware.NewMemoryRateLimiter(limits)
	limiter.StartCleanup(ctx, memoryLimiterSweep, 2*limits.Window)
	return limiter
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	stats := s.db.Health()

	status := http.StatusOK
	if stats["status"] != "up" {
		s.logger.Warn("Health check failed", zap.String("error", stats["error"]))
		status = http.StatusServiceUnavailable
	}

	custommiddleware.RespondWithJSON(w, status, stats)
}

// noDirectoryListing answers 404 for directory paths so only files are served
func noDirectoryListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	s.stopLimiter()

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close Redis client", zap.Error(err))
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
