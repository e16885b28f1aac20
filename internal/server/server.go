package server

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"dealswipe/internal/config"
	custommiddleware "dealswipe/internal/middleware"
	"dealswipe/internal/repository"
	"dealswipe/internal/scraper"
	"dealswipe/internal/service"
	"dealswipe/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client

	ingestService service.IngestService
}

func NewServer(cfg *config.Config, logger *zap.Logger, db *sql.DB) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(nil, cfg.Server.Env == "development"))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	router.Use(custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: 300,
		Window:            time.Minute,
		KeyPrefix:         "ratelimit",
	}, logger))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	dealRepo := repository.NewDealRepository(db)
	swipeRepo := repository.NewSwipeRepository(db)

	// Initialize services
	userService := service.NewUserService(userRepo, refreshTokenRepo, cfg.JWT.Secret)
	feedService := service.NewFeedService(dealRepo, swipeRepo, logger)

	// Scrape pipeline feeding the ingestion service
	fetcher := scraper.NewPageFetcher(cfg.Scraper.ListingURL, cfg.Scraper.UserAgent)
	extractor := scraper.NewGridExtractor()
	normalizer := scraper.NewNormalizer(cfg.Scraper.BaseURL, logger)
	ingestService := service.NewIngestService(fetcher, extractor, normalizer, feedService, cfg.Scraper.TopN, logger)

	// Initialize handlers
	userHandler := transport.NewUserHandler(userService, logger)
	feedHandler := transport.NewFeedHandler(feedService, ingestService, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	adminMiddleware := custommiddleware.RequireAdmin(logger)

	// Register routes
	userHandler.RegisterRoutes(router, authMiddleware)
	feedHandler.RegisterRoutes(router, authMiddleware, adminMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config:        cfg,
		logger:        logger,
		db:            db,
		redis:         redisClient,
		ingestService: ingestService,
	}

	return server
}

// IngestService exposes the scheduler entry point so main can run periodic
// ingestion alongside the HTTP listener.
func (s *Server) IngestService() service.IngestService {
	return s.ingestService
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
