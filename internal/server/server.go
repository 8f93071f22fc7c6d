package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pipe-company/internal/backup"
	"pipe-company/internal/cache"
	"pipe-company/internal/config"
	"pipe-company/internal/database"
	"pipe-company/internal/integrity"
	custommiddleware "pipe-company/internal/middleware"
	"pipe-company/internal/repository"
	"pipe-company/internal/service"
	"pipe-company/internal/storage"
	"pipe-company/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "pipe"

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers onto one router. Redis is optional:
// when it is disabled or unreachable the catalog is read straight from the database.
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger, db database.Service) (*Server, error) {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack() {
		router.Use(mw)
	}
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))

	registry := prometheus.NewRegistry()
	router.Use(custommiddleware.NewHTTPMetrics(registry).Middleware)

	redisClient, err := cache.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, catalog cache disabled", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		redisClient = nil
	}

	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	sqlDB := db.DB()

	// Initialize repositories
	productRepo := repository.NewProductRepository(sqlDB)
	quoteRepo := repository.NewQuoteRepository(sqlDB)
	mediaRepo := repository.NewMediaRepository(sqlDB)
	companyRepo := repository.NewCompanyRepository(sqlDB)
	auditRepo := repository.NewAuditRepository(sqlDB)
	userRepo := repository.NewUserRepository(sqlDB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(sqlDB)

	// Initialize services
	maxUpload := int64(cfg.Server.MaxUploadMB) << 20
	productService := service.NewProductService(productRepo, auditRepo, cache.NewProductCache(redisClient, cacheKeyPrefix), cfg.Redis.CatalogTTL, logger)
	quoteService := service.NewQuoteService(quoteRepo, productRepo, auditRepo, logger)
	mediaService := service.NewMediaService(mediaRepo, auditRepo, store, maxUpload, logger)
	companyService := service.NewCompanyService(companyRepo, auditRepo, logger)
	userService := service.NewUserService(userRepo, refreshTokenRepo, cfg.JWT)

	backups := backup.NewManager(cfg.Backup, cfg.Database, logger, backup.WithSchemaVersion(database.SchemaVersion(sqlDB)))
	checker := integrity.NewChecker(sqlDB, logger)

	// Create auth middleware
	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)

	// Register routes
	router.Get("/health", healthHandler(db, redisClient))
	router.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	))
	if local, ok := store.(*storage.LocalStorage); ok {
		mountUploads(router, cfg.Storage.PublicBaseURL, local.Root())
	}

	transport.NewProductHandler(productService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewQuoteHandler(quoteService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewCompanyHandler(companyService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewMediaHandler(mediaService, maxUpload, logger).RegisterRoutes(router, authMiddleware)
	transport.NewUserHandler(userService, logger).RegisterRoutes(router, authMiddleware)
	transport.NewAdminHandler(backups, checker, auditRepo, logger).RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:           router,
			IdleTimeout:       time.Minute,
			ReadHeaderTimeout: 10 * time.Second,
			// uploads and on-demand backups can take a while
			WriteTimeout: 5 * time.Minute,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server, nil
}

// mountUploads serves locally stored media below the public base path
func mountUploads(r chi.Router, baseURL, root string) {
	base := "/" + strings.Trim(baseURL, "/")
	if base == "/" || strings.Contains(baseURL, "://") {
		return
	}
	fs := http.StripPrefix(base+"/", http.FileServer(http.Dir(root)))
	r.Get(base+"/*", func(w http.ResponseWriter, r *http.Request) {
		// no directory listings
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fs.ServeHTTP(w, r)
	})
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string            `json:"status"`
	Database map[string]string `json:"database"`
	Cache    string            `json:"cache"`
}

func healthHandler(db database.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok", Database: db.Health(), Cache: "disabled"}
		status := http.StatusOK

		if resp.Database["status"] != "up" {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}

		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				// the catalog falls back to the database, so this is not fatal
				resp.Cache = "down"
			} else {
				resp.Cache = "up"
			}
		}

		custommiddleware.RespondWithJSON(w, status, resp)
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
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
