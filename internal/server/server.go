// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	_ "toolhub/docs" // swagger docs
	"toolhub/internal/cache"
	"toolhub/internal/config"
	"toolhub/internal/database"
	"toolhub/internal/featureflags"
	"toolhub/internal/middleware"
	"toolhub/internal/models"
	"toolhub/internal/notifications"
	"toolhub/internal/repository"
	"toolhub/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo       repository.UserRepository
	itemRepo       repository.ItemRepository
	collectionRepo repository.CollectionRepository
	requestRepo    repository.BorrowRequestRepository
	reviewRepo     repository.ReviewRepository

	notifier     *notifications.Notifier
	hub          *notifications.Hub
	featureFlags *featureflags.Manager

	catalogService    *service.CatalogService
	collectionService *service.CollectionService
	borrowService     *service.BorrowService
	reviewService     *service.ReviewService
	userService       *service.UserService
	imageService      *service.ImageService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Initialize Redis
	cache.InitRedis(cfg.RedisURL)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and
// optionally performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	itemRepo := repository.NewItemRepository(db)
	collectionRepo := repository.NewCollectionRepository(db)
	requestRepo := repository.NewBorrowRequestRepository(db)
	reviewRepo := repository.NewReviewRepository(db)

	// Initialize Prometheus metrics
	prom := middleware.InitMetrics("toolhub-api")

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: prom,
		userRepo:       userRepo,
		itemRepo:       itemRepo,
		collectionRepo: collectionRepo,
		requestRepo:    requestRepo,
		reviewRepo:     reviewRepo,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	server.catalogService = service.NewCatalogService(itemRepo, requestRepo)
	server.collectionService = service.NewCollectionService(collectionRepo, itemRepo, userRepo)
	server.borrowService = service.NewBorrowService(db, itemRepo, requestRepo, cfg.DefaultLoanDays)
	server.reviewService = service.NewReviewService(reviewRepo, itemRepo, requestRepo)
	server.userService = service.NewUserService(userRepo)
	server.imageService = service.NewImageService(cfg)

	// Initialize notifier and hub if Redis is available
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
	}

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Distributed tracing
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Processed image serving
	app.Get("/media/*", s.ServeImage)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Toolhub Backend Metrics Dashboard",
	}))

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)

	// Public catalog browse. OptionalAuth so the projection can reflect the
	// viewer's own requests when a token is supplied.
	publicItems := api.Group("/items", middleware.OptionalAuth)
	publicItems.Get("/", s.GetItems)
	publicItems.Get("/:id/reviews", s.GetItemReviews)
	publicItems.Get("/:id", s.GetItem)

	// Public collection browse. Anonymous viewers see public collections only.
	publicCollections := api.Group("/collections", middleware.OptionalAuth)
	publicCollections.Get("/", s.GetCollections)
	publicCollections.Get("/:slug", s.GetCollectionBySlug)

	// Protected routes
	protected := api.Group("", middleware.AuthRequired)

	protected.Get("/feature-flags", s.GetFeatureFlags)

	// User routes
	users := protected.Group("/users")
	users.Get("/me", s.GetMyProfile)
	users.Put("/me", s.UpdateMyProfile)
	users.Post("/me/avatar", s.UploadMyAvatar)
	users.Get("/", s.LibrarianRequired(), s.GetAllUsers)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	users.Post("/:id/role", s.LibrarianRequired(), s.SetUserRole)
	users.Get("/:id", s.GetUserProfile)

	// Item command routes (librarian) and borrow entry points (patron)
	items := protected.Group("/items")
	items.Post("/", s.LibrarianRequired(), s.CreateItem)
	items.Post("/:id/request", middleware.RateLimit(
		s.redis, 10, time.Minute, "borrow_request"), s.RequestItem)
	items.Post("/:id/reviews", s.CreateItemReview)
	items.Post("/:id/status", s.LibrarianRequired(), s.SetItemStatus)
	items.Post("/:id/image", s.LibrarianRequired(), s.UploadItemImage)
	items.Get("/:id/history", s.LibrarianRequired(), s.GetItemBorrowHistory)
	items.Put("/:id", s.LibrarianRequired(), s.UpdateItem)
	items.Delete("/:id", s.LibrarianRequired(), s.DeleteItem)

	// Borrow request routes. Specific routes before generic /:id.
	requests := protected.Group("/borrow-requests")
	requests.Get("/me", s.GetMyBorrowRequests)
	requests.Get("/queue", s.LibrarianRequired(), s.GetBorrowQueue)
	requests.Post("/:id/approve", s.LibrarianRequired(), s.ApproveBorrowRequest)
	requests.Post("/:id/deny", s.LibrarianRequired(), s.DenyBorrowRequest)
	requests.Post("/:id/return", s.ReturnBorrowedItem)
	requests.Delete("/:id", s.CancelBorrowRequest)
	requests.Get("/:id", s.GetBorrowRequest)

	// Review deletion (author or librarian; the service decides)
	reviews := protected.Group("/reviews")
	reviews.Delete("/:id", s.DeleteItemReview)

	// Collection command routes. Patrons can create public collections;
	// visibility and membership rules are enforced by the collection service.
	collections := protected.Group("/collections")
	collections.Post("/", s.CreateCollection)
	collections.Post("/:slug/image", s.UploadCollectionImage)
	collections.Put("/:slug", s.UpdateCollection)
	collections.Delete("/:slug", s.DeleteCollection)

	// Websocket endpoint for borrow notifications
	ws := api.Group("/ws", middleware.WebSocketAuthRequired)
	ws.Get("/", s.WebsocketHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// The API runs without Redis, minus caching and live notifications.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"message": "Toolhub",
		"version": "1.0.0",
		"status":  overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// LibrarianRequired returns middleware that rejects non-librarian users with 403.
// Must be placed after AuthRequired so that userID is available in locals.
func (s *Server) LibrarianRequired() fiber.Handler {
	return middleware.RequireLibrarian(s.roleByUserID)
}

func (s *Server) roleByUserID(ctx context.Context, userID uint) (models.Role, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	bodyLimitMB := s.config.ImageMaxUploadSizeMB
	if bodyLimitMB <= 0 {
		bodyLimitMB = service.DefaultImageMaxUploadSizeMB
	}

	app := fiber.New(fiber.Config{
		AppName: "Toolhub Lending API",
		// Image uploads plus some slack for multipart framing.
		BodyLimit: (bodyLimitMB + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	// Wire the notification hub to the Redis subscriber if available
	if s.notifier != nil && s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop all wiring goroutines
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Close WebSocket connections gracefully
	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", s.hub.Name(), err)
		}
	}

	// Close database connection
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
