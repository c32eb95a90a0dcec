package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/lorrc/emergency-triage-backend/internal/adapters/primary/http"
	mw "github.com/lorrc/emergency-triage-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/emergency-triage-backend/internal/adapters/primary/websocket"
	"github.com/lorrc/emergency-triage-backend/internal/adapters/secondary/aibridge"
	"github.com/lorrc/emergency-triage-backend/internal/adapters/secondary/postgres"
	"github.com/lorrc/emergency-triage-backend/internal/auth"
	"github.com/lorrc/emergency-triage-backend/internal/config"
	"github.com/lorrc/emergency-triage-backend/internal/core/eventbus"
	"github.com/lorrc/emergency-triage-backend/internal/core/services"
	"github.com/lorrc/emergency-triage-backend/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Run Migrations
	if err := runMigrations(cfg.Database.URL, logger); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// 4. Initialize Database Pool
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 5. Initialize Security Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL)

	// 6. Initialize Rate Limiters
	var generalRateLimiter, authRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})

		authRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.AuthRPS,
			BurstSize:         cfg.RateLimit.AuthBurst,
			CleanupInterval:   time.Minute,
			TTL:               5 * time.Minute,
		})
	}

	// 7. Dependency Injection (Wiring the Hexagon)

	// Error Handler
	errorHandler := httpAdapter.NewErrorHandler(logger)

	// Event Bus
	bus := eventbus.New(logger)

	// Repositories (Secondary Adapters)
	queueRepo := postgres.NewQueueRepository(pool)
	operatorRepo := postgres.NewOperatorRepository(pool)
	callRepo := postgres.NewCallRepository(pool)
	handoffRepo := postgres.NewHandoffRepository(pool)

	// AI Bridge (Secondary Adapter)
	conversationGateway := aibridge.NewClient(cfg.AIBridge, logger)

	// Services (Core)
	queueService := services.NewQueueService(queueRepo, bus, logger)
	operatorService := services.NewOperatorService(operatorRepo, bus, logger)
	callService := services.NewCallService(callRepo, queueService, bus, logger)
	handoffService := services.NewHandoffService(handoffRepo, callRepo, operatorRepo, bus, logger)
	authService := services.NewAuthService(operatorRepo, logger)

	notifier := services.NewContextualNotifier(conversationGateway, services.NotifierConfig{
		MaxAttempts:  cfg.AIBridge.NotifyMaxAttempts,
		InitialDelay: cfg.AIBridge.NotifyInitialBackoff,
		MaxDelay:     cfg.AIBridge.NotifyMaxBackoff,
	}, logger)

	// Registers itself on the bus for OperatorStatusChanged.
	services.NewAvailabilityAnnouncer(queueRepo, notifier, bus, logger)

	// Dashboard Gateway
	hub := websocket.NewHub(queueService, callService, logger)
	hub.AttachTo(bus)
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go hub.Run(hubCtx)

	// Handlers (Primary Adapters)
	authHandler := httpAdapter.NewAuthHandler(authService, tokenManager, errorHandler, logger)
	queueHandler := httpAdapter.NewQueueHandler(queueService, errorHandler, logger)
	operatorHandler := httpAdapter.NewOperatorHandler(operatorService, queueService, errorHandler, logger)
	callHandler := httpAdapter.NewCallHandler(callService, errorHandler, logger)
	handoffHandler := httpAdapter.NewHandoffHandler(handoffService, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, tokenManager, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, cfg.App.Version)

	// 8. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.WebSocket.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if generalRateLimiter != nil {
		r.Use(generalRateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	healthHandler.RegisterRoutes(r)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes with stricter rate limiting
		r.Group(func(r chi.Router) {
			if authRateLimiter != nil {
				r.Use(authRateLimiter.Middleware)
			}
			r.Route("/auth", authHandler.RegisterRoutes)
		})

		// WebSocket route (authentication is handled inside the handler)
		r.Get("/ws", wsHandler.ServeHTTP)

		// Call intake and transcript pushes come from the AI bridge, which
		// authenticates with the same JWT scheme.
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokenManager))
			r.Route("/queue", queueHandler.RegisterRoutes)
			r.Route("/operators", operatorHandler.RegisterRoutes)
			r.Route("/calls", callHandler.RegisterRoutes)
			r.Route("/handoffs", handoffHandler.RegisterRoutes)
			handoffHandler.RegisterTakeControlRoute(r)
		})
	})

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	stopHub()
	logger.Info("server shutdown complete")
}

// runMigrations applies pending schema migrations before the pool opens.
func runMigrations(databaseURL string, logger *slog.Logger) error {
	mig, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		return err
	}
	defer mig.Close()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	logger.Info("migrations up to date")
	return nil
}
