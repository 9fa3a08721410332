package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/tagdesk/api"
	"github.com/benvon/tagdesk/internal/config"
	"github.com/benvon/tagdesk/internal/database"
	"github.com/benvon/tagdesk/internal/handlers"
	"github.com/benvon/tagdesk/internal/importer"
	"github.com/benvon/tagdesk/internal/logger"
	"github.com/benvon/tagdesk/internal/middleware"
	"github.com/benvon/tagdesk/internal/models"
	"github.com/benvon/tagdesk/internal/services/accounts"
	"github.com/benvon/tagdesk/internal/services/oidc"
	"github.com/benvon/tagdesk/internal/session"
	"github.com/benvon/tagdesk/internal/telemetry"
	"github.com/benvon/tagdesk/internal/workspace"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// uploadOverhead covers the multipart framing around the uploaded file.
const uploadOverhead = 64 << 10

func main() {
	// Parse command-line flags
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(debugMode, cfg.LogConsole)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		// Ignore sync errors in production
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("base_url", cfg.BaseURL),
		zap.String("session_store", cfg.SessionStore),
		zap.Int64("max_upload_bytes", cfg.MaxUploadBytes),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	tracing := false
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), telemetry.Options{
				ServiceName: telemetry.ServiceName,
				Endpoint:    cfg.OTELEndpoint,
				Insecure:    cfg.OTELInsecure,
				SampleRatio: cfg.OTELSampleRatio,
			})
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracing = true
				zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), time.Minute)
	applied, err := db.Migrate(migrateCtx)
	migrateCancel()
	if err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	if len(applied) > 0 {
		zapLogger.Info("applied_migrations", zap.Strings("migrations", applied))
	}

	// Background loops stop when the server shuts down
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Session store: Redis in production, process memory for single-instance setups
	var (
		store       session.Store
		redisClient *redis.Client
	)
	switch cfg.SessionStore {
	case config.SessionStoreMemory:
		memory := session.NewMemoryStore()
		go memory.StartPruning(bgCtx, 10*time.Minute)
		store = memory
		zapLogger.Warn("using_in_memory_session_store")
	default:
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = session.Connect(connectCtx, cfg.RedisURL)
		connectCancel()
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		store = session.NewRedisStore(redisClient)
		zapLogger.Info("connected_to_redis")
	}
	defer func() {
		if err := store.Close(); err != nil {
			zapLogger.Warn("failed_to_close_session_store", zap.Error(err))
		}
	}()

	sessions := session.NewManager(store, cfg.SessionTTL, cfg.CookieSecure, zapLogger)

	workspaces := workspace.NewRegistry(cfg.WorkspaceIdleTTL, zapLogger)
	go workspaces.Start(bgCtx)

	parser := importer.NewParser(cfg.MaxUploadBytes)

	// Initialize repositories
	userRepo := database.NewUserRepository(db)
	oidcConfigRepo := database.NewOIDCConfigRepository(db)
	corsConfigRepo := database.NewCorsConfigRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// Initialize services
	var envOIDC *models.OIDCConfig
	if cfg.OIDCFromEnv() {
		envOIDC = &models.OIDCConfig{
			Provider:    cfg.OIDCProvider,
			Issuer:      cfg.OIDCIssuer,
			ClientID:    cfg.OIDCClientID,
			RedirectURI: cfg.OIDCRedirectURI,
		}
		if cfg.OIDCClientSecret != "" {
			secret := cfg.OIDCClientSecret
			envOIDC.ClientSecret = &secret
		}
	}
	oidcProvider := oidc.NewProvider(cfg.OIDCProvider, envOIDC, oidcConfigRepo, oidc.NewHTTPClient(zapLogger), zapLogger)
	passwords := accounts.NewAuthenticator(userRepo)

	// Initialize handlers
	render := handlers.NewRenderer(sessions, zapLogger)
	pageHandler := handlers.NewPageHandler(render, zapLogger)
	authHandler := handlers.NewAuthHandler(render, sessions, oidcProvider, passwords, userRepo, workspaces, zapLogger)
	uploadHandler := handlers.NewUploadHandler(render, workspaces, parser, zapLogger)
	workspaceHandler := handlers.NewWorkspaceHandler(workspaces, parser, zapLogger)
	healthChecker := handlers.NewHealthChecker(map[string]handlers.Pinger{
		"database": db,
		"sessions": handlers.PingFunc(store.Ping),
	}, zapLogger)
	openAPIHandler, err := handlers.NewOpenAPIHandler(api.OpenAPI)
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_document", zap.Error(err))
	}

	// Setup router
	r := mux.NewRouter().UseEncodedPath()
	r.NotFoundHandler = http.HandlerFunc(render.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(render.MethodNotAllowed)

	// Middleware registered first wraps the ones after it
	zapLogger.Info("setting_up_middleware")

	// 0. OpenTelemetry tracing (if enabled)
	if tracing {
		r.Use(telemetry.Middleware(telemetry.ServiceName, "/healthz", "/static/"))
		zapLogger.Info("otel_middleware_enabled")
	}
	// 1. Security headers (should be set on all responses)
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	// 2. CORS (load from DB, hot-reload; fallback to FRONTEND_URL)
	corsReloader := middleware.NewCORSReloader(corsConfigRepo, cfg.FrontendURL, zapLogger, time.Minute)
	r.Use(corsReloader.Middleware)
	// Rate limit middleware (applied selectively to specific routes, not globally)
	rateLimitReloader, err := middleware.NewRateLimitReloader(redisClient, ratelimitConfigRepo, middleware.DefaultRateLimit, zapLogger, time.Minute)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_reloader", zap.Error(err))
	}
	// 3. Request size limits; uploads get the configured file limit and
	// report overflow themselves so the workspace is cleared
	uploadLimit := cfg.MaxUploadBytes + uploadOverhead
	r.Use(middleware.MaxRequestSizeByPath(middleware.DefaultMaxRequestSize,
		middleware.SizeLimit{Prefix: handlers.UploadPath, MaxBytes: uploadLimit, InHandler: true},
		middleware.SizeLimit{Prefix: "/api/v1/workspace/upload", MaxBytes: uploadLimit, InHandler: true},
	))
	// 4. Content-Type validation for POST/PATCH/PUT requests
	r.Use(middleware.ContentType)
	// 5. Request timeout
	r.Use(middleware.Timeout(cfg.RequestTimeout,
		middleware.PathTimeout{Prefix: handlers.UploadPath, Timeout: cfg.UploadTimeout},
		middleware.PathTimeout{Prefix: "/api/v1/workspace/upload", Timeout: cfg.UploadTimeout},
	))
	// 6. Error handler (catches panics)
	r.Use(middleware.ErrorHandler(zapLogger))
	// 7. Audit logging (for security events)
	r.Use(middleware.Audit(zapLogger, handlers.SignInPath))
	// 8. Logging
	r.Use(middleware.Logging(zapLogger))
	// 9. Session load, then the sign-in guard for protected paths
	r.Use(middleware.Sessions(sessions, zapLogger))
	r.Use(middleware.RouteGuard(cfg.ProtectedPaths, handlers.SignInPath))

	// Public routes (no rate limiting for probes and assets)
	r.PathPrefix("/static/").Handler(handlers.StaticHandler())
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", handlers.VersionInfo).Methods("GET")
	openAPIHandler.RegisterRoutes(r)

	// Browser pages
	pageHandler.RegisterRoutes(r)

	signInRouter := r.NewRoute().Subrouter()
	signInRouter.Use(rateLimitReloader.Middleware)
	authHandler.RegisterRoutes(signInRouter)

	uploadRouter := r.PathPrefix(handlers.UploadPath).Subrouter()
	uploadHandler.RegisterRoutes(uploadRouter)

	// API v1 routes
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(rateLimitReloader.Middleware)
	authHandler.RegisterAPIRoutes(apiRouter.PathPrefix("/auth").Subrouter())
	workspaceHandler.RegisterRoutes(apiRouter.PathPrefix("/workspace").Subrouter())

	// Catch-all OPTIONS handler for preflight requests
	// The CORS middleware will handle setting headers before this is called
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Setup server
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   max(cfg.RequestTimeout, cfg.UploadTimeout) + 15*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// CORS and rate limit hot-reload loops
	go corsReloader.Start(bgCtx)
	go rateLimitReloader.Start(bgCtx)

	// Start server in a goroutine
	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	bgCancel()

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
