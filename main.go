package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Prateekbala/workflow-test/internal/auth"
	"github.com/Prateekbala/workflow-test/internal/cache"
	"github.com/Prateekbala/workflow-test/internal/client"
	"github.com/Prateekbala/workflow-test/internal/config"
	"github.com/Prateekbala/workflow-test/internal/handlers"
	"github.com/Prateekbala/workflow-test/internal/linkstate"
	"github.com/Prateekbala/workflow-test/internal/metrics"
	"github.com/Prateekbala/workflow-test/internal/middleware"
	"github.com/Prateekbala/workflow-test/internal/models"
	"github.com/Prateekbala/workflow-test/internal/services"
	"github.com/Prateekbala/workflow-test/internal/session"
	"github.com/Prateekbala/workflow-test/internal/store"
	"github.com/Prateekbala/workflow-test/internal/templates"
	"github.com/Prateekbala/workflow-test/internal/version"

	"github.com/appleboy/go-httpclient"
	"github.com/appleboy/graceful"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Define flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Usage = printUsage
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		version.PrintVersion()
		os.Exit(0)
	}

	// Check if command is provided
	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Handle subcommands
	switch args[0] {
	case "server":
		runServer()
	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("Usage: %s [OPTIONS] COMMAND\n\n", os.Args[0])
	fmt.Println("FlowMate automation server")
	fmt.Println("\nCommands:")
	fmt.Println("  server    Start the FlowMate server")
	fmt.Println("\nOptions:")
	fmt.Println("  -v, --version    Show version information")
	fmt.Println("  -h, --help       Show this help message")
}

func runServer() {
	// Load configuration
	cfg := config.Load()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize store
	db, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize metrics
	prometheusMetrics := metrics.Init(cfg.MetricsEnabled)
	if cfg.MetricsEnabled {
		log.Println("Prometheus metrics initialized")
	} else {
		log.Println("Metrics disabled (using noop implementation)")
	}

	// Initialize caches
	userCache, gaugeCache, cacheClosers := setupCaches(cfg)

	// Initialize session manager (JWT identity cookie)
	sessionManager := session.NewManager(
		cfg.JWTSecret,
		cfg.BaseURL,
		cfg.SessionMaxAge,
		cfg.IsProduction,
	)

	// Initialize linking state codec
	stateCodec := linkstate.NewCodec(cfg.StateSecret, cfg.StateExpiration)

	// Create HTTP client for OAuth requests
	oauthHTTPClient := createOAuthHTTPClient(cfg)

	// Initialize services
	userService := services.NewUserService(db, userCache, cfg.UserCacheTTL)
	zapService := services.NewZapService(db, prometheusMetrics)

	var linkingService *services.LinkingService
	if cfg.GmailConfigured() {
		gmailProvider := auth.NewGmailLinkProvider(auth.OAuthProviderConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GmailRedirectURL(),
			Scopes:       cfg.GmailScopes,
		})
		linkingService = services.NewLinkingService(
			db,
			gmailProvider,
			stateCodec,
			oauthHTTPClient,
			cfg.TokenFallbackLifetime,
			prometheusMetrics,
		)
		log.Printf("Gmail linking configured: redirect=%s", cfg.GmailRedirectURL())
	} else {
		log.Println("Warning: Gmail linking disabled (GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET missing)")
	}

	// Initialize federated sign-in providers
	oauthProviders := initializeOAuthProviders(cfg)
	logOAuthProvidersStatus(oauthProviders)
	providerInfos := handlers.ProviderInfos(oauthProviders)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, sessionManager, cfg.BaseURL, prometheusMetrics)
	oauthHandler := handlers.NewOAuthHandler(
		oauthProviders,
		userService,
		sessionManager,
		oauthHTTPClient,
		cfg.BaseURL,
		prometheusMetrics,
	)
	zapHandler := handlers.NewZapHandler(zapService)
	pageHandler := handlers.NewPageHandler(zapService)

	// Setup Gin
	setupGinMode(cfg)
	r := gin.New()
	// Setup Prometheus metrics middleware (must be before other routes)
	r.Use(metrics.HTTPMetricsMiddleware(prometheusMetrics))
	r.Use(gin.Logger(), gin.Recovery())

	// HTML templates
	r.SetHTMLTemplate(templates.Load())

	// Setup flow session middleware (OAuth state and CSRF tokens)
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction,     // Require HTTPS in production
		SameSite: http.SameSiteLaxMode, // Lax mode required for OAuth callbacks
	})
	r.Use(sessions.Sessions("flowmate_flow", sessionStore))

	// Serve embedded static files
	staticSubFS, err := templates.StaticFS()
	if err != nil {
		log.Fatalf("Failed to create static sub filesystem: %v", err)
	}
	r.StaticFS("/static", http.FS(staticSubFS))

	// Health check endpoint
	r.GET("/health", createHealthCheckHandler(db))

	// Prometheus metrics endpoint (with optional authentication)
	switch {
	case !cfg.MetricsEnabled:
		log.Printf("Prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Printf("Prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Printf("Prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// Setup rate limiting
	rateLimiters, redisClient := setupRateLimiting(cfg)

	// Public routes
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/dashboard")
	})

	csrf := middleware.CSRFMiddleware()
	r.GET("/sign-in", csrf, func(c *gin.Context) {
		authHandler.SignInPage(c, providerInfos)
	})
	r.POST("/sign-in", rateLimiters.signIn, csrf, func(c *gin.Context) {
		authHandler.SignIn(c, providerInfos)
	})
	r.GET("/sign-up", csrf, authHandler.SignUpPage)
	r.POST("/sign-up", rateLimiters.signUp, csrf, authHandler.SignUp)
	r.GET("/logout", authHandler.Logout)

	// Federated sign-in routes (public)
	setupOAuthRoutes(r, oauthProviders, oauthHandler)

	// Account linking landing pages (public; loaded as browser navigations)
	r.GET("/auth-success", pageHandler.AuthSuccess)
	r.GET("/auth-error", pageHandler.AuthError)

	// JSON auth API (public)
	api := r.Group("/api")
	{
		api.POST("/sign-in", rateLimiters.signIn, authHandler.APISignIn)
		api.POST("/sign-up", rateLimiters.signUp, authHandler.APISignUp)
	}

	// Protected routes (require a valid session)
	protected := r.Group("")
	protected.Use(middleware.RequireAuth(sessionManager))
	{
		protected.GET("/dashboard", pageHandler.Dashboard)

		protected.POST("/api/zaps", zapHandler.CreateZap)
		protected.GET("/api/zaps", zapHandler.ListZaps)
		protected.GET("/api/zaps/token-status", zapHandler.TokenStatus)
	}

	// Gmail linking routes
	if linkingService != nil {
		gmailHandler := handlers.NewGmailHandler(linkingService, prometheusMetrics)
		protected.POST(
			"/api/gmail/request-access",
			rateLimiters.requestAccess,
			gmailHandler.RequestAccess,
		)
		// Callback authenticates via the signed state token, not the session:
		// Google redirects the browser here without our cookies guaranteed.
		r.GET("/api/gmail/callback", gmailHandler.Callback)
	}

	// Start server
	log.Printf("FlowMate server starting on %s", cfg.ServerAddr)
	log.Printf("Base URL: %s", cfg.BaseURL)

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Create graceful manager
	m := graceful.NewManager()

	// Add server as a running job
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})

	// Add shutdown job for HTTP server
	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})

	// Add shutdown job for Redis client (if used)
	if redisClient != nil {
		m.AddShutdownJob(func() error {
			log.Println("Closing Redis connection...")
			if err := redisClient.Close(); err != nil {
				log.Printf("Error closing Redis client: %v", err)
				return err
			}
			log.Println("Redis connection closed")
			return nil
		})
	}

	// Add metrics gauge update job
	if cfg.MetricsEnabled && cfg.MetricsGaugeUpdateEnabled {
		m.AddRunningJob(func(ctx context.Context) error {
			ticker := time.NewTicker(cfg.MetricsGaugeUpdateInterval)
			defer ticker.Stop()

			gauges := metrics.NewGaugeCache(db, gaugeCache)

			// Update immediately on startup
			updateGaugeMetrics(ctx, gauges, prometheusMetrics, cfg.MetricsGaugeUpdateInterval)

			for {
				select {
				case <-ticker.C:
					updateGaugeMetrics(ctx, gauges, prometheusMetrics, cfg.MetricsGaugeUpdateInterval)
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	// Add cache cleanup on shutdown
	for _, closer := range cacheClosers {
		closer := closer
		m.AddShutdownJob(func() error {
			if err := closer(); err != nil {
				log.Printf("Error closing cache: %v", err)
			}
			return nil
		})
	}

	// Wait for graceful shutdown
	<-m.Done()
}

// setupCaches builds the user and gauge caches from configuration.
// Returns closers that must run on shutdown.
func setupCaches(cfg *config.Config) (cache.Cache[models.User], cache.Cache[int64], []func() error) {
	switch cfg.CacheType {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		userCache, err := cache.NewRueidisCache[models.User](
			ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "user:",
		)
		if err != nil {
			log.Fatalf("Failed to initialize redis user cache: %v", err)
		}
		gaugeCache, err := cache.NewRueidisCache[int64](
			ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "gauge:",
		)
		if err != nil {
			log.Fatalf("Failed to initialize redis gauge cache: %v", err)
		}
		log.Printf("Cache: redis (addr=%s, db=%d)", cfg.RedisAddr, cfg.RedisDB)
		return userCache, gaugeCache, []func() error{userCache.Close, gaugeCache.Close}
	default: // memory
		log.Println("Cache: memory (single instance only)")
		return cache.NewMemoryCache[models.User](), cache.NewMemoryCache[int64](), nil
	}
}

// initializeOAuthProviders initializes configured federated sign-in providers
func initializeOAuthProviders(cfg *config.Config) map[string]*auth.OAuthProvider {
	providers := make(map[string]*auth.OAuthProvider)

	// Google OAuth (profile scopes only; Gmail scopes belong to the linking flow)
	if cfg.GoogleClientID != "" && cfg.GoogleClientSecret != "" {
		providers["google"] = auth.NewGoogleProvider(auth.OAuthProviderConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.FederatedRedirectURL("google"),
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
		})
		log.Printf("Google sign-in configured: redirect=%s", cfg.FederatedRedirectURL("google"))
	}

	// GitHub OAuth
	if cfg.GitHubClientID != "" && cfg.GitHubClientSecret != "" {
		providers["github"] = auth.NewGitHubProvider(auth.OAuthProviderConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.FederatedRedirectURL("github"),
			Scopes:       []string{"read:user", "user:email"},
		})
		log.Printf("GitHub sign-in configured: redirect=%s", cfg.FederatedRedirectURL("github"))
	}

	return providers
}

// getProviderNames returns a list of provider names
func getProviderNames(providers map[string]*auth.OAuthProvider) []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}

// logOAuthProvidersStatus logs enabled federated sign-in providers
func logOAuthProvidersStatus(providers map[string]*auth.OAuthProvider) {
	if len(providers) > 0 {
		log.Printf("Federated sign-in providers enabled: %v", getProviderNames(providers))
	}
}

// createOAuthHTTPClient creates an HTTP client for OAuth requests with optimized connection pool
func createOAuthHTTPClient(cfg *config.Config) *http.Client {
	if cfg.OAuthInsecureSkipVerify {
		log.Printf("WARNING: OAuth TLS verification is disabled (OAUTH_INSECURE_SKIP_VERIFY=true)")
	}

	transport := client.CreateOptimizedTransport(cfg.OAuthInsecureSkipVerify)

	httpClient, err := httpclient.NewAuthClient(httpclient.AuthModeNone, "",
		httpclient.WithTimeout(cfg.OAuthTimeout),
		httpclient.WithTransport(transport),
	)
	if err != nil {
		log.Fatalf("Failed to create OAuth HTTP client: %v", err)
	}

	return httpClient
}

// createHealthCheckHandler creates health check endpoint handler
func createHealthCheckHandler(db *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch err := db.Health(); err {
		case nil:
			c.JSON(http.StatusOK, gin.H{
				"status":   "healthy",
				"database": "connected",
			})
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "disconnected",
			})
		}
	}
}

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	signIn        gin.HandlerFunc
	signUp        gin.HandlerFunc
	requestAccess gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration.
// Returns rate limit middlewares and optional Redis client (needs cleanup on shutdown).
func setupRateLimiting(cfg *config.Config) (rateLimitMiddlewares, *redis.Client) {
	noOpMiddleware := func(c *gin.Context) { c.Next() }
	disabledLimiters := rateLimitMiddlewares{
		signIn:        noOpMiddleware,
		signUp:        noOpMiddleware,
		requestAccess: noOpMiddleware,
	}

	if !cfg.EnableRateLimit {
		return disabledLimiters, nil
	}

	log.Printf("Rate limiting enabled (store: %s)", cfg.RateLimitStore)

	storeType := middleware.RateLimitStoreType(cfg.RateLimitStore)
	var sharedRedisClient *redis.Client

	// Create shared Redis client for all limiters when using Redis store
	if storeType == middleware.RateLimitStoreRedis {
		var err error
		sharedRedisClient, err = middleware.CreateRedisClient(
			cfg.RedisAddr,
			cfg.RedisPassword,
			cfg.RedisDB,
		)
		if err != nil {
			log.Fatalf("Failed to create shared Redis client: %v", err)
		}
		log.Printf("Redis rate limiting configured: %s (DB: %d)", cfg.RedisAddr, cfg.RedisDB)
	} else {
		log.Printf("In-memory rate limiting configured (single instance only)")
	}

	createLimiter := func(requestsPerMinute int, endpoint string) gin.HandlerFunc {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			StoreType:         storeType,
			RedisClient:       sharedRedisClient, // Shared client (nil for memory store)
			RedisAddr:         cfg.RedisAddr,
			RedisPassword:     cfg.RedisPassword,
			RedisDB:           cfg.RedisDB,
			CleanupInterval:   cfg.RateLimitCleanupInterval,
		})
		if err != nil {
			log.Fatalf("Failed to create rate limiter for %s: %v", endpoint, err)
		}
		return limiter
	}

	return rateLimitMiddlewares{
		signIn:        createLimiter(cfg.SignInRateLimit, "/sign-in"),
		signUp:        createLimiter(cfg.SignUpRateLimit, "/sign-up"),
		requestAccess: createLimiter(cfg.RequestAccessRateLimit, "/api/gmail/request-access"),
	}, sharedRedisClient
}

// setupOAuthRoutes configures federated sign-in routes
func setupOAuthRoutes(
	r *gin.Engine,
	providers map[string]*auth.OAuthProvider,
	handler *handlers.OAuthHandler,
) {
	if len(providers) == 0 {
		return
	}
	oauthGroup := r.Group("/auth")
	oauthGroup.GET("/login/:provider", handler.LoginWithProvider)
	oauthGroup.GET("/callback/:provider", handler.OAuthCallback)
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config) {
	mode := ginModeMap[cfg.IsProduction]
	gin.SetMode(mode)
	log.Printf("Gin mode: %s", ginModeLogMessage[cfg.IsProduction])
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

var ginModeLogMessage = map[bool]string{
	true:  "Release (production)",
	false: "Debug (development)",
}

// errorLogger handles rate-limited error logging
type errorLogger struct {
	lastErrorTimes  map[string]time.Time
	rateLimitWindow time.Duration
}

func newErrorLogger() *errorLogger {
	return &errorLogger{
		lastErrorTimes:  make(map[string]time.Time),
		rateLimitWindow: 5 * time.Minute, // Log at most once per 5 minutes per operation
	}
}

// logIfNeeded logs an error only if rate limit allows
func (e *errorLogger) logIfNeeded(operation string, err error) {
	now := time.Now()
	lastTime, exists := e.lastErrorTimes[operation]

	if !exists || now.Sub(lastTime) >= e.rateLimitWindow {
		log.Printf("Database query failed for %s: %v (further errors will be suppressed for %v)",
			operation, err, e.rateLimitWindow)
		e.lastErrorTimes[operation] = now
	}
}

var gaugeErrorLogger = newErrorLogger()

// updateGaugeMetrics refreshes gauge metrics from cached database counts.
// The cache TTL matches the update interval so each tick serves at most one
// live query per gauge across instances.
func updateGaugeMetrics(
	ctx context.Context,
	gauges *metrics.GaugeCache,
	m metrics.Recorder,
	cacheTTL time.Duration,
) {
	draftZaps, err := gauges.ZapCount(ctx, models.ZapStatusDraft, cacheTTL)
	if err != nil {
		m.RecordDatabaseQueryError("count_draft_zaps")
		gaugeErrorLogger.logIfNeeded("count_draft_zaps", err)
		draftZaps = 0
	}

	activeZaps, err := gauges.ZapCount(ctx, models.ZapStatusActive, cacheTTL)
	if err != nil {
		m.RecordDatabaseQueryError("count_active_zaps")
		gaugeErrorLogger.logIfNeeded("count_active_zaps", err)
		activeZaps = 0
	}

	m.SetZapCounts(int(draftZaps), int(activeZaps))

	linkedTokens, err := gauges.LinkedTokenCount(ctx, cacheTTL)
	if err != nil {
		m.RecordDatabaseQueryError("count_linked_tokens")
		gaugeErrorLogger.logIfNeeded("count_linked_tokens", err)
	} else {
		m.SetLinkedTokensCount(int(linkedTokens))
	}
}
