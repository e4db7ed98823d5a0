package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/margincraft/backend/docs"
	costingapp "github.com/margincraft/backend/internal/application/costing"
	promotionapp "github.com/margincraft/backend/internal/application/promotion"
	reportapp "github.com/margincraft/backend/internal/application/report"
	"github.com/margincraft/backend/internal/domain/shared/margin"
	"github.com/margincraft/backend/internal/domain/shared/valueobject"
	"github.com/margincraft/backend/internal/infrastructure/auth"
	"github.com/margincraft/backend/internal/infrastructure/cache"
	"github.com/margincraft/backend/internal/infrastructure/config"
	"github.com/margincraft/backend/internal/infrastructure/logger"
	"github.com/margincraft/backend/internal/infrastructure/persistence"
	"github.com/margincraft/backend/internal/infrastructure/printing"
	"github.com/margincraft/backend/internal/infrastructure/storage"
	"github.com/margincraft/backend/internal/infrastructure/telemetry"
	"github.com/margincraft/backend/internal/interfaces/http/handler"
	"github.com/margincraft/backend/internal/interfaces/http/middleware"
	"github.com/margincraft/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//	@title			MarginCraft Backend API
//	@version		1.0
//	@description	Cost attribution and margin analysis API for small-batch producers.

//	@contact.name	API Support
//	@contact.url	https://github.com/margincraft/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting MarginCraft Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Initialize OpenTelemetry providers (tracing, metrics, log export)
	var (
		tracerProvider *telemetry.TracerProvider
		meterProvider  *telemetry.MeterProvider
		loggerProvider *telemetry.LoggerProvider
	)
	if cfg.Telemetry.Enabled {
		tracerProvider, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			SamplingRatio:     cfg.Telemetry.SamplingRatio,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize tracer provider", zap.Error(err))
		}

		meterProvider, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize meter provider", zap.Error(err))
		}

		loggerProvider, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize logger provider", zap.Error(err))
		}

		// Tee application logs to the OTEL collector alongside stdout
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          parseZapLevel(cfg.Log.Level),
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore)

		log.Info("OpenTelemetry initialized",
			zap.String("endpoint", cfg.Telemetry.CollectorEndpoint),
			zap.Float64("sampling_ratio", cfg.Telemetry.SamplingRatio),
		)
	}

	// Continuous profiling (pyroscope)
	var profiler *telemetry.Profiler
	if cfg.Telemetry.ProfilingEnabled {
		profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:             cfg.Telemetry.ProfilingEnabled,
			ServerAddress:       cfg.Telemetry.ProfilingEndpoint,
			ApplicationName:     cfg.Telemetry.ServiceName,
			ProfileCPU:          true,
			ProfileAllocObjects: true,
			ProfileAllocSpace:   true,
			ProfileInuseObjects: true,
			ProfileInuseSpace:   true,
			ProfileGoroutines:   true,
		}, log)
		if err != nil {
			log.Fatal("Failed to start profiler", zap.Error(err))
		}
		defer func() {
			if err := profiler.Stop(); err != nil {
				log.Error("Error stopping profiler", zap.Error(err))
			}
		}()
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Database query tracing and pool metrics
	if cfg.Telemetry.Enabled {
		dbInstr, err := telemetry.InstrumentDB(db.DB, meterProvider, telemetry.DBInstrumentationConfig{
			TraceQueries:       cfg.Telemetry.DBTraceEnabled,
			RecordStatements:   cfg.Telemetry.DBLogFullSQL,
			CollectMetrics:     true,
			SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err != nil {
			log.Fatal("Failed to instrument database", zap.Error(err))
		}
		defer dbInstr.Close()
	}

	// Initialize repositories
	recordRepo := persistence.NewGormPurchaseRecordRepository(db.DB)
	categoryRepo := persistence.NewGormCostCategoryRepository(db.DB)
	promotionRepo := persistence.NewGormPromotionRepository(db.DB)

	// Margin policy from config; falls back to the built-in bands when
	// the configured values do not parse
	policy := marginPolicyFromConfig(cfg.Margin, log)

	// Initialize application services
	recordService := costingapp.NewPurchaseRecordService(recordRepo)
	categoryService := costingapp.NewCategoryService(categoryRepo)
	promotionService := promotionapp.NewService(promotionRepo, policy)
	exportService := reportapp.NewExportService(recordService, promotionService)

	// Export archive storage (S3 compatible)
	if cfg.Storage.Enabled {
		artifactStore, err := storage.NewS3ArtifactStore(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize export archive storage", zap.Error(err))
		}
		if err := artifactStore.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare export archive bucket", zap.Error(err))
		}
		exportService.SetArtifactStore(artifactStore)
		log.Info("Export archive storage enabled", zap.String("bucket", cfg.Storage.Bucket))
	}

	// PDF comparison reports rendered through headless Chrome
	var comparisonReports *reportapp.ComparisonReportService
	if cfg.Report.Enabled {
		renderer, err := printing.NewChromedpRenderer(&printing.ChromedpConfig{
			RenderTimeout: cfg.Report.RenderTimeout,
			RemoteURL:     cfg.Report.ChromeURL,
			NoSandbox:     cfg.Report.NoSandbox,
			Logger:        log,
		})
		if err != nil {
			log.Fatal("Failed to initialize PDF renderer", zap.Error(err))
		}
		defer func() {
			if err := renderer.Close(); err != nil {
				log.Error("Error closing PDF renderer", zap.Error(err))
			}
		}()
		comparisonReports = reportapp.NewComparisonReportService(promotionService, renderer)
		log.Info("PDF report rendering enabled")
	}

	// Snapshot cache (Redis with optional in-memory fallback)
	if cfg.Cache.Enabled {
		cacheFactory := cache.NewSnapshotCacheFactory(cfg.Redis, cfg.Cache.SnapshotTTL,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(cfg.App.Env != "production"),
		)
		snapshotCache, err := cacheFactory.CreateCache()
		if err != nil {
			log.Fatal("Failed to initialize snapshot cache", zap.Error(err))
		}
		recordService.SetSnapshotCache(snapshotCache)
		log.Info("Snapshot cache enabled", zap.Duration("ttl", cfg.Cache.SnapshotTTL))
	}

	// Business metrics: request-time counters plus periodic gauges
	// collected from the database
	var businessMetrics *telemetry.BusinessMetrics
	if meterProvider != nil {
		businessMetrics, err = telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
			Meter:           meterProvider.Meter("margincraft/business"),
			Logger:          log,
			CostingProvider: telemetry.NewGormCostingMetricsProvider(db.DB),
		})
		if err != nil {
			log.Warn("Failed to initialize business metrics", zap.Error(err))
		} else {
			recordService.SetBusinessMetrics(businessMetrics)
			promotionService.SetBusinessMetrics(businessMetrics)
			businessMetrics.StartPeriodicCollection(ctx, telemetry.NewGormCompanyProvider(db.DB), 5*time.Minute)
			defer businessMetrics.Stop()
		}
	}

	// Identity: token verification plus an optional Redis revocation list
	jwtService := auth.NewJWTService(cfg.JWT)
	var tokenBlacklist auth.TokenBlacklist
	if cfg.App.Env == "production" {
		tokenBlacklist, err = auth.NewRedisTokenBlacklist(auth.RedisTokenBlacklistConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect token blacklist", zap.Error(err))
		}
	}

	// Initialize HTTP handlers
	recordHandler := handler.NewPurchaseRecordHandler(recordService)
	categoryHandler := handler.NewCategoryHandler(categoryService)
	promotionHandler := handler.NewPromotionHandler(promotionService)
	exportHandler := handler.NewExportHandler(exportService, comparisonReports)
	systemHandler := handler.NewSystemHandler(db.DB)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Request-scoped observability (only when telemetry is on)
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.SpanErrorMarker())
		engine.Use(middleware.TracingAttributeInjector())
		engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       true,
		}))
	}
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
			Enabled:   true,
			SkipPaths: []string{"/health", "/ready"},
		}))
	}

	// Health and introspection endpoints live outside the API prefix
	router.SystemRoutes{System: systemHandler}.Mount(engine)

	// Swagger documentation endpoint
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Strict token auth in production; in development tokens are
	// optional and the X-Company-ID / X-Device-ID headers identify the
	// caller instead
	if cfg.App.Env == "production" {
		r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
			JWTService:     jwtService,
			TokenBlacklist: tokenBlacklist,
			Logger:         log,
		}))
	} else {
		r.Use(middleware.OptionalJWTAuthMiddleware(jwtService))
	}

	r.Register(router.InvoiceRoutes{Records: recordHandler, Exports: exportHandler}).
		Register(router.CategoryRoutes{Categories: categoryHandler}).
		Register(router.PromotionRoutes{Promotions: promotionHandler, Reports: exportHandler})
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Flush telemetry before exit
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}
	if meterProvider != nil {
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}
	if loggerProvider != nil {
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// marginPolicyFromConfig parses the configured margin band edges. A value
// that does not parse disqualifies the whole set and the default policy
// is used instead, so a typo cannot silently shift one band.
func marginPolicyFromConfig(cfg config.MarginConfig, log *zap.Logger) margin.Policy {
	parse := func(s string) (valueobject.Amount, bool) {
		amount, err := valueobject.NewAmountFromString(s)
		return amount, err == nil
	}

	goodAt, ok1 := parse(cfg.GoodAt)
	betterAt, ok2 := parse(cfg.BetterAt)
	bestAt, ok3 := parse(cfg.BestAt)
	declineBelow, ok4 := parse(cfg.DeclineBelow)
	participateAt, ok5 := parse(cfg.ParticipateAt)
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		log.Warn("Invalid margin policy configuration, using defaults")
		return margin.DefaultPolicy()
	}

	policy, err := margin.NewPolicy(goodAt, betterAt, bestAt, declineBelow, participateAt)
	if err != nil {
		log.Warn("Inconsistent margin policy configuration, using defaults", zap.Error(err))
		return margin.DefaultPolicy()
	}
	return policy
}

func parseZapLevel(level string) zapcore.Level {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return parsed
}
