package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	cartapp "github.com/foodcourt/storefront/internal/application/cart"
	orderapp "github.com/foodcourt/storefront/internal/application/order"
	"github.com/foodcourt/storefront/internal/domain/order"
	"github.com/foodcourt/storefront/internal/infrastructure/auth"
	"github.com/foodcourt/storefront/internal/infrastructure/cache"
	"github.com/foodcourt/storefront/internal/infrastructure/changefeed"
	"github.com/foodcourt/storefront/internal/infrastructure/config"
	"github.com/foodcourt/storefront/internal/infrastructure/event"
	"github.com/foodcourt/storefront/internal/infrastructure/logger"
	"github.com/foodcourt/storefront/internal/infrastructure/payment"
	"github.com/foodcourt/storefront/internal/infrastructure/persistence"
	"github.com/foodcourt/storefront/internal/infrastructure/telemetry"
	"github.com/foodcourt/storefront/internal/interfaces/http/handler"
	"github.com/foodcourt/storefront/internal/interfaces/http/router"
)

const serviceVersion = "1.0.0"

func main() {
	// A missing .env is fine; the environment and config.toml still apply
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("feed", cfg.Feed.Transport),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ==================== Telemetry ====================

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    serviceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    serviceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	metrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("storefront/sync"))
	if err != nil {
		log.Fatal("Failed to register sync metrics", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    serviceVersion,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.Profiling.Enabled,
		ServerAddress:   cfg.Telemetry.Profiling.ServerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileTypes:    cfg.Telemetry.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Telemetry.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}

	// ==================== Storage ====================

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	if cfg.Database.Driver == "sqlite" {
		dbTracing.DBSystem = "sqlite"
	}

	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)),
		persistence.WithTracing(telemetry.NewDBTracingPlugin(dbTracing, log)),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(log); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	cartRepo := persistence.NewGormCartLineRepository(db.DB)

	localCache, err := cache.NewCartCacheFactory(cfg.Redis, cfg.Cart, cache.WithLogger(log)).CreateCache()
	if err != nil {
		log.Fatal("Failed to create cart cache", zap.Error(err))
	}
	defer func() { _ = localCache.Close() }()

	// ==================== Change feed ====================

	feedDeps := changefeed.Dependencies{Logger: log}
	switch cfg.Feed.Transport {
	case changefeed.TransportRedis:
		var client *redis.Client
		client, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis for the change feed", zap.Error(err))
		}
		defer func() { _ = client.Close() }()
		feedDeps.Redis = client
	case changefeed.TransportPostgres:
		sqlDB, err := db.DB.DB()
		if err != nil {
			log.Fatal("Failed to get sql.DB for the change feed", zap.Error(err))
		}
		feedDeps.DB = sqlDB
	}
	transport, err := changefeed.New(cfg, feedDeps)
	if err != nil {
		log.Fatal("Failed to create change feed", zap.Error(err))
	}
	defer func() {
		if err := transport.Close(); err != nil {
			log.Warn("Error closing change feed", zap.Error(err))
		}
	}()
	changes := orderapp.NewChangePublisher(transport, log)

	// ==================== Domain events ====================

	eventBus := event.NewInMemoryEventBus(log)
	statusHandler := orderapp.NewOrderStatusChangedHandler(metrics, log)
	eventBus.Subscribe(statusHandler, statusHandler.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// ==================== Application services ====================

	orderService := orderapp.NewService(orderRepo, orderRepo, changes, log)
	orderService.SetEventPublisher(eventBus)

	var (
		gateway  *payment.HTTPGateway
		payments order.PaymentGateway
	)
	if cfg.Payment.BaseURL != "" {
		gateway, err = payment.NewHTTPGateway(payment.GatewayConfigFromConfig(cfg.Payment))
		if err != nil {
			log.Fatal("Failed to configure payment gateway", zap.Error(err))
		}
		payments = gateway
	} else {
		log.Warn("No payment gateway configured, orders are placed without a payment link")
	}

	checkout := cartapp.NewCheckoutService(orderRepo, cartRepo, payments, changes, log)
	checkout.SetEventPublisher(eventBus)

	var reconciler *orderapp.PaymentReconciler
	if gateway != nil && cfg.Payment.ReconcileEnabled {
		reconciler, err = orderapp.NewPaymentReconciler(orderRepo, gateway, orderService, orderapp.ReconcilerConfig{
			Interval: cfg.Payment.ReconcileInterval,
			MinAge:   cfg.Payment.ReconcileMinAge,
			Batch:    cfg.Payment.ReconcileBatch,
		}, metrics, log)
		if err != nil {
			log.Fatal("Failed to create payment reconciler", zap.Error(err))
		}
		if err := reconciler.Start(ctx); err != nil {
			log.Fatal("Failed to start payment reconciler", zap.Error(err))
		}
	}

	registry, err := cartapp.NewSessionRegistry(localCache, cartRepo, cartapp.RegistryConfig{
		IdleTTL:       cfg.Cart.SessionIdleTTL,
		SweepInterval: cfg.Cart.SessionSweep,
	}, log,
		cartapp.WithDebounceWindow(cfg.Cart.DebounceWindow),
		cartapp.WithRemoteTimeout(cfg.Cart.RemoteOpTimeout),
		cartapp.WithMetrics(metrics),
	)
	if err != nil {
		log.Fatal("Failed to create session registry", zap.Error(err))
	}
	if err := registry.Start(ctx); err != nil {
		log.Fatal("Failed to start session registry", zap.Error(err))
	}

	views := orderapp.NewViewFactory(orderRepo, orderRepo, transport, orderapp.ViewConfig{
		PollInterval: cfg.Order.PollInterval,
	}, log)
	views.SetMetrics(metrics)

	// ==================== HTTP ====================

	streams := handler.NewOrderStreamHandler(views,
		handler.WithStreamLogger(log),
		handler.WithStreamHeartbeat(cfg.HTTP.SSEHeartbeat),
		handler.WithStreamMaxClients(cfg.HTTP.SSEMaxClients),
	)
	handlers := router.Handlers{
		Cart:     handler.NewCartHandler(registry),
		Checkout: handler.NewCheckoutHandler(registry, checkout),
		Orders:   handler.NewOrderHandler(orderService),
		Streams:  streams,
		Health:   handler.NewHealthHandler(db, registry),
	}
	if gateway != nil {
		handlers.Payments = handler.NewPaymentCallbackHandler(gateway, orderService)
	}

	engine, err := router.NewEngine(router.EngineConfigFromConfig(cfg), log)
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	router.RegisterStorefront(r, handlers, auth.NewTokenVerifier(cfg.JWT),
		router.StorefrontConfig{SessionHeader: cfg.HTTP.SessionHeaderName}, log)
	r.Setup()

	// WriteTimeout stays zero: order streams are long-lived responses
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Streams never finish on their own, so they are ended before Shutdown
	// waits for active connections.
	streams.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := registry.Close(shutdownCtx); err != nil {
		log.Warn("Pending cart writes were not flushed", zap.Error(err))
	}
	if reconciler != nil {
		if err := reconciler.Stop(shutdownCtx); err != nil {
			log.Warn("Payment reconciler did not stop cleanly", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler stop failed", zap.Error(err))
	}
	log.Info("Server exited gracefully")
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Logger provider shutdown failed", zap.Error(err))
	}
}
