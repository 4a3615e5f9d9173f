package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/voltventures961/Invoice-app-sub000/internal/application/invoicing"
	domaininvoicing "github.com/voltventures961/Invoice-app-sub000/internal/domain/invoicing"
	"github.com/voltventures961/Invoice-app-sub000/internal/domain/shared"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/auth"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/cache"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/config"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/event"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/logger"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/persistence"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/scheduler"
	"github.com/voltventures961/Invoice-app-sub000/internal/infrastructure/telemetry"
	"github.com/voltventures961/Invoice-app-sub000/internal/interfaces/http/handler"
	"github.com/voltventures961/Invoice-app-sub000/internal/interfaces/http/middleware"
	"github.com/voltventures961/Invoice-app-sub000/internal/interfaces/http/router"
	"go.uber.org/zap"
)

//	@title			Invoice Backend API
//	@version		1.0
//	@description	Invoices, proformas and the payment settlement ledger of a client account
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	metricsExportInterval = 15 * time.Second
	shutdownTimeout       = 30 * time.Second
)

func main() {
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
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()
	tel := cfg.Telemetry

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tel.Enabled,
		CollectorEndpoint: tel.CollectorEndpoint,
		SamplingRatio:     tel.SamplingRatio,
		ServiceName:       tel.ServiceName,
		Insecure:          tel.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tel.Enabled && tel.MetricsEnabled,
		CollectorEndpoint: tel.CollectorEndpoint,
		ExportInterval:    metricsExportInterval,
		ServiceName:       tel.ServiceName,
		Insecure:          tel.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.Config{
		Enabled:           tel.Enabled && tel.LogsEnabled,
		CollectorEndpoint: tel.CollectorEndpoint,
		ServiceName:       tel.ServiceName,
		Insecure:          tel.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.Bridge(log, tel.ServiceName, logger.ParseLevel(cfg.Log.Level))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         tel.Profiling.Enabled,
		ServerAddress:   tel.Profiling.ServerAddress,
		ApplicationName: tel.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if tel.Profiling.SpanProfiles && profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	log.Info("Starting invoice backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         tel.Enabled && tel.DBTraceEnabled,
		LogFullSQL:      tel.DBLogFullSQL,
		SlowQueryThresh: tel.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	checks := map[string]handler.HealthChecker{"database": db}

	// The lock store and the token revocation list share one Redis client
	var (
		locks      shared.LockStore
		revocation auth.RevocationList
	)
	if cfg.Lock.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = client.Close()
		}()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		}
		locks = cache.NewRedisLockStoreWithClient(client, cfg.Lock.KeyPrefix)
		revocation = auth.NewRedisRevocationList(client, cfg.Lock.KeyPrefix+"revoked:")
		checks["redis"] = redisCheck{client}
		log.Info("Using Redis lock store", zap.String("addr", cfg.Redis.Addr()))
	} else {
		locks, err = cache.NewLockStoreFactory(cfg.Lock, cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
		if err != nil {
			log.Fatal("Failed to create lock store", zap.Error(err))
		}
		revocation = auth.NewInMemoryRevocationList()
	}

	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewAuditLogHandler(log))
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	settlementMetrics, err := telemetry.NewSettlementMetrics(meterProvider.Meter())
	if err != nil {
		log.Fatal("Failed to create settlement metrics", zap.Error(err))
	}

	documentRepo := persistence.NewGormDocumentRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	clientRepo := persistence.NewGormClientRepository(db.DB)
	sequenceRepo := persistence.NewGormSequenceRepository(db.DB)
	stockRepo := persistence.NewGormStockItemRepository(db.DB)

	numbering := invoicing.NewNumberingService(sequenceRepo,
		domaininvoicing.SequenceResetPolicy(cfg.Invoicing.SequenceReset), cfg.Invoicing.NumberPadding, log)
	allocator := invoicing.NewPaymentAllocator(paymentRepo, settlementMetrics, log)
	reconciler := invoicing.NewInvoiceReconciler(documentRepo, paymentRepo, bus, settlementMetrics,
		invoicing.RetryPolicy{
			MaxAttempts: cfg.Settlement.ReconcileMaxAttempts,
			Backoff:     cfg.Settlement.ReconcileBackoff,
		}, log)

	settlementCfg := invoicing.DefaultSettlementConfig()
	settlementCfg.ClientLock.TTL = cfg.Settlement.LockTTL
	settlementCfg.ClientLock.Wait = cfg.Settlement.LockWait
	settlementCfg.InflightTTL = cfg.Settlement.InflightTTL
	settlementCfg.ReconcileConcurrency = cfg.Settlement.ReconcileConcurrency
	settlement := invoicing.NewSettlementService(documentRepo, paymentRepo, clientRepo, locks, allocator, reconciler,
		settlementCfg,
		invoicing.WithSettlementLogger(log),
		invoicing.WithSettlementMetrics(settlementMetrics),
		invoicing.WithEventPublisher(bus),
	)
	documentService := invoicing.NewDocumentService(documentRepo, clientRepo, numbering, reconciler, cfg.Invoicing.VATRate, log)
	clientService := invoicing.NewClientService(clientRepo, numbering, log)
	stockService := invoicing.NewStockService(stockRepo, numbering)
	paymentQueries := invoicing.NewPaymentQueryService(paymentRepo)

	stopRecovery := startRecovery(ctx, cfg.Recovery, documentRepo, settlement, log)

	handlers := router.Handlers{
		Clients:   handler.NewClientHandler(clientService, settlement),
		Documents: handler.NewDocumentHandler(documentService),
		Invoices:  handler.NewInvoiceHandler(settlement, paymentQueries),
		Payments:  handler.NewPaymentHandler(paymentQueries, settlement),
		Stock:     handler.NewStockHandler(stockService),
		System:    handler.NewSystemHandler(version, checks),
	}

	engine := router.NewEngine(router.EngineConfig{
		HTTP:           cfg.HTTP,
		Production:     cfg.IsProduction(),
		ServiceName:    tel.ServiceName,
		TracingEnabled: tracerProvider.IsEnabled(),
		Meter:          meterProvider.Meter(),
		Profiling: middleware.ProfilingConfig{
			Enabled:   profiler.IsEnabled(),
			SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
		},
		RequestTimeout: cfg.HTTP.WriteTimeout,
	}, log)
	router.Mount(engine, handlers, authMiddleware(cfg, revocation, log))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	stopRecovery(shutdownCtx)
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not drain", zap.Error(err))
	}
	if err := locks.Close(); err != nil {
		log.Warn("Error closing lock store", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down logger provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// authMiddleware verifies bearer tokens in production. Other environments
// take the owner from the X-User-ID header so the API can be driven without
// an identity provider.
func authMiddleware(cfg *config.Config, revocation auth.RevocationList, log *zap.Logger) gin.HandlerFunc {
	if !cfg.IsProduction() {
		log.Warn("Using X-User-ID header identity; do not expose this instance")
		return middleware.HeaderIdentity()
	}
	verifier := auth.NewTokenVerifier(cfg.JWT, auth.WithRevocationList(revocation))
	jwtCfg := middleware.DefaultJWTConfig(verifier)
	jwtCfg.SkipPaths = append(jwtCfg.SkipPaths, cfg.JWT.SkipPaths...)
	jwtCfg.Logger = log
	return middleware.JWTAuthMiddlewareWithConfig(jwtCfg)
}

type redisCheck struct {
	client redis.UniversalClient
}

func (r redisCheck) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// startRecovery runs the sweep that finishes cancellations whose payment
// release was interrupted. The returned func stops it.
func startRecovery(ctx context.Context, cfg config.RecoveryConfig, documents *persistence.GormDocumentRepository,
	settlement *invoicing.SettlementService, log *zap.Logger) func(context.Context) {
	if !cfg.Enabled {
		log.Info("Recovery sweep disabled")
		return func(context.Context) {}
	}

	pool, err := scheduler.NewScheduler(scheduler.SchedulerConfig{
		MaxConcurrentJobs: cfg.Workers,
		QueueSize:         cfg.BatchSize,
		JobTimeout:        cfg.JobTimeout,
		RetryAttempts:     cfg.RetryAttempts,
		RetryDelay:        cfg.RetryDelay,
	}, scheduler.NewReleaseExecutor(settlement, log), log)
	if err != nil {
		log.Fatal("Invalid recovery configuration", zap.Error(err))
	}
	trigger := scheduler.NewSweepTrigger(scheduler.SweepTriggerConfig{
		Interval:  cfg.Interval,
		BatchSize: cfg.BatchSize,
	}, pool, documents, log)

	if err := pool.Start(ctx); err != nil {
		log.Fatal("Failed to start recovery scheduler", zap.Error(err))
	}
	if err := trigger.Start(ctx); err != nil {
		log.Fatal("Failed to start recovery sweep", zap.Error(err))
	}

	return func(shutdownCtx context.Context) {
		if err := trigger.Stop(shutdownCtx); err != nil {
			log.Warn("Recovery sweep did not stop", zap.Error(err))
		}
		if err := pool.Stop(shutdownCtx); err != nil {
			log.Warn("Recovery scheduler did not stop", zap.Error(err))
		}
	}
}
