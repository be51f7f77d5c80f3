package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-enrollment-docs/api/swagger"
	"github.com/noah-isme/sma-enrollment-docs/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-enrollment-docs/internal/middleware"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository"
	"github.com/noah-isme/sma-enrollment-docs/internal/service"
	"github.com/noah-isme/sma-enrollment-docs/pkg/cache"
	"github.com/noah-isme/sma-enrollment-docs/pkg/config"
	"github.com/noah-isme/sma-enrollment-docs/pkg/events"
	"github.com/noah-isme/sma-enrollment-docs/pkg/lock"
	"github.com/noah-isme/sma-enrollment-docs/pkg/logger"
	"github.com/noah-isme/sma-enrollment-docs/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-enrollment-docs/pkg/middleware/requestid"
)

// @title Enrollment Document Verification API
// @version 1.0.0
// @description Document requirements, verification and resubmission lifecycle for school enrollment
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	if needsRedis(cfg) {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close() //nolint:errcheck
		redisClient = client
	}

	store, err := openBackend(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer store.close()

	sinks := []events.Sink{service.NewAuditSink(store.audit), events.NewLogSink(logr)}
	if cfg.Events.PublishToRedis && redisClient != nil {
		sinks = append(sinks, events.NewRedisPublisher(redisClient, cfg.Events.Channel))
	}
	dispatcher := events.NewDispatcher(events.Config{
		Workers:    cfg.Events.Workers,
		BufferSize: cfg.Events.Buffer,
		MaxRetries: cfg.Events.Retries,
		RetryDelay: cfg.Events.RetryDelay,
		Logger:     logr,
		Observer:   metrics,
	}, sinks...)
	dispatcher.Start(ctx)

	var locker lock.Locker = lock.NewLocal(cfg.Lock.Timeout)
	if cfg.Lock.Driver == config.DriverRedis {
		locker = lock.NewRedis(redisClient, lock.RedisConfig{TTL: cfg.Lock.TTL, Timeout: cfg.Lock.Timeout})
	}

	deps := serviceDeps{
		locker:   locker,
		emitter:  service.NewEventEmitter(dispatcher, metrics, logr),
		metrics:  metrics,
		validate: validator.New(),
		logger:   logr,
		requirementOpts: []service.RequirementServiceOption{
			service.WithContinuingEnrollmentType(cfg.Catalog.ContinuingEnrollmentType),
			service.WithRequirementAudit(store.audit),
		},
	}
	if cfg.Catalog.CacheEnabled && redisClient != nil {
		catalogCache := service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Catalog.CacheTTL, logr, true)
		deps.requirementOpts = append(deps.requirementOpts, service.WithCatalogCache(catalogCache, cfg.Catalog.CacheTTL))
	}
	svcs := store.build(deps)

	checks := store.checks
	if redisClient != nil {
		checks = append(checks, handler.DependencyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(cors.New(cfg.CORS))
	r.Use(logger.GinMiddleware(logr))
	r.Use(internalmiddleware.Metrics(metrics))

	handler.Routes{
		Requirements: handler.NewRequirementHandler(svcs.requirements),
		Documents:    handler.NewDocumentHandler(svcs.documents),
		ManualChecks: handler.NewManualCheckHandler(svcs.manual),
		Enrollments:  handler.NewEnrollmentHandler(svcs.workflow, svcs.readiness),
		Metrics:      handler.NewMetricsHandler(metrics, checks...),
	}.Register(r, cfg.APIPrefix, internalmiddleware.JWT(service.NewTokenService(cfg.JWT.Secret)))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Env),
			zap.String("storage", cfg.StorageDriver),
			zap.String("lock", cfg.Lock.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	dispatcher.Stop(shutdownCtx)
	return nil
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Lock.Driver == config.DriverRedis || cfg.Catalog.CacheEnabled || cfg.Events.PublishToRedis
}
