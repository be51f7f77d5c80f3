package main

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-enrollment-docs/internal/handler"
	"github.com/noah-isme/sma-enrollment-docs/internal/models"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository"
	"github.com/noah-isme/sma-enrollment-docs/internal/repository/inmem"
	"github.com/noah-isme/sma-enrollment-docs/internal/service"
	"github.com/noah-isme/sma-enrollment-docs/pkg/config"
	"github.com/noah-isme/sma-enrollment-docs/pkg/database"
	"github.com/noah-isme/sma-enrollment-docs/pkg/lock"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type serviceDeps struct {
	locker          lock.Locker
	emitter         *service.EventEmitter
	metrics         *service.MetricsService
	validate        *validator.Validate
	logger          *zap.Logger
	requirementOpts []service.RequirementServiceOption
}

type services struct {
	requirements *service.RequirementService
	documents    *service.DocumentService
	manual       *service.ManualCheckService
	readiness    *service.ReadinessService
	workflow     *service.EnrollmentWorkflowService
}

// backend is one storage driver. build wires the services over its stores.
type backend struct {
	audit  auditWriter
	build  func(deps serviceDeps) services
	checks []handler.DependencyCheck
	close  func()
}

func openBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*backend, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return memoryBackend(ctx, cfg, logr)
	case config.DriverPostgres, "":
		return postgresBackend(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func postgresBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	requirements := repository.NewRequirementRepository(db)
	documents := repository.NewDocumentRepository(db)
	manual := repository.NewManualCheckRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)

	return &backend{
		audit: repository.NewAuditRepository(db),
		build: func(d serviceDeps) services {
			catalog := service.NewRequirementService(requirements, d.validate, d.logger, d.requirementOpts...)
			readiness := service.NewReadinessService(enrollments, catalog, documents, manual, d.metrics, d.logger)
			return services{
				requirements: catalog,
				documents: service.NewDocumentService(documents, manual, d.locker, d.logger,
					service.WithDocumentEvents(d.emitter), service.WithDocumentMetrics(d.metrics)),
				manual:    service.NewManualCheckService(manual, documents, d.locker, d.emitter, d.metrics, d.logger),
				readiness: readiness,
				workflow:  service.NewEnrollmentWorkflowService(enrollments, readiness, documents, d.emitter, d.metrics, d.logger),
			}
		},
		checks: []handler.DependencyCheck{{Name: "postgres", Check: db.PingContext}},
		close:  func() { _ = db.Close() },
	}, nil
}

func memoryBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*backend, error) {
	db := inmem.NewDB()
	if cfg.SeedFile != "" {
		if err := inmem.LoadSeedFile(ctx, db, cfg.SeedFile); err != nil {
			return nil, err
		}
		logr.Info("memory store seeded", zap.String("file", cfg.SeedFile))
	} else {
		logr.Warn("memory store has no seed file; enrollments must be loaded before use")
	}
	requirements := inmem.NewRequirementStore(db)
	documents := inmem.NewDocumentStore(db)
	manual := inmem.NewManualCheckStore(db)
	enrollments := inmem.NewEnrollmentStore(db)

	return &backend{
		audit: inmem.NewAuditStore(db),
		build: func(d serviceDeps) services {
			catalog := service.NewRequirementService(requirements, d.validate, d.logger, d.requirementOpts...)
			readiness := service.NewReadinessService(enrollments, catalog, documents, manual, d.metrics, d.logger)
			return services{
				requirements: catalog,
				documents: service.NewDocumentService(documents, manual, d.locker, d.logger,
					service.WithDocumentEvents(d.emitter), service.WithDocumentMetrics(d.metrics)),
				manual:    service.NewManualCheckService(manual, documents, d.locker, d.emitter, d.metrics, d.logger),
				readiness: readiness,
				workflow:  service.NewEnrollmentWorkflowService(enrollments, readiness, documents, d.emitter, d.metrics, d.logger),
			}
		},
		close: func() {},
	}, nil
}
