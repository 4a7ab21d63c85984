package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/urpt/student-rotation-service/internal/auth"
	"github.com/urpt/student-rotation-service/internal/cache"
	"github.com/urpt/student-rotation-service/internal/config"
	"github.com/urpt/student-rotation-service/internal/events"
	"github.com/urpt/student-rotation-service/internal/importer"
	"github.com/urpt/student-rotation-service/internal/metrics"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"github.com/urpt/student-rotation-service/internal/repositories/postgres"
	"github.com/urpt/student-rotation-service/internal/services"
	"github.com/urpt/student-rotation-service/internal/utils"
	"github.com/urpt/student-rotation-service/internal/workflow"
	"github.com/urpt/student-rotation-service/pkg"
)

// app holds every long-lived dependency one command needs.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *gorm.DB
	repo      repositories.Repository
	redis     *redis.Client
	publisher events.EventPublisher
	registry  *prometheus.Registry
	parser    *importer.Parser
	services  *services.ServiceManager
	jwt       *auth.JWTService
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := utils.NewLogger(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	a.db, err = pkg.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	a.repo = postgres.NewRepository(a.db)

	store, err := a.workflowStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	encoding, err := importer.ParseEncoding(cfg.Import.Encoding)
	if err != nil {
		a.close()
		return nil, err
	}

	a.publisher, err = cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create event publisher: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.parser = importer.NewParser(importer.WithEncoding(encoding))
	a.services = services.NewServiceManager(a.repo, a.publisher, metrics.NewImportMetrics(a.registry), logger,
		services.ManagerConfig{
			Store:         store,
			Tokens:        workflow.NewTokenIssuer(cfg.Workflow.TokenSecret, cfg.Workflow.TokenTTL),
			Parser:        a.parser,
			Transactional: cfg.Import.Transactional,
		})
	a.jwt = auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer)

	return a, nil
}

func (a *app) workflowStore(ctx context.Context) (workflow.Store, error) {
	if a.cfg.Workflow.Store != "redis" {
		a.logger.Info("Using in-memory workflow store", "ttl", a.cfg.Workflow.TTL)
		return workflow.NewMemoryStore(a.cfg.Workflow.TTL), nil
	}

	client, err := pkg.NewRedisClient(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	a.redis = client
	a.logger.Info("Using redis workflow store", "prefix", a.cfg.Workflow.KeyPrefix, "ttl", a.cfg.Workflow.TTL)
	return workflow.NewRedisStore(cache.NewRedisCache(client, a.logger), a.cfg.Workflow.KeyPrefix, a.cfg.Workflow.TTL), nil
}

func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("Failed to close event publisher", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("Failed to close redis client", "error", err)
		}
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.logger.Error("Failed to close database", "error", err)
		}
	}
}
