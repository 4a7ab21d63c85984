package services

import (
	"log/slog"
	"time"

	"github.com/urpt/student-rotation-service/internal/events"
	"github.com/urpt/student-rotation-service/internal/importer"
	"github.com/urpt/student-rotation-service/internal/metrics"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"github.com/urpt/student-rotation-service/internal/validator"
	"github.com/urpt/student-rotation-service/internal/workflow"
)

// ServiceManager owns every service built over one repository.
type ServiceManager struct {
	Rotation RotationService
	Location LocationService
	Audit    ImportAuditService
	Cleanup  *CleanupService
	Imports  *workflow.Orchestrator
	Catalog  *Catalog

	// Validator and Executor are the ones Imports runs; the CLI import uses
	// them directly.
	Validator *importer.Validator
	Executor  *importer.Executor
}

type ManagerConfig struct {
	Store         workflow.Store
	Tokens        *workflow.TokenIssuer
	Parser        *importer.Parser
	Transactional bool
}

func NewServiceManager(
	repo repositories.Repository,
	publisher events.EventPublisher,
	m *metrics.ImportMetrics,
	logger *slog.Logger,
	cfg ManagerConfig,
) *ServiceManager {
	v := validator.New()
	catalog := NewCatalog(repo)
	audit := NewImportAuditService(repo, logger)

	rowValidator := importer.NewValidator(catalog)
	executor := importer.NewExecutor(catalog,
		importer.WithTransactional(cfg.Transactional),
		importer.WithLogger(logger.With("component", "import_executor")))

	imports := workflow.NewOrchestrator(workflow.Dependencies{
		Store:     cfg.Store,
		Tokens:    cfg.Tokens,
		Parser:    cfg.Parser,
		Validator: rowValidator,
		Executor:  executor,
		Recorder:  audit,
		Publisher: publisher,
		Metrics:   m,
		Logger:    logger.With("component", "import_workflow"),
		Now:       time.Now,
	})

	return &ServiceManager{
		Rotation: NewRotationService(repo, v, logger),
		Location: NewLocationService(repo, publisher, v, logger),
		Audit:    audit,
		Cleanup:  NewCleanupService(repo, publisher, m, logger),
		Imports:  imports,
		Catalog:  catalog,

		Validator: rowValidator,
		Executor:  executor,
	}
}
