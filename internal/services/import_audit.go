package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"github.com/urpt/student-rotation-service/internal/workflow"
)

// ImportAuditService keeps the import_runs audit trail.
type ImportAuditService interface {
	workflow.RunRecorder
	GetRun(ctx context.Context, user *models.User, id string) (*models.ImportRun, error)
	ListRuns(ctx context.Context, user *models.User, limit int) ([]*models.ImportRun, error)
}

type importAuditService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewImportAuditService(repo repositories.Repository, logger *slog.Logger) ImportAuditService {
	return &importAuditService{repo: repo, logger: logger}
}

const defaultRunLimit = 20

func (s *importAuditService) RecordRun(ctx context.Context, run workflow.RunRecord) (string, error) {
	record, err := newImportRun(run)
	if err != nil {
		return "", err
	}
	if err := s.repo.ImportRun().Create(ctx, nil, record); err != nil {
		return "", fmt.Errorf("failed to record import run: %w", err)
	}

	s.logger.Info("Import run recorded",
		"run_id", record.ID,
		"user_id", record.UserID,
		"status", record.Status,
		"created", record.CreatedCount,
		"failed", record.FailedCount)
	return record.ID, nil
}

func (s *importAuditService) GetRun(ctx context.Context, user *models.User, id string) (*models.ImportRun, error) {
	if !user.Can(models.CapPublishRotations) {
		return nil, NewPermissionError(user.ID, 0, "import_run", "view", string(models.CapPublishRotations))
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrImportRunNotFound
	}

	run, err := s.repo.ImportRun().GetByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrImportRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import run: %w", err)
	}
	// Runs belong to whoever confirmed them; administrators see every run.
	if run.UserID != user.ID && user.Role != models.RoleAdministrator {
		return nil, ErrImportRunNotFound
	}
	return run, nil
}

func (s *importAuditService) ListRuns(ctx context.Context, user *models.User, limit int) ([]*models.ImportRun, error) {
	if !user.Can(models.CapPublishRotations) {
		return nil, NewPermissionError(user.ID, 0, "import_run", "list", string(models.CapPublishRotations))
	}
	if limit <= 0 || limit > 100 {
		limit = defaultRunLimit
	}

	runs, err := s.repo.ImportRun().ListByUser(ctx, nil, user.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list import runs: %w", err)
	}
	return runs, nil
}

func newImportRun(run workflow.RunRecord) (*models.ImportRun, error) {
	mode := models.ImportModeAppend
	if run.Replace {
		mode = models.ImportModeReplace
	}

	record := &models.ImportRun{
		ID:              uuid.NewString(),
		Handle:          run.Handle,
		UserID:          run.UserID,
		FileName:        run.FileName,
		Mode:            mode,
		IncludeWarnings: run.IncludeWarnings,
		TotalRows:       run.TotalRows,
		ImportedRows:    run.Submitted,
		StartedAt:       run.StartedAt,
	}
	if !run.CompletedAt.IsZero() {
		completed := run.CompletedAt
		record.CompletedAt = &completed
	}

	rowErrors := []models.ImportRowError{}
	summary := []byte("[]")
	if run.Result != nil {
		record.CreatedCount = len(run.Result.Created)
		record.FailedCount = len(run.Result.Failed)
		record.PurgedCount = run.Result.Purged

		var err error
		if summary, err = json.Marshal(run.Result.Created); err != nil {
			return nil, fmt.Errorf("encode import summary: %w", err)
		}
		for _, f := range run.Result.Failed {
			rowErrors = append(rowErrors, models.ImportRowError{Row: f.Row, Message: f.Error})
		}
	}

	encoded, err := json.Marshal(rowErrors)
	if err != nil {
		return nil, fmt.Errorf("encode import errors: %w", err)
	}
	record.Summary = datatypes.JSON(summary)
	record.Errors = datatypes.JSON(encoded)
	record.Status = runStatus(record)
	return record, nil
}

func runStatus(run *models.ImportRun) models.ImportRunStatus {
	switch {
	case run.FailedCount == 0:
		return models.ImportCompleted
	case run.CreatedCount > 0:
		return models.ImportPartial
	default:
		return models.ImportFailed
	}
}
