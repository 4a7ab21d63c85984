package postgres

import (
	"context"
	"fmt"

	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"gorm.io/gorm"
)

type ImportRunPostgreSQL struct {
	db *gorm.DB
}

func NewImportRunPostgreSQL(db *gorm.DB) repositories.ImportRunRepository {
	return &ImportRunPostgreSQL{db: db}
}

func (i ImportRunPostgreSQL) Create(ctx context.Context, tx *gorm.DB, run *models.ImportRun) error {
	if err := getDB(i.db, tx).WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create import run: %w", err)
	}
	return nil
}

func (i ImportRunPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ImportRun, error) {
	var run models.ImportRun
	if err := getDB(i.db, tx).WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (i ImportRunPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*models.ImportRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*models.ImportRun
	err := getDB(i.db, tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}
