package postgres

import (
	"context"
	"strings"

	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"gorm.io/gorm"
)

type BrandPostgreSQL struct {
	db *gorm.DB
}

func NewBrandPostgreSQL(db *gorm.DB) repositories.BrandRepository {
	return &BrandPostgreSQL{db: db}
}

func (b BrandPostgreSQL) List(ctx context.Context, tx *gorm.DB) ([]*models.Brand, error) {
	var brands []*models.Brand
	if err := getDB(b.db, tx).WithContext(ctx).Order("name ASC").Find(&brands).Error; err != nil {
		return nil, err
	}
	return brands, nil
}

func (b BrandPostgreSQL) FindOrCreate(ctx context.Context, tx *gorm.DB, name string) (*models.Brand, error) {
	brand := models.Brand{Name: strings.TrimSpace(name)}
	err := getDB(b.db, tx).WithContext(ctx).
		Where(models.Brand{Name: brand.Name}).
		FirstOrCreate(&brand).Error
	if err != nil {
		return nil, err
	}
	return &brand, nil
}
