package postgres

import (
	"context"
	"fmt"

	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"gorm.io/gorm"
)

type LocationPostgreSQL struct {
	db *gorm.DB
}

func NewLocationPostgreSQL(db *gorm.DB) repositories.LocationRepository {
	return &LocationPostgreSQL{db: db}
}

// withBrands preloads the brand tags in canonical order
func withBrands(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Brands", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, brand_id ASC")
		}).
		Preload("Brands.Brand")
}

func (l LocationPostgreSQL) Create(ctx context.Context, tx *gorm.DB, location *models.Location) error {
	if err := getDB(l.db, tx).WithContext(ctx).Create(location).Error; err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	return nil
}

func (l LocationPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Location, error) {
	var location models.Location
	if err := withBrands(getDB(l.db, tx).WithContext(ctx)).First(&location, id).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

// FindByTitle returns every location whose title matches exactly
func (l LocationPostgreSQL) FindByTitle(ctx context.Context, tx *gorm.DB, title string) ([]models.Location, error) {
	var locations []models.Location
	err := withBrands(getDB(l.db, tx).WithContext(ctx)).
		Where("title = ?", title).
		Order("id ASC").
		Find(&locations).Error
	if err != nil {
		return nil, err
	}
	return locations, nil
}

func (l LocationPostgreSQL) List(ctx context.Context, tx *gorm.DB) ([]*models.Location, error) {
	var locations []*models.Location
	err := withBrands(getDB(l.db, tx).WithContext(ctx)).
		Order("title ASC").
		Find(&locations).Error
	if err != nil {
		return nil, err
	}
	return locations, nil
}

func (l LocationPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := getDB(l.db, tx).WithContext(ctx).Delete(&models.Location{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
