package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"gorm.io/gorm"
)

type RotationPostgreSQL struct {
	db *gorm.DB
}

func NewRotationPostgreSQL(db *gorm.DB) repositories.RotationRepository {
	return &RotationPostgreSQL{db: db}
}

func (r RotationPostgreSQL) Create(ctx context.Context, tx *gorm.DB, rotation *models.Rotation) error {
	if err := getDB(r.db, tx).WithContext(ctx).Omit("Location").Create(rotation).Error; err != nil {
		return fmt.Errorf("failed to create rotation: %w", err)
	}
	return nil
}

func (r RotationPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Rotation, error) {
	var rotation models.Rotation
	if err := getDB(r.db, tx).WithContext(ctx).Preload("Location").First(&rotation, id).Error; err != nil {
		return nil, err
	}
	return &rotation, nil
}

func (r RotationPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.RotationFilters) ([]*models.Rotation, int64, error) {
	var rotations []*models.Rotation
	var total int64

	query := getDB(r.db, tx).WithContext(ctx).Model(&models.Rotation{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.LocationID != nil {
		query = query.Where("location_id = ?", *filters.LocationID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(rotationOrder(filters.SortBy, filters.SortOrder))
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	if err := query.Preload("Location").Find(&rotations).Error; err != nil {
		return nil, 0, err
	}
	return rotations, total, nil
}

// Search returns published rotations ordered by title
func (r RotationPostgreSQL) Search(ctx context.Context, tx *gorm.DB, filters repositories.RotationSearchFilters) ([]*models.Rotation, error) {
	var rotations []*models.Rotation

	query := getDB(r.db, tx).WithContext(ctx).
		Model(&models.Rotation{}).
		Where("rotations.status = ?", models.RotationPublished)
	if filters.LocationID != nil {
		query = query.Where("rotations.location_id = ?", *filters.LocationID)
	}
	if filters.BrandID != nil {
		query = query.Where("EXISTS (SELECT 1 FROM location_brands lb WHERE lb.location_id = rotations.location_id AND lb.brand_id = ?)", *filters.BrandID)
	}

	err := query.
		Preload("Location").
		Order("rotations.title ASC").
		Find(&rotations).Error
	if err != nil {
		return nil, err
	}
	return rotations, nil
}

func (r RotationPostgreSQL) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	var total int64
	err := getDB(r.db, tx).WithContext(ctx).Model(&models.Rotation{}).Count(&total).Error
	return total, err
}

func (r RotationPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	result := getDB(r.db, tx).WithContext(ctx).Delete(&models.Rotation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r RotationPostgreSQL) DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	result := getDB(r.db, tx).WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Rotation{})
	return result.RowsAffected, result.Error
}

func (r RotationPostgreSQL) DeleteByLocation(ctx context.Context, tx *gorm.DB, locationID uint) (int64, error) {
	result := getDB(r.db, tx).WithContext(ctx).
		Where("location_id = ?", locationID).
		Delete(&models.Rotation{})
	return result.RowsAffected, result.Error
}

func (r RotationPostgreSQL) DeleteStartingBefore(ctx context.Context, tx *gorm.DB, status models.RotationStatus, before time.Time) (int64, error) {
	result := getDB(r.db, tx).WithContext(ctx).
		Where("status = ? AND start_date < ?", status, before).
		Delete(&models.Rotation{})
	return result.RowsAffected, result.Error
}

func rotationOrder(sortBy, sortOrder string) string {
	column := "title"
	switch sortBy {
	case "start_date", "created_at":
		column = sortBy
	}
	direction := "ASC"
	if sortOrder == "desc" {
		direction = "DESC"
	}
	return column + " " + direction
}
