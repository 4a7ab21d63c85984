package repositories

import (
	"context"
	"time"

	"github.com/urpt/student-rotation-service/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

type RotationFilters struct {
	Status     *models.RotationStatus `json:"status"`
	LocationID *uint                  `json:"location_id"`
	Limit      int                    `json:"limit"`
	Offset     int                    `json:"offset"`
	SortBy     string                 `json:"sort_by"`    // "title", "start_date", "created_at"
	SortOrder  string                 `json:"sort_order"` // "asc", "desc"
}

// RotationSearchFilters drive the public search. BrandID matches any brand
// attached to the rotation's location.
type RotationSearchFilters struct {
	LocationID *uint `json:"location"`
	BrandID    *uint `json:"brand"`
}

// Repository groups every repository over one database handle.
type Repository interface {
	Location() LocationRepository
	Brand() BrandRepository
	Rotation() RotationRepository
	ImportRun() ImportRunRepository

	// WithTransaction runs fn in a transaction; repository calls made with
	// the given tx take part in it.
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
	Ping(ctx context.Context) error
	Close() error
}

type LocationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, location *models.Location) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Location, error)
	FindByTitle(ctx context.Context, tx *gorm.DB, title string) ([]models.Location, error)
	List(ctx context.Context, tx *gorm.DB) ([]*models.Location, error)
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
}

type BrandRepository interface {
	List(ctx context.Context, tx *gorm.DB) ([]*models.Brand, error)
	FindOrCreate(ctx context.Context, tx *gorm.DB, name string) (*models.Brand, error)
}

type RotationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, rotation *models.Rotation) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Rotation, error)
	List(ctx context.Context, tx *gorm.DB, filters RotationFilters) ([]*models.Rotation, int64, error)
	Search(ctx context.Context, tx *gorm.DB, filters RotationSearchFilters) ([]*models.Rotation, error)
	Count(ctx context.Context, tx *gorm.DB) (int64, error)

	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	// DeleteAll removes every rotation regardless of status.
	DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error)
	DeleteByLocation(ctx context.Context, tx *gorm.DB, locationID uint) (int64, error)
	DeleteStartingBefore(ctx context.Context, tx *gorm.DB, status models.RotationStatus, before time.Time) (int64, error)
}

type ImportRunRepository interface {
	Create(ctx context.Context, tx *gorm.DB, run *models.ImportRun) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ImportRun, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*models.ImportRun, error)
}
