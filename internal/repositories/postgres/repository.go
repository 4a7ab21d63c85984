package postgres

import (
	"context"
	"fmt"

	"github.com/urpt/student-rotation-service/internal/repositories"
	"gorm.io/gorm"
)

type Repository struct {
	db        *gorm.DB
	location  repositories.LocationRepository
	brand     repositories.BrandRepository
	rotation  repositories.RotationRepository
	importRun repositories.ImportRunRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{
		db:        db,
		location:  NewLocationPostgreSQL(db),
		brand:     NewBrandPostgreSQL(db),
		rotation:  NewRotationPostgreSQL(db),
		importRun: NewImportRunPostgreSQL(db),
	}
}

func (r *Repository) Location() repositories.LocationRepository   { return r.location }
func (r *Repository) Brand() repositories.BrandRepository         { return r.brand }
func (r *Repository) Rotation() repositories.RotationRepository   { return r.rotation }
func (r *Repository) ImportRun() repositories.ImportRunRepository { return r.importRun }

func (r *Repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getDB(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}
