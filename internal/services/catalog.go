package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/urpt/student-rotation-service/internal/importer"
	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
)

// Catalog exposes the location and rotation tables to the importer. A Catalog
// returned inside WithinTx is bound to that transaction; nesting WithinTx on it
// opens a savepoint.
type Catalog struct {
	repo repositories.Repository
	tx   *gorm.DB
}

var (
	_ importer.LocationDirectory = (*Catalog)(nil)
	_ importer.RotationWriter    = (*Catalog)(nil)
)

func NewCatalog(repo repositories.Repository) *Catalog {
	return &Catalog{repo: repo}
}

func (c *Catalog) FindLocationsByTitle(ctx context.Context, title string) ([]models.Location, error) {
	return c.repo.Location().FindByTitle(ctx, c.tx, title)
}

// Location returns nil without an error when the location no longer exists.
func (c *Catalog) Location(ctx context.Context, id uint) (*models.Location, error) {
	location, err := c.repo.Location().GetByID(ctx, c.tx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return location, nil
}

func (c *Catalog) PurgeRotations(ctx context.Context) (int, error) {
	n, err := c.repo.Rotation().DeleteAll(ctx, c.tx)
	if err != nil {
		return 0, fmt.Errorf("delete rotations: %w", err)
	}
	return int(n), nil
}

func (c *Catalog) CreateRotation(ctx context.Context, rotation *models.Rotation) error {
	return c.repo.Rotation().Create(ctx, c.tx, rotation)
}

func (c *Catalog) WithinTx(ctx context.Context, fn func(w importer.RotationWriter) error) error {
	if c.tx != nil {
		return c.tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
			return fn(&Catalog{repo: c.repo, tx: sp})
		})
	}
	return c.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		return fn(&Catalog{repo: c.repo, tx: tx})
	})
}
