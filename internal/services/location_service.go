package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/urpt/student-rotation-service/internal/events"
	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"github.com/urpt/student-rotation-service/internal/validator"
)

type LocationService interface {
	Locations(ctx context.Context) ([]*models.Location, error)
	Brands(ctx context.Context) ([]*models.Brand, error)
	Create(ctx context.Context, user *models.User, req *CreateLocationRequest) (*models.Location, error)
	Delete(ctx context.Context, user *models.User, id uint) error
}

// CreateLocationRequest lists brands in canonical order: the first one is the
// brand copied onto the location's rotations.
type CreateLocationRequest struct {
	Title     string   `json:"title" validate:"required,max=255"`
	Address   string   `json:"address" validate:"max=500"`
	City      string   `json:"city" validate:"max=100"`
	State     string   `json:"state" validate:"max=50"`
	Latitude  float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Brands    []string `json:"brands" validate:"dive,required,max=255"`
}

type locationService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	validator *validator.Validator
	logger    *slog.Logger
}

func NewLocationService(repo repositories.Repository, publisher events.EventPublisher, v *validator.Validator, logger *slog.Logger) LocationService {
	return &locationService{
		repo:      repo,
		publisher: publisher,
		validator: v,
		logger:    logger,
	}
}

func (s *locationService) Locations(ctx context.Context) ([]*models.Location, error) {
	locations, err := s.repo.Location().List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}

func (s *locationService) Brands(ctx context.Context) ([]*models.Brand, error) {
	brands, err := s.repo.Brand().List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	return brands, nil
}

func (s *locationService) Create(ctx context.Context, user *models.User, req *CreateLocationRequest) (*models.Location, error) {
	if !user.Can(models.CapManageLocations) {
		return nil, NewPermissionError(user.ID, 0, "location", "create", string(models.CapManageLocations))
	}

	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	// Titles are the lookup key of the upload sheet and must stay unambiguous.
	existing, err := s.repo.Location().FindByTitle(ctx, nil, req.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to check location title: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrLocationDuplicateTitle
	}

	location := &models.Location{
		Title:     req.Title,
		Address:   strings.TrimSpace(req.Address),
		City:      strings.TrimSpace(req.City),
		State:     strings.TrimSpace(req.State),
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		seen := make(map[uint]bool)
		for _, name := range req.Brands {
			brand, err := s.repo.Brand().FindOrCreate(ctx, tx, strings.TrimSpace(name))
			if err != nil {
				return err
			}
			if seen[brand.ID] {
				continue
			}
			seen[brand.ID] = true
			location.Brands = append(location.Brands, models.LocationBrand{
				BrandID:  brand.ID,
				Position: len(location.Brands),
				Brand:    *brand,
			})
		}
		return s.repo.Location().Create(ctx, tx, location)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}

	s.logger.Info("Location created", "location_id", location.ID, "title", location.Title, "brands", len(location.Brands))
	return location, nil
}

// Delete removes the location together with every rotation that references it.
func (s *locationService) Delete(ctx context.Context, user *models.User, id uint) error {
	if !user.Can(models.CapManageLocations) {
		return NewPermissionError(user.ID, id, "location", "delete", string(models.CapManageLocations))
	}

	location, err := s.repo.Location().GetByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrLocationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get location: %w", err)
	}

	var removed int64
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		if removed, err = s.repo.Rotation().DeleteByLocation(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Location().Delete(ctx, tx, id)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrLocationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}

	s.logger.Info("Location deleted", "location_id", id, "rotations_removed", removed, "user_id", user.ID)

	if s.publisher != nil {
		event := events.NewLocationRemovedEvent(id, location.Title, int(removed), user.ID)
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("Failed to publish location removed event", "location_id", id, "error", err)
		}
	}
	return nil
}
