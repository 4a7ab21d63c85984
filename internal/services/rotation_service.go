package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/urpt/student-rotation-service/internal/importer"
	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"github.com/urpt/student-rotation-service/internal/validator"
)

type RotationService interface {
	Search(ctx context.Context, filters repositories.RotationSearchFilters) ([]RotationSearchResult, error)
	List(ctx context.Context, user *models.User, filters repositories.RotationFilters) (*RotationListResponse, error)
	Get(ctx context.Context, user *models.User, id uint) (*models.Rotation, error)
	Create(ctx context.Context, user *models.User, req *CreateRotationRequest) (*models.Rotation, error)
	Delete(ctx context.Context, user *models.User, id uint) error
}

// CreateRotationRequest is the manual entry form. Dates use the same M/D/YYYY
// format as the upload sheet.
type CreateRotationRequest struct {
	LocationID  uint                  `json:"location_id" validate:"required"`
	StartDate   string                `json:"start_date" validate:"required,us_date"`
	EndDate     string                `json:"end_date" validate:"required,us_date"`
	Description string                `json:"description" validate:"required,max=20000"`
	Eligibility *string               `json:"eligibility" validate:"omitempty,max=20000"`
	Onboarding  *string               `json:"onboarding" validate:"omitempty,max=20000"`
	Status      models.RotationStatus `json:"status" validate:"omitempty,rotation_status"`
}

// RotationSearchResult is one entry of the public search payload.
type RotationSearchResult struct {
	ID           uint    `json:"id"`
	Title        string  `json:"title"`
	LocationName string  `json:"location_name"`
	LocationID   uint    `json:"location_id"`
	Brand        string  `json:"brand"`
	Availability string  `json:"availability"`
	Address      string  `json:"address"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	Description  string  `json:"description"`
	Eligibility  *string `json:"eligibility"`
	Onboarding   *string `json:"onboarding"`
}

type RotationListResponse struct {
	Rotations []*models.Rotation `json:"rotations"`
	Total     int64              `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

type rotationService struct {
	repo      repositories.Repository
	validator *validator.Validator
	logger    *ServiceLogger
}

func NewRotationService(repo repositories.Repository, v *validator.Validator, logger *slog.Logger) RotationService {
	return &rotationService{
		repo:      repo,
		validator: v,
		logger:    NewServiceLogger(logger, "rotation", "rotation_service"),
	}
}

func (s *rotationService) Search(ctx context.Context, filters repositories.RotationSearchFilters) ([]RotationSearchResult, error) {
	rotations, err := s.repo.Rotation().Search(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search rotations: %w", err)
	}

	results := make([]RotationSearchResult, 0, len(rotations))
	for _, r := range rotations {
		result := RotationSearchResult{
			ID:           r.ID,
			Title:        r.Title,
			LocationID:   r.LocationID,
			Brand:        r.Brand,
			Availability: r.Availability,
			Description:  r.Description,
			Eligibility:  r.Eligibility,
			Onboarding:   r.Onboarding,
		}
		if loc := r.Location; loc != nil {
			result.LocationName = loc.Title
			result.Address = loc.Address
			result.City = loc.City
			result.State = loc.State
			result.Lat = loc.Latitude
			result.Lng = loc.Longitude
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *rotationService) List(ctx context.Context, user *models.User, filters repositories.RotationFilters) (*RotationListResponse, error) {
	if !user.Can(models.CapReadRotations) {
		return nil, NewPermissionError(user.ID, 0, "rotation", "list", string(models.CapReadRotations))
	}
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	rotations, total, err := s.repo.Rotation().List(ctx, nil, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list rotations: %w", err)
	}
	return &RotationListResponse{
		Rotations: rotations,
		Total:     total,
		Limit:     filters.Limit,
		Offset:    filters.Offset,
	}, nil
}

func (s *rotationService) Get(ctx context.Context, user *models.User, id uint) (*models.Rotation, error) {
	if !user.Can(models.CapReadRotations) {
		return nil, NewPermissionError(user.ID, id, "rotation", "view", string(models.CapReadRotations))
	}

	rotation, err := s.repo.Rotation().GetByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRotationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation: %w", err)
	}
	return rotation, nil
}

func (s *rotationService) Create(ctx context.Context, user *models.User, req *CreateRotationRequest) (rotation *models.Rotation, err error) {
	start := time.Now()
	defer func() {
		var id uint
		if rotation != nil {
			id = rotation.ID
		}
		s.logger.LogOperation(ctx, "create_rotation", user.ID, id, "rotation", time.Since(start), err)
	}()

	if !user.Can(models.CapPublishRotations) {
		return nil, NewPermissionError(user.ID, 0, "rotation", "create", string(models.CapPublishRotations))
	}

	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	startDate, _ := importer.ParseDate(req.StartDate)
	endDate, _ := importer.ParseDate(req.EndDate)
	if !endDate.After(startDate) {
		return nil, ValidationErrors{}.Add("end_date", ErrRotationDateRange.Error(), req.EndDate)
	}

	location, err := s.repo.Location().GetByID(ctx, nil, req.LocationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	rotation = importer.Derive(importer.Attributes{
		LocationID:    location.ID,
		LocationTitle: location.Title,
		Start:         startDate,
		End:           endDate,
		Description:   req.Description,
		Eligibility:   trimmed(req.Eligibility),
		Onboarding:    trimmed(req.Onboarding),
	}, location)
	rotation.AuthorID = user.ID
	if req.Status != "" {
		rotation.Status = req.Status
	}

	if err := s.repo.Rotation().Create(ctx, nil, rotation); err != nil {
		return nil, err
	}
	return rotation, nil
}

func (s *rotationService) Delete(ctx context.Context, user *models.User, id uint) error {
	if !user.Can(models.CapDeleteRotations) {
		return NewPermissionError(user.ID, id, "rotation", "delete", string(models.CapDeleteRotations))
	}

	err := s.repo.Rotation().Delete(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRotationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete rotation: %w", err)
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
