package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"

	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
)

var (
	admin      = &models.User{ID: "admin-1", FullName: "Ada Admin", Role: models.RoleAdministrator}
	recruiter  = &models.User{ID: "user-1", FullName: "Rita Recruiter", Role: models.RoleRecruiter}
	subscriber = &models.User{ID: "user-2", FullName: "Sam Subscriber", Role: models.RoleSubscriber}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockRepository wires the per-table mocks together. WithTransaction runs fn
// with a nil tx unless an error is configured.
type MockRepository struct {
	mock.Mock
	locations *MockLocationRepository
	brands    *MockBrandRepository
	rotations *MockRotationRepository
	runs      *MockImportRunRepository
}

func newMockRepository() *MockRepository {
	return &MockRepository{
		locations: &MockLocationRepository{},
		brands:    &MockBrandRepository{},
		rotations: &MockRotationRepository{},
		runs:      &MockImportRunRepository{},
	}
}

func (m *MockRepository) Location() repositories.LocationRepository   { return m.locations }
func (m *MockRepository) Brand() repositories.BrandRepository         { return m.brands }
func (m *MockRepository) Rotation() repositories.RotationRepository   { return m.rotations }
func (m *MockRepository) ImportRun() repositories.ImportRunRepository { return m.runs }

func (m *MockRepository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(nil)
}

func (m *MockRepository) Ping(ctx context.Context) error { return nil }
func (m *MockRepository) Close() error                   { return nil }

func (m *MockRepository) AssertAll(t mock.TestingT) {
	m.AssertExpectations(t)
	m.locations.AssertExpectations(t)
	m.brands.AssertExpectations(t)
	m.rotations.AssertExpectations(t)
	m.runs.AssertExpectations(t)
}

type MockLocationRepository struct{ mock.Mock }

func (m *MockLocationRepository) Create(ctx context.Context, tx *gorm.DB, location *models.Location) error {
	return m.Called(ctx, tx, location).Error(0)
}

func (m *MockLocationRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Location, error) {
	args := m.Called(ctx, tx, id)
	location, _ := args.Get(0).(*models.Location)
	return location, args.Error(1)
}

func (m *MockLocationRepository) FindByTitle(ctx context.Context, tx *gorm.DB, title string) ([]models.Location, error) {
	args := m.Called(ctx, tx, title)
	locations, _ := args.Get(0).([]models.Location)
	return locations, args.Error(1)
}

func (m *MockLocationRepository) List(ctx context.Context, tx *gorm.DB) ([]*models.Location, error) {
	args := m.Called(ctx, tx)
	locations, _ := args.Get(0).([]*models.Location)
	return locations, args.Error(1)
}

func (m *MockLocationRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return m.Called(ctx, tx, id).Error(0)
}

type MockBrandRepository struct{ mock.Mock }

func (m *MockBrandRepository) List(ctx context.Context, tx *gorm.DB) ([]*models.Brand, error) {
	args := m.Called(ctx, tx)
	brands, _ := args.Get(0).([]*models.Brand)
	return brands, args.Error(1)
}

func (m *MockBrandRepository) FindOrCreate(ctx context.Context, tx *gorm.DB, name string) (*models.Brand, error) {
	args := m.Called(ctx, tx, name)
	brand, _ := args.Get(0).(*models.Brand)
	return brand, args.Error(1)
}

type MockRotationRepository struct{ mock.Mock }

func (m *MockRotationRepository) Create(ctx context.Context, tx *gorm.DB, rotation *models.Rotation) error {
	return m.Called(ctx, tx, rotation).Error(0)
}

func (m *MockRotationRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Rotation, error) {
	args := m.Called(ctx, tx, id)
	rotation, _ := args.Get(0).(*models.Rotation)
	return rotation, args.Error(1)
}

func (m *MockRotationRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.RotationFilters) ([]*models.Rotation, int64, error) {
	args := m.Called(ctx, tx, filters)
	rotations, _ := args.Get(0).([]*models.Rotation)
	return rotations, args.Get(1).(int64), args.Error(2)
}

func (m *MockRotationRepository) Search(ctx context.Context, tx *gorm.DB, filters repositories.RotationSearchFilters) ([]*models.Rotation, error) {
	args := m.Called(ctx, tx, filters)
	rotations, _ := args.Get(0).([]*models.Rotation)
	return rotations, args.Error(1)
}

func (m *MockRotationRepository) Count(ctx context.Context, tx *gorm.DB) (int64, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRotationRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	return m.Called(ctx, tx, id).Error(0)
}

func (m *MockRotationRepository) DeleteAll(ctx context.Context, tx *gorm.DB) (int64, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRotationRepository) DeleteByLocation(ctx context.Context, tx *gorm.DB, locationID uint) (int64, error) {
	args := m.Called(ctx, tx, locationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRotationRepository) DeleteStartingBefore(ctx context.Context, tx *gorm.DB, status models.RotationStatus, before time.Time) (int64, error) {
	args := m.Called(ctx, tx, status, before)
	return args.Get(0).(int64), args.Error(1)
}

type MockImportRunRepository struct{ mock.Mock }

func (m *MockImportRunRepository) Create(ctx context.Context, tx *gorm.DB, run *models.ImportRun) error {
	return m.Called(ctx, tx, run).Error(0)
}

func (m *MockImportRunRepository) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.ImportRun, error) {
	args := m.Called(ctx, tx, id)
	run, _ := args.Get(0).(*models.ImportRun)
	return run, args.Error(1)
}

func (m *MockImportRunRepository) ListByUser(ctx context.Context, tx *gorm.DB, userID string, limit int) ([]*models.ImportRun, error) {
	args := m.Called(ctx, tx, userID, limit)
	runs, _ := args.Get(0).([]*models.ImportRun)
	return runs, args.Error(1)
}

func clinic(id uint, title string, brands ...string) *models.Location {
	loc := &models.Location{ID: id, Title: title, City: "Austin", State: "TX", Latitude: 30.27, Longitude: -97.74}
	for i, name := range brands {
		loc.Brands = append(loc.Brands, models.LocationBrand{
			LocationID: id,
			BrandID:    uint(i + 1),
			Position:   i,
			Brand:      models.Brand{ID: uint(i + 1), Name: name},
		})
	}
	return loc
}
