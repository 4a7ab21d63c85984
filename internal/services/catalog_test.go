package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/urpt/student-rotation-service/internal/importer"
	"github.com/urpt/student-rotation-service/internal/models"
)

func TestCatalog_LocationMissingIsNil(t *testing.T) {
	repo := newMockRepository()
	repo.locations.On("GetByID", mock.Anything, mock.Anything, uint(9)).Return(nil, gorm.ErrRecordNotFound)

	loc, err := NewCatalog(repo).Location(context.Background(), 9)
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestCatalog_LocationError(t *testing.T) {
	repo := newMockRepository()
	boom := errors.New("connection reset")
	repo.locations.On("GetByID", mock.Anything, mock.Anything, uint(9)).Return(nil, boom)

	_, err := NewCatalog(repo).Location(context.Background(), 9)
	assert.ErrorIs(t, err, boom)
}

func TestCatalog_PurgeRotations(t *testing.T) {
	repo := newMockRepository()
	repo.rotations.On("DeleteAll", mock.Anything, mock.Anything).Return(int64(4), nil)

	n, err := NewCatalog(repo).PurgeRotations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCatalog_WithinTxPropagatesError(t *testing.T) {
	repo := newMockRepository()
	repo.On("WithTransaction", mock.Anything).Return(nil)

	failed := errors.New("rollback me")
	err := NewCatalog(repo).WithinTx(context.Background(), func(importer.RotationWriter) error {
		return failed
	})
	assert.ErrorIs(t, err, failed)
}

// The catalog drives the real validator and executor end to end.
func TestCatalog_ImportThroughCatalog(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.On("WithTransaction", mock.Anything).Return(nil)

	loc := clinic(1, "Clinic A", "Acme Health", "Beta Care")
	repo.locations.On("FindByTitle", mock.Anything, mock.Anything, "Clinic A").Return([]models.Location{*loc}, nil)
	repo.locations.On("FindByTitle", mock.Anything, mock.Anything, "Clinic Z").Return([]models.Location{}, nil)
	repo.locations.On("GetByID", mock.Anything, mock.Anything, uint(1)).Return(loc, nil)

	var created []*models.Rotation
	repo.rotations.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*models.Rotation")).
		Run(func(args mock.Arguments) {
			r := args.Get(2).(*models.Rotation)
			r.ID = uint(100 + len(created))
			created = append(created, r)
		}).
		Return(nil)

	catalog := NewCatalog(repo)
	rows := []importer.Row{
		{Number: 2, LocationTitle: "Clinic A", Brand: "Acme Health", StartDate: "3/1/2025", EndDate: "3/31/2025", Description: "Ortho"},
		{Number: 3, LocationTitle: "Clinic Z", StartDate: "3/1/2025", EndDate: "3/31/2025", Description: "Peds"},
	}

	batch, err := importer.NewValidator(catalog).Validate(ctx, rows)
	require.NoError(t, err)
	require.Len(t, batch.Valid, 1)
	require.Len(t, batch.Errors, 1)

	result, err := importer.NewExecutor(catalog, importer.WithLogger(discardLogger())).
		Execute(ctx, batch.Importable(true), false, recruiter.ID)
	require.NoError(t, err)

	require.Len(t, result.Created, 1)
	assert.Equal(t, uint(100), result.Created[0].ID)
	require.Len(t, created, 1)
	assert.Equal(t, "Clinic A - 03/01/2025", created[0].Title)
	assert.Equal(t, "Acme Health", created[0].Brand)
	assert.Equal(t, "March 1, 2025 - March 31, 2025", created[0].Availability)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), created[0].StartDate)
	assert.Equal(t, recruiter.ID, created[0].AuthorID)
	repo.AssertAll(t)
}
