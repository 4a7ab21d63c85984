package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/urpt/student-rotation-service/internal/models"
)

const sampleHeader = "Location Title,Brand,Rotation Start Date,Rotation End Date,Description,Eligibility Criteria,Onboarding Requirements\n"

func location(id uint, title string, brands ...string) models.Location {
	loc := models.Location{ID: id, Title: title}
	for i, name := range brands {
		loc.Brands = append(loc.Brands, models.LocationBrand{
			LocationID: id,
			BrandID:    uint(100 + i),
			Position:   i,
			Brand:      models.Brand{ID: uint(100 + i), Name: name},
		})
	}
	return loc
}

func sampleRow(number int, title, brand, start, end, description string) Row {
	return Row{
		Number:        number,
		LocationTitle: title,
		Brand:         brand,
		StartDate:     start,
		EndDate:       end,
		Description:   description,
	}
}

func parseRows(t *testing.T, body string) []Row {
	t.Helper()
	parsed, err := NewParser().Parse(strings.NewReader(body), "rotations.csv")
	require.NoError(t, err)
	return parsed.Rows
}

// stubDirectory resolves titles from a fixed slice of locations.
type stubDirectory struct {
	locations []models.Location
}

func (d *stubDirectory) FindLocationsByTitle(_ context.Context, title string) ([]models.Location, error) {
	var matches []models.Location
	for _, loc := range d.locations {
		if loc.Title == title {
			matches = append(matches, loc)
		}
	}
	return matches, nil
}

type MockLocationDirectory struct {
	mock.Mock
}

func (m *MockLocationDirectory) FindLocationsByTitle(ctx context.Context, title string) ([]models.Location, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Location), args.Error(1)
}

// memoryStore is an in-memory rotation table with snapshot transactions.
type memoryStore struct {
	locations map[uint]*models.Location
	rotations []models.Rotation
	nextID    uint

	purgeErr error
	failOn   map[string]error
	onCreate func(r *models.Rotation)
}

func newMemoryStore(locations ...models.Location) *memoryStore {
	s := &memoryStore{
		locations: make(map[uint]*models.Location),
		nextID:    1,
		failOn:    make(map[string]error),
	}
	for i := range locations {
		loc := locations[i]
		s.locations[loc.ID] = &loc
	}
	return s
}

func (s *memoryStore) seed(n int) {
	for i := 0; i < n; i++ {
		s.rotations = append(s.rotations, models.Rotation{ID: s.nextID, Title: "existing", Status: models.RotationDraft})
		s.nextID++
	}
}

func (s *memoryStore) titles() []string {
	titles := make([]string, 0, len(s.rotations))
	for _, r := range s.rotations {
		titles = append(titles, r.Title)
	}
	return titles
}

func (s *memoryStore) writer() *memoryWriter {
	return &memoryWriter{store: s}
}

type memoryWriter struct {
	store *memoryStore
	depth int
}

func (w *memoryWriter) Location(_ context.Context, id uint) (*models.Location, error) {
	loc, ok := w.store.locations[id]
	if !ok {
		return nil, nil
	}
	return loc, nil
}

func (w *memoryWriter) PurgeRotations(_ context.Context) (int, error) {
	if w.store.purgeErr != nil {
		return 0, w.store.purgeErr
	}
	n := len(w.store.rotations)
	w.store.rotations = nil
	return n, nil
}

func (w *memoryWriter) CreateRotation(_ context.Context, rotation *models.Rotation) error {
	if w.store.onCreate != nil {
		w.store.onCreate(rotation)
	}
	if err, ok := w.store.failOn[rotation.Title]; ok {
		return err
	}
	rotation.ID = w.store.nextID
	w.store.nextID++
	w.store.rotations = append(w.store.rotations, *rotation)
	return nil
}

func (w *memoryWriter) WithinTx(_ context.Context, fn func(RotationWriter) error) error {
	snapshot := append([]models.Rotation(nil), w.store.rotations...)
	nextID := w.store.nextID
	if err := fn(&memoryWriter{store: w.store, depth: w.depth + 1}); err != nil {
		w.store.rotations = snapshot
		w.store.nextID = nextID
		return err
	}
	return nil
}

var errSaveFailed = errors.New("could not save rotation")
