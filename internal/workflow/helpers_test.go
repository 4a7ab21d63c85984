package workflow

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/urpt/student-rotation-service/internal/cache"
	"github.com/urpt/student-rotation-service/internal/importer"
	"github.com/urpt/student-rotation-service/internal/models"
)

var (
	recruiter  = &models.User{ID: "user-1", FullName: "Rita Recruiter", Role: models.RoleRecruiter}
	subscriber = &models.User{ID: "user-2", FullName: "Sam Subscriber", Role: models.RoleSubscriber}
)

const uploadCSV = "Location Title,Brand,Rotation Start Date,Rotation End Date,Description\n" +
	"Clinic A,BrandX,01/15/2025,03/15/2025,valid row\n" +
	"Clinic A,BrandY,02/15/2025,04/15/2025,brand mismatch\n" +
	"Unknown Clinic,BrandX,01/15/2025,03/15/2025,no location\n" +
	"Clinic A,BrandX,03/01/2025\n"

type directory struct{}

func (directory) FindLocationsByTitle(_ context.Context, title string) ([]models.Location, error) {
	if title != "Clinic A" {
		return nil, nil
	}
	return []models.Location{{
		ID:    1,
		Title: "Clinic A",
		Brands: []models.LocationBrand{
			{LocationID: 1, BrandID: 1, Brand: models.Brand{ID: 1, Name: "BrandX"}},
		},
	}}, nil
}

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, rows []importer.ValidatedRow, replace bool, authorID string) (*importer.Result, error) {
	args := m.Called(ctx, rows, replace, authorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*importer.Result), args.Error(1)
}

type MockRunRecorder struct {
	mock.Mock
}

func (m *MockRunRecorder) RecordRun(ctx context.Context, run RunRecord) (string, error) {
	args := m.Called(ctx, run)
	return args.String(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func upload(token string, replace bool) UploadInput {
	return UploadInput{
		Token:           token,
		File:            strings.NewReader(uploadCSV),
		FileName:        "rotations.csv",
		ReplaceExisting: replace,
	}
}

func fixedClock() func() time.Time {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

// fakeCache is an in-memory cache.CacheService that keeps JSON values.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	raw, ok := c.data[key]
	c.mu.Unlock()
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *fakeCache) Take(ctx context.Context, key string, dest interface{}) error {
	if err := c.Get(ctx, key, dest); err != nil {
		return err
	}
	return c.Delete(ctx, key)
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// DeletePattern matches keys the way Redis SCAN MATCH does for the
// patterns the store builds: "*", "?", "[...]" and backslash escapes.
func (c *fakeCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.data {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return err
		}
		if ok {
			delete(c.data, key)
		}
	}
	return nil
}
