package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/urpt/student-rotation-service/internal/importer"
	"github.com/urpt/student-rotation-service/internal/models"
	"github.com/urpt/student-rotation-service/internal/repositories"
	"github.com/urpt/student-rotation-service/internal/services"
	"github.com/urpt/student-rotation-service/internal/utils"
	"github.com/urpt/student-rotation-service/internal/workflow"
)

var (
	adminUser      = &models.User{ID: "admin-1", Role: models.RoleAdministrator}
	recruiterUser  = &models.User{ID: "user-1", Role: models.RoleRecruiter}
	subscriberUser = &models.User{ID: "user-2", Role: models.RoleSubscriber}
)

// staticAuth maps bearer tokens to users.
type staticAuth map[string]*models.User

func (a staticAuth) Authenticate(token string) (*models.User, error) {
	if user, ok := a[token]; ok {
		return user, nil
	}
	return nil, errors.New("unknown token")
}

type directory map[string][]models.Location

func (d directory) FindLocationsByTitle(_ context.Context, title string) ([]models.Location, error) {
	return d[title], nil
}

// recordingExecutor pretends every submitted row was created.
type recordingExecutor struct {
	calls int
	rows  []importer.ValidatedRow
}

func (e *recordingExecutor) Execute(_ context.Context, rows []importer.ValidatedRow, replace bool, _ string) (*importer.Result, error) {
	e.calls++
	e.rows = rows
	result := &importer.Result{Created: []importer.CreatedRow{}, Failed: []importer.FailedRow{}}
	for i, r := range rows {
		result.Created = append(result.Created, importer.CreatedRow{Row: r.Row.Number, ID: uint(i + 1)})
	}
	if replace {
		result.Purged = 3
	}
	return result, nil
}

type MockRotationService struct{ mock.Mock }

func (m *MockRotationService) Search(ctx context.Context, filters repositories.RotationSearchFilters) ([]services.RotationSearchResult, error) {
	args := m.Called(ctx, filters)
	results, _ := args.Get(0).([]services.RotationSearchResult)
	return results, args.Error(1)
}

func (m *MockRotationService) List(ctx context.Context, user *models.User, filters repositories.RotationFilters) (*services.RotationListResponse, error) {
	args := m.Called(ctx, user, filters)
	list, _ := args.Get(0).(*services.RotationListResponse)
	return list, args.Error(1)
}

func (m *MockRotationService) Get(ctx context.Context, user *models.User, id uint) (*models.Rotation, error) {
	args := m.Called(ctx, user, id)
	rotation, _ := args.Get(0).(*models.Rotation)
	return rotation, args.Error(1)
}

func (m *MockRotationService) Create(ctx context.Context, user *models.User, req *services.CreateRotationRequest) (*models.Rotation, error) {
	args := m.Called(ctx, user, req)
	rotation, _ := args.Get(0).(*models.Rotation)
	return rotation, args.Error(1)
}

func (m *MockRotationService) Delete(ctx context.Context, user *models.User, id uint) error {
	return m.Called(ctx, user, id).Error(0)
}

type MockLocationService struct{ mock.Mock }

func (m *MockLocationService) Locations(ctx context.Context) ([]*models.Location, error) {
	args := m.Called(ctx)
	locations, _ := args.Get(0).([]*models.Location)
	return locations, args.Error(1)
}

func (m *MockLocationService) Brands(ctx context.Context) ([]*models.Brand, error) {
	args := m.Called(ctx)
	brands, _ := args.Get(0).([]*models.Brand)
	return brands, args.Error(1)
}

func (m *MockLocationService) Create(ctx context.Context, user *models.User, req *services.CreateLocationRequest) (*models.Location, error) {
	args := m.Called(ctx, user, req)
	location, _ := args.Get(0).(*models.Location)
	return location, args.Error(1)
}

func (m *MockLocationService) Delete(ctx context.Context, user *models.User, id uint) error {
	return m.Called(ctx, user, id).Error(0)
}

type MockImportAudit struct{ mock.Mock }

func (m *MockImportAudit) RecordRun(ctx context.Context, run workflow.RunRecord) (string, error) {
	args := m.Called(ctx, run)
	return args.String(0), args.Error(1)
}

func (m *MockImportAudit) GetRun(ctx context.Context, user *models.User, id string) (*models.ImportRun, error) {
	args := m.Called(ctx, user, id)
	run, _ := args.Get(0).(*models.ImportRun)
	return run, args.Error(1)
}

func (m *MockImportAudit) ListRuns(ctx context.Context, user *models.User, limit int) ([]*models.ImportRun, error) {
	args := m.Called(ctx, user, limit)
	runs, _ := args.Get(0).([]*models.ImportRun)
	return runs, args.Error(1)
}

type testServer struct {
	router    *gin.Engine
	rotations *MockRotationService
	locations *MockLocationService
	audit     *MockImportAudit
	executor  *recordingExecutor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logger := utils.NewSlogLogger(slogger)

	clinic := models.Location{ID: 1, Title: "Clinic A", Brands: []models.LocationBrand{
		{LocationID: 1, BrandID: 1, Brand: models.Brand{ID: 1, Name: "Acme Health"}},
	}}
	ts := &testServer{
		rotations: &MockRotationService{},
		locations: &MockLocationService{},
		audit:     &MockImportAudit{},
		executor:  &recordingExecutor{},
	}
	ts.audit.On("RecordRun", mock.Anything, mock.Anything).Return("run-1", nil).Maybe()

	imports := workflow.NewOrchestrator(workflow.Dependencies{
		Store:     workflow.NewMemoryStore(time.Hour),
		Tokens:    workflow.NewTokenIssuer("test-secret", time.Hour),
		Parser:    importer.NewParser(),
		Validator: importer.NewValidator(directory{"Clinic A": {clinic}}),
		Executor:  ts.executor,
		Recorder:  ts.audit,
		Logger:    slogger,
	})

	sm := &services.ServiceManager{
		Rotation: ts.rotations,
		Location: ts.locations,
		Audit:    ts.audit,
		Imports:  imports,
	}
	auth := staticAuth{"admin": adminUser, "recruiter": recruiterUser, "subscriber": subscriberUser}
	hm := NewHandlerManager(sm, auth, logger, RouterOptions{MaxUploadBytes: 1 << 20})
	ts.router = NewRouter(hm, logger)
	return ts
}

func (ts *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) json(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return ts.do(req, token)
}

func (ts *testServer) form(path, token string, values map[string]string) *httptest.ResponseRecorder {
	form := make([]string, 0, len(values))
	for k, v := range values {
		form = append(form, k+"="+v)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(strings.Join(form, "&")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return ts.do(req, token)
}

// upload posts a multipart form; an empty fileName sends no file part.
func (ts *testServer) upload(t *testing.T, handle, token, csrf, fileName, content string, replace bool) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		part, err := mw.CreateFormFile(uploadField, fileName)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField(tokenField, csrf))
	if replace {
		require.NoError(t, mw.WriteField(replaceField, "1"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/"+handle+"/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return ts.do(req, token)
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) workflow.View {
	t.Helper()
	var view workflow.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view), w.Body.String())
	return view
}

const importCSV = "Location Title,Brand,Rotation Start Date,Rotation End Date,Description\n" +
	"Clinic A,Acme Health,3/1/2025,3/31/2025,Ortho\n" +
	"Clinic A,Other Brand,4/1/2025,4/30/2025,Peds\n" +
	"Clinic Z,Acme Health,5/1/2025,5/31/2025,Cardio\n"
