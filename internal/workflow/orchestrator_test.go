package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/urpt/student-rotation-service/internal/errors"
	"github.com/urpt/student-rotation-service/internal/events"
	"github.com/urpt/student-rotation-service/internal/importer"
)

type fixture struct {
	orchestrator *Orchestrator
	store        *MemoryStore
	tokens       *TokenIssuer
	executor     *MockExecutor
	recorder     *MockRunRecorder
	publisher    *events.MockEventPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := fixedClock()

	store := NewMemoryStore(time.Hour)
	store.now = clock
	tokens := NewTokenIssuer("test-secret", 30*time.Minute)
	tokens.now = clock

	f := &fixture{
		store:     store,
		tokens:    tokens,
		executor:  new(MockExecutor),
		recorder:  new(MockRunRecorder),
		publisher: events.NewMockEventPublisher(discardLogger()),
	}
	f.orchestrator = NewOrchestrator(Dependencies{
		Store:     store,
		Tokens:    tokens,
		Parser:    importer.NewParser(),
		Validator: importer.NewValidator(directory{}),
		Executor:  f.executor,
		Recorder:  f.recorder,
		Publisher: f.publisher,
		Logger:    discardLogger(),
		Now:       clock,
	})
	return f
}

func (f *fixture) uploaded(t *testing.T, replace bool) *View {
	t.Helper()
	ctx := context.Background()
	begin, err := f.orchestrator.Begin(ctx, recruiter)
	require.NoError(t, err)

	view, err := f.orchestrator.Upload(ctx, recruiter, begin.Handle, upload(begin.Tokens.Upload, replace))
	require.NoError(t, err)
	return view
}

func TestOrchestrator_FullCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	begin, err := f.orchestrator.Begin(ctx, recruiter)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, begin.State)
	assert.NotEmpty(t, begin.Tokens.Upload)
	assert.Empty(t, begin.Tokens.Confirm)
	assert.Nil(t, begin.Preview)

	view, err := f.orchestrator.Upload(ctx, recruiter, begin.Handle, upload(begin.Tokens.Upload, true))
	require.NoError(t, err)
	assert.Equal(t, StateUploaded, view.State)
	require.NotNil(t, view.Preview)
	assert.Equal(t, 3, view.Preview.TotalRows)
	assert.Equal(t, 1, view.Preview.ValidCount)
	assert.Equal(t, 1, view.Preview.WarningCount)
	assert.Equal(t, 1, view.Preview.ErrorCount)
	assert.Equal(t, []importer.DroppedRow{{Number: 5, FieldCount: 3, Expected: 5}}, view.Preview.Dropped)
	assert.Equal(t, "Delete All & Import", view.Preview.ConfirmLabel)
	assert.NotEmpty(t, view.Preview.ModeNotice)
	assert.True(t, view.Preview.IncludeWarningsDefault)
	assert.Equal(t, []string{"Brand mismatch: Location has 'BrandX' but CSV says 'BrandY'"}, view.Preview.Warnings[0].Warnings)
	require.NotEmpty(t, view.Tokens.Confirm)

	result := &importer.Result{
		Created: []importer.CreatedRow{{Row: 2, ID: 10, Title: "Clinic A - 01/15/2025"}, {Row: 3, ID: 11, Title: "Clinic A - 02/15/2025"}},
		Failed:  []importer.FailedRow{},
		Purged:  5,
	}
	f.executor.On("Execute", mock.Anything, mock.MatchedBy(func(rows []importer.ValidatedRow) bool {
		return len(rows) == 2 && rows[0].Row.Number == 2 && rows[1].Row.Number == 3
	}), true, "user-1").Return(result, nil).Once()
	f.recorder.On("RecordRun", mock.Anything, mock.MatchedBy(func(run RunRecord) bool {
		return run.Replace && run.IncludeWarnings && run.Submitted == 2 && run.TotalRows == 3 && run.FileName == "rotations.csv"
	})).Return("run-1", nil).Once()

	confirmed, err := f.orchestrator.Confirm(ctx, recruiter, view.Handle, ConfirmInput{Token: view.Tokens.Confirm, IncludeWarnings: true})
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, confirmed.State)
	require.NotNil(t, confirmed.Result)
	assert.Equal(t, 2, confirmed.Result.CreatedCount)
	assert.Equal(t, 5, confirmed.Result.Purged)
	assert.Nil(t, confirmed.Preview)
	require.NotEmpty(t, confirmed.Tokens.Finish)

	stored, err := f.store.Load(ctx, recruiter.ID, view.Handle)
	require.NoError(t, err)
	assert.Nil(t, stored.Batch, "the batch is discarded once confirmed")

	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 2)
	assert.Equal(t, events.EventRotationsImported, published[0].Type)
	assert.Equal(t, events.EventRotationsPurged, published[1].Type)

	finished, err := f.orchestrator.Finish(ctx, recruiter, view.Handle, confirmed.Tokens.Finish)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, finished.State)
	assert.Equal(t, FinishRedirect, finished.RedirectTo)
	assert.Nil(t, finished.Result)

	_, err = f.store.Load(ctx, recruiter.ID, view.Handle)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	f.executor.AssertExpectations(t)
	f.recorder.AssertExpectations(t)
}

func TestOrchestrator_UploadGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	begin, err := f.orchestrator.Begin(ctx, recruiter)
	require.NoError(t, err)
	handle := begin.Handle

	confirmToken, err := f.tokens.Issue(recruiter.ID, handle, ScopeConfirm)
	require.NoError(t, err)
	otherHandle, err := f.tokens.Issue(recruiter.ID, "6f1c9c1e-5d2b-4b53-9b7e-0f1d7f8e2a11", ScopeUpload)
	require.NoError(t, err)

	tests := []struct {
		name    string
		run     func() (*View, error)
		code    apperrors.Code
		message string
	}{
		{
			name: "missing permission",
			run: func() (*View, error) {
				subscriberToken, _ := f.tokens.Issue(subscriber.ID, handle, ScopeUpload)
				return f.orchestrator.Upload(ctx, subscriber, handle, upload(subscriberToken, false))
			},
			code: apperrors.CodePermissionDenied,
		},
		{
			name: "missing token",
			run: func() (*View, error) {
				return f.orchestrator.Upload(ctx, recruiter, handle, upload("", false))
			},
			code:    apperrors.CodeSecurityCheckFailed,
			message: "Security check failed.",
		},
		{
			name: "token of another scope",
			run: func() (*View, error) {
				return f.orchestrator.Upload(ctx, recruiter, handle, upload(confirmToken, false))
			},
			code: apperrors.CodeSecurityCheckFailed,
		},
		{
			name: "token of another session",
			run: func() (*View, error) {
				return f.orchestrator.Upload(ctx, recruiter, handle, upload(otherHandle, false))
			},
			code: apperrors.CodeSecurityCheckFailed,
		},
		{
			name: "no file",
			run: func() (*View, error) {
				in := upload(begin.Tokens.Upload, false)
				in.File = nil
				return f.orchestrator.Upload(ctx, recruiter, handle, in)
			},
			code:    apperrors.CodeMissingField,
			message: "Please select a CSV file to upload.",
		},
		{
			name: "transport error",
			run: func() (*View, error) {
				in := upload(begin.Tokens.Upload, false)
				in.File = nil
				in.TransportErr = errors.New("unexpected EOF")
				return f.orchestrator.Upload(ctx, recruiter, handle, in)
			},
			code:    apperrors.CodeUploadTransport,
			message: "File upload error: unexpected EOF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := tt.run()
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
			require.NotNil(t, view)
			assert.Equal(t, StateIdle, view.State, "state is unchanged")
			require.NotNil(t, view.Notice)
			if tt.message != "" {
				assert.Equal(t, tt.message, view.Notice.Message)
			}

			stored, err := f.store.Load(ctx, recruiter.ID, handle)
			require.NoError(t, err)
			assert.Equal(t, StateIdle, stored.State)
		})
	}
}

func TestOrchestrator_ConfirmWithoutUploadExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	begin, err := f.orchestrator.Begin(ctx, recruiter)
	require.NoError(t, err)

	token, err := f.tokens.Issue(recruiter.ID, begin.Handle, ScopeConfirm)
	require.NoError(t, err)

	view, err := f.orchestrator.Confirm(ctx, recruiter, begin.Handle, ConfirmInput{Token: token})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionExpired))
	require.NotNil(t, view)
	assert.Equal(t, StateIdle, view.State)
	assert.Equal(t, "Session expired. Please upload the CSV again.", view.Notice.Message)

	stored, err := f.store.Load(ctx, recruiter.ID, begin.Handle)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, stored.State)
	f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_SecondConfirmExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.uploaded(t, false)

	f.executor.On("Execute", mock.Anything, mock.Anything, false, "user-1").
		Return(&importer.Result{Created: []importer.CreatedRow{{Row: 2, ID: 1}}, Failed: []importer.FailedRow{}}, nil).Once()
	f.recorder.On("RecordRun", mock.Anything, mock.Anything).Return("run-1", nil).Once()

	_, err := f.orchestrator.Confirm(ctx, recruiter, view.Handle, ConfirmInput{Token: view.Tokens.Confirm})
	require.NoError(t, err)

	again, err := f.orchestrator.Confirm(ctx, recruiter, view.Handle, ConfirmInput{Token: view.Tokens.Confirm})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeSessionExpired))
	assert.Equal(t, StateIdle, again.State)
	f.executor.AssertNumberOfCalls(t, "Execute", 1)
}

func TestOrchestrator_ConfirmWithoutWarnings(t *testing.T) {
	f := newFixture(t)
	view := f.uploaded(t, false)
	assert.Equal(t, "Confirm Import", view.Preview.ConfirmLabel)

	f.executor.On("Execute", mock.Anything, mock.MatchedBy(func(rows []importer.ValidatedRow) bool {
		return len(rows) == 1 && rows[0].Row.Number == 2
	}), false, "user-1").Return(&importer.Result{Created: []importer.CreatedRow{}, Failed: []importer.FailedRow{}}, nil).Once()
	f.recorder.On("RecordRun", mock.Anything, mock.Anything).Return("", errors.New("audit table missing")).Once()

	confirmed, err := f.orchestrator.Confirm(context.Background(), recruiter, view.Handle, ConfirmInput{Token: view.Tokens.Confirm})
	require.NoError(t, err, "audit failures do not fail the import")
	assert.Equal(t, StateConfirmed, confirmed.State)

	published := f.publisher.GetPublishedEvents()
	require.Len(t, published, 1, "append mode publishes no purge event")
	f.executor.AssertExpectations(t)
}

func TestOrchestrator_ExecutorFailureKeepsBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.uploaded(t, true)

	f.executor.On("Execute", mock.Anything, mock.Anything, true, "user-1").
		Return(nil, errors.New("connection reset")).Once()

	failed, err := f.orchestrator.Confirm(ctx, recruiter, view.Handle, ConfirmInput{Token: view.Tokens.Confirm, IncludeWarnings: true})
	require.Error(t, err)
	assert.Equal(t, StateUploaded, failed.State)
	assert.Equal(t, "The import could not be completed. Please try again.", failed.Notice.Message)

	stored, err := f.store.Load(ctx, recruiter.ID, view.Handle)
	require.NoError(t, err)
	assert.Equal(t, StateUploaded, stored.State)
	assert.NotNil(t, stored.Batch)
	f.recorder.AssertNotCalled(t, "RecordRun", mock.Anything, mock.Anything)
}

func TestOrchestrator_ReuploadReplacesResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.uploaded(t, false)

	f.executor.On("Execute", mock.Anything, mock.Anything, false, "user-1").
		Return(&importer.Result{Created: []importer.CreatedRow{}, Failed: []importer.FailedRow{}}, nil).Once()
	f.recorder.On("RecordRun", mock.Anything, mock.Anything).Return("run-1", nil).Once()

	confirmed, err := f.orchestrator.Confirm(ctx, recruiter, view.Handle, ConfirmInput{Token: view.Tokens.Confirm})
	require.NoError(t, err)

	again, err := f.orchestrator.Upload(ctx, recruiter, view.Handle, upload(confirmed.Tokens.Upload, true))
	require.NoError(t, err)
	assert.Equal(t, StateUploaded, again.State)
	assert.Nil(t, again.Result)
	assert.True(t, again.Preview.ReplaceExisting)

	stored, err := f.store.Load(ctx, recruiter.ID, view.Handle)
	require.NoError(t, err)
	assert.Nil(t, stored.Result)
	assert.True(t, stored.Batch.ReplaceExisting)
}

func TestOrchestrator_NothingToConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	begin, err := f.orchestrator.Begin(ctx, recruiter)
	require.NoError(t, err)

	in := upload(begin.Tokens.Upload, false)
	in.File = strings.NewReader("Location Title,Brand,Rotation Start Date,Rotation End Date,Description\nNowhere,B,01/01/2025,02/01/2025,d\n")
	view, err := f.orchestrator.Upload(ctx, recruiter, begin.Handle, in)
	require.NoError(t, err)

	assert.False(t, view.Preview.CanConfirm)
	assert.Empty(t, view.Tokens.Confirm)
	assert.Equal(t, "No valid rows to import. Please fix the errors and try again.", view.Preview.Message)
}

func TestOrchestrator_ParseFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	begin, err := f.orchestrator.Begin(ctx, recruiter)
	require.NoError(t, err)

	in := upload(begin.Tokens.Upload, false)
	in.File = strings.NewReader("")
	view, err := f.orchestrator.Upload(ctx, recruiter, begin.Handle, in)
	assert.Equal(t, apperrors.CodeInvalidFormat, apperrors.CodeOf(err))
	assert.Equal(t, StateIdle, view.State)
}

func TestOrchestrator_ViewAndPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orchestrator.Begin(ctx, subscriber)
	assert.Equal(t, apperrors.CodePermissionDenied, apperrors.CodeOf(err))

	_, err = f.orchestrator.View(ctx, recruiter, "not-a-handle")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	uploaded := f.uploaded(t, false)
	view, err := f.orchestrator.View(ctx, recruiter, uploaded.Handle)
	require.NoError(t, err)
	assert.Equal(t, StateUploaded, view.State)
	assert.Equal(t, uploaded.Preview, view.Preview)

	// Sessions are scoped to their owner.
	admin := *recruiter
	admin.ID = "user-3"
	other, err := f.orchestrator.View(ctx, &admin, uploaded.Handle)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, other.State)

	require.NoError(t, f.orchestrator.Abandon(ctx, recruiter))
	cleared, err := f.orchestrator.View(ctx, recruiter, uploaded.Handle)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, cleared.State)
}
