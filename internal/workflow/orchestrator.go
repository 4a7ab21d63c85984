package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/urpt/student-rotation-service/internal/errors"
	"github.com/urpt/student-rotation-service/internal/events"
	"github.com/urpt/student-rotation-service/internal/importer"
	"github.com/urpt/student-rotation-service/internal/metrics"
	"github.com/urpt/student-rotation-service/internal/models"
)

// FinishRedirect is where a client goes after finishing an import.
const FinishRedirect = "/api/v1/rotations"

const (
	msgNoFile         = "Please select a CSV file to upload."
	msgSessionExpired = "Session expired. Please upload the CSV again."
	msgNoPermission   = "You do not have permission to import student rotations."
	msgUnknownSession = "Import session not found."
	msgInternal       = "The import could not be completed. Please try again."
)

type BatchValidator interface {
	Validate(ctx context.Context, rows []importer.Row) (*importer.Batch, error)
}

type BatchExecutor interface {
	Execute(ctx context.Context, rows []importer.ValidatedRow, replace bool, authorID string) (*importer.Result, error)
}

// RunRecord describes one confirmed import for the audit trail.
type RunRecord struct {
	Handle          string
	UserID          string
	FileName        string
	Replace         bool
	IncludeWarnings bool
	TotalRows       int
	Submitted       int
	Result          *importer.Result
	StartedAt       time.Time
	CompletedAt     time.Time
}

// RunRecorder persists RunRecords and returns the run id.
type RunRecorder interface {
	RecordRun(ctx context.Context, run RunRecord) (string, error)
}

type Dependencies struct {
	Store     Store
	Tokens    *TokenIssuer
	Parser    *importer.Parser
	Validator BatchValidator
	Executor  BatchExecutor
	Recorder  RunRecorder
	Publisher events.EventPublisher
	Metrics   *metrics.ImportMetrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// UploadInput is one upload submission. TransportErr carries a failure to
// receive the file; File is nil when no file was sent.
type UploadInput struct {
	Token           string
	File            io.Reader
	FileName        string
	ReplaceExisting bool
	TransportErr    error
}

type ConfirmInput struct {
	Token           string
	IncludeWarnings bool
}

type Orchestrator struct {
	store     Store
	tokens    *TokenIssuer
	parser    *importer.Parser
	validator BatchValidator
	executor  BatchExecutor
	recorder  RunRecorder
	publisher events.EventPublisher
	metrics   *metrics.ImportMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		store:     deps.Store,
		tokens:    deps.Tokens,
		parser:    deps.Parser,
		validator: deps.Validator,
		executor:  deps.Executor,
		recorder:  deps.Recorder,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
	}
	if o.parser == nil {
		o.parser = importer.NewParser()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Begin opens a new import session in the idle state.
func (o *Orchestrator) Begin(ctx context.Context, user *models.User) (*View, error) {
	if !canImport(user) {
		return nil, apperrors.New(apperrors.CodePermissionDenied, msgNoPermission)
	}

	session := newIdleSession(user.ID, uuid.NewString(), o.now())
	if err := o.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save workflow session: %w", err)
	}
	o.logger.InfoContext(ctx, "Import session started", "handle", session.Handle, "user_id", user.ID)
	return o.render(session)
}

// View renders the current state of handle. A missing or expired session
// renders as idle.
func (o *Orchestrator) View(ctx context.Context, user *models.User, handle string) (*View, error) {
	if !canImport(user) {
		return nil, apperrors.New(apperrors.CodePermissionDenied, msgNoPermission)
	}
	session, err := o.current(ctx, user, handle)
	if err != nil {
		return nil, err
	}
	return o.render(session)
}

// Upload parses and validates a file and moves the session to uploaded,
// replacing any batch or result already stored.
func (o *Orchestrator) Upload(ctx context.Context, user *models.User, handle string, in UploadInput) (*View, error) {
	defer o.metrics.ObserveStep("upload", o.now())

	session, err := o.current(ctx, user, handle)
	if err != nil {
		return nil, err
	}

	if !canImport(user) {
		return o.rejectUpload(ctx, session, apperrors.New(apperrors.CodePermissionDenied, msgNoPermission))
	}
	if err := o.tokens.Verify(in.Token, user.ID, handle, ScopeUpload); err != nil {
		return o.rejectUpload(ctx, session, err)
	}
	if in.TransportErr != nil {
		return o.rejectUpload(ctx, session, apperrors.Wrap(apperrors.CodeUploadTransport,
			"File upload error: "+in.TransportErr.Error(), in.TransportErr))
	}
	if in.File == nil {
		return o.rejectUpload(ctx, session, apperrors.New(apperrors.CodeMissingField, msgNoFile))
	}

	parsed, err := o.parser.Parse(in.File, in.FileName)
	if err != nil {
		return o.rejectUpload(ctx, session, err)
	}

	batch, err := o.validator.Validate(ctx, parsed.Rows)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to validate import", "handle", handle, "error", err)
		return o.rejectUpload(ctx, session, err)
	}
	batch.FileName = in.FileName
	batch.ReplaceExisting = in.ReplaceExisting
	batch.TotalRows = parsed.Total
	batch.Dropped = parsed.Dropped
	batch.MissingColumns = parsed.MissingColumns()

	uploaded := &Session{
		Handle:    handle,
		Owner:     user.ID,
		State:     StateUploaded,
		Batch:     batch,
		UpdatedAt: o.now(),
	}
	if err := o.store.Save(ctx, uploaded); err != nil {
		return nil, fmt.Errorf("save workflow session: %w", err)
	}

	o.metrics.Upload(metrics.OutcomeAccepted)
	o.metrics.Buckets(len(batch.Valid), len(batch.Warnings), len(batch.Errors))
	o.logger.InfoContext(ctx, "Import file validated",
		"handle", handle,
		"user_id", user.ID,
		"file_name", in.FileName,
		"replace", in.ReplaceExisting,
		"valid", len(batch.Valid),
		"warnings", len(batch.Warnings),
		"errors", len(batch.Errors),
		"dropped", len(batch.Dropped))

	return o.render(uploaded)
}

// Confirm executes the uploaded batch and moves the session to confirmed.
func (o *Orchestrator) Confirm(ctx context.Context, user *models.User, handle string, in ConfirmInput) (*View, error) {
	defer o.metrics.ObserveStep("confirm", o.now())

	current, err := o.current(ctx, user, handle)
	if err != nil {
		return nil, err
	}
	if !canImport(user) {
		return o.reject(current, apperrors.New(apperrors.CodePermissionDenied, msgNoPermission))
	}
	if err := o.tokens.Verify(in.Token, user.ID, handle, ScopeConfirm); err != nil {
		return o.reject(current, err)
	}

	session, err := o.store.Take(ctx, user.ID, handle)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return nil, fmt.Errorf("take workflow session: %w", err)
	}
	if session == nil || session.State != StateUploaded || session.Batch == nil {
		idle := newIdleSession(user.ID, handle, o.now())
		if err := o.store.Save(ctx, idle); err != nil {
			return nil, fmt.Errorf("reset workflow session: %w", err)
		}
		o.logger.WarnContext(ctx, "Confirm without uploaded batch", "handle", handle, "user_id", user.ID)
		return o.reject(idle, apperrors.New(apperrors.CodeSessionExpired, msgSessionExpired))
	}

	batch := session.Batch
	rows := batch.Importable(in.IncludeWarnings)
	startedAt := o.now()

	result, err := o.executor.Execute(ctx, rows, batch.ReplaceExisting, user.ID)
	if err != nil {
		o.logger.ErrorContext(ctx, "Import execution failed", "handle", handle, "user_id", user.ID, "error", err)
		// Put the batch back so the user can retry the confirmation.
		if saveErr := o.store.Save(context.WithoutCancel(ctx), session); saveErr != nil {
			o.logger.ErrorContext(ctx, "Failed to restore workflow session", "handle", handle, "error", saveErr)
		}
		return o.reject(session, err)
	}

	confirmed := &Session{
		Handle:    handle,
		Owner:     user.ID,
		State:     StateConfirmed,
		Result:    result,
		UpdatedAt: o.now(),
	}
	if err := o.store.Save(ctx, confirmed); err != nil {
		return nil, fmt.Errorf("save workflow session: %w", err)
	}

	o.metrics.Executed(len(result.Created), len(result.Failed), result.Purged)
	o.logger.InfoContext(ctx, "Import confirmed",
		"handle", handle,
		"user_id", user.ID,
		"replace", batch.ReplaceExisting,
		"include_warnings", in.IncludeWarnings,
		"created", len(result.Created),
		"failed", len(result.Failed),
		"purged", result.Purged)

	o.afterImport(ctx, RunRecord{
		Handle:          handle,
		UserID:          user.ID,
		FileName:        batch.FileName,
		Replace:         batch.ReplaceExisting,
		IncludeWarnings: in.IncludeWarnings,
		TotalRows:       batch.TotalRows,
		Submitted:       len(rows),
		Result:          result,
		StartedAt:       startedAt,
		CompletedAt:     o.now(),
	})

	return o.render(confirmed)
}

// Finish clears the session and points the client at the rotation list.
func (o *Orchestrator) Finish(ctx context.Context, user *models.User, handle, token string) (*View, error) {
	current, err := o.current(ctx, user, handle)
	if err != nil {
		return nil, err
	}
	if err := o.tokens.Verify(token, user.ID, handle, ScopeFinish); err != nil {
		return o.reject(current, err)
	}

	if err := o.store.Delete(ctx, user.ID, handle); err != nil {
		return nil, fmt.Errorf("delete workflow session: %w", err)
	}

	view, err := o.render(newIdleSession(user.ID, handle, o.now()))
	if err != nil {
		return nil, err
	}
	view.RedirectTo = FinishRedirect
	return view, nil
}

// Abandon drops every import session of user.
func (o *Orchestrator) Abandon(ctx context.Context, user *models.User) error {
	if !canImport(user) {
		return apperrors.New(apperrors.CodePermissionDenied, msgNoPermission)
	}
	if err := o.store.Clear(ctx, user.ID); err != nil {
		return fmt.Errorf("clear workflow sessions: %w", err)
	}
	return nil
}

func (o *Orchestrator) current(ctx context.Context, user *models.User, handle string) (*Session, error) {
	if user == nil {
		return nil, apperrors.New(apperrors.CodePermissionDenied, msgNoPermission)
	}
	if _, err := uuid.Parse(handle); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeNotFound, msgUnknownSession, err)
	}

	session, err := o.store.Load(ctx, user.ID, handle)
	if errors.Is(err, ErrSessionNotFound) {
		return newIdleSession(user.ID, handle, o.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load workflow session: %w", err)
	}
	return session, nil
}

func (o *Orchestrator) render(session *Session) (*View, error) {
	view := &View{Handle: session.Handle, State: session.State}

	scopes := []Scope{ScopeUpload}
	switch session.State {
	case StateUploaded:
		if session.Batch != nil {
			view.Preview = newPreview(session.Batch)
			if view.Preview.CanConfirm {
				scopes = append(scopes, ScopeConfirm)
			}
		}
	case StateConfirmed:
		if session.Result != nil {
			view.Result = newResultView(session.Result)
		}
		scopes = append(scopes, ScopeFinish)
	}

	for _, scope := range scopes {
		token, err := o.tokens.Issue(session.Owner, session.Handle, scope)
		if err != nil {
			return nil, err
		}
		switch scope {
		case ScopeUpload:
			view.Tokens.Upload = token
		case ScopeConfirm:
			view.Tokens.Confirm = token
		case ScopeFinish:
			view.Tokens.Finish = token
		}
	}
	return view, nil
}

// reject renders session unchanged with err as a visible notice and returns err.
func (o *Orchestrator) reject(session *Session, err error) (*View, error) {
	view, renderErr := o.render(session)
	if renderErr != nil {
		return nil, errors.Join(err, renderErr)
	}
	view.Notice = &Notice{Level: "error", Message: noticeMessage(err)}
	return view, err
}

func (o *Orchestrator) rejectUpload(ctx context.Context, session *Session, err error) (*View, error) {
	o.metrics.Upload(metrics.OutcomeRejected)
	o.logger.WarnContext(ctx, "Upload rejected", "handle", session.Handle, "code", apperrors.CodeOf(err), "error", err)
	return o.reject(session, err)
}

func (o *Orchestrator) afterImport(ctx context.Context, run RunRecord) {
	runID := uuid.NewString()
	if o.recorder != nil {
		id, err := o.recorder.RecordRun(ctx, run)
		if err != nil {
			o.logger.ErrorContext(ctx, "Failed to record import run", "handle", run.Handle, "error", err)
		} else {
			runID = id
		}
	}

	if o.publisher == nil {
		return
	}

	mode := models.ImportModeAppend
	if run.Replace {
		mode = models.ImportModeReplace
	}
	ids := make([]uint, 0, len(run.Result.Created))
	for _, c := range run.Result.Created {
		ids = append(ids, c.ID)
	}

	published := []*events.RotationEvent{events.NewRotationsImportedEvent(events.RotationsImportedEvent{
		RunID:           runID,
		UserID:          run.UserID,
		FileName:        run.FileName,
		Mode:            string(mode),
		IncludeWarnings: run.IncludeWarnings,
		Created:         len(run.Result.Created),
		Failed:          len(run.Result.Failed),
		Purged:          run.Result.Purged,
		RotationIDs:     ids,
	})}
	if run.Replace {
		published = append(published, events.NewRotationsPurgedEvent(runID, run.UserID, run.Result.Purged))
	}

	for _, event := range published {
		if err := o.publisher.Publish(ctx, event); err != nil {
			o.logger.ErrorContext(ctx, "Failed to publish import event", "event_type", event.Type, "error", err)
		}
	}
}

func canImport(user *models.User) bool {
	return user.Can(models.CapPublishRotations)
}

func noticeMessage(err error) string {
	if apperrors.CodeOf(err) == "" {
		return msgInternal
	}
	return apperrors.MessageOf(err)
}
