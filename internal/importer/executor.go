package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urpt/student-rotation-service/internal/models"
)

// RotationWriter is the persistence the executor writes through.
//
// WithinTx runs fn against a writer bound to a transaction. Calling WithinTx
// on a writer that is already transactional opens a savepoint, so a nested
// failure only rolls back the nested work.
type RotationWriter interface {
	Location(ctx context.Context, id uint) (*models.Location, error)
	PurgeRotations(ctx context.Context) (int, error)
	CreateRotation(ctx context.Context, rotation *models.Rotation) error
	WithinTx(ctx context.Context, fn func(w RotationWriter) error) error
}

// Executor applies a confirmed batch to the rotation store.
type Executor struct {
	writer        RotationWriter
	transactional bool
	logger        *slog.Logger
}

type ExecutorOption func(*Executor)

// WithTransactional runs the purge and every create in one transaction,
// each create in its own savepoint.
func WithTransactional(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.transactional = enabled
	}
}

func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

func NewExecutor(writer RotationWriter, opts ...ExecutorOption) *Executor {
	e := &Executor{
		writer:        writer,
		transactional: true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute purges existing rotations when replace is set, then creates one
// rotation per row in order. Per-row failures are collected in the result;
// only an interrupted run (cancelled context, failed purge, lost store)
// returns an error.
func (e *Executor) Execute(ctx context.Context, rows []ValidatedRow, replace bool, authorID string) (*Result, error) {
	if !e.transactional {
		return e.run(ctx, e.writer, rows, replace, authorID)
	}

	var result *Result
	err := e.writer.WithinTx(ctx, func(tx RotationWriter) error {
		var err error
		result, err = e.run(ctx, tx, rows, replace, authorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Executor) run(ctx context.Context, w RotationWriter, rows []ValidatedRow, replace bool, authorID string) (*Result, error) {
	result := &Result{
		Created: []CreatedRow{},
		Failed:  []FailedRow{},
	}

	if replace {
		purged, err := w.PurgeRotations(ctx)
		if err != nil {
			return nil, fmt.Errorf("purge rotations: %w", err)
		}
		result.Purged = purged
		e.logger.InfoContext(ctx, "Purged existing rotations", "count", purged)
	}

	locations := make(map[uint]*models.Location)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import interrupted at row %d: %w", row.Row.Number, err)
		}

		rotation, err := e.create(ctx, w, row, authorID, locations)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("import interrupted at row %d: %w", row.Row.Number, ctxErr)
			}
			e.logger.WarnContext(ctx, "Failed to create rotation", "row", row.Row.Number, "error", err)
			result.Failed = append(result.Failed, FailedRow{Row: row.Row.Number, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, CreatedRow{
			Row:   row.Row.Number,
			ID:    rotation.ID,
			Title: rotation.Title,
		})
	}

	return result, nil
}

func (e *Executor) create(ctx context.Context, w RotationWriter, row ValidatedRow, authorID string, locations map[uint]*models.Location) (*models.Rotation, error) {
	attrs, err := BuildAttributes(row)
	if err != nil {
		return nil, err
	}

	location, ok := locations[attrs.LocationID]
	if !ok {
		location, err = w.Location(ctx, attrs.LocationID)
		if err != nil {
			return nil, fmt.Errorf("location %d: %w", attrs.LocationID, err)
		}
		if location == nil {
			return nil, errors.New("location no longer exists")
		}
		locations[attrs.LocationID] = location
	}

	rotation := Derive(attrs, location)
	rotation.AuthorID = authorID

	if !e.transactional {
		if err := w.CreateRotation(ctx, rotation); err != nil {
			return nil, err
		}
		return rotation, nil
	}

	err = w.WithinTx(ctx, func(sp RotationWriter) error {
		return sp.CreateRotation(ctx, rotation)
	})
	if err != nil {
		return nil, err
	}
	return rotation, nil
}
