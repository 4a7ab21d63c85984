// Package workflow drives the upload, confirm and finish steps of a rotation
// import as an explicit state machine over a token-keyed session store.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/urpt/student-rotation-service/internal/importer"
)

type State string

const (
	StateIdle      State = "idle"
	StateUploaded  State = "uploaded"
	StateConfirmed State = "confirmed"
)

// ErrSessionNotFound is returned by a Store for unknown or expired handles.
var ErrSessionNotFound = errors.New("workflow session not found")

// Session is the workflow context carried between steps. Batch is set only
// in StateUploaded and Result only in StateConfirmed.
type Session struct {
	Handle    string           `json:"handle"`
	Owner     string           `json:"owner"`
	State     State            `json:"state"`
	Batch     *importer.Batch  `json:"batch,omitempty"`
	Result    *importer.Result `json:"result,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func newIdleSession(owner, handle string, now time.Time) *Session {
	return &Session{Handle: handle, Owner: owner, State: StateIdle, UpdatedAt: now}
}

// Store persists sessions keyed by owner and handle. Take removes the
// session it returns, so only one caller can consume a given batch.
type Store interface {
	Load(ctx context.Context, owner, handle string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Take(ctx context.Context, owner, handle string) (*Session, error)
	Delete(ctx context.Context, owner, handle string) error
	// Clear removes every session of owner.
	Clear(ctx context.Context, owner string) error
}
