// Package journal records the narrated endpoint events of every run so
// they can be reviewed after the process exits.
package journal

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/webmondiag/webmondiag/pkg/types"
)

// Storage defines the interface for persisting events.
type Storage interface {
	// Initialize the storage (run migrations, etc.)
	Init(ctx context.Context) error

	// Close the storage connection
	Close() error

	// Append stores ev and assigns its ID.
	Append(ctx context.Context, ev *types.Event) error

	// List returns events oldest first. With a limit only the newest
	// limit events are returned.
	List(ctx context.Context, opts ListOptions) ([]*types.Event, error)

	// Sessions summarizes every recorded run, newest first.
	Sessions(ctx context.Context) ([]*types.Session, error)
}

// ListOptions narrows a List call.
type ListOptions struct {
	SessionID string
	Limit     int
}

// Recorder appends narrated events to a Storage under one session.
// It satisfies diag.EventLog.
type Recorder struct {
	store   Storage
	session string
	logger  logrus.FieldLogger
	timeout time.Duration
}

// NewRecorder starts a new session. Write failures are reported to logger
// and otherwise ignored so the endpoint keeps running.
func NewRecorder(store Storage, logger logrus.FieldLogger) *Recorder {
	if logger == nil {
		quiet := logrus.New()
		quiet.Out = io.Discard
		logger = quiet
	}
	return &Recorder{
		store:   store,
		session: uuid.NewString(),
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// SessionID returns the id events of this run are recorded under.
func (r *Recorder) SessionID() string {
	return r.session
}

// Log appends one event.
func (r *Recorder) Log(level types.EventLevel, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	ev := &types.Event{
		SessionID: r.session,
		Level:     level,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := r.store.Append(ctx, ev); err != nil {
		r.logger.WithError(err).Warn("failed to record event")
	}
}
