package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/beekhof/class-sync/internal/calendar"
	"github.com/beekhof/class-sync/internal/store"
)

// ErrNeedsReauth means the account has no usable access token or the
// provider rejected it. The user has to authorise again.
var ErrNeedsReauth = errors.New("calendar access needs re-authentication")

// Status is the user-visible result of a mutating operation.
type Status string

const (
	// StatusSynced: the local row and the remote calendar agree.
	StatusSynced Status = "synced"
	// StatusPending: the local change is saved but the remote side was not
	// updated; Reason says why.
	StatusPending Status = "pending"
	// StatusRejected: the operation was refused or failed; Reason says why.
	StatusRejected Status = "rejected"
)

// Result describes the outcome of a create, update, delete or colour change.
type Result struct {
	Status      Status
	Reason      string
	Err         error
	NeedsReauth bool

	Event           *store.ClassEvent
	CalendarID      string
	CalendarCreated bool

	// Cleanup is set when a best-effort compensating action was started.
	// Its error is separate from Err.
	Cleanup *Compensation
}

func synced(ev *store.ClassEvent, calendarID string) *Result {
	return &Result{Status: StatusSynced, Event: ev, CalendarID: calendarID}
}

func pending(ev *store.ClassEvent, reason string, err error) *Result {
	return &Result{
		Status:      StatusPending,
		Reason:      reason,
		Err:         err,
		NeedsReauth: needsReauth(err),
		Event:       ev,
	}
}

func rejected(ev *store.ClassEvent, reason string, err error) *Result {
	return &Result{
		Status:      StatusRejected,
		Reason:      reason,
		Err:         err,
		NeedsReauth: needsReauth(err),
		Event:       ev,
	}
}

func needsReauth(err error) bool {
	return errors.Is(err, ErrNeedsReauth) || calendar.IsAuthExpired(err)
}

// compensationTimeout bounds a compensating remote call.
const compensationTimeout = 30 * time.Second

// Compensation is a best-effort undo running in the background. Its failure
// is logged and reported through Wait, never through the operation's error.
type Compensation struct {
	Description string

	done chan struct{}
	err  error
}

func startCompensation(ctx context.Context, logger *slog.Logger, description string, undo func(ctx context.Context) error) *Compensation {
	c := &Compensation{Description: description, done: make(chan struct{})}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	go func() {
		defer close(c.done)
		defer cancel()
		if err := undo(ctx); err != nil {
			c.err = err
			logger.Error("compensation failed, manual cleanup needed", "action", description, "error", err)
			return
		}
		logger.Info("compensation done", "action", description)
	}()
	return c
}

// Done is closed once the compensation has finished.
func (c *Compensation) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the compensation finishes and returns its error.
func (c *Compensation) Wait() error {
	if c == nil {
		return nil
	}
	<-c.done
	return c.err
}
