package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrStopped is returned by Schedule after the scheduler has been stopped.
var ErrStopped = errors.New("scheduler stopped")

// Handle is an opaque reference to one outstanding trigger registration.
type Handle string

// FireEvent is delivered when a trigger elapses. Handle identifies the exact
// registration that fired so consumers can detect stale deliveries after a
// concurrent reschedule.
type FireEvent struct {
	ReminderID string
	Handle     Handle
	FiredAt    time.Time
}

// FireHandler consumes fire events. Handlers run on the scheduler's dispatch
// goroutine and should return quickly.
type FireHandler func(ctx context.Context, event FireEvent)

// TriggerScheduler registers one-shot wake-ups at absolute instants.
//
// Cancel must tolerate unknown, already-cancelled and already-fired handles
// without error: cancellation racing a firing is expected, not exceptional.
type TriggerScheduler interface {
	Schedule(ctx context.Context, fireAt time.Time, reminderID string) (Handle, error)
	Cancel(ctx context.Context, handle Handle) error
}

// Source lets a consumer subscribe to fire events. The returned release
// function removes the subscription; releasing twice is harmless.
type Source interface {
	Notify(handler FireHandler) (release func())
}
