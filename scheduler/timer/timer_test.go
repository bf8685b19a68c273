package timer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remindgo/backend/scheduler"
)

func collect(s *Scheduler) (<-chan scheduler.FireEvent, func()) {
	events := make(chan scheduler.FireEvent, 16)
	release := s.Notify(func(ctx context.Context, event scheduler.FireEvent) {
		events <- event
	})
	return events, release
}

func TestScheduleFires(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	events, release := collect(s)
	defer release()

	handle, err := s.Schedule(context.Background(), time.Now().Add(20*time.Millisecond), "rem-1")
	require.NoError(t, err)
	require.NotEmpty(t, handle)

	select {
	case event := <-events:
		assert.Equal(t, "rem-1", event.ReminderID)
		assert.Equal(t, handle, event.Handle)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not fire")
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	events, release := collect(s)
	defer release()

	handle, err := s.Schedule(context.Background(), time.Now().Add(30*time.Millisecond), "rem-1")
	require.NoError(t, err)
	require.NoError(t, s.Cancel(context.Background(), handle))

	select {
	case <-events:
		t.Fatal("cancelled trigger fired")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	ctx := context.Background()
	handle, err := s.Schedule(ctx, time.Now().Add(10*time.Millisecond), "rem-1")
	require.NoError(t, err)

	require.NoError(t, s.Cancel(ctx, handle))
	require.NoError(t, s.Cancel(ctx, handle))
	require.NoError(t, s.Cancel(ctx, scheduler.Handle("never-existed")))

	// Cancelling after the fire deadline has passed must also be silent.
	fired, err := s.Schedule(ctx, time.Now().Add(5*time.Millisecond), "rem-2")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, s.Cancel(ctx, fired))
}

func TestNotifyRelease(t *testing.T) {
	s := New(zap.NewNop())
	defer s.Stop()

	events, release := collect(s)
	release()

	_, err := s.Schedule(context.Background(), time.Now().Add(10*time.Millisecond), "rem-1")
	require.NoError(t, err)

	select {
	case <-events:
		t.Fatal("released subscriber still received an event")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStopRefusesNewRegistrations(t *testing.T) {
	s := New(zap.NewNop())
	s.Stop()

	_, err := s.Schedule(context.Background(), time.Now().Add(time.Hour), "rem-1")
	assert.ErrorIs(t, err, scheduler.ErrStopped)
}
