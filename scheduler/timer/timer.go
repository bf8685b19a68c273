package timer

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remindgo/backend/scheduler"
)

// Scheduler keeps one in-process time.Timer per outstanding trigger. Handles
// do not survive a process restart; callers are expected to resynchronize
// their registrations at startup.
type Scheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	timers  map[scheduler.Handle]*time.Timer
	closed  bool
	nextSub int
	subs    map[int]scheduler.FireHandler
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		logger: logger,
		timers: make(map[scheduler.Handle]*time.Timer),
		subs:   make(map[int]scheduler.FireHandler),
	}
}

func (s *Scheduler) Schedule(ctx context.Context, fireAt time.Time, reminderID string) (scheduler.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", scheduler.ErrStopped
	}

	handle := scheduler.Handle(uuid.NewString())
	delay := time.Until(fireAt)
	if delay < 0 {
		delay = 0
	}
	s.timers[handle] = time.AfterFunc(delay, func() {
		s.fire(handle, reminderID)
	})
	return handle, nil
}

// Cancel stops the timer behind the handle. Unknown handles are a no-op: the
// trigger either fired already or was cancelled before.
func (s *Scheduler) Cancel(ctx context.Context, handle scheduler.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[handle]; ok {
		t.Stop()
		delete(s.timers, handle)
	}
	return nil
}

func (s *Scheduler) Notify(handler scheduler.FireHandler) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = handler
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Stop cancels every outstanding timer and refuses further registrations.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for handle, t := range s.timers {
		t.Stop()
		delete(s.timers, handle)
	}
}

func (s *Scheduler) fire(handle scheduler.Handle, reminderID string) {
	s.mu.Lock()
	if _, ok := s.timers[handle]; !ok {
		// Cancelled between the timer elapsing and this callback running.
		s.mu.Unlock()
		return
	}
	delete(s.timers, handle)
	handlers := make([]scheduler.FireHandler, 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	event := scheduler.FireEvent{
		ReminderID: reminderID,
		Handle:     handle,
		FiredAt:    time.Now(),
	}
	s.logger.Debug("trigger fired",
		zap.String("reminder_id", reminderID),
		zap.String("handle", string(handle)))
	for _, h := range handlers {
		h(context.Background(), event)
	}
}

var (
	_ scheduler.TriggerScheduler = (*Scheduler)(nil)
	_ scheduler.Source           = (*Scheduler)(nil)
)
