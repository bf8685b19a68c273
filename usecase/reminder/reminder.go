package reminder

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/remindgo/backend/domain"
	"github.com/remindgo/backend/repository"
	"github.com/remindgo/backend/scheduler"
)

const (
	// MaxPostponeMinutes caps a single postponement at one year.
	MaxPostponeMinutes = 525_600

	// archiveAfter is how long an Active reminder may stay overdue before
	// the housekeeping sweep moves it to Archived.
	archiveAfter = 24 * time.Hour
)

// DueHandler receives reminders whose trigger fired while they were still
// Active. Handlers run on the scheduler's dispatch goroutine.
type DueHandler func(reminder domain.Reminder)

// Manager owns the reminder lifecycle: every mutation updates the store and
// re-synchronizes the platform trigger so that at most one live handle
// exists per reminder, always matching its current fire time.
type Manager struct {
	store   repository.ReminderStore
	trigger scheduler.TriggerScheduler
	logger  *zap.Logger
	now     func() time.Time

	// mu serializes mutations and inbound fire events; each operation is a
	// read-modify-write across the store and the scheduler that must not
	// interleave with another on the same record.
	mu sync.Mutex

	subMu   sync.Mutex
	nextSub int
	subs    map[int]DueHandler
	release func()
}

func New(store repository.ReminderStore, trigger scheduler.TriggerScheduler, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		trigger: trigger,
		logger:  logger,
		now:     time.Now,
		subs:    make(map[int]DueHandler),
	}
}

// Bind subscribes the manager to a scheduler's fire events. Close releases
// the subscription.
func (m *Manager) Bind(src scheduler.Source) {
	m.release = src.Notify(m.HandleFired)
}

// Close tears down the fire-event subscription.
func (m *Manager) Close() {
	if m.release != nil {
		m.release()
		m.release = nil
	}
}

// Notify registers a due-event subscriber and returns its release function.
func (m *Manager) Notify(handler DueHandler) (release func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = handler
	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		delete(m.subs, id)
	}
}

// Add validates and persists a new Active reminder and registers its
// trigger. A scheduler failure is not fatal: the reminder is persisted with
// an empty handle and ResyncAll repairs it later.
func (m *Manager) Add(ctx context.Context, title, description string, fireAt time.Time) (*domain.Reminder, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "title must not be blank")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !fireAt.After(now) {
		return nil, domain.NewError(domain.ErrCodeInvalid, "fire time must be in the future")
	}

	rem := &domain.Reminder{
		ID:          uuid.NewString(),
		Title:       title,
		Description: strings.TrimSpace(description),
		FireAt:      fireAt,
		State:       domain.StateActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	handle, err := m.trigger.Schedule(ctx, fireAt, rem.ID)
	if err != nil {
		m.logger.Warn("trigger registration failed",
			zap.String("reminder_id", rem.ID), zap.Error(err))
	} else {
		rem.TriggerHandle = string(handle)
	}

	if err := m.store.Put(ctx, rem); err != nil {
		if rem.TriggerHandle != "" {
			// Do not leak a trigger for a record that was never persisted.
			_ = m.trigger.Cancel(ctx, handle)
		}
		return nil, err
	}
	return rem, nil
}

// Update applies new field values to an existing reminder and
// re-synchronizes its trigger.
//
// A Completed reminder whose fire time lands in the future flips back to
// Active. When the resulting state is Active, a changed fire time must be in
// the future; a fire time kept as-is may stay in the past so that overdue
// reminders remain editable.
func (m *Manager) Update(ctx context.Context, rem *domain.Reminder) (*domain.Reminder, error) {
	if rem == nil || rem.ID == "" {
		return nil, domain.ErrInvalidPayload
	}
	title := strings.TrimSpace(rem.Title)
	if title == "" {
		return nil, domain.NewError(domain.ErrCodeInvalid, "title must not be blank")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.store.GetByID(ctx, rem.ID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	next := *current
	next.Title = title
	next.Description = strings.TrimSpace(rem.Description)
	next.FireAt = rem.FireAt
	if rem.State.Valid() {
		next.State = rem.State
	}

	if next.State == domain.StateCompleted && next.FireAt.After(now) {
		next.State = domain.StateActive
	}
	if next.State == domain.StateActive && !next.FireAt.Equal(current.FireAt) && !next.FireAt.After(now) {
		return nil, domain.NewError(domain.ErrCodeInvalid, "fire time must be in the future")
	}

	next.UpdatedAt = now
	return m.commit(ctx, &next, current.TriggerHandle)
}

// Complete marks an Active reminder done and cancels its trigger. Completing
// a reminder that is not Active reports not-found, so a repeat complete is a
// soft error.
func (m *Manager) Complete(ctx context.Context, id string) (*domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rem, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rem.State != domain.StateActive {
		return nil, domain.ErrReminderNotFound
	}

	prior := rem.TriggerHandle
	rem.State = domain.StateCompleted
	rem.UpdatedAt = m.now()
	return m.commit(ctx, rem, prior)
}

// Postpone shifts an Active reminder's fire time forward. The new fire time
// is relative to the reminder's current scheduled time, not to now: an
// overdue reminder keeps its original anchor.
func (m *Manager) Postpone(ctx context.Context, id string, minutes int) (*domain.Reminder, error) {
	if minutes <= 0 {
		return nil, domain.NewError(domain.ErrCodeInvalid, "postpone amount must be positive")
	}
	if minutes > MaxPostponeMinutes {
		return nil, domain.NewError(domain.ErrCodeInvalid, "postpone amount exceeds one year")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rem, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rem.State != domain.StateActive {
		return nil, domain.ErrReminderNotFound
	}

	prior := rem.TriggerHandle
	rem.FireAt = rem.FireAt.Add(time.Duration(minutes) * time.Minute)
	rem.UpdatedAt = m.now()
	return m.commit(ctx, rem, prior)
}

// Delete cancels any outstanding trigger and removes the record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rem, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rem.TriggerHandle != "" {
		if err := m.trigger.Cancel(ctx, scheduler.Handle(rem.TriggerHandle)); err != nil {
			m.logger.Warn("trigger cancel failed",
				zap.String("reminder_id", id), zap.Error(err))
		}
	}
	return m.store.Delete(ctx, id)
}

// List returns the requested lifecycle slice. Pure read.
func (m *Manager) List(ctx context.Context, filter repository.ListFilter) ([]domain.Reminder, error) {
	return m.store.List(ctx, filter)
}

// Get returns a single reminder by id.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Reminder, error) {
	return m.store.GetByID(ctx, id)
}

// HandleFired processes an inbound trigger event. Events for reminders that
// were deleted, completed or rescheduled since the trigger was registered
// are dropped silently; that race is expected. A live event clears the
// spent handle and surfaces the reminder to due-event subscribers. Firing
// is terminal: a new trigger only appears through Add, Update or Postpone.
func (m *Manager) HandleFired(ctx context.Context, event scheduler.FireEvent) {
	m.mu.Lock()

	rem, err := m.store.GetByID(ctx, event.ReminderID)
	if err != nil {
		m.mu.Unlock()
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			m.logger.Debug("dropping fire event for missing reminder",
				zap.String("reminder_id", event.ReminderID))
			return
		}
		m.logger.Error("fire event lookup failed",
			zap.String("reminder_id", event.ReminderID), zap.Error(err))
		return
	}
	if rem.State != domain.StateActive || rem.TriggerHandle != string(event.Handle) {
		m.mu.Unlock()
		m.logger.Debug("dropping stale fire event",
			zap.String("reminder_id", event.ReminderID),
			zap.String("handle", string(event.Handle)))
		return
	}

	rem.TriggerHandle = ""
	rem.UpdatedAt = m.now()
	if err := m.store.Put(ctx, rem); err != nil {
		m.logger.Error("failed to clear fired trigger handle",
			zap.String("reminder_id", rem.ID), zap.Error(err))
	}
	due := *rem
	m.mu.Unlock()

	m.subMu.Lock()
	handlers := make([]DueHandler, 0, len(m.subs))
	for _, h := range m.subs {
		handlers = append(handlers, h)
	}
	m.subMu.Unlock()

	m.logger.Info("reminder due",
		zap.String("reminder_id", due.ID), zap.String("title", due.Title))
	for _, h := range handlers {
		h(due)
	}
}

// Sweep archives Active reminders that have been overdue for more than 24
// hours. They are never marked completed; archival only keeps the Active
// list from accumulating reminders nobody acknowledged.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().Add(-archiveAfter)
	archived := 0
	for i := range all {
		rem := &all[i]
		if rem.State != domain.StateActive || !rem.FireAt.Before(cutoff) {
			continue
		}
		prior := rem.TriggerHandle
		rem.State = domain.StateArchived
		rem.UpdatedAt = m.now()
		if _, err := m.commit(ctx, rem, prior); err != nil {
			return archived, err
		}
		archived++
	}
	if archived > 0 {
		m.logger.Info("archived overdue reminders", zap.Int("count", archived))
	}
	return archived, nil
}

// ResyncAll rebuilds trigger registrations for the whole collection: every
// Active reminder with a future fire time ends up with exactly one live
// handle, and stale handles on all other reminders are cancelled. This is
// the startup and scheduler-failure recovery path.
func (m *Manager) ResyncAll(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.store.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	now := m.now()
	scheduled := 0
	for i := range all {
		rem := &all[i]
		wantsTrigger := rem.State == domain.StateActive && rem.FireAt.After(now)
		if rem.TriggerHandle == "" && !wantsTrigger {
			continue
		}
		if _, err := m.commit(ctx, rem, rem.TriggerHandle); err != nil {
			return scheduled, err
		}
		if rem.TriggerHandle != "" {
			scheduled++
		}
	}
	return scheduled, nil
}

// commit enforces the one-live-trigger invariant and persists the record:
// the prior handle is always cancelled before a new one may be installed,
// and a handle exists afterwards only for an Active reminder with a future
// fire time. Scheduler failures are non-fatal; storage failures roll back a
// freshly installed handle.
func (m *Manager) commit(ctx context.Context, rem *domain.Reminder, prior string) (*domain.Reminder, error) {
	if prior != "" {
		if err := m.trigger.Cancel(ctx, scheduler.Handle(prior)); err != nil {
			m.logger.Warn("trigger cancel failed",
				zap.String("reminder_id", rem.ID), zap.Error(err))
		}
	}

	rem.TriggerHandle = ""
	if rem.State == domain.StateActive && rem.FireAt.After(m.now()) {
		handle, err := m.trigger.Schedule(ctx, rem.FireAt, rem.ID)
		if err != nil {
			m.logger.Warn("trigger registration failed",
				zap.String("reminder_id", rem.ID), zap.Error(err))
		} else {
			rem.TriggerHandle = string(handle)
		}
	}

	if err := m.store.Put(ctx, rem); err != nil {
		if rem.TriggerHandle != "" && rem.TriggerHandle != prior {
			_ = m.trigger.Cancel(ctx, scheduler.Handle(rem.TriggerHandle))
		}
		return nil, err
	}
	return rem, nil
}
