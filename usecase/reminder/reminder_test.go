package reminder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remindgo/backend/domain"
	"github.com/remindgo/backend/repository"
	"github.com/remindgo/backend/scheduler"
)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time {
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

type fakeStore struct {
	mu     sync.Mutex
	items  map[string]domain.Reminder
	putErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[string]domain.Reminder)}
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rem, ok := s.items[id]
	if !ok {
		return nil, domain.ErrReminderNotFound
	}
	return &rem, nil
}

func (s *fakeStore) GetAll(ctx context.Context) ([]domain.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]domain.Reminder, 0, len(s.items))
	for _, rem := range s.items {
		all = append(all, rem)
	}
	return all, nil
}

func (s *fakeStore) List(ctx context.Context, filter repository.ListFilter) ([]domain.Reminder, error) {
	all, _ := s.GetAll(ctx)
	var out []domain.Reminder
	switch filter {
	case repository.FilterActive:
		for _, rem := range all {
			if rem.State == domain.StateActive {
				out = append(out, rem)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	case repository.FilterCompleted:
		for _, rem := range all {
			if rem.State == domain.StateCompleted {
				out = append(out, rem)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	default:
		return nil, domain.NewError(domain.ErrCodeInvalid, "unknown list filter")
	}
	return out, nil
}

func (s *fakeStore) Put(ctx context.Context, rem *domain.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.items[rem.ID] = *rem
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return domain.ErrReminderNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *fakeStore) seed(rem domain.Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rem.ID] = rem
}

type fakeTrigger struct {
	reminderID string
	fireAt     time.Time
}

type fakeScheduler struct {
	mu          sync.Mutex
	seq         int
	live        map[scheduler.Handle]fakeTrigger
	cancelled   []scheduler.Handle
	scheduleErr error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{live: make(map[scheduler.Handle]fakeTrigger)}
}

func (f *fakeScheduler) Schedule(ctx context.Context, fireAt time.Time, reminderID string) (scheduler.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scheduleErr != nil {
		return "", f.scheduleErr
	}
	f.seq++
	handle := scheduler.Handle(fmt.Sprintf("handle-%d", f.seq))
	f.live[handle] = fakeTrigger{reminderID: reminderID, fireAt: fireAt}
	return handle, nil
}

func (f *fakeScheduler) Cancel(ctx context.Context, handle scheduler.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.live, handle)
	f.cancelled = append(f.cancelled, handle)
	return nil
}

func (f *fakeScheduler) outstanding(reminderID string) []fakeTrigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fakeTrigger
	for _, t := range f.live {
		if t.reminderID == reminderID {
			out = append(out, t)
		}
	}
	return out
}

func (f *fakeScheduler) wasCancelled(handle string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.cancelled {
		if string(h) == handle {
			return true
		}
	}
	return false
}

func newTestManager(t *testing.T) (*Manager, *fakeStore, *fakeScheduler, *testClock) {
	t.Helper()
	store := newFakeStore()
	sched := newFakeScheduler()
	clock := &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	m := New(store, sched, zap.NewNop())
	m.now = clock.Now
	return m, store, sched, clock
}

func TestAddCreatesActiveReminder(t *testing.T) {
	m, _, sched, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Pay rent", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, domain.StateActive, created.State)
	assert.NotEmpty(t, created.TriggerHandle)
	assert.Len(t, sched.outstanding(created.ID), 1)

	active, err := m.List(ctx, repository.FilterActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, *created, active[0])

	completed, err := m.List(ctx, repository.FilterCompleted)
	require.NoError(t, err)
	assert.Empty(t, completed)
}

func TestAddValidation(t *testing.T) {
	m, _, _, clock := newTestManager(t)
	ctx := context.Background()
	future := clock.Now().Add(time.Hour)

	cases := []struct {
		name   string
		title  string
		fireAt time.Time
	}{
		{"blank title", "", future},
		{"whitespace title", "   ", future},
		{"fire time now", "Walk dog", clock.Now()},
		{"fire time past", "Walk dog", clock.Now().Add(-time.Minute)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := m.Add(ctx, tc.title, "", tc.fireAt)
			require.Error(t, err)
			assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
		})
	}
}

func TestAddSchedulerFailureStillPersists(t *testing.T) {
	m, _, sched, clock := newTestManager(t)
	ctx := context.Background()
	sched.scheduleErr = fmt.Errorf("alarm service unavailable")

	created, err := m.Add(ctx, "Water plants", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, created.TriggerHandle)

	active, err := m.List(ctx, repository.FilterActive)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAddStoreFailureCancelsFreshTrigger(t *testing.T) {
	m, store, sched, clock := newTestManager(t)
	ctx := context.Background()
	store.putErr = fmt.Errorf("disk full")

	_, err := m.Add(ctx, "Call mom", "", clock.Now().Add(time.Hour))
	require.Error(t, err)

	sched.mu.Lock()
	liveCount := len(sched.live)
	sched.mu.Unlock()
	assert.Zero(t, liveCount, "no trigger may outlive a failed persist")
}

func TestComplete(t *testing.T) {
	m, _, sched, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Pay rent", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	oldHandle := created.TriggerHandle

	completed, err := m.Complete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, completed.State)
	assert.Empty(t, completed.TriggerHandle)
	assert.True(t, sched.wasCancelled(oldHandle))
	assert.Empty(t, sched.outstanding(created.ID))

	active, err := m.List(ctx, repository.FilterActive)
	require.NoError(t, err)
	assert.Empty(t, active)

	done, err := m.List(ctx, repository.FilterCompleted)
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, created.ID, done[0].ID)

	// Repeat complete is a soft not-found, never a crash.
	_, err = m.Complete(ctx, created.ID)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestCompleteUnknownID(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	_, err := m.Complete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestPostponeShiftsFromScheduledTime(t *testing.T) {
	m, _, sched, clock := newTestManager(t)
	ctx := context.Background()

	fireAt := clock.Now().Add(time.Hour)
	created, err := m.Add(ctx, "Standup", "", fireAt)
	require.NoError(t, err)
	oldHandle := created.TriggerHandle

	postponed, err := m.Postpone(ctx, created.ID, 30)
	require.NoError(t, err)
	assert.Equal(t, fireAt.Add(30*time.Minute), postponed.FireAt)
	assert.True(t, sched.wasCancelled(oldHandle))

	triggers := sched.outstanding(created.ID)
	require.Len(t, triggers, 1)
	assert.Equal(t, fireAt.Add(30*time.Minute), triggers[0].fireAt)
}

func TestPostponeOverdueKeepsOriginalAnchor(t *testing.T) {
	m, _, _, clock := newTestManager(t)
	ctx := context.Background()

	fireAt := clock.Now().Add(time.Hour)
	created, err := m.Add(ctx, "Dentist", "", fireAt)
	require.NoError(t, err)

	// Two hours later the reminder is an hour overdue. A 5 minute
	// postponement lands 5 minutes after the original time, still in the
	// past, so no new trigger is installed.
	clock.Advance(2 * time.Hour)
	postponed, err := m.Postpone(ctx, created.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, fireAt.Add(5*time.Minute), postponed.FireAt)
	assert.Empty(t, postponed.TriggerHandle)
}

func TestPostponeValidation(t *testing.T) {
	m, _, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Gym", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	for _, minutes := range []int{0, -5, MaxPostponeMinutes + 1} {
		_, err := m.Postpone(ctx, created.ID, minutes)
		require.Error(t, err, "minutes=%d", minutes)
		assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	}

	_, err = m.Postpone(ctx, created.ID, MaxPostponeMinutes)
	require.NoError(t, err)

	_, err = m.Postpone(ctx, "missing", 5)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestPostponeMonotonic(t *testing.T) {
	m, _, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Review PR", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	prev := created.FireAt
	for _, minutes := range []int{1, 15, 60, 1440} {
		postponed, err := m.Postpone(ctx, created.ID, minutes)
		require.NoError(t, err)
		assert.True(t, postponed.FireAt.After(prev))
		prev = postponed.FireAt
	}
}

func TestDelete(t *testing.T) {
	m, _, sched, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Trash day", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	oldHandle := created.TriggerHandle

	require.NoError(t, m.Delete(ctx, created.ID))
	assert.True(t, sched.wasCancelled(oldHandle))
	assert.Empty(t, sched.outstanding(created.ID))

	active, err := m.List(ctx, repository.FilterActive)
	require.NoError(t, err)
	assert.Empty(t, active)
	completed, err := m.List(ctx, repository.FilterCompleted)
	require.NoError(t, err)
	assert.Empty(t, completed)

	_, err = m.Complete(ctx, created.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	_, err = m.Postpone(ctx, created.ID, 5)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
	err = m.Delete(ctx, created.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestUpdateReplacesTrigger(t *testing.T) {
	m, _, sched, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Flight", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	oldHandle := created.TriggerHandle

	edit := *created
	edit.Title = "Flight to Oslo"
	edit.FireAt = clock.Now().Add(3 * time.Hour)
	updated, err := m.Update(ctx, &edit)
	require.NoError(t, err)
	assert.Equal(t, "Flight to Oslo", updated.Title)
	assert.True(t, sched.wasCancelled(oldHandle))

	triggers := sched.outstanding(created.ID)
	require.Len(t, triggers, 1, "exactly one live trigger after update")
	assert.Equal(t, updated.FireAt, triggers[0].fireAt)
	assert.True(t, updated.UpdatedAt.Equal(clock.Now()))
}

func TestUpdateCompletedWithFutureTimeReactivates(t *testing.T) {
	m, _, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Taxes", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	_, err = m.Complete(ctx, created.ID)
	require.NoError(t, err)

	edit := *created
	edit.State = domain.StateCompleted
	edit.FireAt = clock.Now().Add(48 * time.Hour)
	updated, err := m.Update(ctx, &edit)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, updated.State)
	assert.NotEmpty(t, updated.TriggerHandle)
}

func TestUpdateKeepsUnchangedPastFireAt(t *testing.T) {
	m, _, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Misspelt titel", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	// The reminder goes overdue; a title-only edit must still be possible.
	clock.Advance(2 * time.Hour)
	edit := *created
	edit.Title = "Misspelt title"
	updated, err := m.Update(ctx, &edit)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, updated.State)
	assert.Empty(t, updated.TriggerHandle, "no trigger for a past fire time")
}

func TestUpdateRejectsChangedPastFireAt(t *testing.T) {
	m, _, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Laundry", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	edit := *created
	edit.FireAt = clock.Now().Add(-time.Minute)
	_, err = m.Update(ctx, &edit)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestUpdateValidation(t *testing.T) {
	m, _, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Groceries", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	edit := *created
	edit.Title = "  "
	_, err = m.Update(ctx, &edit)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	_, err = m.Update(ctx, nil)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))

	missing := *created
	missing.ID = "missing"
	_, err = m.Update(ctx, &missing)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound))
}

func TestHandleFiredDeliversDueReminder(t *testing.T) {
	m, store, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Medication", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	var delivered []domain.Reminder
	release := m.Notify(func(rem domain.Reminder) {
		delivered = append(delivered, rem)
	})
	defer release()

	m.HandleFired(ctx, scheduler.FireEvent{
		ReminderID: created.ID,
		Handle:     scheduler.Handle(created.TriggerHandle),
		FiredAt:    clock.Now().Add(time.Hour),
	})

	require.Len(t, delivered, 1)
	assert.Equal(t, created.ID, delivered[0].ID)

	stored, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.TriggerHandle, "a fired trigger is no longer outstanding")
	assert.Equal(t, domain.StateActive, stored.State)
}

func TestHandleFiredAfterDeleteIsDropped(t *testing.T) {
	m, store, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Meeting", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	handle := created.TriggerHandle
	require.NoError(t, m.Delete(ctx, created.ID))

	var delivered int
	release := m.Notify(func(domain.Reminder) { delivered++ })
	defer release()

	m.HandleFired(ctx, scheduler.FireEvent{
		ReminderID: created.ID,
		Handle:     scheduler.Handle(handle),
		FiredAt:    clock.Now(),
	})

	assert.Zero(t, delivered)
	_, err = store.GetByID(ctx, created.ID)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeNotFound), "no resurrection")
}

func TestHandleFiredStaleHandleIsDropped(t *testing.T) {
	m, store, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Check oven", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)
	staleHandle := created.TriggerHandle

	postponed, err := m.Postpone(ctx, created.ID, 30)
	require.NoError(t, err)

	var delivered int
	release := m.Notify(func(domain.Reminder) { delivered++ })
	defer release()

	m.HandleFired(ctx, scheduler.FireEvent{
		ReminderID: created.ID,
		Handle:     scheduler.Handle(staleHandle),
		FiredAt:    clock.Now(),
	})

	assert.Zero(t, delivered)
	stored, err := store.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, postponed.TriggerHandle, stored.TriggerHandle, "live handle untouched by stale event")
}

func TestNotifyRelease(t *testing.T) {
	m, _, _, clock := newTestManager(t)
	ctx := context.Background()

	created, err := m.Add(ctx, "Backup", "", clock.Now().Add(time.Hour))
	require.NoError(t, err)

	var delivered int
	release := m.Notify(func(domain.Reminder) { delivered++ })
	release()

	m.HandleFired(ctx, scheduler.FireEvent{
		ReminderID: created.ID,
		Handle:     scheduler.Handle(created.TriggerHandle),
		FiredAt:    clock.Now(),
	})
	assert.Zero(t, delivered)
}

func TestSweepArchivesLongOverdue(t *testing.T) {
	m, store, _, clock := newTestManager(t)
	ctx := context.Background()

	longOverdue := domain.Reminder{
		ID:        "old",
		Title:     "Forgotten",
		FireAt:    clock.Now().Add(-25 * time.Hour),
		State:     domain.StateActive,
		CreatedAt: clock.Now().Add(-48 * time.Hour),
		UpdatedAt: clock.Now().Add(-48 * time.Hour),
	}
	barelyOverdue := domain.Reminder{
		ID:        "recent",
		Title:     "Still relevant",
		FireAt:    clock.Now().Add(-23 * time.Hour),
		State:     domain.StateActive,
		CreatedAt: clock.Now().Add(-24 * time.Hour),
		UpdatedAt: clock.Now().Add(-24 * time.Hour),
	}
	completed := domain.Reminder{
		ID:        "done",
		Title:     "Done long ago",
		FireAt:    clock.Now().Add(-72 * time.Hour),
		State:     domain.StateCompleted,
		CreatedAt: clock.Now().Add(-96 * time.Hour),
		UpdatedAt: clock.Now().Add(-72 * time.Hour),
	}
	store.seed(longOverdue)
	store.seed(barelyOverdue)
	store.seed(completed)

	archived, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	old, err := store.GetByID(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, domain.StateArchived, old.State, "archived, not completed")

	recent, err := store.GetByID(ctx, "recent")
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, recent.State)

	done, err := store.GetByID(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCompleted, done.State)
}

func TestResyncAllRepairsTriggers(t *testing.T) {
	m, store, sched, clock := newTestManager(t)
	ctx := context.Background()

	// Active and future but never scheduled, e.g. the scheduler was down.
	unscheduled := domain.Reminder{
		ID:        "pending",
		Title:     "Pending",
		FireAt:    clock.Now().Add(2 * time.Hour),
		State:     domain.StateActive,
		CreatedAt: clock.Now(),
		UpdatedAt: clock.Now(),
	}
	// Completed but still carrying a handle from a previous life.
	staleDone := domain.Reminder{
		ID:            "stale",
		Title:         "Stale",
		FireAt:        clock.Now().Add(-time.Hour),
		State:         domain.StateCompleted,
		TriggerHandle: "dead-handle",
		CreatedAt:     clock.Now().Add(-2 * time.Hour),
		UpdatedAt:     clock.Now().Add(-time.Hour),
	}
	store.seed(unscheduled)
	store.seed(staleDone)

	scheduled, err := m.ResyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, scheduled)

	pending, err := store.GetByID(ctx, "pending")
	require.NoError(t, err)
	assert.NotEmpty(t, pending.TriggerHandle)
	assert.Len(t, sched.outstanding("pending"), 1)

	stale, err := store.GetByID(ctx, "stale")
	require.NoError(t, err)
	assert.Empty(t, stale.TriggerHandle)
	assert.True(t, sched.wasCancelled("dead-handle"))
}
