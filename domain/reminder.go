package domain

import "time"

// State is the single lifecycle tag of a reminder. A reminder is always in
// exactly one state; Archived is the housekeeping bucket for long-overdue
// reminders that were never acknowledged, distinct from Completed.
type State string

const (
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateArchived  State = "archived"
)

func (s State) Valid() bool {
	switch s {
	case StateActive, StateCompleted, StateArchived:
		return true
	}
	return false
}

// Reminder is a time-based alert owned by the local user.
//
// TriggerHandle references the one outstanding platform trigger for this
// reminder; it is empty unless the reminder is Active with a future FireAt
// as of the last synchronization.
type Reminder struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	FireAt        time.Time `json:"fire_at"`
	State         State     `json:"state"`
	TriggerHandle string    `json:"trigger_handle,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (r *Reminder) IsActive() bool {
	return r != nil && r.State == StateActive
}

func (r *Reminder) IsCompleted() bool {
	return r != nil && r.State == StateCompleted
}

// Overdue reports whether the reminder's fire time has already passed at the
// given reference instant.
func (r *Reminder) Overdue(reference time.Time) bool {
	if r == nil {
		return false
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !r.FireAt.After(reference)
}
