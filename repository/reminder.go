package repository

import (
	"context"

	"github.com/remindgo/backend/domain"
)

// ListFilter selects which lifecycle slice of the collection to return.
type ListFilter string

const (
	FilterActive    ListFilter = "active"
	FilterCompleted ListFilter = "completed"
)

// ReminderStore is the persistence contract for reminder records.
//
// Put is an upsert keyed by reminder id. Implementations guarantee
// read-after-write consistency within a single process only; there is no
// concurrent-writer model. List returns Active reminders ordered by
// ascending fire time and Completed reminders ordered by descending update
// time. I/O failures surface as STORAGE domain errors.
type ReminderStore interface {
	GetByID(ctx context.Context, id string) (*domain.Reminder, error)
	GetAll(ctx context.Context) ([]domain.Reminder, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Reminder, error)
	Put(ctx context.Context, reminder *domain.Reminder) error
	Delete(ctx context.Context, id string) error
}
