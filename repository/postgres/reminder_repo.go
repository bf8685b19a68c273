package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/remindgo/backend/domain"
	"github.com/remindgo/backend/repository"
)

type reminderStore struct {
	pool *pgxpool.Pool
}

// NewReminderStore returns a Postgres-backed implementation of ReminderStore.
func NewReminderStore(pool *pgxpool.Pool) repository.ReminderStore {
	return &reminderStore{pool: pool}
}

const reminderColumns = `id, title, description, fire_at, state, trigger_handle, created_at, updated_at`

func (r *reminderStore) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanReminder(row)
}

func (r *reminderStore) GetAll(ctx context.Context) ([]domain.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders ORDER BY created_at`
	return r.queryMany(ctx, query)
}

func (r *reminderStore) List(ctx context.Context, filter repository.ListFilter) ([]domain.Reminder, error) {
	switch filter {
	case repository.FilterActive:
		query := `SELECT ` + reminderColumns + ` FROM reminders WHERE state = 'active' ORDER BY fire_at ASC`
		return r.queryMany(ctx, query)
	case repository.FilterCompleted:
		query := `SELECT ` + reminderColumns + ` FROM reminders WHERE state = 'completed' ORDER BY updated_at DESC`
		return r.queryMany(ctx, query)
	default:
		return nil, domain.NewError(domain.ErrCodeInvalid, "unknown list filter")
	}
}

func (r *reminderStore) Put(ctx context.Context, rem *domain.Reminder) error {
	if rem == nil || rem.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO reminders (id, title, description, fire_at, state, trigger_handle, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		fire_at = EXCLUDED.fire_at,
		state = EXCLUDED.state,
		trigger_handle = EXCLUDED.trigger_handle,
		updated_at = EXCLUDED.updated_at
	`

	var handle interface{}
	if rem.TriggerHandle != "" {
		handle = rem.TriggerHandle
	}

	if _, err := r.pool.Exec(ctx, query,
		rem.ID,
		rem.Title,
		rem.Description,
		rem.FireAt,
		string(rem.State),
		handle,
		rem.CreatedAt,
		rem.UpdatedAt,
	); err != nil {
		return domain.WrapError(domain.ErrCodeStorage, "failed to write reminder", err)
	}
	return nil
}

func (r *reminderStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM reminders WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return domain.WrapError(domain.ErrCodeStorage, "failed to delete reminder", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReminderNotFound
	}
	return nil
}

func (r *reminderStore) queryMany(ctx context.Context, query string) ([]domain.Reminder, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeStorage, "failed to query reminders", err)
	}
	defer rows.Close()

	var reminders []domain.Reminder
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *rem)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrCodeStorage, "failed to read reminders", err)
	}
	return reminders, nil
}

func scanReminder(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Reminder, error) {
	var (
		rem    domain.Reminder
		state  string
		handle *string
	)

	if err := row.Scan(
		&rem.ID,
		&rem.Title,
		&rem.Description,
		&rem.FireAt,
		&state,
		&handle,
		&rem.CreatedAt,
		&rem.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReminderNotFound
		}
		return nil, domain.WrapError(domain.ErrCodeStorage, "failed to read reminder", err)
	}

	rem.State = domain.State(state)
	if handle != nil {
		rem.TriggerHandle = *handle
	}
	return &rem, nil
}
