package bolt

import (
	"context"
	"encoding/json"
	"sort"

	bboltlib "go.etcd.io/bbolt"

	"github.com/remindgo/backend/domain"
	"github.com/remindgo/backend/repository"
)

var bucketReminders = []byte("reminders")

type reminderStore struct {
	db *bboltlib.DB
}

// NewReminderStore returns a BoltDB-backed implementation of ReminderStore.
// Records live in a single bucket as JSON blobs keyed by reminder id.
func NewReminderStore(db *bboltlib.DB) (repository.ReminderStore, error) {
	if err := db.Update(func(tx *bboltlib.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReminders)
		return err
	}); err != nil {
		return nil, domain.WrapError(domain.ErrCodeStorage, "failed to prepare reminder bucket", err)
	}
	return &reminderStore{db: db}, nil
}

func (r *reminderStore) GetByID(ctx context.Context, id string) (*domain.Reminder, error) {
	var rem *domain.Reminder
	err := r.db.View(func(tx *bboltlib.Tx) error {
		raw := tx.Bucket(bucketReminders).Get([]byte(id))
		if raw == nil {
			return domain.ErrReminderNotFound
		}
		var decoded domain.Reminder
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return domain.WrapError(domain.ErrCodeStorage, "corrupt reminder record", err)
		}
		rem = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rem, nil
}

func (r *reminderStore) GetAll(ctx context.Context) ([]domain.Reminder, error) {
	var reminders []domain.Reminder
	err := r.db.View(func(tx *bboltlib.Tx) error {
		return tx.Bucket(bucketReminders).ForEach(func(k, v []byte) error {
			var rem domain.Reminder
			if err := json.Unmarshal(v, &rem); err != nil {
				return domain.WrapError(domain.ErrCodeStorage, "corrupt reminder record", err)
			}
			reminders = append(reminders, rem)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return reminders, nil
}

func (r *reminderStore) List(ctx context.Context, filter repository.ListFilter) ([]domain.Reminder, error) {
	all, err := r.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var reminders []domain.Reminder
	switch filter {
	case repository.FilterActive:
		for _, rem := range all {
			if rem.State == domain.StateActive {
				reminders = append(reminders, rem)
			}
		}
		sort.Slice(reminders, func(i, j int) bool {
			return reminders[i].FireAt.Before(reminders[j].FireAt)
		})
	case repository.FilterCompleted:
		for _, rem := range all {
			if rem.State == domain.StateCompleted {
				reminders = append(reminders, rem)
			}
		}
		sort.Slice(reminders, func(i, j int) bool {
			return reminders[i].UpdatedAt.After(reminders[j].UpdatedAt)
		})
	default:
		return nil, domain.NewError(domain.ErrCodeInvalid, "unknown list filter")
	}
	return reminders, nil
}

func (r *reminderStore) Put(ctx context.Context, rem *domain.Reminder) error {
	if rem == nil || rem.ID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(rem)
	if err != nil {
		return domain.WrapError(domain.ErrCodeStorage, "failed to encode reminder", err)
	}
	err = r.db.Update(func(tx *bboltlib.Tx) error {
		return tx.Bucket(bucketReminders).Put([]byte(rem.ID), payload)
	})
	if err != nil {
		return domain.WrapError(domain.ErrCodeStorage, "failed to write reminder", err)
	}
	return nil
}

func (r *reminderStore) Delete(ctx context.Context, id string) error {
	return r.db.Update(func(tx *bboltlib.Tx) error {
		bucket := tx.Bucket(bucketReminders)
		if bucket.Get([]byte(id)) == nil {
			return domain.ErrReminderNotFound
		}
		if err := bucket.Delete([]byte(id)); err != nil {
			return domain.WrapError(domain.ErrCodeStorage, "failed to delete reminder", err)
		}
		return nil
	})
}
