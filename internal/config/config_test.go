package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "remindgo", cfg.AppName)
	assert.Equal(t, StorageBolt, cfg.Storage.Driver)
	assert.Equal(t, SchedulerTimer, cfg.Scheduler.Driver)
	assert.Equal(t, time.Second, cfg.Scheduler.PollInterval)
	assert.Equal(t, 15*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 50, cfg.Alerts.Limit)
	assert.Equal(t, "./data/reminders.db", cfg.Bolt.Path)
	assert.Equal(t, "0.0.0.0:8080", cfg.Address())
	assert.NotEmpty(t, cfg.Database.URL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StoragePostgres)
	t.Setenv("SCHEDULER_DRIVER", SchedulerRedis)
	t.Setenv("SWEEP_INTERVAL", "1m")
	t.Setenv("ALERTS_LIMIT", "10")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, SchedulerRedis, cfg.Scheduler.Driver)
	assert.Equal(t, time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, 10, cfg.Alerts.Limit)
	assert.Equal(t, "0.0.0.0:9090", cfg.Address())
}

func TestDatabaseURLFromParts(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_NAME", "reminders")
	t.Setenv("DB_USER", "svc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Contains(t, cfg.Database.URL, "db.internal")
	assert.Contains(t, cfg.Database.URL, "/reminders")
}

func TestDurationFallsBackToSeconds(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "90")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Sweep.Interval)
}
