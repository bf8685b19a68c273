package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Maintainer abstracts the lifecycle manager's housekeeping operations.
type Maintainer interface {
	Sweep(ctx context.Context) (int, error)
	ResyncAll(ctx context.Context) (int, error)
}

// SweeperConfig controls how often housekeeping runs.
type SweeperConfig struct {
	Interval time.Duration
}

// Sweeper periodically resynchronizes trigger registrations and archives
// long-overdue reminders. The first pass runs at startup so a restarted
// process rebuilds its in-memory triggers before serving traffic.
type Sweeper struct {
	maintainer Maintainer
	logger     *zap.Logger
	cron       *cron.Cron
	cfg        SweeperConfig
}

func NewSweeper(maintainer Maintainer, logger *zap.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		maintainer: maintainer,
		logger:     logger,
		cfg:        cfg,
		cron:       cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = s.cron.AddFunc(schedule, s.runOnce)

	return s
}

// Start runs one immediate housekeeping pass and launches the cron schedule.
func (s *Sweeper) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.runOnce()
	s.cron.Start()
	s.logger.Info("housekeeping sweeper started", zap.Duration("interval", s.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (s *Sweeper) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("housekeeping sweeper stopped")
}

func (s *Sweeper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Interval)
	defer cancel()

	if scheduled, err := s.maintainer.ResyncAll(ctx); err != nil {
		s.logger.Error("trigger resync failed", zap.Error(err))
	} else if scheduled > 0 {
		s.logger.Debug("triggers resynchronized", zap.Int("scheduled", scheduled))
	}

	if _, err := s.maintainer.Sweep(ctx); err != nil {
		s.logger.Error("housekeeping sweep failed", zap.Error(err))
	}
}
