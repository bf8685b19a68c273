package redisq

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/remindgo/backend/domain"
	"github.com/remindgo/backend/scheduler"
)

const (
	queueKey   = "triggers:queue"
	payloadKey = "triggers:payload"
)

// Scheduler persists triggers in a Redis sorted set scored by fire time and
// polls for due members. Handles survive process restarts, so a restarted
// consumer can cancel registrations it made in a previous life.
type Scheduler struct {
	client   *redislib.Client
	interval time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	nextSub int
	subs    map[int]scheduler.FireHandler
}

func New(client *redislib.Client, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		client:   client,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		subs:     make(map[int]scheduler.FireHandler),
	}
}

func (s *Scheduler) Schedule(ctx context.Context, fireAt time.Time, reminderID string) (scheduler.Handle, error) {
	handle := scheduler.Handle(uuid.NewString())

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, queueKey, redislib.Z{
		Score:  float64(fireAt.UnixMilli()),
		Member: string(handle),
	})
	pipe.HSet(ctx, payloadKey, string(handle), reminderID)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", domain.WrapError(domain.ErrCodeScheduler, "failed to register trigger", err)
	}
	return handle, nil
}

// Cancel removes the handle from the queue. Handles that already fired or
// were cancelled before are simply gone; that is not an error.
func (s *Scheduler) Cancel(ctx context.Context, handle scheduler.Handle) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, queueKey, string(handle))
	pipe.HDel(ctx, payloadKey, string(handle))
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.WrapError(domain.ErrCodeScheduler, "failed to cancel trigger", err)
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

// Start launches the polling loop.
func (s *Scheduler) Start() {
	go s.loop()
}

// Stop terminates the polling loop.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.drainDue()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) drainDue() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	now := time.Now()
	handles, err := s.client.ZRangeByScore(ctx, queueKey, &redislib.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: 100,
	}).Result()
	if err != nil {
		s.logger.Warn("trigger poll failed", zap.Error(err))
		return
	}

	for _, handle := range handles {
		removed, err := s.client.ZRem(ctx, queueKey, handle).Result()
		if err != nil {
			s.logger.Warn("trigger dequeue failed", zap.String("handle", handle), zap.Error(err))
			continue
		}
		if removed == 0 {
			// Cancelled between the range read and the removal.
			continue
		}

		reminderID, err := s.client.HGet(ctx, payloadKey, handle).Result()
		if err != nil {
			if err != redislib.Nil {
				s.logger.Warn("trigger payload read failed", zap.String("handle", handle), zap.Error(err))
			}
			continue
		}
		_ = s.client.HDel(ctx, payloadKey, handle).Err()

		s.dispatch(ctx, scheduler.FireEvent{
			ReminderID: reminderID,
			Handle:     scheduler.Handle(handle),
			FiredAt:    now,
		})
	}
}

func (s *Scheduler) dispatch(ctx context.Context, event scheduler.FireEvent) {
	s.mu.Lock()
	handlers := make([]scheduler.FireHandler, 0, len(s.subs))
	for _, h := range s.subs {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	s.logger.Debug("trigger fired",
		zap.String("reminder_id", event.ReminderID),
		zap.String("handle", string(event.Handle)))
	for _, h := range handlers {
		h(ctx, event)
	}
}

var (
	_ scheduler.TriggerScheduler = (*Scheduler)(nil)
	_ scheduler.Source           = (*Scheduler)(nil)
)
