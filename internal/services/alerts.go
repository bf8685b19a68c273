package services

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/remindgo/backend/domain"
)

// Alert is a due reminder as delivered to the presentation layer.
type Alert struct {
	Reminder domain.Reminder `json:"reminder"`
	FiredAt  time.Time       `json:"fired_at"`
}

// AlertFeed retains the most recent due events in memory so the presentation
// layer can render them. The feed is bounded; old entries fall off the end.
type AlertFeed struct {
	logger *zap.Logger
	limit  int
	now    func() time.Time

	mu     sync.RWMutex
	alerts []Alert
}

func NewAlertFeed(limit int, logger *zap.Logger) *AlertFeed {
	if limit <= 0 {
		limit = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertFeed{
		logger: logger,
		limit:  limit,
		now:    time.Now,
	}
}

// Record appends a due reminder to the feed. It satisfies the lifecycle
// manager's DueHandler signature.
func (f *AlertFeed) Record(rem domain.Reminder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.alerts = append([]Alert{{Reminder: rem, FiredAt: f.now()}}, f.alerts...)
	if len(f.alerts) > f.limit {
		f.alerts = f.alerts[:f.limit]
	}
	f.logger.Debug("alert recorded", zap.String("reminder_id", rem.ID))
}

// Recent returns the retained alerts, newest first.
func (f *AlertFeed) Recent() []Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Alert, len(f.alerts))
	copy(out, f.alerts)
	return out
}
