package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeMaintainer struct {
	sweeps  atomic.Int64
	resyncs atomic.Int64
}

func (f *fakeMaintainer) Sweep(ctx context.Context) (int, error) {
	f.sweeps.Add(1)
	return 0, nil
}

func (f *fakeMaintainer) ResyncAll(ctx context.Context) (int, error) {
	f.resyncs.Add(1)
	return 0, nil
}

func TestSweeperRunsStartupPass(t *testing.T) {
	maintainer := &fakeMaintainer{}
	sweeper := NewSweeper(maintainer, nil, SweeperConfig{Interval: time.Hour})

	sweeper.Start()
	defer sweeper.Stop(context.Background())

	assert.Equal(t, int64(1), maintainer.resyncs.Load())
	assert.Equal(t, int64(1), maintainer.sweeps.Load())
}

func TestSweeperDefaultInterval(t *testing.T) {
	sweeper := NewSweeper(&fakeMaintainer{}, nil, SweeperConfig{})
	assert.Equal(t, 15*time.Minute, sweeper.cfg.Interval)
}
