package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"lchat/logger"
	"lchat/tools/safe"
)

// Worker is one fixed-interval poll job. Cycles are single-flight: a tick
// that fires while the previous cycle is still running is skipped, and the
// flag is released in a defer so a panicking cycle cannot wedge the worker.
type Worker struct {
	name     string
	interval time.Duration
	cycle    func(ctx context.Context) error

	running atomic.Bool
}

func NewWorker(name string, interval time.Duration, cycle func(ctx context.Context) error) *Worker {
	return &Worker{name: name, interval: interval, cycle: cycle}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	logger.Infof("worker started, name=%s interval=%s", w.name, w.interval)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("worker stopped, name=%s", w.name)
			return
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one cycle unless the previous one is still in flight.
func (w *Worker) Tick(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		logger.Debug("cycle still running, skipping tick: " + w.name)
		return
	}
	defer w.running.Store(false)
	safe.Run(w.name, func() {
		if err := w.cycle(ctx); err != nil {
			logger.Errorf("worker cycle failed, name=%s err=%v", w.name, err)
		}
	})
}
