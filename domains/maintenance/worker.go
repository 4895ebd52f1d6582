// Package maintenance runs periodic housekeeping: sweeping the download
// materialization cache on a timer so expired entries do not pile up
// between requests.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/gomantics/gitstore/domains/downloads"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepInterval = 10 * time.Minute

// Worker owns the housekeeping loop.
type Worker struct {
	l        *zap.Logger
	streamer *downloads.Streamer
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// StartWorker starts the housekeeping loop on the application lifecycle.
func StartWorker(lc fx.Lifecycle, l *zap.Logger, streamer *downloads.Streamer) {
	worker := &Worker{
		l:        l,
		streamer: streamer,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			workerCtx, cancel := context.WithCancel(context.Background())
			worker.cancel = cancel
			worker.start(workerCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			worker.stop()
			return nil
		},
	})
}

func (w *Worker) start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

func (w *Worker) stop() {
	w.l.Info("stopping maintenance worker")
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// run is the main housekeeping loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	w.l.Info("maintenance worker started")

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.l.Info("maintenance worker stopping")
			return
		case <-ticker.C:
			w.streamer.SweepCache()
		}
	}
}
