package worker

import (
	"context"
	"time"

	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

// Sweeper libera estado expirado em memória (ex.: visitantes do rate limiter).
type Sweeper interface {
	Cleanup()
}

// SweepWorker roda independente dos outros workers, que podem estar desligados
// por configuração.
type SweepWorker struct {
	sweepers []Sweeper
	interval time.Duration
}

func NewSweepWorker(interval time.Duration, sweepers ...Sweeper) *SweepWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepWorker{sweepers: sweepers, interval: interval}
}

func (w *SweepWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Get().Debug("sweep worker encerrado")
			return
		case <-ticker.C:
			for _, s := range w.sweepers {
				s.Cleanup()
			}
		}
	}
}
