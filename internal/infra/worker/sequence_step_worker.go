package worker

import (
	"context"
	"time"

	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

// StepDispatcher é o DispatchSequenceStepsUseCase em produção.
type StepDispatcher interface {
	Execute(ctx context.Context) (int, error)
}

type SequenceStepWorker struct {
	dispatcher   StepDispatcher
	tickInterval time.Duration
}

func NewSequenceStepWorker(dispatcher StepDispatcher, tick time.Duration) *SequenceStepWorker {
	if tick <= 0 {
		tick = time.Minute
	}
	return &SequenceStepWorker{
		dispatcher:   dispatcher,
		tickInterval: tick,
	}
}

func (w *SequenceStepWorker) Start(ctx context.Context) {
	log := logger.Get()
	log.WithField("interval", w.tickInterval.String()).Info("worker de sequências iniciado")

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("worker de sequências encerrado")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *SequenceStepWorker) run(ctx context.Context) {
	sent, err := w.dispatcher.Execute(ctx)
	if err != nil {
		logger.LogError(logger.Get(), "worker", "SequenceStepWorker.run", "falha ao despachar passos", nil, err)
	} else if sent > 0 {
		logger.Get().WithField("sent", sent).Info("passos de sequência enviados")
	}
}
