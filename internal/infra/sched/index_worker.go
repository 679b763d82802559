package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"fincas-assistant/internal/domain"
	"fincas-assistant/internal/infra/metrics"
	"fincas-assistant/internal/usecase"
)

// Indexer is the part of the indexer use case the worker drives.
type Indexer interface {
	Run(ctx context.Context) (*usecase.IndexReport, error)
}

// IndexWorker re-runs the indexer every interval until the context ends.
type IndexWorker struct {
	interval time.Duration
	indexer  Indexer
	log      *zerolog.Logger
}

func NewIndexWorker(interval time.Duration, indexer Indexer, logger *zerolog.Logger) *IndexWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "IndexWorker").Logger()
	return &IndexWorker{interval: interval, indexer: indexer, log: &l}
}

// Run performs one pass immediately, then one per tick.
func (w *IndexWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting index worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping index worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *IndexWorker) runOnce(ctx context.Context) {
	rep, err := w.indexer.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrIndexInProgress):
		metrics.IncIndexRun("skipped")
		w.log.Info().Msg("index run skipped: another run holds the lock")
	case err != nil:
		metrics.IncIndexRun("error")
		w.log.Error().Err(err).Msg("index worker error")
	default:
		metrics.IncIndexRun("ok")
		w.log.Info().Str("report", rep.String()).Msg("index run done")
	}
}
