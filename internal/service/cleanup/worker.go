package cleanup

import (
	"context"
	"time"

	"github.com/iamasit07/guess-master/backend/internal/service/game"
	"github.com/rs/zerolog/log"
)

const DefaultInterval = 30 * time.Second

// RoundRecoverer finalizes or re-arms rounds that lost their timer.
type RoundRecoverer interface {
	RecoverRounds(ctx context.Context) (game.RecoveryReport, error)
}

// Worker periodically sweeps for stuck rounds, for example after a restart
// or a timeout finalize that kept failing.
type Worker struct {
	Rounds   RoundRecoverer
	Interval time.Duration
}

func NewWorker(rounds RoundRecoverer, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Worker{Rounds: rounds, Interval: interval}
}

// Start runs a sweep immediately and then on every tick until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	log.Info().Str("component", "cleanup").Dur("interval", w.Interval).Msg("background worker started")
	w.runSweep(ctx)

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("component", "cleanup").Msg("background worker stopped")
			return
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

func (w *Worker) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, w.Interval)
	defer cancel()

	report, err := w.Rounds.RecoverRounds(sweepCtx)
	if err != nil {
		log.Error().Err(err).Str("component", "cleanup").Msg("round sweep failed")
	}
	if report.Finalized > 0 || report.Rearmed > 0 {
		log.Info().Str("component", "cleanup").
			Int("finalized", report.Finalized).
			Int("rearmed", report.Rearmed).
			Msg("recovered stuck rounds")
	}
}
