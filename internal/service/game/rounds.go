package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

const timeoutFinalizeBudget = 10 * time.Second

// armRoundTimer schedules the timeout for the round that started at round.
// attempt counts previous failed finalize tries for the same round.
func (svc *Service) armRoundTimer(code string, round time.Time, d time.Duration, attempt int) {
	svc.timers.arm(code, d, func() {
		svc.handleRoundTimeout(code, round, attempt)
	})
}

func (svc *Service) handleRoundTimeout(code string, round time.Time, attempt int) {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutFinalizeBudget)
	defer cancel()

	unlock := svc.locks.Lock(code)
	defer unlock()

	if _, err := svc.timeoutRound(ctx, code, round); err != nil {
		logger := log.With().Str("component", "timer").Str("code", code).Int("attempt", attempt+1).Logger()
		if attempt >= svc.opts.MaxTimeoutRetries {
			logger.Error().Err(err).Msg("round timeout finalize failed, leaving it to the sweeper")
			return
		}
		logger.Warn().Err(err).Dur("retry_in", svc.opts.RetryInterval).Msg("round timeout finalize failed, retrying")
		svc.armRoundTimer(code, round, svc.opts.RetryInterval, attempt+1)
	}
}

// timeoutRound ends the round that started at round with no winner.
// It does nothing when the session is gone or has moved on to another state or round.
// The caller holds the code lock.
func (svc *Service) timeoutRound(ctx context.Context, code string, round time.Time) (bool, error) {
	sess, err := svc.store.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load session %s: %w", code, err)
	}
	if sess.Status != domain.StatusInProgress || sess.StartTime == nil || !sess.StartTime.Equal(round) {
		return false, nil
	}

	if err := svc.finalize(ctx, sess, ""); err != nil {
		return false, err
	}

	log.Info().Str("component", "timer").Str("code", code).Msg("round timed out")
	svc.appendSystem(ctx, sess, fmt.Sprintf("Time's up! The answer was %s", sess.Answer))
	svc.publishUpdate(ctx, sess)
	svc.publishTimeout(code)
	return true, nil
}

// RecoveryReport counts what RecoverRounds did.
type RecoveryReport struct {
	Finalized int
	Rearmed   int
}

// RecoverRounds finds live rounds without a pending timer. Overdue rounds are
// timed out now and the rest get a timer for their remaining time.
func (svc *Service) RecoverRounds(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	sessions, err := svc.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list sessions: %w", err)
	}

	var firstErr error
	for i := range sessions {
		if sessions[i].Status != domain.StatusInProgress || svc.timers.pending(sessions[i].Code) {
			continue
		}
		finalized, rearmed, err := svc.recoverRound(ctx, sessions[i].Code)
		if err != nil {
			log.Error().Err(err).Str("component", "timer").Str("code", sessions[i].Code).Msg("round recovery failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if finalized {
			report.Finalized++
		}
		if rearmed {
			report.Rearmed++
		}
	}
	return report, firstErr
}

func (svc *Service) recoverRound(ctx context.Context, code string) (finalized, rearmed bool, err error) {
	unlock := svc.locks.Lock(code)
	defer unlock()

	// re-check under the lock, a request may have moved the round on
	if svc.timers.pending(code) {
		return false, false, nil
	}
	sess, err := svc.store.GetByCode(ctx, code)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	if sess.Status != domain.StatusInProgress || sess.StartTime == nil {
		return false, false, nil
	}

	round := *sess.StartTime
	remaining := round.Add(svc.opts.RoundDuration).Sub(svc.now())
	if remaining > 0 {
		svc.armRoundTimer(code, round, remaining, 0)
		return false, true, nil
	}

	finalized, err = svc.timeoutRound(ctx, code, round)
	return finalized, false, err
}
