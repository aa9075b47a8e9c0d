package arena

import (
	"context"
	"time"

	"github.com/park285/vocab-battle-bot/internal/matchqueue"
	"go.uber.org/zap"
)

// Run sweeps on every SweepInterval until ctx is done.
func (a *Arena) Run(ctx context.Context) {
	ticker := time.NewTicker(a.opts.SweepInterval)
	defer ticker.Stop()
	a.logger.Info("arena_sweeper_start", zap.Duration("interval", a.opts.SweepInterval))
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("arena_sweeper_stop")
			return
		case <-ticker.C:
			a.SweepOnce(ctx)
		}
	}
}

// SweepOnce expires stale queue entries and rematch offers, abandons idle
// matches and forgets old rematch pairings.
func (a *Arena) SweepOnce(ctx context.Context) {
	now := a.opts.Now()

	expired, err := a.queue.Expire(ctx, now.Add(-a.opts.PendingTTL))
	if err != nil {
		a.logger.Warn("queue_expire_error", zap.Error(err))
	}
	for _, e := range expired {
		a.metrics.QueueExpired.Inc()
		a.logger.Info("queue_entry_expired", zap.String("player_id", e.PlayerID), zap.String("config", e.Config.Key()))
		a.send(ctx, e.Handle, func(ctx context.Context) error { return a.notify.WaitExpired(ctx, e) })
	}

	tickets, err := a.broker.Expire(ctx)
	if err != nil {
		a.logger.Warn("rematch_expire_error", zap.Error(err))
	}
	if n := len(tickets); n > 0 {
		a.metrics.RematchTickets.WithLabelValues("expired").Add(float64(n))
	}

	for _, res := range a.coord.Sweep(now) {
		a.publishResult(ctx, res, nil)
	}

	a.recentMu.Lock()
	for id, rm := range a.recent {
		if !now.Before(rm.until) {
			delete(a.recent, id)
		}
	}
	a.recentMu.Unlock()
}

// Waiting reports the caller's queue entry, if any.
func (a *Arena) Waiting(ctx context.Context, playerID string) (*matchqueue.PendingEntry, error) {
	return a.queue.Pending(ctx, playerID)
}
