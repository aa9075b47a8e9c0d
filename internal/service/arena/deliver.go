package arena

import (
	"context"
	"sync"

	"github.com/park285/vocab-battle-bot/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type delivery struct {
	handle domain.OutboundHandle
	send   func(ctx context.Context) error
}

// deliver sends to every handle concurrently and returns the handles that
// failed. One slow handle never delays the others past SendTimeout.
func (a *Arena) deliver(ctx context.Context, ds ...delivery) map[domain.OutboundHandle]bool {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed map[domain.OutboundHandle]bool
	)
	for _, d := range ds {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, a.opts.SendTimeout)
			defer cancel()
			if err := d.send(sctx); err != nil {
				a.metrics.DeliveryFailures.Inc()
				a.logger.Warn("delivery_failed", zap.String("handle", string(d.handle)), zap.Error(err))
				mu.Lock()
				if failed == nil {
					failed = make(map[domain.OutboundHandle]bool)
				}
				failed[d.handle] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// deliverInPlay is deliver for messages a running match depends on: a
// handle that cannot be reached forfeits its matches. It reports whether
// anything failed.
func (a *Arena) deliverInPlay(ctx context.Context, ds ...delivery) bool {
	failed := a.deliver(ctx, ds...)
	for h := range failed {
		a.ChannelFailure(ctx, h)
	}
	return len(failed) > 0
}

// send delivers informational messages; failures are only logged.
func (a *Arena) send(ctx context.Context, h domain.OutboundHandle, fns ...func(ctx context.Context) error) bool {
	for _, fn := range fns {
		if len(a.deliver(ctx, delivery{handle: h, send: fn})) > 0 {
			return false
		}
	}
	return true
}

// sendInPlay delivers ordered in-match messages to one handle.
func (a *Arena) sendInPlay(ctx context.Context, h domain.OutboundHandle, fns ...func(ctx context.Context) error) {
	if !a.send(ctx, h, fns...) {
		a.ChannelFailure(ctx, h)
	}
}
