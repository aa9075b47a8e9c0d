// Package arena turns inbound chat events into matchmaking, battle and
// rematch operations and pushes the resulting notifications.
//
// State is always mutated first (queue, coordinator, broker); notifications
// are sent afterwards without holding any lock, so a stalled delivery to one
// player never blocks the other.
package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/vocab-battle-bot/internal/battle"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/matchqueue"
	"github.com/park285/vocab-battle-bot/internal/metrics"
	"github.com/park285/vocab-battle-bot/internal/obslog"
	"github.com/park285/vocab-battle-bot/internal/rematch"
	"go.uber.org/zap"
)

const pairAttempts = 3

type Options struct {
	// PendingTTL bounds how long a player may wait in the queue.
	PendingTTL time.Duration
	// RecentTTL is how long a finished pairing is remembered for rematch.
	RecentTTL     time.Duration
	SweepInterval time.Duration
	SendTimeout   time.Duration

	Now    func() time.Time
	Logger *zap.Logger
}

type recentMatch struct {
	opponent  battle.Participant
	cfg       domain.BattleConfig
	sessionID int64
	until     time.Time
}

type Arena struct {
	queue   matchqueue.Queue
	coord   *battle.Coordinator
	broker  *rematch.Broker
	notify  Notifier
	answers AnswerRecorder
	metrics *metrics.Metrics
	opts    Options
	logger  *zap.Logger

	recentMu sync.Mutex
	recent   map[string]recentMatch

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(queue matchqueue.Queue, coord *battle.Coordinator, broker *rematch.Broker, notify Notifier, answers AnswerRecorder, m *metrics.Metrics, opts Options) (*Arena, error) {
	switch {
	case queue == nil:
		return nil, fmt.Errorf("match queue is required")
	case coord == nil:
		return nil, fmt.Errorf("battle coordinator is required")
	case broker == nil:
		return nil, fmt.Errorf("rematch broker is required")
	case notify == nil:
		return nil, fmt.Errorf("notifier is required")
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 30 * time.Minute
	}
	if opts.RecentTTL <= 0 {
		opts.RecentTTL = rematch.DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = obslog.L()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Arena{
		queue:   queue,
		coord:   coord,
		broker:  broker,
		notify:  notify,
		answers: answers,
		metrics: m,
		opts:    opts,
		logger:  logger,
		recent:  make(map[string]recentMatch),
		baseCtx: ctx,
		cancel:  cancel,
	}, nil
}

// Dispatch routes one inbound event.
func (a *Arena) Dispatch(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case RequestBattle:
		return a.RequestBattle(ctx, e)
	case SubmitAnswer:
		return a.SubmitAnswer(ctx, e)
	case CancelWait:
		return a.CancelWait(ctx, e)
	case RespondRematch:
		return a.RespondRematch(ctx, e)
	case CancelRematch:
		return a.CancelRematch(ctx, e)
	case ChannelFailure:
		a.ChannelFailure(ctx, e.Handle)
		return nil
	default:
		return ErrUnknownEvent
	}
}

func (a *Arena) RequestBattle(ctx context.Context, ev RequestBattle) error {
	p := battle.Participant{PlayerID: strings.TrimSpace(ev.PlayerID), Handle: ev.Handle}
	if p.PlayerID == "" {
		return battle.ErrInvalidArgs
	}
	if _, busy := a.coord.MatchFor(p.PlayerID); busy {
		a.reject(ctx, p, battle.ErrPlayerBusy)
		return battle.ErrPlayerBusy
	}
	if ev.WantsRematch {
		return a.requestRematch(ctx, p)
	}
	if !ev.Config.Valid() {
		a.reject(ctx, p, battle.ErrInvalidArgs)
		return battle.ErrInvalidArgs
	}

	for attempt := 1; attempt <= pairAttempts; attempt++ {
		res, err := a.queue.EnqueueOrPair(ctx, p.PlayerID, p.Handle, ev.Config)
		if err != nil {
			a.logger.Warn("queue_request_error", zap.String("player_id", p.PlayerID), zap.Error(err))
			a.reject(ctx, p, err)
			return err
		}
		if !res.Paired {
			a.send(ctx, p.Handle, func(ctx context.Context) error {
				return a.notify.Waiting(ctx, p, ev.Config, res.Replaced)
			})
			return nil
		}

		a.metrics.QueuePairings.Inc()
		waiter := battle.Participant{PlayerID: res.Opponent.PlayerID, Handle: res.Opponent.Handle}
		m, err := a.coord.StartMatch(ctx, waiter, p, ev.Config)
		if errors.Is(err, battle.ErrPlayerBusy) {
			if _, busy := a.coord.MatchFor(p.PlayerID); !busy {
				// the waiter got into another match; its entry is spent, try the next one
				a.logger.Info("queue_stale_opponent", zap.String("player_id", p.PlayerID), zap.String("opponent_id", waiter.PlayerID))
				continue
			}
		}
		if err != nil {
			a.logger.Warn("match_start_error", zap.String("config", ev.Config.Key()), zap.Error(err))
			a.reject(ctx, waiter, err)
			a.reject(ctx, p, err)
			return err
		}
		a.launch(m, false)
		return nil
	}
	a.reject(ctx, p, matchqueue.ErrContention)
	return matchqueue.ErrContention
}

func (a *Arena) requestRematch(ctx context.Context, p battle.Participant) error {
	rm, ok := a.recentFor(p.PlayerID)
	if !ok {
		a.reject(ctx, p, ErrNoRecentOpponent)
		return ErrNoRecentOpponent
	}
	if _, err := a.broker.Request(ctx, p, rm.opponent, rm.cfg, rm.sessionID); err != nil {
		a.reject(ctx, p, err)
		return err
	}
	a.metrics.RematchTickets.WithLabelValues("requested").Inc()
	return nil
}

func (a *Arena) SubmitAnswer(ctx context.Context, ev SubmitAnswer) error {
	p := battle.Participant{PlayerID: strings.TrimSpace(ev.PlayerID), Handle: ev.Handle}
	m, ok := a.coord.MatchFor(p.PlayerID)
	if !ok {
		a.reject(ctx, p, ErrNoActiveMatch)
		return ErrNoActiveMatch
	}
	out, err := a.coord.SubmitAnswer(m.ID, p.PlayerID, ev.Choice)
	if err != nil {
		a.reject(ctx, p, err)
		return err
	}
	if a.answers != nil {
		a.answers.RecordAnswer(out.PlayerID, out.WordID, out.Correct, a.opts.Now())
	}

	switch out.Kind {
	case battle.OutcomeNextQuestion:
		a.sendInPlay(ctx, out.Handle,
			func(ctx context.Context) error { return a.notify.AnswerFeedback(ctx, *out) },
			func(ctx context.Context) error { return a.notify.DeliverQuestion(ctx, *out.Next) },
		)
	case battle.OutcomeWaitingForOpponent:
		a.sendInPlay(ctx, out.Handle,
			func(ctx context.Context) error { return a.notify.AnswerFeedback(ctx, *out) },
			func(ctx context.Context) error {
				return a.notify.WaitingForOpponent(ctx, WaitingView{
					MatchID: out.MatchID,
					Player:  battle.Participant{PlayerID: out.PlayerID, Handle: out.Handle},
					Score:   out.Score,
					Total:   len(m.Questions),
					Elapsed: out.Elapsed,
				})
			},
		)
	case battle.OutcomeFinished:
		a.send(ctx, out.Handle, func(ctx context.Context) error { return a.notify.AnswerFeedback(ctx, *out) })
		a.publishResult(ctx, out.Result, nil)
	}
	return nil
}

func (a *Arena) CancelWait(ctx context.Context, ev CancelWait) error {
	p := battle.Participant{PlayerID: strings.TrimSpace(ev.PlayerID), Handle: ev.Handle}
	removed, err := a.queue.Cancel(ctx, p.PlayerID)
	if err != nil {
		a.reject(ctx, p, err)
		return err
	}
	if !removed {
		a.reject(ctx, p, ErrNotWaiting)
		return ErrNotWaiting
	}
	a.send(ctx, p.Handle, func(ctx context.Context) error { return a.notify.WaitCancelled(ctx, p) })
	return nil
}

func (a *Arena) RespondRematch(ctx context.Context, ev RespondRematch) error {
	actor := battle.Participant{PlayerID: strings.TrimSpace(ev.PlayerID), Handle: ev.Handle}
	if !ev.Accept {
		if _, err := a.broker.Decline(ctx, ev.TicketID, actor.PlayerID); err != nil {
			a.reject(ctx, actor, err)
			return err
		}
		a.metrics.RematchTickets.WithLabelValues("declined").Inc()
		return nil
	}

	m, t, err := a.broker.Accept(ctx, ev.TicketID, actor.PlayerID)
	if err != nil {
		a.reject(ctx, actor, err)
		if t != nil {
			a.metrics.RematchTickets.WithLabelValues("failed").Inc()
			a.reject(ctx, battle.Participant{PlayerID: t.RequesterID, Handle: t.RequesterHandle}, err)
		}
		return err
	}
	a.metrics.RematchTickets.WithLabelValues("accepted").Inc()
	for _, part := range m.Participants() {
		if _, err := a.queue.Cancel(ctx, part.PlayerID); err != nil {
			a.logger.Warn("queue_cancel_error", zap.String("player_id", part.PlayerID), zap.Error(err))
		}
	}
	a.launch(m, true)
	return nil
}

func (a *Arena) CancelRematch(ctx context.Context, ev CancelRematch) error {
	actor := battle.Participant{PlayerID: strings.TrimSpace(ev.PlayerID), Handle: ev.Handle}
	if _, err := a.broker.Cancel(ctx, ev.TicketID, actor.PlayerID); err != nil {
		a.reject(ctx, actor, err)
		return err
	}
	a.metrics.RematchTickets.WithLabelValues("cancelled").Inc()
	return nil
}

// ChannelFailure abandons every match reachable through h and tells the
// remaining players.
func (a *Arena) ChannelFailure(ctx context.Context, h domain.OutboundHandle) {
	results := a.coord.ChannelFailure(h)
	for _, res := range results {
		a.publishResult(ctx, res, map[domain.OutboundHandle]bool{h: true})
	}
}

// launch announces the match and runs its countdown in the background.
func (a *Arena) launch(m *battle.Match, isRematch bool) {
	a.metrics.MatchesStarted.Inc()
	a.metrics.ActiveMatches.Set(float64(a.coord.Active()))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runMatch(m, isRematch)
	}()
}

func (a *Arena) runMatch(m *battle.Match, isRematch bool) {
	ctx := a.baseCtx
	parts := m.Participants()

	intros := make([]delivery, 0, 2)
	for i, part := range parts {
		intro := MatchIntro{
			MatchID:    m.ID,
			Player:     part,
			OpponentID: parts[1-i].PlayerID,
			Config:     m.Config,
			Total:      len(m.Questions),
			Rematch:    isRematch,
		}
		intros = append(intros, delivery{handle: part.Handle, send: func(ctx context.Context) error { return a.notify.MatchFound(ctx, intro) }})
	}
	if a.deliverInPlay(ctx, intros...) {
		return
	}

	views, err := a.coord.BeginCountdown(ctx, m.ID, func(remaining int) {
		ticks := make([]delivery, 0, 2)
		for _, h := range uniqueHandles(parts) {
			ticks = append(ticks, delivery{handle: h, send: func(ctx context.Context) error {
				return a.notify.Countdown(ctx, h, m.ID, remaining)
			}})
		}
		a.deliverInPlay(ctx, ticks...)
	})
	if err != nil {
		if !errors.Is(err, battle.ErrMatchClosed) && !errors.Is(err, context.Canceled) {
			a.logger.Warn("match_countdown_error", zap.String("match_id", m.ID), zap.Error(err))
		}
		return
	}

	first := make([]delivery, 0, len(views))
	for _, v := range views {
		first = append(first, delivery{handle: v.Handle, send: func(ctx context.Context) error { return a.notify.DeliverQuestion(ctx, v) }})
	}
	a.deliverInPlay(ctx, first...)
}

func (a *Arena) publishResult(ctx context.Context, res *battle.Result, skip map[domain.OutboundHandle]bool) {
	if res == nil {
		return
	}
	if res.Reason == battle.ReasonCompleted {
		outcome := "win"
		if res.WinnerID == "" {
			outcome = "draw"
		}
		a.metrics.MatchesFinished.WithLabelValues(outcome).Inc()
	} else {
		a.metrics.MatchesAbandoned.WithLabelValues(string(res.Reason)).Inc()
	}
	a.metrics.ActiveMatches.Set(float64(a.coord.Active()))
	a.remember(res)

	views := make([]delivery, 0, 2)
	for _, v := range res.Views() {
		if skip[v.Handle] {
			continue
		}
		views = append(views, delivery{handle: v.Handle, send: func(ctx context.Context) error { return a.notify.DeliverResult(ctx, v) }})
	}
	for h := range a.deliver(ctx, views...) {
		a.logger.Warn("result_delivery_failed", zap.String("match_id", res.MatchID), zap.String("handle", string(h)))
	}
}

func (a *Arena) remember(res *battle.Result) {
	until := a.opts.Now().Add(a.opts.RecentTTL)
	a.recentMu.Lock()
	defer a.recentMu.Unlock()
	a.recent[res.Player1.PlayerID] = recentMatch{opponent: res.Player2, cfg: res.Config, sessionID: res.SessionID, until: until}
	a.recent[res.Player2.PlayerID] = recentMatch{opponent: res.Player1, cfg: res.Config, sessionID: res.SessionID, until: until}
}

func (a *Arena) recentFor(playerID string) (recentMatch, bool) {
	a.recentMu.Lock()
	defer a.recentMu.Unlock()
	rm, ok := a.recent[playerID]
	if !ok || !a.opts.Now().Before(rm.until) {
		return recentMatch{}, false
	}
	return rm, true
}

func (a *Arena) reject(ctx context.Context, p battle.Participant, err error) {
	a.send(ctx, p.Handle, func(ctx context.Context) error { return a.notify.Rejected(ctx, p, err) })
}

// Close stops background countdowns and waits for them to return.
func (a *Arena) Close(ctx context.Context) error {
	a.cancel()
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func uniqueHandles(parts [2]battle.Participant) []domain.OutboundHandle {
	if parts[0].Handle == parts[1].Handle {
		return []domain.OutboundHandle{parts[0].Handle}
	}
	return []domain.OutboundHandle{parts[0].Handle, parts[1].Handle}
}
