package rematch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/vocab-battle-bot/internal/battle"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/obslog"
	"go.uber.org/zap"
)

const DefaultTTL = 5 * time.Minute

// MatchStarter is the slice of battle.Coordinator the broker needs.
type MatchStarter interface {
	StartMatch(ctx context.Context, p1, p2 battle.Participant, cfg domain.BattleConfig, exclude ...int64) (*battle.Match, error)
}

// Notifier tells players about ticket changes. Errors are logged only; the
// ticket state has already changed when it is called.
type Notifier interface {
	// RematchOffered shows accept/decline to the opponent and cancel to the requester.
	RematchOffered(ctx context.Context, t *Ticket) error
	// RematchClosed tells the party other than actorID that the ticket was
	// declined or cancelled.
	RematchClosed(ctx context.Context, t *Ticket, actorID string) error
}

type Options struct {
	TTL    time.Duration
	Now    func() time.Time
	NewID  func() string
	Logger *zap.Logger
}

type Broker struct {
	store    Store
	starter  MatchStarter
	notifier Notifier
	opts     Options
	logger   *zap.Logger
}

func NewBroker(store Store, starter MatchStarter, notifier Notifier, opts Options) *Broker {
	if store == nil {
		store = NewMemoryStore()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = obslog.L()
	}
	return &Broker{store: store, starter: starter, notifier: notifier, opts: opts, logger: logger}
}

// Request opens a ticket from requester to opponent. prevSessionID is the
// session just played; the rematch never draws it again.
func (b *Broker) Request(ctx context.Context, requester, opponent battle.Participant, cfg domain.BattleConfig, prevSessionID int64) (*Ticket, error) {
	requester.PlayerID = strings.TrimSpace(requester.PlayerID)
	opponent.PlayerID = strings.TrimSpace(opponent.PlayerID)
	if requester.PlayerID == "" || opponent.PlayerID == "" || !cfg.Valid() {
		return nil, ErrInvalidArgs
	}
	if requester.PlayerID == opponent.PlayerID {
		return nil, ErrSelfRematch
	}
	now := b.opts.Now()
	t := &Ticket{
		ID:                b.opts.NewID(),
		RequesterID:       requester.PlayerID,
		RequesterHandle:   requester.Handle,
		OpponentID:        opponent.PlayerID,
		OpponentHandle:    opponent.Handle,
		Config:            cfg,
		PreviousSessionID: prevSessionID,
		CreatedAt:         now,
		ExpiresAt:         now.Add(b.opts.TTL),
		Status:            StatusPending,
	}
	if err := b.store.Create(ctx, t); err != nil {
		return nil, err
	}
	b.logger.Info("rematch_request",
		zap.String("ticket_id", t.ID),
		zap.String("requester_id", t.RequesterID),
		zap.String("opponent_id", t.OpponentID),
		zap.String("config", cfg.Key()),
		zap.Time("expires_at", t.ExpiresAt),
	)
	if b.notifier != nil {
		if err := b.notifier.RematchOffered(ctx, t); err != nil {
			b.logger.Warn("rematch_notify_error", zap.String("ticket_id", t.ID), zap.Error(err))
		}
	}
	return t, nil
}

// Accept consumes the ticket for its opponent and starts a match on a fresh
// session. The ticket is gone even when the match cannot start.
func (b *Broker) Accept(ctx context.Context, ticketID, actorID string) (*battle.Match, *Ticket, error) {
	t, err := b.store.Take(ctx, ticketID, func(t *Ticket) error {
		if t.OpponentID != strings.TrimSpace(actorID) {
			return ErrNotParticipant
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	t.Status = StatusAccepted
	var exclude []int64
	if t.PreviousSessionID != 0 {
		exclude = append(exclude, t.PreviousSessionID)
	}
	m, err := b.starter.StartMatch(ctx,
		battle.Participant{PlayerID: t.RequesterID, Handle: t.RequesterHandle},
		battle.Participant{PlayerID: t.OpponentID, Handle: t.OpponentHandle},
		t.Config, exclude...)
	if err != nil {
		b.logger.Warn("rematch_start_error", zap.String("ticket_id", t.ID), zap.Error(err))
		return nil, t, fmt.Errorf("start rematch: %w", err)
	}
	b.logger.Info("rematch_accept", zap.String("ticket_id", t.ID), zap.String("match_id", m.ID), zap.Int64("session_id", m.SessionID))
	return m, t, nil
}

// Decline is the opponent turning the offer down.
func (b *Broker) Decline(ctx context.Context, ticketID, actorID string) (*Ticket, error) {
	return b.close(ctx, ticketID, actorID, StatusDeclined)
}

// Cancel is the requester withdrawing the offer.
func (b *Broker) Cancel(ctx context.Context, ticketID, actorID string) (*Ticket, error) {
	return b.close(ctx, ticketID, actorID, StatusCancelled)
}

func (b *Broker) close(ctx context.Context, ticketID, actorID string, status Status) (*Ticket, error) {
	actorID = strings.TrimSpace(actorID)
	t, err := b.store.Take(ctx, ticketID, func(t *Ticket) error {
		want := t.OpponentID
		if status == StatusCancelled {
			want = t.RequesterID
		}
		if actorID != want {
			return ErrNotParticipant
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.Status = status
	b.logger.Info("rematch_close", zap.String("ticket_id", t.ID), zap.String("status", string(status)), zap.String("actor_id", actorID))
	if b.notifier != nil {
		if err := b.notifier.RematchClosed(ctx, t, actorID); err != nil {
			b.logger.Warn("rematch_notify_error", zap.String("ticket_id", t.ID), zap.Error(err))
		}
	}
	return t, nil
}

// Expire removes offers nobody answered in time. Expired tickets are inert,
// so nobody is notified.
func (b *Broker) Expire(ctx context.Context) ([]*Ticket, error) {
	expired, err := b.store.Expire(ctx, b.opts.Now())
	if err != nil {
		return nil, err
	}
	for _, t := range expired {
		t.Status = StatusExpired
		b.logger.Info("rematch_expired", zap.String("ticket_id", t.ID), zap.String("requester_id", t.RequesterID), zap.String("opponent_id", t.OpponentID))
	}
	return expired, nil
}

// Ticket returns a live ticket, or ErrTicketNotFound.
func (b *Broker) Ticket(ctx context.Context, ticketID string) (*Ticket, error) {
	t, err := b.store.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTicketNotFound
	}
	return t, nil
}
