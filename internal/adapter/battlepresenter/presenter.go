package battlepresenter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/park285/vocab-battle-bot/internal/battle"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/matchqueue"
	"github.com/park285/vocab-battle-bot/internal/rematch"
	"github.com/park285/vocab-battle-bot/internal/service/arena"
)

var errNoSender = errors.New("presenter has no sender")

// Presenter delivers formatted battle messages to chat rooms without coupling
// to the command layer. The handle of a player is the room they play from.
type Presenter struct {
	sendMessage func(ctx context.Context, room, message string) error
	format      *Formatter
	names       *Directory
	now         func() time.Time
}

func NewPresenter(sendMessage func(ctx context.Context, room, message string) error, format *Formatter, names *Directory) *Presenter {
	if format == nil {
		format = NewFormatter(nil, nil)
	}
	if names == nil {
		names = NewDirectory()
	}
	return &Presenter{sendMessage: sendMessage, format: format, names: names, now: time.Now}
}

var _ arena.Notifier = (*Presenter)(nil)

func (p *Presenter) Formatter() *Formatter { return p.format }
func (p *Presenter) Directory() *Directory { return p.names }

func (p *Presenter) send(ctx context.Context, h domain.OutboundHandle, message string) error {
	if p.sendMessage == nil {
		return errNoSender
	}
	if strings.TrimSpace(message) == "" {
		return nil
	}
	return p.sendMessage(ctx, string(h), message)
}

func (p *Presenter) Waiting(ctx context.Context, pt battle.Participant, cfg domain.BattleConfig, replaced bool) error {
	return p.send(ctx, pt.Handle, p.format.Waiting(p.names.Name(pt.PlayerID), ScopeLabel(cfg), replaced))
}

func (p *Presenter) WaitCancelled(ctx context.Context, pt battle.Participant) error {
	return p.send(ctx, pt.Handle, p.format.WaitCancelled(p.names.Name(pt.PlayerID)))
}

func (p *Presenter) WaitExpired(ctx context.Context, e matchqueue.PendingEntry) error {
	return p.send(ctx, e.Handle, p.format.WaitExpired(p.names.Name(e.PlayerID), ScopeLabel(e.Config)))
}

func (p *Presenter) MatchFound(ctx context.Context, in arena.MatchIntro) error {
	if in.Rematch {
		p.names.forgetPair(in.Player.PlayerID, in.OpponentID)
	}
	return p.send(ctx, in.Player.Handle, p.format.Intro(ToDTOIntro(in, p.names)))
}

func (p *Presenter) Countdown(ctx context.Context, h domain.OutboundHandle, _ string, remaining int) error {
	return p.send(ctx, h, p.format.Countdown(remaining))
}

func (p *Presenter) DeliverQuestion(ctx context.Context, v battle.QuestionView) error {
	return p.send(ctx, v.Handle, p.format.Question(ToDTOQuestion(v, p.names)))
}

func (p *Presenter) AnswerFeedback(ctx context.Context, o battle.AnswerOutcome) error {
	return p.send(ctx, o.Handle, p.format.Feedback(ToDTOFeedback(o, p.names)))
}

func (p *Presenter) WaitingForOpponent(ctx context.Context, v arena.WaitingView) error {
	return p.send(ctx, v.Player.Handle, p.format.WaitingForOpponent(ToDTOWaiting(v, p.names)))
}

func (p *Presenter) DeliverResult(ctx context.Context, v battle.ResultView) error {
	return p.send(ctx, v.Handle, p.format.Result(ToDTOResult(v, p.names)))
}

func (p *Presenter) Rejected(ctx context.Context, pt battle.Participant, err error) error {
	return p.send(ctx, pt.Handle, p.format.Error(p.names.Name(pt.PlayerID), err))
}

// RematchOffered posts the offer to the opponent, and to the requester when
// they play from a different room.
func (p *Presenter) RematchOffered(ctx context.Context, t *rematch.Ticket) error {
	code := p.names.trackTicket(t)
	msg := p.format.RematchOffered(ToDTOTicket(t, code, p.names, p.now()))
	if err := p.send(ctx, t.OpponentHandle, msg); err != nil {
		return err
	}
	if t.RequesterHandle != t.OpponentHandle {
		return p.send(ctx, t.RequesterHandle, msg)
	}
	return nil
}

func (p *Presenter) RematchClosed(ctx context.Context, t *rematch.Ticket, actorID string) error {
	p.names.forgetTicket(t.ID)
	if actorID == t.RequesterID {
		return p.send(ctx, t.OpponentHandle, p.format.RematchCancelled(p.names.Name(t.RequesterID)))
	}
	return p.send(ctx, t.RequesterHandle, p.format.RematchDeclined(p.names.Name(t.OpponentID)))
}

// Say sends free-form text, used for stats and help replies.
func (p *Presenter) Say(ctx context.Context, h domain.OutboundHandle, message string) error {
	return p.send(ctx, h, message)
}
