package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/vocab-battle-bot/internal/adapter/battlepresenter"
	"github.com/park285/vocab-battle-bot/internal/battle"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/obslog"
	"github.com/park285/vocab-battle-bot/internal/rematch"
	"github.com/park285/vocab-battle-bot/internal/service/arena"
	"go.uber.org/zap"
)

// Dispatcher accepts decoded player events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev arena.Event) error
}

// StatsReader serves the read-only record commands.
type StatsReader interface {
	Stats(ctx context.Context, playerID string) (*domain.PlayerStats, error)
	HeadToHead(ctx context.Context, playerID, opponentID string) (*domain.HeadToHead, error)
	Recent(ctx context.Context, playerID string) ([]*domain.BattleOutcome, error)
}

// Inbound is one chat message addressed to the bot.
type Inbound struct {
	PlayerID string
	Name     string
	Room     domain.OutboundHandle
	Text     string
}

type Handler struct {
	prefix    string
	events    Dispatcher
	stats     StatsReader
	presenter *battlepresenter.Presenter
	logger    *zap.Logger
}

func NewHandler(prefix string, events Dispatcher, stats StatsReader, presenter *battlepresenter.Presenter, logger *zap.Logger) (*Handler, error) {
	if events == nil || presenter == nil {
		return nil, fmt.Errorf("command handler requires a dispatcher and a presenter")
	}
	if logger == nil {
		logger = obslog.L()
	}
	return &Handler{prefix: prefix, events: events, stats: stats, presenter: presenter, logger: logger}, nil
}

// Handle parses and executes one message. Messages that are not commands are
// ignored and return ErrNotCommand.
func (h *Handler) Handle(ctx context.Context, in Inbound) error {
	cmd, err := Parse(h.prefix, in.Text)
	if errors.Is(err, ErrNotCommand) {
		return err
	}
	in.PlayerID = strings.TrimSpace(in.PlayerID)
	who := battle.Participant{PlayerID: in.PlayerID, Handle: in.Room}
	if in.PlayerID == "" {
		return h.reject(ctx, who, battle.ErrInvalidArgs)
	}
	h.presenter.Directory().RememberName(in.PlayerID, in.Name)
	if err != nil {
		return h.reject(ctx, who, battle.ErrInvalidArgs)
	}

	switch cmd.Kind {
	case KindHelp:
		return h.presenter.Say(ctx, in.Room, h.presenter.Formatter().Help())
	case KindBattle:
		return h.dispatch(ctx, arena.RequestBattle{PlayerID: in.PlayerID, Handle: in.Room, Config: cmd.Config})
	case KindRematchRequest:
		return h.dispatch(ctx, arena.RequestBattle{PlayerID: in.PlayerID, Handle: in.Room, WantsRematch: true})
	case KindCancelWait:
		return h.dispatch(ctx, arena.CancelWait{PlayerID: in.PlayerID, Handle: in.Room})
	case KindAnswer:
		return h.dispatch(ctx, arena.SubmitAnswer{PlayerID: in.PlayerID, Handle: in.Room, Choice: cmd.Choice})
	case KindRematchAccept, KindRematchDecline, KindRematchCancel:
		ticketID, ok := h.presenter.Directory().ResolveTicket(in.PlayerID, cmd.Code)
		if !ok {
			return h.reject(ctx, who, rematch.ErrTicketNotFound)
		}
		if cmd.Kind == KindRematchCancel {
			return h.dispatch(ctx, arena.CancelRematch{TicketID: ticketID, PlayerID: in.PlayerID, Handle: in.Room})
		}
		return h.dispatch(ctx, arena.RespondRematch{TicketID: ticketID, PlayerID: in.PlayerID, Handle: in.Room, Accept: cmd.Kind == KindRematchAccept})
	case KindStats, KindRecent, KindHeadToHead:
		return h.records(ctx, who, in.Name, cmd)
	default:
		return h.reject(ctx, who, battle.ErrInvalidArgs)
	}
}

// dispatch forwards ev; the arena already told the player about any failure.
func (h *Handler) dispatch(ctx context.Context, ev arena.Event) error {
	err := h.events.Dispatch(ctx, ev)
	if err != nil {
		h.logger.Debug("command_rejected", zap.String("event", fmt.Sprintf("%T", ev)), zap.Error(err))
	}
	return err
}

func (h *Handler) records(ctx context.Context, who battle.Participant, name string, cmd Command) error {
	if h.stats == nil {
		return h.reject(ctx, who, errors.New("records are not available"))
	}
	names := h.presenter.Directory()
	format := h.presenter.Formatter()
	if strings.TrimSpace(name) == "" {
		name = names.Name(who.PlayerID)
	}
	var text string
	switch cmd.Kind {
	case KindStats:
		s, err := h.stats.Stats(ctx, who.PlayerID)
		if err != nil {
			return h.reject(ctx, who, err)
		}
		text = format.Stats(name, battlepresenter.ToDTOStats(s, names))
	case KindRecent:
		list, err := h.stats.Recent(ctx, who.PlayerID)
		if err != nil {
			return h.reject(ctx, who, err)
		}
		text = format.History(name, battlepresenter.ToDTOHistory(who.PlayerID, list, names))
	case KindHeadToHead:
		hh, err := h.stats.HeadToHead(ctx, who.PlayerID, cmd.Opponent)
		if err != nil {
			return h.reject(ctx, who, err)
		}
		text = format.HeadToHead(battlepresenter.ToDTOHeadToHead(hh, names))
	}
	return h.presenter.Say(ctx, who.Handle, text)
}

func (h *Handler) reject(ctx context.Context, who battle.Participant, err error) error {
	if sendErr := h.presenter.Rejected(ctx, who, err); sendErr != nil {
		h.logger.Warn("reject_delivery_failed", zap.String("player_id", who.PlayerID), zap.Error(sendErr))
	}
	return err
}
