package arena

import (
	"errors"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

var (
	ErrNoActiveMatch    = errors.New("no active battle for this player")
	ErrNotWaiting       = errors.New("player is not waiting for an opponent")
	ErrNoRecentOpponent = errors.New("no recent opponent to rematch")
	ErrUnknownEvent     = errors.New("unknown inbound event")
)

// Event is a player-originated action, already decoded from the chat transport.
type Event interface{ eventName() string }

type RequestBattle struct {
	PlayerID     string
	Handle       domain.OutboundHandle
	Config       domain.BattleConfig
	WantsRematch bool
}

type SubmitAnswer struct {
	PlayerID string
	Handle   domain.OutboundHandle
	Choice   int
}

type CancelWait struct {
	PlayerID string
	Handle   domain.OutboundHandle
}

type RespondRematch struct {
	TicketID string
	PlayerID string
	Handle   domain.OutboundHandle
	Accept   bool
}

type CancelRematch struct {
	TicketID string
	PlayerID string
	Handle   domain.OutboundHandle
}

// ChannelFailure reports that a handle can no longer be reached.
type ChannelFailure struct {
	Handle domain.OutboundHandle
}

func (RequestBattle) eventName() string  { return "request_battle" }
func (SubmitAnswer) eventName() string   { return "submit_answer" }
func (CancelWait) eventName() string     { return "cancel_wait" }
func (RespondRematch) eventName() string { return "respond_rematch" }
func (CancelRematch) eventName() string  { return "cancel_rematch" }
func (ChannelFailure) eventName() string { return "channel_failure" }
