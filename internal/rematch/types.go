package rematch

import (
	"errors"
	"time"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

var (
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrSelfRematch    = errors.New("cannot rematch yourself")
	ErrAlreadyPending = errors.New("a rematch request is already pending")
	// ErrTicketNotFound covers expired, consumed and unknown tickets alike.
	ErrTicketNotFound = errors.New("rematch ticket not found or expired")
	ErrNotParticipant = errors.New("actor may not act on this ticket")
	ErrContention     = errors.New("rematch store contention, retry later")
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusDeclined  Status = "DECLINED"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

// Ticket is a pending rematch offer from requester to opponent.
type Ticket struct {
	ID                string                `json:"id"`
	RequesterID       string                `json:"requester_id"`
	RequesterHandle   domain.OutboundHandle `json:"requester_handle"`
	OpponentID        string                `json:"opponent_id"`
	OpponentHandle    domain.OutboundHandle `json:"opponent_handle"`
	Config            domain.BattleConfig   `json:"config"`
	PreviousSessionID int64                 `json:"previous_session_id,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	ExpiresAt         time.Time             `json:"expires_at"`
	Status            Status                `json:"status"`
}

func (t *Ticket) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

// pairKey identifies the (requester, opponent, config) triple.
func (t *Ticket) pairKey() string {
	return t.RequesterID + ":" + t.OpponentID + ":" + t.Config.Key()
}
