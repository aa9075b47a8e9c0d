package matchqueue

import (
	"context"
	"errors"
	"time"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

// PendingEntry is a player waiting for an opponent. It is stored as JSON in
// Redis under mq:entry:<player>.
type PendingEntry struct {
	PlayerID   string                `json:"player_id"`
	Handle     domain.OutboundHandle `json:"handle"`
	Config     domain.BattleConfig   `json:"config"`
	EnqueuedAt time.Time             `json:"enqueued_at"`
}

// Result of EnqueueOrPair. When Paired is false the caller is waiting.
type Result struct {
	Paired   bool
	Opponent *PendingEntry
	// Replaced reports that an earlier entry of the caller was dropped.
	Replaced bool
}

// Queue pairs players asking for the same BattleConfig.
//
// EnqueueOrPair is atomic per config: two concurrent callers never both wait
// when they could pair, and an entry is handed out as an opponent at most once.
// Pairing is FIFO on EnqueuedAt.
type Queue interface {
	EnqueueOrPair(ctx context.Context, playerID string, handle domain.OutboundHandle, cfg domain.BattleConfig) (*Result, error)
	Cancel(ctx context.Context, playerID string) (bool, error)
	Pending(ctx context.Context, playerID string) (*PendingEntry, error)
	// Expire removes and returns entries enqueued at or before cutoff.
	Expire(ctx context.Context, cutoff time.Time) ([]PendingEntry, error)
	Len(ctx context.Context) (int, error)
}

var (
	ErrInvalidArgs = errors.New("invalid arguments")
	// ErrContention means optimistic retries were exhausted; the request was not applied.
	ErrContention = errors.New("queue contention, retry later")
)
