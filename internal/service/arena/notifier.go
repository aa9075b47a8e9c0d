package arena

import (
	"context"
	"time"

	"github.com/park285/vocab-battle-bot/internal/battle"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/matchqueue"
	"github.com/park285/vocab-battle-bot/internal/rematch"
)

// MatchIntro announces a new match to one of its players.
type MatchIntro struct {
	MatchID    string
	Player     battle.Participant
	OpponentID string
	Config     domain.BattleConfig
	Total      int
	Rematch    bool
}

// WaitingView tells a player who finished early that the opponent is still playing.
type WaitingView struct {
	MatchID string
	Player  battle.Participant
	Score   int
	Total   int
	Elapsed time.Duration
}

// Notifier is the outbound port. Every call addresses exactly one handle; a
// returned error means the handle could not be reached.
type Notifier interface {
	rematch.Notifier

	Waiting(ctx context.Context, p battle.Participant, cfg domain.BattleConfig, replaced bool) error
	WaitCancelled(ctx context.Context, p battle.Participant) error
	WaitExpired(ctx context.Context, e matchqueue.PendingEntry) error
	MatchFound(ctx context.Context, intro MatchIntro) error
	Countdown(ctx context.Context, h domain.OutboundHandle, matchID string, remaining int) error
	DeliverQuestion(ctx context.Context, v battle.QuestionView) error
	AnswerFeedback(ctx context.Context, o battle.AnswerOutcome) error
	WaitingForOpponent(ctx context.Context, v WaitingView) error
	DeliverResult(ctx context.Context, v battle.ResultView) error
	// Rejected renders a failed request back to the player.
	Rejected(ctx context.Context, p battle.Participant, err error) error
}

// AnswerRecorder receives accepted answers for learning progress. It must not block.
type AnswerRecorder interface {
	RecordAnswer(playerID string, wordID int64, correct bool, at time.Time)
}
