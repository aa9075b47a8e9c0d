package battle

import (
	"time"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

// Result is derived at finalize or abandon and delivered to both players.
type Result struct {
	MatchID        string
	Config         domain.BattleConfig
	SessionID      int64
	Total          int
	Player1        Participant
	Player2        Participant
	Player1Score   int
	Player2Score   int
	Player1Elapsed time.Duration
	Player2Elapsed time.Duration
	Player1Done    bool
	Player2Done    bool
	WinnerID       string // empty on draw or void
	Reason         Reason
	Void           bool
	CompletedAt    time.Time
}

// DecideWinner compares scores, then elapsed time (strictly smaller wins).
// It returns 1 or 2 for the winning side, or 0 for a draw.
func DecideWinner(score1, score2 int, elapsed1, elapsed2 time.Duration) int {
	switch {
	case score1 > score2:
		return 1
	case score2 > score1:
		return 2
	case elapsed1 < elapsed2:
		return 1
	case elapsed2 < elapsed1:
		return 2
	default:
		return 0
	}
}

func (r *Result) Forfeit() bool { return r.Reason != ReasonCompleted && !r.Void }

// Outcome converts the result into the persisted history record.
func (r *Result) Outcome() domain.BattleOutcome {
	return domain.BattleOutcome{
		MatchID:        r.MatchID,
		Config:         r.Config,
		SessionID:      r.SessionID,
		Player1ID:      r.Player1.PlayerID,
		Player2ID:      r.Player2.PlayerID,
		WinnerID:       r.WinnerID,
		Player1Score:   r.Player1Score,
		Player2Score:   r.Player2Score,
		Player1Elapsed: r.Player1Elapsed,
		Player2Elapsed: r.Player2Elapsed,
		Reason:         string(r.Reason),
		CompletedAt:    r.CompletedAt,
	}
}

// Verdict is a result seen from one side.
type Verdict string

const (
	VerdictWin  Verdict = "win"
	VerdictLoss Verdict = "loss"
	VerdictDraw Verdict = "draw"
	VerdictVoid Verdict = "void"
)

type ResultView struct {
	MatchID         string
	PlayerID        string
	OpponentID      string
	Handle          domain.OutboundHandle
	Total           int
	OwnScore        int
	OpponentScore   int
	OwnElapsed      time.Duration
	OpponentElapsed time.Duration
	OwnDone         bool
	OpponentDone    bool
	Verdict         Verdict
	Reason          Reason
	Forfeit         bool
}

// ViewFor returns the result from playerID's perspective.
func (r *Result) ViewFor(playerID string) (ResultView, bool) {
	v := ResultView{MatchID: r.MatchID, PlayerID: playerID, Total: r.Total, Reason: r.Reason, Forfeit: r.Forfeit()}
	switch playerID {
	case r.Player1.PlayerID:
		v.OpponentID, v.Handle = r.Player2.PlayerID, r.Player1.Handle
		v.OwnScore, v.OpponentScore = r.Player1Score, r.Player2Score
		v.OwnElapsed, v.OpponentElapsed = r.Player1Elapsed, r.Player2Elapsed
		v.OwnDone, v.OpponentDone = r.Player1Done, r.Player2Done
	case r.Player2.PlayerID:
		v.OpponentID, v.Handle = r.Player1.PlayerID, r.Player2.Handle
		v.OwnScore, v.OpponentScore = r.Player2Score, r.Player1Score
		v.OwnElapsed, v.OpponentElapsed = r.Player2Elapsed, r.Player1Elapsed
		v.OwnDone, v.OpponentDone = r.Player2Done, r.Player1Done
	default:
		return ResultView{}, false
	}
	switch {
	case r.Void:
		v.Verdict = VerdictVoid
	case r.WinnerID == "":
		v.Verdict = VerdictDraw
	case r.WinnerID == playerID:
		v.Verdict = VerdictWin
	default:
		v.Verdict = VerdictLoss
	}
	return v, true
}

// Views returns both sides in pairing order.
func (r *Result) Views() []ResultView {
	v1, _ := r.ViewFor(r.Player1.PlayerID)
	v2, _ := r.ViewFor(r.Player2.PlayerID)
	return []ResultView{v1, v2}
}
