package battlepresenter

import (
	"fmt"
	"time"

	"github.com/park285/vocab-battle-bot/internal/battle"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/rematch"
	"github.com/park285/vocab-battle-bot/internal/service/arena"
	"github.com/park285/vocab-battle-bot/pkg/battledto"
)

// ScopeLabel renders a battle config the way players type it.
func ScopeLabel(cfg domain.BattleConfig) string {
	switch cfg.ScopeKind {
	case domain.ScopeBook:
		return fmt.Sprintf("책 %d", cfg.ScopeID)
	case domain.ScopeTopic:
		return fmt.Sprintf("주제 %d", cfg.ScopeID)
	default:
		return cfg.Key()
	}
}

func ToDTOQuestion(v battle.QuestionView, names *Directory) battledto.Question {
	return battledto.Question{
		MatchID:    v.MatchID,
		PlayerID:   v.PlayerID,
		PlayerName: names.Name(v.PlayerID),
		Number:     v.Index + 1,
		Total:      v.Total,
		Prompt:     v.Prompt,
		Options:    append([]string(nil), v.Options...),
	}
}

func ToDTOFeedback(o battle.AnswerOutcome, names *Directory) battledto.Feedback {
	return battledto.Feedback{
		PlayerID:      o.PlayerID,
		PlayerName:    names.Name(o.PlayerID),
		Number:        o.QuestionIndex + 1,
		Correct:       o.Correct,
		CorrectAnswer: o.CorrectAnswer,
		Score:         o.Score,
	}
}

func ToDTOIntro(in arena.MatchIntro, names *Directory) battledto.Intro {
	return battledto.Intro{
		MatchID:      in.MatchID,
		PlayerName:   names.Name(in.Player.PlayerID),
		OpponentName: names.Name(in.OpponentID),
		Scope:        ScopeLabel(in.Config),
		Total:        in.Total,
		Rematch:      in.Rematch,
	}
}

func ToDTOWaiting(v arena.WaitingView, names *Directory) battledto.Waiting {
	return battledto.Waiting{
		PlayerName: names.Name(v.Player.PlayerID),
		Score:      v.Score,
		Total:      v.Total,
		Elapsed:    v.Elapsed,
	}
}

func ToDTOResult(v battle.ResultView, names *Directory) battledto.Result {
	return battledto.Result{
		MatchID:         v.MatchID,
		PlayerName:      names.Name(v.PlayerID),
		OpponentName:    names.Name(v.OpponentID),
		Total:           v.Total,
		OwnScore:        v.OwnScore,
		OpponentScore:   v.OpponentScore,
		OwnElapsed:      v.OwnElapsed,
		OpponentElapsed: v.OpponentElapsed,
		OwnDone:         v.OwnDone,
		OpponentDone:    v.OpponentDone,
		Verdict:         string(v.Verdict),
		Reason:          string(v.Reason),
		Forfeit:         v.Forfeit,
	}
}

func ToDTOTicket(t *rematch.Ticket, code string, names *Directory, now time.Time) battledto.RematchTicket {
	expiresIn := t.ExpiresAt.Sub(now)
	if expiresIn < 0 {
		expiresIn = 0
	}
	return battledto.RematchTicket{
		Code:          code,
		RequesterName: names.Name(t.RequesterID),
		OpponentName:  names.Name(t.OpponentID),
		Scope:         ScopeLabel(t.Config),
		ExpiresIn:     expiresIn,
	}
}

func ToDTOStats(s *domain.PlayerStats, names *Directory) *battledto.Stats {
	if s == nil {
		return nil
	}
	return &battledto.Stats{
		PlayerName: names.Name(s.PlayerID),
		Total:      s.Total,
		Wins:       s.Wins,
		Losses:     s.Losses,
		Draws:      s.Draws,
		WinRate:    s.WinRate,
		AvgScore:   s.AvgScore,
		Streak:     s.Streak,
		StreakType: s.StreakType,
	}
}

func ToDTOHeadToHead(h *domain.HeadToHead, names *Directory) *battledto.HeadToHead {
	if h == nil {
		return nil
	}
	return &battledto.HeadToHead{
		PlayerName:   names.Name(h.PlayerID),
		OpponentName: names.Name(h.OpponentID),
		Total:        h.Total,
		Wins:         h.Wins,
		Losses:       h.Losses,
		Draws:        h.Draws,
	}
}

// ToDTOHistory converts outcomes to entries seen from playerID's side.
func ToDTOHistory(playerID string, list []*domain.BattleOutcome, names *Directory) []battledto.HistoryEntry {
	out := make([]battledto.HistoryEntry, 0, len(list))
	for _, o := range list {
		if o == nil {
			continue
		}
		opponent := o.Player1ID
		if opponent == playerID {
			opponent = o.Player2ID
		}
		out = append(out, battledto.HistoryEntry{
			MatchID:       o.MatchID,
			OpponentName:  names.Name(opponent),
			Result:        o.ResultFor(playerID),
			OwnScore:      o.ScoreFor(playerID),
			OpponentScore: o.ScoreFor(opponent),
			Reason:        o.Reason,
			CompletedAt:   o.CompletedAt,
		})
	}
	return out
}
