package history

import (
	"math"
	"time"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

// applyOutcome folds one finished battle into the player's profile. A nil
// profile starts a fresh one.
func applyOutcome(profile *domain.PlayerProfile, playerID string, o *domain.BattleOutcome, now time.Time) *domain.PlayerProfile {
	if profile == nil {
		profile = &domain.PlayerProfile{PlayerID: playerID, CreatedAt: now}
	}

	profile.GamesPlayed++
	profile.TotalScore += o.ScoreFor(playerID)
	profile.LastPlayedAt = o.CompletedAt
	profile.UpdatedAt = now

	resultType := o.ResultFor(playerID)
	switch resultType {
	case "win":
		profile.Wins++
	case "loss":
		profile.Losses++
	default:
		profile.Draws++
	}

	if profile.StreakType == resultType {
		profile.Streak++
	} else {
		profile.StreakType = resultType
		profile.Streak = 1
	}
	return profile
}

func statsFromProfile(playerID string, p *domain.PlayerProfile) *domain.PlayerStats {
	st := &domain.PlayerStats{PlayerID: playerID}
	if p == nil || p.GamesPlayed == 0 {
		return st
	}
	st.Total = p.GamesPlayed
	st.Wins, st.Losses, st.Draws = p.Wins, p.Losses, p.Draws
	st.WinRate = round1(float64(p.Wins) * 100 / float64(p.GamesPlayed))
	st.AvgScore = round1(float64(p.TotalScore) / float64(p.GamesPlayed))
	st.Streak, st.StreakType = p.Streak, p.StreakType
	return st
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
