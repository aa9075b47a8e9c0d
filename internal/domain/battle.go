package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScopeKind names the content pool a battle draws from.
type ScopeKind string

const (
	ScopeBook  ScopeKind = "book"
	ScopeTopic ScopeKind = "topic"
)

func ParseScopeKind(s string) (ScopeKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "book", "b", "책":
		return ScopeBook, true
	case "topic", "t", "주제":
		return ScopeTopic, true
	default:
		return "", false
	}
}

// BattleConfig is the matchmaking key. Two players pair only on equal configs.
type BattleConfig struct {
	ScopeKind ScopeKind `json:"scope_kind"`
	ScopeID   int64     `json:"scope_id"`
}

func (c BattleConfig) Valid() bool {
	return (c.ScopeKind == ScopeBook || c.ScopeKind == ScopeTopic) && c.ScopeID > 0
}

// Key is a stable string form used for map and Redis keys.
func (c BattleConfig) Key() string {
	return string(c.ScopeKind) + ":" + strconv.FormatInt(c.ScopeID, 10)
}

func (c BattleConfig) String() string { return c.Key() }

func ParseBattleConfig(kind, id string) (BattleConfig, error) {
	k, ok := ParseScopeKind(kind)
	if !ok {
		return BattleConfig{}, fmt.Errorf("unknown scope kind %q", kind)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return BattleConfig{}, fmt.Errorf("invalid scope id %q", id)
	}
	return BattleConfig{ScopeKind: k, ScopeID: n}, nil
}

// Session is an immutable pre-computed word set for one scope.
type Session struct {
	ID        int64
	ScopeKind ScopeKind
	ScopeID   int64
	WordIDs   []int64
}

func (s *Session) Config() BattleConfig {
	return BattleConfig{ScopeKind: s.ScopeKind, ScopeID: s.ScopeID}
}

// DistractorsPerQuestion is the number of wrong options each question carries.
const DistractorsPerQuestion = 3

// Question is one multiple-choice vocabulary item.
type Question struct {
	WordID        int64
	Prompt        string
	CorrectAnswer string
	Distractors   []string
}

// Options returns the correct answer followed by the distractors.
func (q Question) Options() []string {
	out := make([]string, 0, 1+len(q.Distractors))
	out = append(out, q.CorrectAnswer)
	return append(out, q.Distractors...)
}

// Valid reports whether the question has exactly 3 distractors and 4 distinct, non-empty options.
func (q Question) Valid() bool {
	if strings.TrimSpace(q.Prompt) == "" || len(q.Distractors) != DistractorsPerQuestion {
		return false
	}
	seen := make(map[string]struct{}, DistractorsPerQuestion+1)
	for _, o := range q.Options() {
		k := strings.ToLower(strings.TrimSpace(o))
		if k == "" {
			return false
		}
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
	}
	return true
}

// OutboundHandle is the opaque reference the notification layer needs to reach a player.
type OutboundHandle string

// BattleOutcome is the immutable historical record emitted on finalize.
type BattleOutcome struct {
	MatchID        string
	Config         BattleConfig
	SessionID      int64
	Player1ID      string
	Player2ID      string
	WinnerID       string // empty on draw
	Player1Score   int
	Player2Score   int
	Player1Elapsed time.Duration
	Player2Elapsed time.Duration
	Reason         string // "completed", "timeout", "channel_failure"
	CompletedAt    time.Time
}

// ResultFor returns "win", "loss" or "draw" from the given player's side.
func (o *BattleOutcome) ResultFor(playerID string) string {
	switch o.WinnerID {
	case "":
		return "draw"
	case playerID:
		return "win"
	default:
		return "loss"
	}
}

// ScoreFor returns the given player's score, or 0 if the player took no part.
func (o *BattleOutcome) ScoreFor(playerID string) int {
	switch playerID {
	case o.Player1ID:
		return o.Player1Score
	case o.Player2ID:
		return o.Player2Score
	default:
		return 0
	}
}

// PlayerProfile holds running win/loss counters for one player.
type PlayerProfile struct {
	PlayerID     string
	GamesPlayed  int
	Wins         int
	Losses       int
	Draws        int
	TotalScore   int
	Streak       int
	StreakType   string
	LastPlayedAt time.Time
	UpdatedAt    time.Time
	CreatedAt    time.Time
}

// PlayerStats is the derived view shown to players.
type PlayerStats struct {
	PlayerID   string
	Total      int
	Wins       int
	Losses     int
	Draws      int
	WinRate    float64
	AvgScore   float64
	Streak     int
	StreakType string
}

type HeadToHead struct {
	PlayerID   string
	OpponentID string
	Total      int
	Wins       int
	Losses     int
	Draws      int
}

// WordProgress tracks one player's learning state for a word.
type WordProgress struct {
	PlayerID      string
	WordID        int64
	CorrectCount  int
	TotalAttempts int
	MasteryLevel  int
	LastSeen      time.Time
}

// MaxMastery caps WordProgress.MasteryLevel.
const MaxMastery = 5

// ApplyAnswer folds one answer into the progress record.
func (p *WordProgress) ApplyAnswer(correct bool, at time.Time) {
	p.TotalAttempts++
	if correct {
		p.CorrectCount++
	}
	p.MasteryLevel = p.CorrectCount / 2
	if p.MasteryLevel > MaxMastery {
		p.MasteryLevel = MaxMastery
	}
	p.LastSeen = at
}
