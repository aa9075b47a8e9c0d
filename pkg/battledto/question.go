package battledto

import "time"

type Question struct {
	MatchID    string
	PlayerID   string
	PlayerName string
	Number     int // 1-based
	Total      int
	Prompt     string
	Options    []string
}

type Feedback struct {
	PlayerID      string
	PlayerName    string
	Number        int
	Correct       bool
	CorrectAnswer string
	Score         int
}

type Intro struct {
	MatchID      string
	PlayerName   string
	OpponentName string
	Scope        string
	Total        int
	Rematch      bool
}

type Waiting struct {
	PlayerName string
	Score      int
	Total      int
	Elapsed    time.Duration
}
