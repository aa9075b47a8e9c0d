package battledto

import "time"

type Stats struct {
	PlayerName string
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
	PlayerName   string
	OpponentName string
	Total        int
	Wins         int
	Losses       int
	Draws        int
}

type HistoryEntry struct {
	MatchID       string
	OpponentName  string
	Result        string
	OwnScore      int
	OpponentScore int
	Reason        string
	CompletedAt   time.Time
}
