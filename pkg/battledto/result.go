package battledto

import "time"

type Result struct {
	MatchID         string
	PlayerName      string
	OpponentName    string
	Total           int
	OwnScore        int
	OpponentScore   int
	OwnElapsed      time.Duration
	OpponentElapsed time.Duration
	OwnDone         bool
	OpponentDone    bool
	Verdict         string // win, loss, draw, void
	Reason          string // completed, timeout, channel_failure
	Forfeit         bool
}

type RematchTicket struct {
	Code          string
	RequesterName string
	OpponentName  string
	Scope         string
	ExpiresIn     time.Duration
}
