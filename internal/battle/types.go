package battle

import (
	"errors"
	"sync"
	"time"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

// DefaultQuestionsPerMatch is the fixed length of a match's question order.
const DefaultQuestionsPerMatch = 10

var (
	ErrInvalidArgs         = errors.New("invalid arguments")
	ErrInsufficientContent = errors.New("not enough valid questions for a battle")
	ErrUnknownMatch        = errors.New("unknown match")
	ErrUnknownPlayer       = errors.New("player is not part of this match")
	ErrAlreadyCompleted    = errors.New("player already completed this match")
	ErrNotStarted          = errors.New("match has not started yet")
	ErrMatchClosed         = errors.New("match is already closed")
	ErrInvalidOption       = errors.New("option index out of range")
	ErrPlayerBusy          = errors.New("player already has an active match")
	ErrNotComplete         = errors.New("both players must complete before finalize")
)

// State is the lifecycle position of a Match.
type State string

const (
	StateCreated          State = "CREATED"
	StateCountdown        State = "COUNTDOWN"
	StateInProgress       State = "IN_PROGRESS"
	StateAwaitingOpponent State = "AWAITING_OPPONENT"
	StateFinalized        State = "FINALIZED"
	StateAbandoned        State = "ABANDONED"
)

func (s State) Terminal() bool { return s == StateFinalized || s == StateAbandoned }

// Reason records why a match ended.
type Reason string

const (
	ReasonCompleted      Reason = "completed"
	ReasonTimeout        Reason = "timeout"
	ReasonChannelFailure Reason = "channel_failure"
)

// Participant identifies a player and how to reach them.
type Participant struct {
	PlayerID string
	Handle   domain.OutboundHandle
}

// Delivery is the per-player presentation of one question: the shuffled
// options that player saw and where the correct answer landed.
type Delivery struct {
	QuestionIndex int
	Options       []string
	CorrectIndex  int
}

type AnswerRecord struct {
	QuestionIndex int
	ChosenIndex   int
	Correct       bool
	Offset        time.Duration // since StartedAt
}

// PlayerProgress is one player's cursor through the shared question order.
type PlayerProgress struct {
	PlayerID      string
	Handle        domain.OutboundHandle
	Answers       []AnswerRecord
	Deliveries    []Delivery
	CurrentIndex  int
	Completed     bool
	StartedAt     time.Time
	CompletedAt   time.Time
	ChannelFailed bool
}

func (p *PlayerProgress) Score() int {
	n := 0
	for _, a := range p.Answers {
		if a.Correct {
			n++
		}
	}
	return n
}

// Elapsed is CompletedAt-StartedAt, or zero while the player is still answering.
func (p *PlayerProgress) Elapsed() time.Duration {
	if !p.Completed || p.StartedAt.IsZero() {
		return 0
	}
	return p.CompletedAt.Sub(p.StartedAt)
}

func (p *PlayerProgress) clone() PlayerProgress {
	cp := *p
	cp.Answers = append([]AnswerRecord(nil), p.Answers...)
	cp.Deliveries = make([]Delivery, len(p.Deliveries))
	for i, d := range p.Deliveries {
		d.Options = append([]string(nil), d.Options...)
		cp.Deliveries[i] = d
	}
	return cp
}

// Match is the live unit of coordination between two players.
// Questions and the participant pair are fixed at creation; everything else is
// guarded by mu.
type Match struct {
	ID        string
	Config    domain.BattleConfig
	SessionID int64
	Questions []domain.Question
	CreatedAt time.Time

	order [2]Participant

	mu           sync.Mutex
	players      map[string]*PlayerProgress
	state        State
	finalized    bool
	lastActivity time.Time
	result       *Result
}

// Participants returns the two players in pairing order (player1, player2).
func (m *Match) Participants() [2]Participant { return m.order }

func (m *Match) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Progress returns a copy of the player's progress.
func (m *Match) Progress(playerID string) (PlayerProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[playerID]
	if !ok {
		return PlayerProgress{}, false
	}
	return p.clone(), true
}

func (m *Match) opponentOf(playerID string) *PlayerProgress {
	for id, p := range m.players {
		if id != playerID {
			return p
		}
	}
	return nil
}

// QuestionView is what gets pushed to one player for one question.
type QuestionView struct {
	MatchID  string
	PlayerID string
	Handle   domain.OutboundHandle
	Index    int
	Total    int
	Prompt   string
	Options  []string
}

// OutcomeKind says what the caller should do after an accepted answer.
type OutcomeKind int

const (
	OutcomeNextQuestion OutcomeKind = iota + 1
	OutcomeWaitingForOpponent
	OutcomeFinished
)

// AnswerOutcome is the synchronous result of SubmitAnswer.
type AnswerOutcome struct {
	Kind          OutcomeKind
	MatchID       string
	PlayerID      string
	Handle        domain.OutboundHandle
	QuestionIndex int
	WordID        int64
	Correct       bool
	CorrectAnswer string
	Score         int
	Elapsed       time.Duration
	Next          *QuestionView
	Result        *Result
}
