package battle

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/obslog"
	"go.uber.org/zap"
)

// SessionCatalog supplies pre-computed word sets. A nil session with a nil
// error means the scope has no eligible session.
type SessionCatalog interface {
	RandomSession(ctx context.Context, cfg domain.BattleConfig, exclude ...int64) (*domain.Session, error)
}

// QuestionBank resolves word ids into questions. It may return fewer
// questions than requested and in any order.
type QuestionBank interface {
	Resolve(ctx context.Context, wordIDs []int64) ([]domain.Question, error)
}

// OutcomeRecorder receives finalized outcomes. Record must not block.
type OutcomeRecorder interface {
	Record(outcome domain.BattleOutcome)
}

type Options struct {
	QuestionsPerMatch int
	CountdownSteps    int
	CountdownInterval time.Duration
	// AbandonAfter bounds how long a match may sit without activity.
	AbandonAfter time.Duration

	Now    func() time.Time
	Perm   func(n int) []int
	NewID  func() string
	Logger *zap.Logger
}

// Coordinator runs matches end to end. It never talks to the network:
// callers push the returned views through their notification channel.
type Coordinator struct {
	catalog  SessionCatalog
	bank     QuestionBank
	store    Store
	recorder OutcomeRecorder
	opts     Options
	logger   *zap.Logger
}

func NewCoordinator(catalog SessionCatalog, bank QuestionBank, store Store, recorder OutcomeRecorder, opts Options) (*Coordinator, error) {
	if catalog == nil {
		return nil, fmt.Errorf("session catalog is required")
	}
	if bank == nil {
		return nil, fmt.Errorf("question bank is required")
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if opts.QuestionsPerMatch <= 0 {
		opts.QuestionsPerMatch = DefaultQuestionsPerMatch
	}
	if opts.CountdownSteps < 0 {
		opts.CountdownSteps = 0
	}
	if opts.AbandonAfter <= 0 {
		opts.AbandonAfter = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Perm == nil {
		opts.Perm = rand.Perm
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = obslog.L()
	}
	return &Coordinator{catalog: catalog, bank: bank, store: store, recorder: recorder, opts: opts, logger: logger}, nil
}

func (c *Coordinator) QuestionsPerMatch() int { return c.opts.QuestionsPerMatch }

// Active returns the number of matches currently held.
func (c *Coordinator) Active() int { return c.store.Len() }

func (c *Coordinator) Match(matchID string) (*Match, bool) { return c.store.Get(matchID) }

// MatchFor returns the player's active match, if any.
func (c *Coordinator) MatchFor(playerID string) (*Match, bool) { return c.store.ByPlayer(playerID) }

// StartMatch draws a session for cfg, resolves and validates its questions and
// registers a new match. Session ids in exclude are never drawn.
func (c *Coordinator) StartMatch(ctx context.Context, p1, p2 Participant, cfg domain.BattleConfig, exclude ...int64) (*Match, error) {
	p1.PlayerID, p2.PlayerID = strings.TrimSpace(p1.PlayerID), strings.TrimSpace(p2.PlayerID)
	if p1.PlayerID == "" || p2.PlayerID == "" || p1.PlayerID == p2.PlayerID || !cfg.Valid() {
		return nil, ErrInvalidArgs
	}
	if _, busy := c.store.ByPlayer(p1.PlayerID); busy {
		return nil, ErrPlayerBusy
	}
	if _, busy := c.store.ByPlayer(p2.PlayerID); busy {
		return nil, ErrPlayerBusy
	}

	sess, err := c.catalog.RandomSession(ctx, cfg, exclude...)
	if err != nil {
		return nil, fmt.Errorf("random session: %w", err)
	}
	if sess == nil || len(sess.WordIDs) < c.opts.QuestionsPerMatch {
		c.logger.Warn("match_insufficient_content", zap.String("config", cfg.Key()), zap.String("reason", "session"))
		return nil, ErrInsufficientContent
	}
	resolved, err := c.bank.Resolve(ctx, sess.WordIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve questions: %w", err)
	}
	questions := orderQuestions(sess.WordIDs, resolved, c.opts.QuestionsPerMatch)
	if len(questions) < c.opts.QuestionsPerMatch {
		c.logger.Warn("match_insufficient_content",
			zap.String("config", cfg.Key()),
			zap.Int64("session_id", sess.ID),
			zap.Int("valid_questions", len(questions)),
		)
		return nil, ErrInsufficientContent
	}

	now := c.opts.Now()
	m := &Match{
		ID:           c.opts.NewID(),
		Config:       cfg,
		SessionID:    sess.ID,
		Questions:    questions,
		CreatedAt:    now,
		order:        [2]Participant{p1, p2},
		state:        StateCreated,
		lastActivity: now,
		players: map[string]*PlayerProgress{
			p1.PlayerID: {PlayerID: p1.PlayerID, Handle: p1.Handle},
			p2.PlayerID: {PlayerID: p2.PlayerID, Handle: p2.Handle},
		},
	}
	if err := c.store.Put(m); err != nil {
		return nil, err
	}
	c.logger.Info("match_create",
		zap.String("match_id", m.ID),
		zap.String("config", cfg.Key()),
		zap.Int64("session_id", sess.ID),
		zap.String("player1_id", p1.PlayerID),
		zap.String("player2_id", p2.PlayerID),
	)
	return m, nil
}

// orderQuestions re-applies the session order, drops invalid or duplicate
// words and keeps at most n questions.
func orderQuestions(wordIDs []int64, resolved []domain.Question, n int) []domain.Question {
	byID := make(map[int64]domain.Question, len(resolved))
	for _, q := range resolved {
		if q.Valid() {
			byID[q.WordID] = q
		}
	}
	out := make([]domain.Question, 0, n)
	for _, id := range wordIDs {
		q, ok := byID[id]
		if !ok {
			continue
		}
		delete(byID, id)
		out = append(out, q)
		if len(out) == n {
			break
		}
	}
	return out
}

// BeginCountdown moves the match into the countdown, calls tick for each
// remaining step (outside any lock), then stamps the same StartedAt on both
// players and returns question 0 for each of them in pairing order.
func (c *Coordinator) BeginCountdown(ctx context.Context, matchID string, tick func(remaining int)) ([]QuestionView, error) {
	m, ok := c.store.Get(matchID)
	if !ok {
		return nil, ErrUnknownMatch
	}
	m.mu.Lock()
	if m.state != StateCreated {
		st := m.state
		m.mu.Unlock()
		if st.Terminal() {
			return nil, ErrMatchClosed
		}
		return nil, fmt.Errorf("countdown from state %s: %w", st, ErrInvalidArgs)
	}
	m.state = StateCountdown
	m.lastActivity = c.opts.Now()
	m.mu.Unlock()

	for remaining := c.opts.CountdownSteps; remaining > 0; remaining-- {
		if tick != nil {
			tick(remaining)
		}
		if err := sleepCtx(ctx, c.opts.CountdownInterval); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateCountdown {
		return nil, ErrMatchClosed
	}
	now := c.opts.Now()
	views := make([]QuestionView, 0, 2)
	for _, part := range m.order {
		p := m.players[part.PlayerID]
		p.StartedAt = now
		p.Deliveries = append(p.Deliveries, c.newDelivery(m, 0))
		views = append(views, c.viewFor(m, p))
	}
	m.state = StateInProgress
	m.lastActivity = now
	c.logger.Info("match_start", zap.String("match_id", m.ID), zap.Time("started_at", now))
	return views, nil
}

// SubmitAnswer applies one answer for playerID. The chosen index refers to
// the options as delivered to that player.
func (c *Coordinator) SubmitAnswer(matchID, playerID string, chosen int) (*AnswerOutcome, error) {
	m, ok := c.store.Get(matchID)
	if !ok {
		return nil, ErrUnknownMatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	if p.Completed {
		return nil, ErrAlreadyCompleted
	}
	switch {
	case m.state.Terminal():
		return nil, ErrMatchClosed
	case m.state == StateCreated || m.state == StateCountdown:
		return nil, ErrNotStarted
	}
	if len(p.Deliveries) == 0 || p.Deliveries[len(p.Deliveries)-1].QuestionIndex != p.CurrentIndex {
		c.logger.Error("match_delivery_mismatch", zap.String("match_id", m.ID), zap.String("player_id", playerID), zap.Int("index", p.CurrentIndex))
		return nil, ErrNotStarted
	}
	d := p.Deliveries[len(p.Deliveries)-1]
	if chosen < 0 || chosen >= len(d.Options) {
		return nil, ErrInvalidOption
	}

	now := c.opts.Now()
	q := m.Questions[p.CurrentIndex]
	correct := chosen == d.CorrectIndex
	p.Answers = append(p.Answers, AnswerRecord{
		QuestionIndex: p.CurrentIndex,
		ChosenIndex:   chosen,
		Correct:       correct,
		Offset:        now.Sub(p.StartedAt),
	})
	p.CurrentIndex++
	m.lastActivity = now

	out := &AnswerOutcome{
		MatchID:       m.ID,
		PlayerID:      playerID,
		Handle:        p.Handle,
		QuestionIndex: d.QuestionIndex,
		WordID:        q.WordID,
		Correct:       correct,
		CorrectAnswer: q.CorrectAnswer,
		Score:         p.Score(),
	}

	if p.CurrentIndex < len(m.Questions) {
		p.Deliveries = append(p.Deliveries, c.newDelivery(m, p.CurrentIndex))
		v := c.viewFor(m, p)
		out.Kind = OutcomeNextQuestion
		out.Next = &v
		return out, nil
	}

	p.Completed = true
	p.CompletedAt = now
	out.Elapsed = p.Elapsed()
	if other := m.opponentOf(playerID); other != nil && other.Completed {
		out.Kind = OutcomeFinished
		out.Result = c.finalizeLocked(m, ReasonCompleted, nil)
		return out, nil
	}
	m.state = StateAwaitingOpponent
	out.Kind = OutcomeWaitingForOpponent
	c.logger.Info("match_player_done",
		zap.String("match_id", m.ID),
		zap.String("player_id", playerID),
		zap.Int("score", out.Score),
		zap.Duration("elapsed", out.Elapsed),
	)
	return out, nil
}

// Finalize computes the result once both players completed. It is normally
// triggered by the second completing answer.
func (c *Coordinator) Finalize(matchID string) (*Result, error) {
	m, ok := c.store.Get(matchID)
	if !ok {
		return nil, ErrUnknownMatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalized {
		return nil, ErrMatchClosed
	}
	for _, p := range m.players {
		if !p.Completed {
			return nil, ErrNotComplete
		}
	}
	return c.finalizeLocked(m, ReasonCompleted, nil), nil
}

// Abandon force-ends a match. culprits are the players whose channel failed.
// A player who completed, or the reachable side of a channel failure, wins by
// forfeit; anything else is void and not recorded.
func (c *Coordinator) Abandon(matchID string, reason Reason, culprits ...string) (*Result, error) {
	m, ok := c.store.Get(matchID)
	if !ok {
		return nil, ErrUnknownMatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalized {
		return nil, ErrMatchClosed
	}
	return c.finalizeLocked(m, reason, culprits), nil
}

// ChannelFailure abandons every active match reachable through h.
func (c *Coordinator) ChannelFailure(h domain.OutboundHandle) []*Result {
	var out []*Result
	for _, m := range c.store.ByHandle(h) {
		m.mu.Lock()
		if m.finalized {
			m.mu.Unlock()
			continue
		}
		var culprits []string
		for _, part := range m.order {
			if part.Handle == h {
				culprits = append(culprits, part.PlayerID)
			}
		}
		out = append(out, c.finalizeLocked(m, ReasonChannelFailure, culprits))
		m.mu.Unlock()
	}
	return out
}

// Sweep abandons matches idle for longer than AbandonAfter.
func (c *Coordinator) Sweep(now time.Time) []*Result {
	var out []*Result
	for _, m := range c.store.List() {
		m.mu.Lock()
		if !m.finalized && now.Sub(m.lastActivity) > c.opts.AbandonAfter {
			out = append(out, c.finalizeLocked(m, ReasonTimeout, nil))
		}
		m.mu.Unlock()
	}
	return out
}

// finalizeLocked runs exactly once per match; m.mu must be held.
func (c *Coordinator) finalizeLocked(m *Match, reason Reason, culprits []string) *Result {
	if m.finalized {
		c.logger.Error("match_double_finalize", zap.String("match_id", m.ID), zap.String("reason", string(reason)))
		return m.result
	}
	m.finalized = true

	p1, p2 := m.players[m.order[0].PlayerID], m.players[m.order[1].PlayerID]
	for _, id := range culprits {
		if p, ok := m.players[id]; ok {
			p.ChannelFailed = true
		}
	}
	res := &Result{
		MatchID:        m.ID,
		Config:         m.Config,
		SessionID:      m.SessionID,
		Total:          len(m.Questions),
		Player1:        m.order[0],
		Player2:        m.order[1],
		Player1Score:   p1.Score(),
		Player2Score:   p2.Score(),
		Player1Elapsed: p1.Elapsed(),
		Player2Elapsed: p2.Elapsed(),
		Player1Done:    p1.Completed,
		Player2Done:    p2.Completed,
		Reason:         reason,
		CompletedAt:    c.opts.Now(),
	}

	if reason == ReasonCompleted {
		switch DecideWinner(res.Player1Score, res.Player2Score, res.Player1Elapsed, res.Player2Elapsed) {
		case 1:
			res.WinnerID = p1.PlayerID
		case 2:
			res.WinnerID = p2.PlayerID
		}
		m.state = StateFinalized
	} else {
		res.WinnerID = forfeitWinner(m, p1, p2, reason)
		res.Void = res.WinnerID == ""
		m.state = StateAbandoned
	}
	m.result = res
	c.store.Delete(m.ID)

	if !res.Void && c.recorder != nil {
		c.recorder.Record(res.Outcome())
	}
	fields := []zap.Field{
		zap.String("match_id", m.ID),
		zap.String("reason", string(reason)),
		zap.String("winner_id", res.WinnerID),
		zap.Int("player1_score", res.Player1Score),
		zap.Int("player2_score", res.Player2Score),
		zap.Bool("void", res.Void),
	}
	if reason == ReasonCompleted {
		c.logger.Info("match_finalize", fields...)
	} else {
		c.logger.Warn("match_abandon", fields...)
	}
	return res
}

func forfeitWinner(m *Match, p1, p2 *PlayerProgress, reason Reason) string {
	if m.state == StateCreated || m.state == StateCountdown {
		return ""
	}
	if reason == ReasonChannelFailure && p1.ChannelFailed != p2.ChannelFailed {
		if p1.ChannelFailed {
			return p2.PlayerID
		}
		return p1.PlayerID
	}
	if p1.Completed != p2.Completed {
		if p1.Completed && !p1.ChannelFailed {
			return p1.PlayerID
		}
		if p2.Completed && !p2.ChannelFailed {
			return p2.PlayerID
		}
	}
	return ""
}

func (c *Coordinator) newDelivery(m *Match, index int) Delivery {
	base := m.Questions[index].Options()
	perm := c.opts.Perm(len(base))
	d := Delivery{QuestionIndex: index, Options: make([]string, len(base))}
	for i, src := range perm {
		d.Options[i] = base[src]
		if src == 0 {
			d.CorrectIndex = i
		}
	}
	return d
}

func (c *Coordinator) viewFor(m *Match, p *PlayerProgress) QuestionView {
	d := p.Deliveries[len(p.Deliveries)-1]
	return QuestionView{
		MatchID:  m.ID,
		PlayerID: p.PlayerID,
		Handle:   p.Handle,
		Index:    d.QuestionIndex,
		Total:    len(m.Questions),
		Prompt:   m.Questions[d.QuestionIndex].Prompt,
		Options:  append([]string(nil), d.Options...),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
