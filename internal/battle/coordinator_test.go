package battle

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/park285/vocab-battle-bot/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubCatalog struct {
	sess     *domain.Session
	err      error
	excluded []int64
}

func (s *stubCatalog) RandomSession(_ context.Context, _ domain.BattleConfig, exclude ...int64) (*domain.Session, error) {
	s.excluded = append([]int64(nil), exclude...)
	return s.sess, s.err
}

type stubBank struct{ qs []domain.Question }

func (b *stubBank) Resolve(_ context.Context, _ []int64) ([]domain.Question, error) {
	return b.qs, nil
}

type captureRecorder struct {
	mu  sync.Mutex
	out []domain.BattleOutcome
}

func (r *captureRecorder) Record(o domain.BattleOutcome) {
	r.mu.Lock()
	r.out = append(r.out, o)
	r.mu.Unlock()
}

func (r *captureRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.out)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var topic5 = domain.BattleConfig{ScopeKind: domain.ScopeTopic, ScopeID: 5}

func makeQuestions(n int) []domain.Question {
	qs := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		qs = append(qs, domain.Question{
			WordID:        int64(i),
			Prompt:        fmt.Sprintf("word%d", i),
			CorrectAnswer: fmt.Sprintf("answer%d", i),
			Distractors:   []string{fmt.Sprintf("d%da", i), fmt.Sprintf("d%db", i), fmt.Sprintf("d%dc", i)},
		})
	}
	return qs
}

func sessionOf(qs []domain.Question) *domain.Session {
	s := &domain.Session{ID: 77, ScopeKind: topic5.ScopeKind, ScopeID: topic5.ScopeID}
	for _, q := range qs {
		s.WordIDs = append(s.WordIDs, q.WordID)
	}
	return s
}

func identityPerm(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

type harness struct {
	c     *Coordinator
	clock *fakeClock
	rec   *captureRecorder
	logs  *observer.ObservedLogs
}

func newHarness(t *testing.T, qs []domain.Question) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{clock: &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}, rec: &captureRecorder{}, logs: logs}
	c, err := NewCoordinator(&stubCatalog{sess: sessionOf(qs)}, &stubBank{qs: qs}, NewMemoryStore(), h.rec, Options{
		Now:    h.clock.Now,
		Perm:   identityPerm,
		Logger: zap.New(core),
	})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	h.c = c
	return h
}

func (h *harness) start(t *testing.T, p1, p2 string) *Match {
	t.Helper()
	m, err := h.c.StartMatch(context.Background(),
		Participant{PlayerID: p1, Handle: domain.OutboundHandle("room-" + p1)},
		Participant{PlayerID: p2, Handle: domain.OutboundHandle("room-" + p2)},
		topic5)
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	if _, err := h.c.BeginCountdown(context.Background(), m.ID, nil); err != nil {
		t.Fatalf("BeginCountdown: %v", err)
	}
	return m
}

// answer submits for player; with identityPerm the correct option is always 0.
func (h *harness) answer(t *testing.T, matchID, player string, correct bool) *AnswerOutcome {
	t.Helper()
	choice := 0
	if !correct {
		choice = 1
	}
	out, err := h.c.SubmitAnswer(matchID, player, choice)
	if err != nil {
		t.Fatalf("SubmitAnswer(%s): %v", player, err)
	}
	return out
}

func TestStartMatchKeepsSessionOrder(t *testing.T) {
	qs := makeQuestions(10)
	reversed := make([]domain.Question, len(qs))
	for i := range qs {
		reversed[len(qs)-1-i] = qs[i]
	}
	h := newHarness(t, qs)
	h.c.bank = &stubBank{qs: reversed}

	m, err := h.c.StartMatch(context.Background(), Participant{PlayerID: "x"}, Participant{PlayerID: "y"}, topic5)
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	if len(m.Questions) != 10 {
		t.Fatalf("expected 10 questions, got %d", len(m.Questions))
	}
	for i, q := range m.Questions {
		if q.WordID != int64(i+1) {
			t.Fatalf("question %d: expected word %d, got %d", i, i+1, q.WordID)
		}
	}
	if m.State() != StateCreated {
		t.Fatalf("expected CREATED, got %s", m.State())
	}
	p, _ := m.Progress("x")
	if p.CurrentIndex != 0 || p.Completed || !p.StartedAt.IsZero() {
		t.Fatalf("unexpected initial progress: %+v", p)
	}
}

func TestStartMatchInsufficientContent(t *testing.T) {
	qs := makeQuestions(10)
	// two words lack a full distractor set
	qs[3].Distractors = qs[3].Distractors[:2]
	qs[7].Distractors = []string{"x", "x", "y"}
	h := newHarness(t, qs)

	_, err := h.c.StartMatch(context.Background(), Participant{PlayerID: "x"}, Participant{PlayerID: "y"}, topic5)
	if !errors.Is(err, ErrInsufficientContent) {
		t.Fatalf("expected ErrInsufficientContent, got %v", err)
	}
	if h.c.Active() != 0 {
		t.Fatalf("expected no match to exist, got %d", h.c.Active())
	}
	if _, ok := h.c.MatchFor("x"); ok {
		t.Fatalf("player x should not be in a match")
	}
}

func TestStartMatchWithoutSession(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	h.c.catalog = &stubCatalog{}
	if _, err := h.c.StartMatch(context.Background(), Participant{PlayerID: "x"}, Participant{PlayerID: "y"}, topic5); !errors.Is(err, ErrInsufficientContent) {
		t.Fatalf("expected ErrInsufficientContent, got %v", err)
	}
}

func TestStartMatchPassesExcludedSessions(t *testing.T) {
	qs := makeQuestions(10)
	h := newHarness(t, qs)
	cat := &stubCatalog{sess: sessionOf(qs)}
	h.c.catalog = cat
	if _, err := h.c.StartMatch(context.Background(), Participant{PlayerID: "x"}, Participant{PlayerID: "y"}, topic5, 41); err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	if len(cat.excluded) != 1 || cat.excluded[0] != 41 {
		t.Fatalf("expected exclude [41], got %v", cat.excluded)
	}
}

func TestStartMatchRejectsBusyPlayerAndSelf(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	h.start(t, "x", "y")
	if _, err := h.c.StartMatch(context.Background(), Participant{PlayerID: "y"}, Participant{PlayerID: "z"}, topic5); !errors.Is(err, ErrPlayerBusy) {
		t.Fatalf("expected ErrPlayerBusy, got %v", err)
	}
	if _, err := h.c.StartMatch(context.Background(), Participant{PlayerID: "z"}, Participant{PlayerID: "z"}, topic5); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs for self match, got %v", err)
	}
}

func TestAnswersRejectedBeforeCountdownEnds(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m, err := h.c.StartMatch(context.Background(), Participant{PlayerID: "x"}, Participant{PlayerID: "y"}, topic5)
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	if _, err := h.c.SubmitAnswer(m.ID, "x", 0); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
}

func TestCountdownStampsIdenticalStart(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	h.c.opts.CountdownSteps = 3
	m, err := h.c.StartMatch(context.Background(), Participant{PlayerID: "x", Handle: "rx"}, Participant{PlayerID: "y", Handle: "ry"}, topic5)
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	var ticks []int
	views, err := h.c.BeginCountdown(context.Background(), m.ID, func(n int) {
		ticks = append(ticks, n)
		if got := m.State(); got != StateCountdown {
			t.Errorf("expected COUNTDOWN during tick, got %s", got)
		}
		h.clock.Advance(time.Second)
	})
	if err != nil {
		t.Fatalf("BeginCountdown: %v", err)
	}
	if fmt.Sprint(ticks) != "[3 2 1]" {
		t.Fatalf("unexpected ticks: %v", ticks)
	}
	if len(views) != 2 || views[0].PlayerID != "x" || views[1].PlayerID != "y" {
		t.Fatalf("unexpected views: %+v", views)
	}
	for _, v := range views {
		if v.Index != 0 || v.Total != 10 || v.Prompt != "word1" || len(v.Options) != 4 {
			t.Fatalf("unexpected first question view: %+v", v)
		}
	}
	px, _ := m.Progress("x")
	py, _ := m.Progress("y")
	if px.StartedAt.IsZero() || !px.StartedAt.Equal(py.StartedAt) {
		t.Fatalf("start stamps differ: %v vs %v", px.StartedAt, py.StartedAt)
	}
	if m.State() != StateInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", m.State())
	}
	if _, err := h.c.BeginCountdown(context.Background(), m.ID, nil); err == nil {
		t.Fatalf("expected second countdown to fail")
	}
}

func TestCountdownHonoursContext(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	h.c.opts.CountdownSteps = 3
	h.c.opts.CountdownInterval = time.Hour
	m, err := h.c.StartMatch(context.Background(), Participant{PlayerID: "x"}, Participant{PlayerID: "y"}, topic5)
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.c.BeginCountdown(ctx, m.ID, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTieOnScoreFasterPlayerWins(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")

	// y answers every 650ms, x every 800ms, interleaved on a shared clock
	var last *AnswerOutcome
	xAt, yAt := 800*time.Millisecond, 650*time.Millisecond
	xi, yi := 0, 0
	elapsed := time.Duration(0)
	for xi < 10 || yi < 10 {
		nextX, nextY := time.Duration(xi+1)*xAt, time.Duration(yi+1)*yAt
		if yi < 10 && (xi >= 10 || nextY <= nextX) {
			h.clock.Advance(nextY - elapsed)
			elapsed = nextY
			last = h.answer(t, m.ID, "y", true)
			yi++
			continue
		}
		h.clock.Advance(nextX - elapsed)
		elapsed = nextX
		last = h.answer(t, m.ID, "x", true)
		xi++
	}
	if last.Kind != OutcomeFinished || last.Result == nil {
		t.Fatalf("expected final answer to finish the match, got kind=%v", last.Kind)
	}
	res := last.Result
	if res.Player1Score != 10 || res.Player2Score != 10 {
		t.Fatalf("unexpected scores %d/%d", res.Player1Score, res.Player2Score)
	}
	if res.Player1Elapsed != 8*time.Second || res.Player2Elapsed != 6500*time.Millisecond {
		t.Fatalf("unexpected elapsed %v/%v", res.Player1Elapsed, res.Player2Elapsed)
	}
	if res.WinnerID != "y" {
		t.Fatalf("expected y to win on time, got %q", res.WinnerID)
	}
	if h.rec.len() != 1 || h.rec.out[0].WinnerID != "y" || h.rec.out[0].Reason != "completed" {
		t.Fatalf("expected one recorded outcome for y, got %+v", h.rec.out)
	}
	if _, ok := h.c.Match(m.ID); ok {
		t.Fatalf("finalized match must be removed")
	}
}

func TestHigherScoreWinsRegardlessOfTime(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	for i := 0; i < 10; i++ {
		h.clock.Advance(100 * time.Millisecond)
		h.answer(t, m.ID, "x", i < 7)
	}
	var last *AnswerOutcome
	for i := 0; i < 10; i++ {
		h.clock.Advance(5 * time.Second)
		last = h.answer(t, m.ID, "y", i < 9)
	}
	if last.Result == nil || last.Result.WinnerID != "y" {
		t.Fatalf("expected y to win 9-7, got %+v", last.Result)
	}
	view, ok := last.Result.ViewFor("x")
	if !ok || view.Verdict != VerdictLoss || view.OwnScore != 7 || view.OpponentScore != 9 {
		t.Fatalf("unexpected view for x: %+v", view)
	}
}

func TestDrawWhenScoreAndTimeEqual(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	var last *AnswerOutcome
	for i := 0; i < 10; i++ {
		h.clock.Advance(time.Second)
		h.answer(t, m.ID, "x", true)
		last = h.answer(t, m.ID, "y", true)
	}
	if last.Result == nil || last.Result.WinnerID != "" {
		t.Fatalf("expected draw, got %+v", last.Result)
	}
	if v, _ := last.Result.ViewFor("y"); v.Verdict != VerdictDraw {
		t.Fatalf("expected draw verdict, got %s", v.Verdict)
	}
}

func TestAnswerAfterCompletionRejected(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	var last *AnswerOutcome
	for i := 0; i < 10; i++ {
		h.clock.Advance(time.Second)
		last = h.answer(t, m.ID, "x", true)
	}
	if last.Kind != OutcomeWaitingForOpponent || last.Score != 10 || last.Elapsed != 10*time.Second {
		t.Fatalf("expected waiting outcome with 10/10 in 10s, got %+v", last)
	}
	if m.State() != StateAwaitingOpponent {
		t.Fatalf("expected AWAITING_OPPONENT, got %s", m.State())
	}
	before, _ := m.Progress("x")
	if _, err := h.c.SubmitAnswer(m.ID, "x", 0); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	after, _ := m.Progress("x")
	if len(after.Answers) != len(before.Answers) || after.CurrentIndex != before.CurrentIndex || !after.CompletedAt.Equal(before.CompletedAt) {
		t.Fatalf("state mutated by rejected answer")
	}
}

func TestUnknownMatchAndPlayer(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	if _, err := h.c.SubmitAnswer("nope", "x", 0); !errors.Is(err, ErrUnknownMatch) {
		t.Fatalf("expected ErrUnknownMatch, got %v", err)
	}
	if _, err := h.c.SubmitAnswer(m.ID, "z", 0); !errors.Is(err, ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
}

func TestProgressAdvancesByOne(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	if _, err := h.c.SubmitAnswer(m.ID, "x", 4); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("expected ErrInvalidOption, got %v", err)
	}
	if p, _ := m.Progress("x"); p.CurrentIndex != 0 || len(p.Answers) != 0 {
		t.Fatalf("invalid option must not mutate progress: %+v", p)
	}
	for i := 0; i < 10; i++ {
		out := h.answer(t, m.ID, "x", i%2 == 0)
		p, _ := m.Progress("x")
		if p.CurrentIndex != i+1 {
			t.Fatalf("after %d answers index=%d", i+1, p.CurrentIndex)
		}
		if out.QuestionIndex != i {
			t.Fatalf("answer %d recorded against question %d", i, out.QuestionIndex)
		}
		if i < 9 && (out.Next == nil || out.Next.Index != i+1) {
			t.Fatalf("expected next question %d, got %+v", i+1, out.Next)
		}
	}
	p, _ := m.Progress("x")
	if p.CurrentIndex != 10 || p.Score() != 5 {
		t.Fatalf("expected index 10 score 5, got %d/%d", p.CurrentIndex, p.Score())
	}
	if py, _ := m.Progress("y"); py.CurrentIndex != 0 {
		t.Fatalf("opponent progress must be independent, got %d", py.CurrentIndex)
	}
}

func TestPerDeliveryShuffleIntegrity(t *testing.T) {
	qs := makeQuestions(10)
	h := newHarness(t, qs)
	r := rand.New(rand.NewPCG(1, 2))
	h.c.opts.Perm = r.Perm
	m := h.start(t, "x", "y")

	for _, player := range []string{"x", "y"} {
		for i := 0; i < 10; i++ {
			p, _ := m.Progress(player)
			d := p.Deliveries[len(p.Deliveries)-1]
			if d.QuestionIndex != i || len(d.Options) != 4 {
				t.Fatalf("%s q%d: bad delivery %+v", player, i, d)
			}
			seen := map[string]bool{}
			for _, o := range d.Options {
				seen[o] = true
			}
			if len(seen) != 4 {
				t.Fatalf("%s q%d: duplicate options %v", player, i, d.Options)
			}
			if d.Options[d.CorrectIndex] != qs[i].CorrectAnswer {
				t.Fatalf("%s q%d: correct index points at %q", player, i, d.Options[d.CorrectIndex])
			}
			out, err := h.c.SubmitAnswer(m.ID, player, d.CorrectIndex)
			if err != nil {
				t.Fatalf("SubmitAnswer: %v", err)
			}
			if !out.Correct || out.WordID != qs[i].WordID {
				t.Fatalf("%s q%d: expected correct answer for word %d, got %+v", player, i, qs[i].WordID, out)
			}
		}
	}
}

func TestConcurrentLastAnswersFinalizeOnce(t *testing.T) {
	for round := 0; round < 50; round++ {
		h := newHarness(t, makeQuestions(10))
		m := h.start(t, "x", "y")
		for i := 0; i < 9; i++ {
			h.answer(t, m.ID, "x", true)
			h.answer(t, m.ID, "y", true)
		}
		var wg sync.WaitGroup
		outs := make([]*AnswerOutcome, 2)
		for i, player := range []string{"x", "y"} {
			wg.Add(1)
			go func(i int, player string) {
				defer wg.Done()
				out, err := h.c.SubmitAnswer(m.ID, player, 0)
				if err != nil {
					t.Errorf("SubmitAnswer(%s): %v", player, err)
					return
				}
				outs[i] = out
			}(i, player)
		}
		wg.Wait()
		finished := 0
		for _, o := range outs {
			if o != nil && o.Kind == OutcomeFinished {
				finished++
			}
		}
		if finished != 1 {
			t.Fatalf("round %d: expected exactly one finishing answer, got %d", round, finished)
		}
		if h.rec.len() != 1 {
			t.Fatalf("round %d: expected one outcome record, got %d", round, h.rec.len())
		}
		if n := h.logs.FilterMessage("match_double_finalize").Len(); n != 0 {
			t.Fatalf("round %d: unexpected double finalize logs: %d", round, n)
		}
	}
}

func TestFinalizeGuardLogsDoubleRun(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	m.mu.Lock()
	first := h.c.finalizeLocked(m, ReasonTimeout, nil)
	second := h.c.finalizeLocked(m, ReasonCompleted, nil)
	m.mu.Unlock()
	if first != second {
		t.Fatalf("second finalize must return the first result")
	}
	if n := h.logs.FilterMessage("match_double_finalize").FilterField(zap.String("match_id", m.ID)).Len(); n != 1 {
		t.Fatalf("expected one error log for double finalize, got %d", n)
	}
	if m.State() != StateAbandoned {
		t.Fatalf("state changed by second finalize: %s", m.State())
	}
}

func TestFinalizeRequiresBothCompleted(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	if _, err := h.c.Finalize(m.ID); !errors.Is(err, ErrNotComplete) {
		t.Fatalf("expected ErrNotComplete, got %v", err)
	}
}

func TestAbandonTimeoutAfterOneCompletedIsForfeit(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	for i := 0; i < 10; i++ {
		h.answer(t, m.ID, "x", i < 3)
	}
	h.answer(t, m.ID, "y", true)
	h.answer(t, m.ID, "y", true)
	h.answer(t, m.ID, "y", true)
	h.answer(t, m.ID, "y", true)

	h.clock.Advance(11 * time.Minute)
	results := h.c.Sweep(h.clock.Now())
	if len(results) != 1 {
		t.Fatalf("expected one abandoned match, got %d", len(results))
	}
	res := results[0]
	if res.Reason != ReasonTimeout || res.Void || res.WinnerID != "x" || !res.Forfeit() {
		t.Fatalf("expected x to win by forfeit, got %+v", res)
	}
	if h.rec.len() != 1 || h.rec.out[0].Reason != "timeout" || h.rec.out[0].WinnerID != "x" {
		t.Fatalf("expected forfeit to be recorded, got %+v", h.rec.out)
	}
	if m.State() != StateAbandoned || h.c.Active() != 0 {
		t.Fatalf("expected match abandoned and removed")
	}
	if _, err := h.c.SubmitAnswer(m.ID, "y", 0); !errors.Is(err, ErrUnknownMatch) {
		t.Fatalf("expected ErrUnknownMatch after abandon, got %v", err)
	}
}

func TestAbandonTimeoutWithNobodyDoneIsVoid(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	h.answer(t, m.ID, "x", true)
	res, err := h.c.Abandon(m.ID, ReasonTimeout)
	if err != nil {
		t.Fatalf("Abandon: %v", err)
	}
	if !res.Void || res.WinnerID != "" {
		t.Fatalf("expected void result, got %+v", res)
	}
	if h.rec.len() != 0 {
		t.Fatalf("void matches must not be recorded")
	}
	if v, _ := res.ViewFor("x"); v.Verdict != VerdictVoid {
		t.Fatalf("expected void verdict, got %s", v.Verdict)
	}
	if _, err := h.c.Abandon(m.ID, ReasonTimeout); !errors.Is(err, ErrUnknownMatch) {
		t.Fatalf("expected ErrUnknownMatch on second abandon, got %v", err)
	}
}

func TestChannelFailureCreditsReachablePlayer(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	h.answer(t, m.ID, "x", true)

	results := h.c.ChannelFailure("room-y")
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	res := results[0]
	if res.Reason != ReasonChannelFailure || res.WinnerID != "x" || res.Void {
		t.Fatalf("expected x to win after y's channel failed, got %+v", res)
	}
	if h.rec.len() != 1 {
		t.Fatalf("expected forfeit to be recorded")
	}
	if got := h.c.ChannelFailure("room-y"); len(got) != 0 {
		t.Fatalf("second failure must be a no-op, got %d", len(got))
	}
}

func TestChannelFailureOnSharedHandleIsVoid(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m, err := h.c.StartMatch(context.Background(),
		Participant{PlayerID: "x", Handle: "group"},
		Participant{PlayerID: "y", Handle: "group"}, topic5)
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	if _, err := h.c.BeginCountdown(context.Background(), m.ID, nil); err != nil {
		t.Fatalf("BeginCountdown: %v", err)
	}
	results := h.c.ChannelFailure("group")
	if len(results) != 1 || !results[0].Void {
		t.Fatalf("expected void when both players share the failed handle, got %+v", results)
	}
}

func TestAbandonDuringCountdownIsVoid(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	h.c.opts.CountdownSteps = 2
	m, err := h.c.StartMatch(context.Background(), Participant{PlayerID: "x", Handle: "rx"}, Participant{PlayerID: "y", Handle: "ry"}, topic5)
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	var abandoned *Result
	_, err = h.c.BeginCountdown(context.Background(), m.ID, func(n int) {
		if n == 2 {
			abandoned = h.c.ChannelFailure("ry")[0]
		}
	})
	if !errors.Is(err, ErrMatchClosed) {
		t.Fatalf("expected ErrMatchClosed after abandon during countdown, got %v", err)
	}
	if abandoned == nil || !abandoned.Void {
		t.Fatalf("expected void result, got %+v", abandoned)
	}
}

func TestSweepLeavesActiveMatches(t *testing.T) {
	h := newHarness(t, makeQuestions(10))
	m := h.start(t, "x", "y")
	h.clock.Advance(9 * time.Minute)
	h.answer(t, m.ID, "y", true)
	h.clock.Advance(9 * time.Minute)
	if got := h.c.Sweep(h.clock.Now()); len(got) != 0 {
		t.Fatalf("expected recent activity to keep the match, got %d results", len(got))
	}
	if h.c.Active() != 1 {
		t.Fatalf("expected match still active")
	}
}
