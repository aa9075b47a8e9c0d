package battlepresenter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/vocab-battle-bot/internal/battle"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/rematch"
	"github.com/park285/vocab-battle-bot/internal/service/arena"
)

type sent struct {
	room string
	text string
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
	fail map[string]bool
}

func (r *recorder) send(_ context.Context, room, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[room] {
		return errors.New("unreachable")
	}
	r.msgs = append(r.msgs, sent{room: room, text: message})
	return nil
}

func newPresenter() (*Presenter, *recorder) {
	rec := &recorder{fail: map[string]bool{}}
	p := NewPresenter(rec.send, NewFormatter(nil, StaticPrefix("!")), NewDirectory())
	p.names.RememberName("u1", "앨리스")
	p.names.RememberName("u2", "밥")
	return p, rec
}

var cfg = domain.BattleConfig{ScopeKind: domain.ScopeBook, ScopeID: 3}

func TestQuestionShowsNumberedOptions(t *testing.T) {
	p, rec := newPresenter()
	err := p.DeliverQuestion(context.Background(), battle.QuestionView{
		MatchID: "m", PlayerID: "u1", Handle: "room", Index: 1, Total: 10,
		Prompt: "apple", Options: []string{"사과", "배", "포도", "감"},
	})
	if err != nil {
		t.Fatalf("DeliverQuestion: %v", err)
	}
	got := rec.msgs[0]
	if got.room != "room" {
		t.Fatalf("room = %q", got.room)
	}
	for _, want := range []string{"앨리스", "[2/10]", "apple", "1) 사과", "4) 감", "!답"} {
		if !strings.Contains(got.text, want) {
			t.Fatalf("question missing %q:\n%s", want, got.text)
		}
	}
}

func TestResultVerdicts(t *testing.T) {
	p, rec := newPresenter()
	res := &battle.Result{
		MatchID: "m", Total: 10,
		Player1: battle.Participant{PlayerID: "u1", Handle: "r1"},
		Player2: battle.Participant{PlayerID: "u2", Handle: "r2"},
		Player1Score: 8, Player2Score: 8,
		Player1Elapsed: 30 * time.Second, Player2Elapsed: 41 * time.Second,
		Player1Done: true, Player2Done: true,
		WinnerID: "u1", Reason: battle.ReasonCompleted,
	}
	for _, v := range res.Views() {
		if err := p.DeliverResult(context.Background(), v); err != nil {
			t.Fatalf("DeliverResult: %v", err)
		}
	}
	if !strings.Contains(rec.msgs[0].text, "앨리스님 승리") || !strings.Contains(rec.msgs[0].text, "30s") {
		t.Fatalf("winner view:\n%s", rec.msgs[0].text)
	}
	if !strings.Contains(rec.msgs[1].text, "밥님 패배") || !strings.Contains(rec.msgs[1].text, "재대결") {
		t.Fatalf("loser view:\n%s", rec.msgs[1].text)
	}

	rec.msgs = nil
	res.Void, res.WinnerID, res.Reason = true, "", battle.ReasonChannelFailure
	v, _ := res.ViewFor("u2")
	_ = p.DeliverResult(context.Background(), v)
	if !strings.Contains(rec.msgs[0].text, "무효") || strings.Contains(rec.msgs[0].text, "대결 재대결") {
		t.Fatalf("void view:\n%s", rec.msgs[0].text)
	}
}

func TestRematchOfferedReachesBothRoomsAndTracksCode(t *testing.T) {
	p, rec := newPresenter()
	ticket := &rematch.Ticket{
		ID: "abcdef12-3456", RequesterID: "u1", RequesterHandle: "r1",
		OpponentID: "u2", OpponentHandle: "r2", Config: cfg,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	if err := p.RematchOffered(context.Background(), ticket); err != nil {
		t.Fatalf("RematchOffered: %v", err)
	}
	if len(rec.msgs) != 2 || rec.msgs[0].room != "r2" || rec.msgs[1].room != "r1" {
		t.Fatalf("offer deliveries: %+v", rec.msgs)
	}
	if !strings.Contains(rec.msgs[0].text, "!재대결 수락 ABCDEF") || !strings.Contains(rec.msgs[0].text, "책 3") {
		t.Fatalf("offer text:\n%s", rec.msgs[0].text)
	}

	if id, ok := p.Directory().ResolveTicket("u2", ""); !ok || id != ticket.ID {
		t.Fatalf("implicit ticket = %q, %v", id, ok)
	}
	if id, ok := p.Directory().ResolveTicket("u2", "abcdef"); !ok || id != ticket.ID {
		t.Fatalf("code lookup = %q, %v", id, ok)
	}
	if _, ok := p.Directory().ResolveTicket("u3", ""); ok {
		t.Fatalf("stranger must not resolve a ticket")
	}

	rec.msgs = nil
	if err := p.RematchClosed(context.Background(), ticket, "u2"); err != nil {
		t.Fatalf("RematchClosed: %v", err)
	}
	if rec.msgs[0].room != "r1" || !strings.Contains(rec.msgs[0].text, "밥님이 재대결을 거절") {
		t.Fatalf("decline notice: %+v", rec.msgs)
	}
	if _, ok := p.Directory().ResolveTicket("u2", ""); ok {
		t.Fatalf("closed ticket still resolvable")
	}
}

func TestSharedRoomOfferSentOnce(t *testing.T) {
	p, rec := newPresenter()
	ticket := &rematch.Ticket{ID: "t-1", RequesterID: "u1", RequesterHandle: "room", OpponentID: "u2", OpponentHandle: "room", Config: cfg, ExpiresAt: time.Now().Add(time.Minute)}
	_ = p.RematchOffered(context.Background(), ticket)
	if len(rec.msgs) != 1 {
		t.Fatalf("expected one message for a shared room, got %d", len(rec.msgs))
	}
}

func TestRejectedMapsDomainErrors(t *testing.T) {
	p, rec := newPresenter()
	who := battle.Participant{PlayerID: "u1", Handle: "r1"}
	cases := map[error]string{
		battle.ErrPlayerBusy:                              "이미 진행 중인 대결",
		fmt.Errorf("wrap: %w", arena.ErrNoRecentOpponent): "!대결 책",
		rematch.ErrTicketNotFound:                         "만료",
		errors.New("boom"):                                "잠시 후 다시",
	}
	for err, want := range cases {
		rec.msgs = nil
		if e := p.Rejected(context.Background(), who, err); e != nil {
			t.Fatalf("Rejected: %v", e)
		}
		if !strings.Contains(rec.msgs[0].text, want) {
			t.Fatalf("%v rendered as %q, want %q", err, rec.msgs[0].text, want)
		}
	}
}

func TestToDomainErrorCodes(t *testing.T) {
	if de := ToDomainError(battle.ErrNotStarted); de.Code != "not_started" || !de.Retryable {
		t.Fatalf("not started: %+v", de)
	}
	if de := ToDomainError(nil); de.Code != "" {
		t.Fatalf("nil error: %+v", de)
	}
}

func TestSendFailureIsReturned(t *testing.T) {
	p, rec := newPresenter()
	rec.fail["gone"] = true
	err := p.Countdown(context.Background(), "gone", "m", 3)
	if err == nil {
		t.Fatalf("expected delivery error")
	}
}

func TestNameFallsBackToID(t *testing.T) {
	d := NewDirectory()
	if d.Name("u9") != "u9" {
		t.Fatalf("unknown id must render as itself")
	}
	d.RememberName("u9", "  ")
	if d.Name("u9") != "u9" {
		t.Fatalf("blank names must be ignored")
	}
}

func TestDirectoryForgetsSilentPlayers(t *testing.T) {
	d := NewDirectory()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	d.RememberName("old", "올드")
	now = now.Add(20 * time.Hour)
	d.RememberName("recent", "리센트")
	now = now.Add(5 * time.Hour)
	d.RememberName("new", "뉴")

	if d.Name("old") != "old" {
		t.Fatalf("name unseen for a day must be dropped")
	}
	if d.Name("recent") != "리센트" || d.Name("new") != "뉴" {
		t.Fatalf("recent names lost: %v", d.names)
	}
	if len(d.names) != 2 {
		t.Fatalf("names = %v", d.names)
	}
}

func TestHelpAndStats(t *testing.T) {
	f := NewFormatter(nil, StaticPrefix("!"))
	help := f.Help()
	if !strings.HasPrefix(help, "⚔️ 단어 대결 명령어 안내") || !strings.Contains(help, "!재대결 수락|거절|취소") {
		t.Fatalf("help:\n%s", help)
	}
	stats := f.Stats("앨리스", nil)
	if !strings.Contains(stats, "기록이 아직 없습니다") {
		t.Fatalf("empty stats: %s", stats)
	}
	ph := ToDTOStats(&domain.PlayerStats{PlayerID: "u1", Total: 3, Wins: 2, Losses: 1, WinRate: 66.7, AvgScore: 7.5, Streak: 2, StreakType: "win"}, nil)
	stats = f.Stats("u1", ph)
	for _, want := range []string{"3판 (2승 1패 0무)", "66.7%", "7.5", "2연승"} {
		if !strings.Contains(stats, want) {
			t.Fatalf("stats missing %q:\n%s", want, stats)
		}
	}
}
