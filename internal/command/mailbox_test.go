package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/park285/vocab-battle-bot/internal/adapter/battlepresenter"
	"github.com/park285/vocab-battle-bot/internal/battle"
	"github.com/park285/vocab-battle-bot/internal/content"
	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/park285/vocab-battle-bot/internal/service/arena"
)

// coordDispatcher applies answers straight to a coordinator; the first one is
// slowed down so a later message would overtake it without serialization.
type coordDispatcher struct {
	coord *battle.Coordinator
	once  sync.Once
}

func (d *coordDispatcher) Dispatch(_ context.Context, ev arena.Event) error {
	ans, ok := ev.(arena.SubmitAnswer)
	if !ok {
		return nil
	}
	d.once.Do(func() { time.Sleep(20 * time.Millisecond) })
	m, ok := d.coord.MatchFor(ans.PlayerID)
	if !ok {
		return arena.ErrNoActiveMatch
	}
	_, err := d.coord.SubmitAnswer(m.ID, ans.PlayerID, ans.Choice)
	return err
}

func TestMailboxKeepsAnswerOrder(t *testing.T) {
	topic := domain.BattleConfig{ScopeKind: domain.ScopeTopic, ScopeID: 5}
	mem := content.NewMemory()
	var ids []int64
	var qs []domain.Question
	for i := 1; i <= 10; i++ {
		qs = append(qs, domain.Question{
			WordID: int64(i), Prompt: fmt.Sprintf("w%d", i), CorrectAnswer: fmt.Sprintf("a%d", i),
			Distractors: []string{fmt.Sprintf("x%d", i), fmt.Sprintf("y%d", i), fmt.Sprintf("z%d", i)},
		})
		ids = append(ids, int64(i))
	}
	mem.AddTopic(1, 5, qs...)
	mem.AddSession(topic, ids)

	coord, err := battle.NewCoordinator(mem, mem, nil, nil, battle.Options{})
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	ctx := context.Background()
	m, err := coord.StartMatch(ctx, battle.Participant{PlayerID: "u1", Handle: "room"}, battle.Participant{PlayerID: "u2", Handle: "room"}, topic)
	if err != nil {
		t.Fatalf("StartMatch: %v", err)
	}
	if _, err := coord.BeginCountdown(ctx, m.ID, nil); err != nil {
		t.Fatalf("BeginCountdown: %v", err)
	}

	box := &outbox{}
	p := battlepresenter.NewPresenter(box.send, battlepresenter.NewFormatter(nil, battlepresenter.StaticPrefix("!")), battlepresenter.NewDirectory())
	h, err := NewHandler("!", &coordDispatcher{coord: coord}, nil, p, nil)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mb := NewMailbox(h.Handle, MailboxOptions{})
	for i := 0; i < 5; i++ {
		if err := mb.Post(Inbound{PlayerID: "u1", Room: "room", Text: fmt.Sprintf("!답 %d", i%4+1)}); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}
	if err := mb.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	prog, _ := m.Progress("u1")
	if len(prog.Answers) != 5 {
		t.Fatalf("answers = %d", len(prog.Answers))
	}
	for i, a := range prog.Answers {
		if a.QuestionIndex != i || a.ChosenIndex != i%4 {
			t.Fatalf("answer %d applied out of order: %+v", i, prog.Answers)
		}
	}
}

func TestMailboxRunsPlayersInParallel(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []string
	mb := NewMailbox(func(_ context.Context, in Inbound) error {
		if in.PlayerID == "slow" {
			<-release
		}
		mu.Lock()
		seen = append(seen, in.PlayerID+":"+in.Text)
		mu.Unlock()
		return nil
	}, MailboxOptions{})

	_ = mb.Post(Inbound{PlayerID: "slow", Text: "1"})
	_ = mb.Post(Inbound{PlayerID: "slow", Text: "2"})
	_ = mb.Post(Inbound{PlayerID: "fast", Text: "1"})

	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(release)
	if err := mb.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	want := []string{"fast:1", "slow:1", "slow:2"}
	if fmt.Sprint(seen) != fmt.Sprint(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
}

func TestMailboxDropsOverflowAndRejectsAfterClose(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	handled := 0
	mb := NewMailbox(func(context.Context, Inbound) error {
		<-release
		mu.Lock()
		handled++
		mu.Unlock()
		return nil
	}, MailboxOptions{Depth: 2})

	for i := 0; i < 5; i++ {
		_ = mb.Post(Inbound{PlayerID: "u1", Text: "x"})
	}
	close(release)
	if err := mb.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// one in flight plus at most Depth queued
	if handled < 2 || handled > 3 {
		t.Fatalf("handled = %d", handled)
	}
	if err := mb.Post(Inbound{PlayerID: "u1"}); !errors.Is(err, ErrMailboxClosed) {
		t.Fatalf("post after close: %v", err)
	}
}

func TestMailboxCloseHonoursDeadline(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	mb := NewMailbox(func(ctx context.Context, _ Inbound) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, MailboxOptions{})
	_ = mb.Post(Inbound{PlayerID: "u1"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := mb.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close = %v, want deadline", err)
	}
}
