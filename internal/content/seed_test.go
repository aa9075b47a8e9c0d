package content

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

func seedYAML(topic int64, from, n int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "  - book: 1\n    topic: %d\n    words:\n", topic)
	for i := from; i < from+n; i++ {
		fmt.Fprintf(&sb, "      - id: %d\n        term: term%d\n        answer: ans%d\n        distractors: [a%d, b%d, c%d]\n", i, i, i, i, i, i)
	}
	return sb.String()
}

func TestLoadSeedGeneratesSessionsPerScope(t *testing.T) {
	doc := "topics:\n" + seedYAML(1, 1, 10) + seedYAML(2, 11, 5)
	m := NewMemory()
	n, err := LoadSeed(context.Background(), m, strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	// topic 1 and book 1 qualify, topic 2 is too small
	if n != 2*DefaultSeedSessions {
		t.Fatalf("sessions = %d", n)
	}
	s, _ := m.RandomSession(context.Background(), domain.BattleConfig{ScopeKind: domain.ScopeTopic, ScopeID: 2})
	if s != nil {
		t.Fatalf("small topic got a session: %+v", s)
	}
	s, _ = m.RandomSession(context.Background(), domain.BattleConfig{ScopeKind: domain.ScopeBook, ScopeID: 1})
	if s == nil || len(s.WordIDs) != DefaultSessionSize {
		t.Fatalf("book session: %+v", s)
	}
	qs, err := m.Resolve(context.Background(), s.WordIDs)
	if err != nil || len(qs) != DefaultSessionSize {
		t.Fatalf("resolve: %d, %v", len(qs), err)
	}
}

func TestLoadSeedRejectsMissingIDs(t *testing.T) {
	doc := "topics:\n  - book: 1\n    topic: 1\n    words:\n      - term: x\n        answer: y\n"
	if _, err := LoadSeed(context.Background(), NewMemory(), strings.NewReader(doc)); err == nil {
		t.Fatalf("expected error for word without id")
	}
	if _, err := LoadSeed(context.Background(), NewMemory(), strings.NewReader("topics: [")); err == nil {
		t.Fatalf("expected decode error")
	}
}
