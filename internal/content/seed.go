package content

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/park285/vocab-battle-bot/internal/domain"
	yaml "gopkg.in/yaml.v3"
)

// DefaultSeedSessions is how many sessions LoadSeed generates per scope.
const DefaultSeedSessions = 5

type seedFile struct {
	Topics []seedTopic `yaml:"topics"`
}

type seedTopic struct {
	Book  int64      `yaml:"book"`
	Topic int64      `yaml:"topic"`
	Words []seedWord `yaml:"words"`
}

type seedWord struct {
	ID          int64    `yaml:"id"`
	Term        string   `yaml:"term"`
	Answer      string   `yaml:"answer"`
	Distractors []string `yaml:"distractors"`
}

// LoadSeedFile fills m from a YAML word list; see LoadSeed.
func LoadSeedFile(ctx context.Context, m *Memory, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open content seed: %w", err)
	}
	defer f.Close()
	return LoadSeed(ctx, m, f)
}

// LoadSeed registers every topic in r and generates sessions for each topic
// and book that has enough words. It returns the number of sessions created.
func LoadSeed(ctx context.Context, m *Memory, r io.Reader) (int, error) {
	var sf seedFile
	if err := yaml.NewDecoder(r).Decode(&sf); err != nil {
		return 0, fmt.Errorf("decode content seed: %w", err)
	}
	books := map[int64]struct{}{}
	for _, t := range sf.Topics {
		if t.Book <= 0 || t.Topic <= 0 {
			return 0, fmt.Errorf("content seed: topic %d of book %d has an invalid id", t.Topic, t.Book)
		}
		qs := make([]domain.Question, 0, len(t.Words))
		for _, w := range t.Words {
			if w.ID <= 0 {
				return 0, fmt.Errorf("content seed: word %q has no id", w.Term)
			}
			qs = append(qs, domain.Question{WordID: w.ID, Prompt: w.Term, CorrectAnswer: w.Answer, Distractors: w.Distractors})
		}
		m.AddTopic(t.Book, t.Topic, qs...)
		books[t.Book] = struct{}{}
	}

	scopes := make([]domain.BattleConfig, 0, len(sf.Topics)+len(books))
	for _, t := range sf.Topics {
		scopes = append(scopes, domain.BattleConfig{ScopeKind: domain.ScopeTopic, ScopeID: t.Topic})
	}
	bookIDs := make([]int64, 0, len(books))
	for id := range books {
		bookIDs = append(bookIDs, id)
	}
	sort.Slice(bookIDs, func(i, j int) bool { return bookIDs[i] < bookIDs[j] })
	for _, id := range bookIDs {
		scopes = append(scopes, domain.BattleConfig{ScopeKind: domain.ScopeBook, ScopeID: id})
	}

	total := 0
	for _, cfg := range scopes {
		n, err := m.GenerateSessions(ctx, cfg, DefaultSeedSessions)
		if err != nil {
			// scope too small for a session
			continue
		}
		total += n
	}
	return total, nil
}
