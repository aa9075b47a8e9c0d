// Package content supplies battle sessions and resolves their words into
// multiple-choice questions.
package content

import (
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

// DefaultSessionSize is the number of words drawn into one session.
const DefaultSessionSize = 10

// ErrSessionNotFound is returned when a scope has too few words for a session.
var ErrSessionNotFound = errors.New("battle session not found")

// sampleSessions draws count independent samples of size words each.
func sampleSessions(wordIDs []int64, count, size int, perm func(int) []int) [][]int64 {
	out := make([][]int64, 0, count)
	for i := 0; i < count; i++ {
		p := perm(len(wordIDs))
		s := make([]int64, size)
		for j := 0; j < size; j++ {
			s[j] = wordIDs[p[j]]
		}
		out = append(out, s)
	}
	return out
}

// pickSession chooses uniformly among sessions whose id is not excluded.
func pickSession(sessions []domain.Session, exclude []int64, intN func(int) int) *domain.Session {
	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	candidates := make([]domain.Session, 0, len(sessions))
	for _, s := range sessions {
		if _, ok := skip[s.ID]; !ok {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	s := candidates[intN(len(candidates))]
	s.WordIDs = append([]int64(nil), s.WordIDs...)
	return &s
}

// buildQuestion assembles a question from a word row; it returns false when
// the row cannot form a valid 4-option question.
func buildQuestion(wordID int64, term, translation string, distractors []string) (domain.Question, bool) {
	q := domain.Question{
		WordID:        wordID,
		Prompt:        strings.TrimSpace(term),
		CorrectAnswer: strings.TrimSpace(translation),
	}
	for _, d := range distractors {
		if d = strings.TrimSpace(d); d != "" {
			q.Distractors = append(q.Distractors, d)
		}
	}
	return q, q.Valid()
}

func defaultPerm(n int) []int { return rand.Perm(n) }
func defaultIntN(n int) int   { return rand.IntN(n) }
