package battlepresenter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/park285/vocab-battle-bot/internal/msgcat"
	"github.com/park285/vocab-battle-bot/internal/util"
	"github.com/park285/vocab-battle-bot/pkg/battledto"
)

// PrefixProvider exposes the Prefix that Kakao messages should use.
type PrefixProvider interface {
	Prefix() string
}

// StaticPrefix is a PrefixProvider with a fixed value.
type StaticPrefix string

func (p StaticPrefix) Prefix() string { return string(p) }

// Formatter renders battle DTOs into Kakao-friendly text blocks.
type Formatter struct {
	catalog        *msgcat.Catalog
	prefixProvider PrefixProvider
}

func NewFormatter(catalog *msgcat.Catalog, provider PrefixProvider) *Formatter {
	if catalog == nil {
		catalog = msgcat.MustDefault()
	}
	return &Formatter{catalog: catalog, prefixProvider: provider}
}

func (f *Formatter) Prefix() string {
	if f == nil || f.prefixProvider == nil {
		return ""
	}
	return strings.TrimSpace(f.prefixProvider.Prefix())
}

type vars map[string]any

func (f *Formatter) text(key string, data vars, fallback string) string {
	if data == nil {
		data = vars{}
	}
	data["Prefix"] = f.Prefix()
	return strings.TrimRight(f.catalog.Text(key, data, fallback), "\n")
}

func (f *Formatter) Waiting(name, scope string, replaced bool) string {
	key := "queue.waiting"
	if replaced {
		key = "queue.replaced"
	}
	return f.text(key, vars{"Name": name, "Scope": scope}, fmt.Sprintf("⏳ %s님, [%s] 상대를 찾는 중입니다.", name, scope))
}

func (f *Formatter) WaitCancelled(name string) string {
	return f.text("queue.cancelled", vars{"Name": name}, "🛑 대결 대기를 취소했습니다.")
}

func (f *Formatter) WaitExpired(name, scope string) string {
	return f.text("queue.expired", vars{"Name": name, "Scope": scope, "ScopeArgs": scope},
		fmt.Sprintf("⌛ %s님의 대결 대기가 종료되었습니다.", name))
}

func (f *Formatter) Intro(in battledto.Intro) string {
	key := "match.found"
	if in.Rematch {
		key = "match.rematch"
	}
	return f.text(key, vars{"Name": in.PlayerName, "Opponent": in.OpponentName, "Scope": in.Scope, "Total": in.Total},
		fmt.Sprintf("⚔️ %s vs %s", in.PlayerName, in.OpponentName))
}

func (f *Formatter) Countdown(remaining int) string {
	return f.text("match.countdown", vars{"Remaining": remaining}, strconv.Itoa(remaining)+"...")
}

func (f *Formatter) Question(q battledto.Question) string {
	return f.text("match.question", vars{
		"Name":    q.PlayerName,
		"Number":  q.Number,
		"Total":   q.Total,
		"Prompt":  q.Prompt,
		"Options": formatOptions(q.Options),
	}, fmt.Sprintf("[%d/%d] %s\n%s", q.Number, q.Total, q.Prompt, formatOptions(q.Options)))
}

func (f *Formatter) Feedback(fb battledto.Feedback) string {
	if fb.Correct {
		return f.text("match.correct", vars{"Name": fb.PlayerName, "Score": fb.Score}, "✅ 정답!")
	}
	return f.text("match.wrong", vars{"Name": fb.PlayerName, "Score": fb.Score, "Answer": fb.CorrectAnswer},
		"❌ 오답. 정답: "+fb.CorrectAnswer)
}

func (f *Formatter) WaitingForOpponent(w battledto.Waiting) string {
	return f.text("match.done", vars{"Name": w.PlayerName, "Score": w.Score, "Total": w.Total, "Elapsed": formatElapsed(w.Elapsed)},
		fmt.Sprintf("🏁 완료! %d/%d", w.Score, w.Total))
}

func (f *Formatter) Result(r battledto.Result) string {
	var sb strings.Builder
	sb.WriteString(f.text("result."+verdictKey(r.Verdict), vars{"Name": r.PlayerName}, "🏁 대결 종료"))
	sb.WriteByte('\n')
	sb.WriteString(f.text("result.body", vars{
		"Name":            r.PlayerName,
		"Opponent":        r.OpponentName,
		"Total":           r.Total,
		"OwnScore":        r.OwnScore,
		"OpponentScore":   r.OpponentScore,
		"OwnElapsed":      doneElapsed(r.OwnDone, r.OwnElapsed),
		"OpponentElapsed": doneElapsed(r.OpponentDone, r.OpponentElapsed),
	}, fmt.Sprintf("%d : %d", r.OwnScore, r.OpponentScore)))
	switch r.Reason {
	case "timeout":
		sb.WriteByte('\n')
		sb.WriteString(f.text("result.timeout", nil, ""))
	case "channel_failure":
		sb.WriteByte('\n')
		sb.WriteString(f.text("result.channel_failure", nil, ""))
	}
	if r.Verdict != "void" {
		sb.WriteString("\n\n")
		sb.WriteString(f.text("result.rematch_hint", nil, ""))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) RematchOffered(t battledto.RematchTicket) string {
	return f.text("rematch.offered", vars{
		"Requester": t.RequesterName,
		"Opponent":  t.OpponentName,
		"Scope":     t.Scope,
		"Code":      t.Code,
		"ExpiresIn": formatExpiresIn(t.ExpiresIn),
	}, fmt.Sprintf("🔁 재대결 요청 (코드 %s)", t.Code))
}

func (f *Formatter) RematchDeclined(opponentName string) string {
	return f.text("rematch.declined", vars{"Opponent": opponentName}, "🙅 재대결이 거절되었습니다.")
}

func (f *Formatter) RematchCancelled(requesterName string) string {
	return f.text("rematch.cancelled", vars{"Requester": requesterName}, "🛑 재대결 요청이 취소되었습니다.")
}

func (f *Formatter) Stats(name string, s *battledto.Stats) string {
	if s == nil || s.Total == 0 {
		return f.text("stats.empty", vars{"Name": name}, "📊 대결 기록이 없습니다.")
	}
	title := f.text("stats.title", vars{"Name": s.PlayerName}, "📊 대결 전적")
	var sb strings.Builder
	sb.WriteString(f.text("stats.body", vars{
		"Total":    s.Total,
		"Wins":     s.Wins,
		"Losses":   s.Losses,
		"Draws":    s.Draws,
		"WinRate":  formatDecimal(s.WinRate),
		"AvgScore": formatDecimal(s.AvgScore),
	}, fmt.Sprintf("%d승 %d패 %d무", s.Wins, s.Losses, s.Draws)))
	if s.Streak > 1 {
		sb.WriteByte('\n')
		sb.WriteString(f.text("stats.streak", vars{"Streak": s.Streak, "StreakSuffix": formatStreakSuffix(s.StreakType)}, ""))
	}
	return title + "\n" + sb.String()
}

func (f *Formatter) HeadToHead(h *battledto.HeadToHead) string {
	if h == nil {
		return f.text("errors.generic", nil, "요청을 처리하지 못했습니다.")
	}
	return f.text("stats.h2h", vars{
		"Name":     h.PlayerName,
		"Opponent": h.OpponentName,
		"Total":    h.Total,
		"Wins":     h.Wins,
		"Losses":   h.Losses,
		"Draws":    h.Draws,
	}, fmt.Sprintf("%s vs %s: %d승 %d패 %d무", h.PlayerName, h.OpponentName, h.Wins, h.Losses, h.Draws))
}

func (f *Formatter) History(name string, entries []battledto.HistoryEntry) string {
	if len(entries) == 0 {
		return f.text("stats.empty", vars{"Name": name}, "📊 대결 기록이 없습니다.")
	}
	title := f.text("stats.recent_title", vars{"Name": name}, "🗂️ 최근 대결")
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, f.text("stats.recent_line", vars{
			"When":          formatShortTime(e.CompletedAt),
			"Opponent":      e.OpponentName,
			"Badge":         formatResultBadge(e.Result, e.Reason),
			"OwnScore":      e.OwnScore,
			"OpponentScore": e.OpponentScore,
		}, e.MatchID))
	}
	return util.FoldLines(title, lines...)
}

func (f *Formatter) Help() string {
	title := f.text("help.title", nil, "⚔️ 단어 대결")
	return util.Fold(title, f.text("help.body", nil, ""))
}

// Error renders a rejected request for the named player.
func (f *Formatter) Error(name string, err error) string {
	de := ToDomainError(err)
	return f.text("errors."+de.Code, vars{"Name": name}, f.text("errors.generic", nil, "⚠️ 요청을 처리하지 못했습니다."))
}

func verdictKey(v string) string {
	switch v {
	case "win", "loss", "draw", "void":
		return v
	default:
		return "void"
	}
}

func formatOptions(options []string) string {
	var sb strings.Builder
	for i, o := range options {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(fmt.Sprintf("%d) %s", i+1, o))
	}
	return sb.String()
}

func doneElapsed(done bool, d time.Duration) string {
	if !done {
		return ""
	}
	return formatElapsed(d)
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func formatExpiresIn(d time.Duration) string {
	if d <= 0 {
		return "곧"
	}
	if d < time.Minute {
		return fmt.Sprintf("%d초", int(d.Round(time.Second)/time.Second))
	}
	return fmt.Sprintf("%d분", int(d.Round(time.Minute)/time.Minute))
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatStreakSuffix(streakType string) string {
	switch strings.ToLower(strings.TrimSpace(streakType)) {
	case "win":
		return "연승"
	case "loss":
		return "연패"
	case "draw":
		return "연속 무승부"
	default:
		return "연속 기록"
	}
}

func formatResultBadge(result, reason string) string {
	badge := "▫️"
	switch strings.ToLower(strings.TrimSpace(result)) {
	case "win":
		badge = "✅ 승"
	case "loss":
		badge = "❌ 패"
	case "draw":
		badge = "🤝 무"
	}
	if reason != "" && reason != "completed" {
		badge += " (중단)"
	}
	return badge
}

func formatShortTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return util.FormatKST(t, "01-02 15:04")
}
