// Package util holds KakaoTalk text helpers.
package util

import "strings"

const (
	// SeeMoreRun is how many zero-width spaces push the body behind
	// KakaoTalk's "전체보기" fold.
	SeeMoreRun     = 500
	ZeroWidthSpace = "\u200b"
)

// Fold shows title in the chat preview and hides body behind "전체보기".
// A blank body is returned unchanged.
func Fold(title, body string) string {
	if strings.TrimSpace(body) == "" {
		return body
	}
	title = strings.TrimSpace(title)

	var b strings.Builder
	b.Grow(len(title) + SeeMoreRun*len(ZeroWidthSpace) + len(body) + 1)
	b.WriteString(title)
	b.WriteString(strings.Repeat(ZeroWidthSpace, SeeMoreRun))
	if !strings.HasPrefix(body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(body)
	return b.String()
}

// FoldLines folds the non-blank lines under title.
func FoldLines(title string, lines ...string) string {
	kept := lines[:0:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	return Fold(title, strings.Join(kept, "\n"))
}
