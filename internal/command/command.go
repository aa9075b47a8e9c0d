// Package command turns chat text into battle actions.
package command

import (
	"errors"
	"strconv"
	"strings"

	"github.com/park285/vocab-battle-bot/internal/domain"
)

var (
	ErrNotCommand = errors.New("message is not a bot command")
	ErrUsage      = errors.New("malformed command")
)

// Kind is the action a chat command asks for.
type Kind int

const (
	KindHelp Kind = iota + 1
	KindBattle
	KindCancelWait
	KindRematchRequest
	KindAnswer
	KindRematchAccept
	KindRematchDecline
	KindRematchCancel
	KindStats
	KindRecent
	KindHeadToHead
)

// Command is one parsed chat command.
type Command struct {
	Kind     Kind
	Config   domain.BattleConfig // KindBattle
	Choice   int                 // KindAnswer, 0-based
	Code     string              // rematch responses, optional
	Opponent string              // KindHeadToHead
}

// Parse reads text that starts with prefix. Text without the prefix yields
// ErrNotCommand; a recognised verb with bad arguments yields ErrUsage.
func Parse(prefix, text string) (Command, error) {
	text = strings.TrimSpace(text)
	prefix = strings.TrimSpace(prefix)
	if !strings.HasPrefix(text, prefix) {
		return Command{}, ErrNotCommand
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return Command{Kind: KindHelp}, nil
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	switch verb {
	case "도움말", "help", "도움":
		return Command{Kind: KindHelp}, nil
	case "대결", "battle":
		return parseBattle(args)
	case "답", "answer", "a":
		if len(args) != 1 {
			return Command{}, ErrUsage
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return Command{}, ErrUsage
		}
		return Command{Kind: KindAnswer, Choice: n - 1}, nil
	case "재대결", "rematch":
		return parseRematch(args)
	case "전적", "stats":
		return Command{Kind: KindStats}, nil
	case "최근", "recent":
		return Command{Kind: KindRecent}, nil
	case "상대전적", "h2h":
		if len(args) != 1 {
			return Command{}, ErrUsage
		}
		return Command{Kind: KindHeadToHead, Opponent: strings.TrimPrefix(args[0], "@")}, nil
	default:
		return Command{}, ErrNotCommand
	}
}

func parseBattle(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{Kind: KindHelp}, nil
	}
	switch strings.ToLower(args[0]) {
	case "취소", "cancel":
		return Command{Kind: KindCancelWait}, nil
	case "재대결", "rematch":
		return Command{Kind: KindRematchRequest}, nil
	}
	if len(args) != 2 {
		return Command{}, ErrUsage
	}
	cfg, err := domain.ParseBattleConfig(args[0], args[1])
	if err != nil {
		return Command{}, ErrUsage
	}
	return Command{Kind: KindBattle, Config: cfg}, nil
}

func parseRematch(args []string) (Command, error) {
	if len(args) == 0 || len(args) > 2 {
		return Command{}, ErrUsage
	}
	var c Command
	switch strings.ToLower(args[0]) {
	case "수락", "accept", "yes":
		c.Kind = KindRematchAccept
	case "거절", "decline", "no":
		c.Kind = KindRematchDecline
	case "취소", "cancel":
		c.Kind = KindRematchCancel
	default:
		return Command{}, ErrUsage
	}
	if len(args) == 2 {
		c.Code = args[1]
	}
	return c, nil
}
