package battlepresenter

import (
	"errors"

	"github.com/park285/vocab-battle-bot/internal/battle"
	"github.com/park285/vocab-battle-bot/internal/matchqueue"
	"github.com/park285/vocab-battle-bot/internal/rematch"
	"github.com/park285/vocab-battle-bot/internal/service/arena"
	"github.com/park285/vocab-battle-bot/pkg/battledto"
)

type errorCode struct {
	target    error
	code      string
	retryable bool
}

// Order matters: the first match wins.
var errorCodes = []errorCode{
	{battle.ErrPlayerBusy, "busy", false},
	{arena.ErrNoActiveMatch, "no_match", false},
	{battle.ErrUnknownMatch, "no_match", false},
	{arena.ErrNotWaiting, "not_waiting", false},
	{arena.ErrNoRecentOpponent, "no_recent", false},
	{battle.ErrInvalidOption, "invalid_option", false},
	{battle.ErrAlreadyCompleted, "already_completed", false},
	{battle.ErrNotStarted, "not_started", true},
	{battle.ErrMatchClosed, "match_closed", false},
	{battle.ErrInsufficientContent, "insufficient_content", false},
	{rematch.ErrTicketNotFound, "ticket_not_found", false},
	{rematch.ErrNotParticipant, "not_participant", false},
	{rematch.ErrAlreadyPending, "already_pending", false},
	{rematch.ErrSelfRematch, "self_rematch", false},
	{matchqueue.ErrContention, "contention", true},
	{rematch.ErrContention, "contention", true},
	{battle.ErrInvalidArgs, "invalid_args", false},
	{matchqueue.ErrInvalidArgs, "invalid_args", false},
	{rematch.ErrInvalidArgs, "invalid_args", false},
}

// ToDomainError classifies err for display. Unknown errors become "generic".
func ToDomainError(err error) battledto.DomainError {
	if err == nil {
		return battledto.DomainError{}
	}
	var de battledto.DomainError
	if errors.As(err, &de) {
		return de
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.target) {
			return battledto.DomainError{Code: ec.code, Message: err.Error(), Retryable: ec.retryable}
		}
	}
	return battledto.DomainError{Code: "generic", Message: err.Error(), Retryable: true}
}
