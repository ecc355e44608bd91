package engine

import (
	"errors"
	"fmt"
)

// rejection is a user-facing refusal: bad input, wrong turn, duplicate join.
// These are expected and frequent, get rendered back as a chat reply, and
// must never be logged as faults. Anything else that escapes the engine is
// an operator-facing fault.
type rejection string

func (r rejection) Error() string { return string(r) }

// Rejectf builds a user-facing rejection.
func Rejectf(format string, args ...any) error {
	return rejection(fmt.Sprintf(format, args...))
}

// IsRejection reports whether err (or anything it wraps) is user-facing.
func IsRejection(err error) bool {
	var r rejection
	return errors.As(err, &r)
}

var (
	ErrSlotTaken      = rejection("that seat is already taken")
	ErrFull           = rejection("the game is full")
	ErrAlreadyJoined  = rejection("you have already joined this game")
	ErrNotAPlayer     = rejection("you are not a player in this game")
	ErrNotYourTurn    = rejection("it is not your turn")
	ErrImpostorAlert  = rejection("you are not playing in this game")
	ErrGameNotStarted = rejection("the game has not started yet")
	ErrGameEnded      = rejection("the game has already ended")
	ErrGameStarted    = rejection("the game has already started")
)
