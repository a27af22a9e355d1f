package game

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomFull            = errors.New("room is full")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrNotInRoom           = errors.New("player is not in a room")
	ErrNotHost             = errors.New("only the host may do that")
	ErrNotEnoughPlayers    = errors.New("not enough players to start")
	ErrTurnViolation       = errors.New("action not allowed this turn")
	ErrStaleAction         = errors.New("action refers to stale state")
	ErrGameNotFound        = errors.New("no running game for room")
	ErrUnsupportedGameType = errors.New("unsupported game type")
)

// ValidationError reports a malformed field on an inbound record or
// payload. It is recoverable; handlers turn it into a failed ack.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError wraps a storage failure with the operation that hit it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
