package room

import "errors"

// Rejection sentinels. Every one of these is recoverable: the offending
// action is discarded, room state is untouched, and the transport surfaces
// the rejection to the caller only.
var (
	ErrRoomFull             = errors.New("room is full")
	ErrAlreadyStarted       = errors.New("game already started")
	ErrNotEnoughPlayers     = errors.New("not enough players")
	ErrInvalidAssassinCount = errors.New("invalid assassin count")
	ErrWrongPhase           = errors.New("action not valid in current phase")
	ErrNotLeader            = errors.New("only the leader can do that")
	ErrWrongTeamSize        = errors.New("wrong team size")
	ErrDuplicateVote        = errors.New("already voted")
	ErrUnknownVoter         = errors.New("voter is not in this room")
	ErrNotOnTeam            = errors.New("not on the mission team")
	ErrStaleConnection      = errors.New("stale connection")
)
