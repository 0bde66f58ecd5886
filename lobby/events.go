package lobby

import (
	"errors"

	"github.com/wfunc/chessrelay/room"
)

// RoomState is the join reply and the opponentJoined payload.
type RoomState struct {
	RoomID  string             `json:"roomId"`
	Players []room.Participant `json:"players"`
}

// JoinError is the join reply on failure.
type JoinError struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

// RoomRef identifies a room in closeRoom events.
type RoomRef struct {
	RoomID string `json:"roomId"`
}

func stateOf(r *room.Room) RoomState {
	return RoomState{RoomID: r.ID, Players: r.Participants}
}

// NewJoinError renders err as the reply a client shows to its player.
func NewJoinError(err error) JoinError {
	return JoinError{Error: true, Message: err.Error()}
}

// failureReason labels a join failure for metrics.
func failureReason(err error) string {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return "not_found"
	case errors.Is(err, room.ErrRoomEmpty):
		return "empty"
	case errors.Is(err, room.ErrRoomFull):
		return "full"
	case errors.Is(err, room.ErrAlreadyInRoom):
		return "already_in_room"
	default:
		return "other"
	}
}
