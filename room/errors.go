package room

import "errors"

// Join failures. Their text is shown to the player as-is.
var (
	ErrRoomNotFound  = errors.New("room does not exist")
	ErrRoomEmpty     = errors.New("room is empty")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyInRoom = errors.New("already in room")
)
