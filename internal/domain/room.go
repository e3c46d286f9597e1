package domain

import "strings"

const MaxRoomIDLen = 64

type RoomID string

// NewRoomID trims and validates a client supplied room identifier.
func NewRoomID(raw string) (RoomID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return "", ErrRoomIDTooLong
	}
	return RoomID(id), nil
}
