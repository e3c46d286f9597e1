// Package domain contains entities and the small rules that guard them.
package domain

import "errors"

var (
	ErrMalformedMessage    = errors.New("malformed message")
	ErrNotJoined           = errors.New("not joined")
	ErrTimerAlreadyRunning = errors.New("timer already running")
	ErrRoomNotFound        = errors.New("room not found")
	ErrRoomExpired         = errors.New("room expired")
	ErrRoomFull            = errors.New("room full")
	ErrInvalidDuration     = errors.New("invalid duration")
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionExists       = errors.New("session already exists")

	ErrRoomIDEmpty   = errors.New("room id empty")
	ErrRoomIDTooLong = errors.New("room id too long")
	ErrTitleTooLong  = errors.New("title too long")
)

// ErrorCode maps an error to the short code sent to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMalformedMessage):
		return "malformed_message"
	case errors.Is(err, ErrNotJoined):
		return "not_joined"
	case errors.Is(err, ErrTimerAlreadyRunning):
		return "timer_already_running"
	case errors.Is(err, ErrRoomExpired):
		return "room_expired"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrInvalidDuration):
		return "invalid_duration"
	default:
		return "internal"
	}
}
