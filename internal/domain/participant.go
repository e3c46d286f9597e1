package domain

import "fmt"

const MaxParticipantIDLen = 36

type ParticipantID string

// NewParticipantID mints the n-th id of a room.
func NewParticipantID(n int) ParticipantID {
	return ParticipantID(fmt.Sprintf("p%d", n))
}

// Valid reports whether a client supplied id is worth looking up.
func (p ParticipantID) Valid() bool {
	return p != "" && len(p) <= MaxParticipantIDLen
}
