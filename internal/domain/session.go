package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	DefaultSessionDuration = 15 * time.Minute
	DefaultMaxParticipants = 10
	MaxTitleLen            = 200
	AccessCodeLen          = 8
)

type SessionStatus string

const (
	SessionActive  SessionStatus = "active"
	SessionExpired SessionStatus = "expired"
)

// InterviewSession is the directory record of a scheduled interview.
// Its access code doubles as the room id.
type InterviewSession struct {
	ID              string     `json:"id"`
	AccessCode      string     `json:"access_code"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	MaxParticipants int        `json:"max_participants"`
	CreatedBy       string     `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiredAt       *time.Time `json:"expired_at,omitempty"`
}

// NewInterviewSession fills defaults the same way for every store.
func NewInterviewSession(title, description string, durationSeconds, maxParticipants int, now time.Time) (*InterviewSession, error) {
	title = strings.TrimSpace(title)
	if len(title) > MaxTitleLen {
		return nil, ErrTitleTooLong
	}
	if durationSeconds < 0 {
		return nil, ErrInvalidDuration
	}
	if durationSeconds == 0 {
		durationSeconds = int(DefaultSessionDuration / time.Second)
	}
	if maxParticipants <= 0 {
		maxParticipants = DefaultMaxParticipants
	}
	return &InterviewSession{
		ID:              ulid.Make().String(),
		AccessCode:      NewAccessCode(),
		Title:           title,
		Description:     description,
		DurationSeconds: durationSeconds,
		MaxParticipants: maxParticipants,
		CreatedAt:       now.UTC(),
	}, nil
}

// NewTombstone records a room that expired without a scheduled session.
func NewTombstone(room RoomID, at time.Time) *InterviewSession {
	at = at.UTC()
	return &InterviewSession{
		ID:              ulid.Make().String(),
		AccessCode:      string(room),
		DurationSeconds: int(DefaultSessionDuration / time.Second),
		CreatedAt:       at,
		ExpiredAt:       &at,
	}
}

func NewAccessCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:AccessCodeLen])
}

func (s *InterviewSession) RoomID() RoomID { return RoomID(s.AccessCode) }

func (s *InterviewSession) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

func (s *InterviewSession) Expired() bool { return s.ExpiredAt != nil }

func (s *InterviewSession) Status() SessionStatus {
	if s.Expired() {
		return SessionExpired
	}
	return SessionActive
}
