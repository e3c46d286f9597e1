package domain

import (
	"fmt"
	"time"
)

type TimerState int

const (
	TimerInert TimerState = iota
	TimerRunning
	TimerExpired
)

func (s TimerState) String() string {
	switch s {
	case TimerInert:
		return "inert"
	case TimerRunning:
		return "running"
	case TimerExpired:
		return "expired"
	default:
		return fmt.Sprintf("TimerState(%d)", int(s))
	}
}

// Timer is a room countdown. The zero value is inert.
// It is not safe for concurrent use; the owning room serializes access.
type Timer struct {
	state     TimerState
	endTime   time.Time
	expiredAt time.Time
}

func (t *Timer) State() TimerState    { return t.state }
func (t *Timer) EndTime() time.Time   { return t.endTime }
func (t *Timer) ExpiredAt() time.Time { return t.expiredAt }
func (t *Timer) Active() bool         { return t.state == TimerRunning }

// Start moves an inert or expired timer to running with endTime = now + d.
// A running timer is left untouched.
func (t *Timer) Start(now time.Time, d time.Duration) (time.Time, error) {
	if d <= 0 {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidDuration, d)
	}
	if t.state == TimerRunning {
		return t.endTime, ErrTimerAlreadyRunning
	}
	t.state = TimerRunning
	t.endTime = now.Add(d)
	t.expiredAt = time.Time{}
	return t.endTime, nil
}

// Due reports whether a running timer has reached its end time.
func (t *Timer) Due(now time.Time) bool {
	return t.state == TimerRunning && !now.Before(t.endTime)
}

// Expire transitions to expired. It returns false when already expired.
// An inert timer may be expired too, which is what expire_session does
// before anyone started the countdown.
func (t *Timer) Expire(now time.Time) bool {
	if t.state == TimerExpired {
		return false
	}
	t.state = TimerExpired
	t.expiredAt = now
	return true
}

// Remaining is zero unless the timer is running.
func (t *Timer) Remaining(now time.Time) time.Duration {
	if t.state != TimerRunning {
		return 0
	}
	if d := t.endTime.Sub(now); d > 0 {
		return d
	}
	return 0
}
