package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestTimer_StartWhileRunningKeepsEndTime(t *testing.T) {
	var tm Timer
	end, err := tm.Start(t0, 600*time.Second)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(10*time.Minute), end)

	got, err := tm.Start(t0.Add(time.Second), 60*time.Second)
	assert.ErrorIs(t, err, ErrTimerAlreadyRunning)
	assert.Equal(t, end, got)
	assert.Equal(t, end, tm.EndTime())
	assert.Equal(t, TimerRunning, tm.State())
}

func TestTimer_Transitions(t *testing.T) {
	tests := []struct {
		name  string
		run   func(tm *Timer) error
		state TimerState
	}{
		{
			name:  "zero value is inert",
			run:   func(tm *Timer) error { return nil },
			state: TimerInert,
		},
		{
			name: "start then due expires",
			run: func(tm *Timer) error {
				if _, err := tm.Start(t0, 5*time.Second); err != nil {
					return err
				}
				if tm.Due(t0.Add(4 * time.Second)) {
					return assert.AnError
				}
				if !tm.Due(t0.Add(5 * time.Second)) {
					return assert.AnError
				}
				tm.Expire(t0.Add(5 * time.Second))
				return nil
			},
			state: TimerExpired,
		},
		{
			name: "expired can restart",
			run: func(tm *Timer) error {
				tm.Expire(t0)
				_, err := tm.Start(t0.Add(time.Second), time.Minute)
				return err
			},
			state: TimerRunning,
		},
		{
			name: "inert can be expired",
			run: func(tm *Timer) error {
				tm.Expire(t0)
				return nil
			},
			state: TimerExpired,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tm Timer
			require.NoError(t, tt.run(&tm))
			assert.Equal(t, tt.state, tm.State())
		})
	}
}

func TestTimer_ExpireIsIdempotent(t *testing.T) {
	var tm Timer
	_, err := tm.Start(t0, time.Second)
	require.NoError(t, err)

	assert.True(t, tm.Expire(t0.Add(time.Second)))
	assert.False(t, tm.Expire(t0.Add(2*time.Second)))
	assert.Equal(t, t0.Add(time.Second), tm.ExpiredAt())
}

func TestTimer_RejectsNonPositiveDuration(t *testing.T) {
	var tm Timer
	_, err := tm.Start(t0, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = tm.Start(t0, -time.Second)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	assert.Equal(t, TimerInert, tm.State())
}

func TestTimer_Remaining(t *testing.T) {
	var tm Timer
	assert.Zero(t, tm.Remaining(t0))
	_, err := tm.Start(t0, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, tm.Remaining(t0.Add(3*time.Second)))
	assert.Zero(t, tm.Remaining(t0.Add(time.Minute)))
}
