// Package storetest holds behaviour shared by every session store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Store interface {
	Create(ctx context.Context, sess *domain.InterviewSession) error
	Get(ctx context.Context, code string) (*domain.InterviewSession, error)
	List(ctx context.Context) ([]*domain.InterviewSession, error)
	MarkExpired(ctx context.Context, room domain.RoomID, at time.Time) error
	Delete(ctx context.Context, code string) error
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newSession(t *testing.T, title string, at time.Time) *domain.InterviewSession {
	t.Helper()
	sess, err := domain.NewInterviewSession(title, "pair on a cache", 0, 2, at)
	require.NoError(t, err)
	return sess
}

// Run exercises a fresh store returned by open for every subtest.
func Run(t *testing.T, open func(t *testing.T) Store) {
	t.Run("create and get", func(t *testing.T) {
		s := open(t)
		sess := newSession(t, "Go loop", t0)
		require.NoError(t, s.Create(t.Context(), sess))

		got, err := s.Get(t.Context(), sess.AccessCode)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, "Go loop", got.Title)
		assert.Equal(t, "pair on a cache", got.Description)
		assert.Equal(t, 900, got.DurationSeconds)
		assert.Equal(t, 2, got.MaxParticipants)
		assert.True(t, t0.Equal(got.CreatedAt))
		assert.Nil(t, got.ExpiredAt)
	})

	t.Run("duplicate access code", func(t *testing.T) {
		s := open(t)
		sess := newSession(t, "a", t0)
		require.NoError(t, s.Create(t.Context(), sess))
		assert.ErrorIs(t, s.Create(t.Context(), sess), domain.ErrSessionExists)
	})

	t.Run("missing", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(t.Context(), "NOPE")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		assert.ErrorIs(t, s.Delete(t.Context(), "NOPE"), domain.ErrSessionNotFound)
	})

	t.Run("list is ordered by creation", func(t *testing.T) {
		s := open(t)
		second := newSession(t, "second", t0.Add(time.Minute))
		first := newSession(t, "first", t0)
		require.NoError(t, s.Create(t.Context(), second))
		require.NoError(t, s.Create(t.Context(), first))

		list, err := s.List(t.Context())
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "first", list[0].Title)
		assert.Equal(t, "second", list[1].Title)
	})

	t.Run("mark expired keeps first expiry", func(t *testing.T) {
		s := open(t)
		sess := newSession(t, "a", t0)
		require.NoError(t, s.Create(t.Context(), sess))

		require.NoError(t, s.MarkExpired(t.Context(), sess.RoomID(), t0.Add(time.Minute)))
		require.NoError(t, s.MarkExpired(t.Context(), sess.RoomID(), t0.Add(time.Hour)))

		got, err := s.Get(t.Context(), sess.AccessCode)
		require.NoError(t, err)
		require.NotNil(t, got.ExpiredAt)
		assert.True(t, t0.Add(time.Minute).Equal(*got.ExpiredAt))
		assert.Equal(t, domain.SessionExpired, got.Status())
	})

	t.Run("mark expired creates tombstone", func(t *testing.T) {
		s := open(t)
		require.NoError(t, s.MarkExpired(t.Context(), "adhoc", t0))

		got, err := s.Get(t.Context(), "adhoc")
		require.NoError(t, err)
		assert.True(t, got.Expired())
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		sess := newSession(t, "a", t0)
		require.NoError(t, s.Create(t.Context(), sess))
		require.NoError(t, s.Delete(t.Context(), sess.AccessCode))
		_, err := s.Get(t.Context(), sess.AccessCode)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})
}
