// Package memory keeps interview sessions in process memory.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]domain.InterviewSession
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]domain.InterviewSession)}
}

func (s *Store) Create(_ context.Context, sess *domain.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.AccessCode]; ok {
		return domain.ErrSessionExists
	}
	s.sessions[sess.AccessCode] = *sess
	return nil
}

func (s *Store) Get(_ context.Context, code string) (*domain.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[code]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *Store) List(_ context.Context) ([]*domain.InterviewSession, error) {
	s.mu.RLock()
	out := make([]*domain.InterviewSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, &sess)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *domain.InterviewSession) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) MarkExpired(_ context.Context, room domain.RoomID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[string(room)]
	if !ok {
		s.sessions[string(room)] = *domain.NewTombstone(room, at)
		return nil
	}
	if sess.ExpiredAt == nil {
		at = at.UTC()
		sess.ExpiredAt = &at
		s.sessions[string(room)] = sess
	}
	return nil
}

func (s *Store) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[code]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, code)
	return nil
}

func (s *Store) Close() error { return nil }
