// Package redis keeps interview sessions as JSON values in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

type Store struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewStore(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewStoreWithClient(client, ttl), nil
}

// NewStoreWithClient wraps an existing client. A ttl of zero keeps keys forever.
func NewStoreWithClient(client *goredis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(code string) string { return keyPrefix + code }

func (s *Store) Create(ctx context.Context, sess *domain.InterviewSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, key(sess.AccessCode), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return domain.ErrSessionExists
	}
	return nil
}

func (s *Store) Get(ctx context.Context, code string) (*domain.InterviewSession, error) {
	data, err := s.client.Get(ctx, key(code)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess domain.InterviewSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

func (s *Store) List(ctx context.Context) ([]*domain.InterviewSession, error) {
	var out []*domain.InterviewSession
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		sess, err := s.Get(ctx, iter.Val()[len(keyPrefix):])
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	slices.SortFunc(out, func(a, b *domain.InterviewSession) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) MarkExpired(ctx context.Context, room domain.RoomID, at time.Time) error {
	sess, err := s.Get(ctx, string(room))
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		err = s.Create(ctx, domain.NewTombstone(room, at))
		if errors.Is(err, domain.ErrSessionExists) {
			return nil
		}
		return err
	case err != nil:
		return err
	case sess.Expired():
		return nil
	}
	at = at.UTC()
	sess.ExpiredAt = &at
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, key(sess.AccessCode), data, goredis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, code string) error {
	n, err := s.client.Del(ctx, key(code)).Result()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }
