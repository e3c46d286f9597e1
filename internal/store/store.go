// Package store is the interview session directory. Rooms work without a
// record; when one exists it caps participants and remembers expiry.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Interview/internal/config"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/store/memory"
	"github.com/dkeye/Interview/internal/store/postgres"
	"github.com/dkeye/Interview/internal/store/redis"
	"github.com/dkeye/Interview/internal/store/sqlite"
	"github.com/rs/zerolog/log"
)

type SessionStore interface {
	Create(ctx context.Context, sess *domain.InterviewSession) error
	Get(ctx context.Context, code string) (*domain.InterviewSession, error)
	List(ctx context.Context) ([]*domain.InterviewSession, error)
	// MarkExpired records expiry, creating a tombstone for rooms without a session.
	MarkExpired(ctx context.Context, room domain.RoomID, at time.Time) error
	Delete(ctx context.Context, code string) error
	Close() error
}

func GetStore(ctx context.Context, cfg config.StoreConfig) (SessionStore, error) {
	var (
		s   SessionStore
		err error
	)
	switch cfg.Type {
	case "", "memory":
		s = memory.NewStore()
	case "sqlite":
		s, err = sqlite.NewStore(ctx, cfg.DSN)
	case "postgres":
		s, err = postgres.NewStore(ctx, cfg.DSN)
	case "redis":
		s, err = redis.NewStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s store: %w", cfg.Type, err)
	}
	log.Info().Str("module", "store").Str("type", cfg.Type).Msg("session store ready")
	return s, nil
}
