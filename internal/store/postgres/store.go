// Package postgres keeps interview sessions in PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS interview_sessions (
	access_code      TEXT PRIMARY KEY,
	id               TEXT NOT NULL,
	title            TEXT NOT NULL DEFAULT '',
	description      TEXT NOT NULL DEFAULT '',
	duration_seconds INTEGER NOT NULL,
	max_participants INTEGER NOT NULL,
	created_by       TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	expired_at       TIMESTAMPTZ
)`

const columns = `access_code, id, title, description, duration_seconds, max_participants, created_by, created_at, expired_at`

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Create(ctx context.Context, sess *domain.InterviewSession) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO interview_sessions (`+columns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.AccessCode, sess.ID, sess.Title, sess.Description, sess.DurationSeconds,
		sess.MaxParticipants, sess.CreatedBy, sess.CreatedAt, sess.ExpiredAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrSessionExists
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, code string) (*domain.InterviewSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+columns+` FROM interview_sessions WHERE access_code = $1`, code)
	sess, err := scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	return sess, err
}

func (s *Store) List(ctx context.Context) ([]*domain.InterviewSession, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+columns+` FROM interview_sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []*domain.InterviewSession
	for rows.Next() {
		sess, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) MarkExpired(ctx context.Context, room domain.RoomID, at time.Time) error {
	tomb := domain.NewTombstone(room, at)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO interview_sessions (`+columns+`) VALUES ($1, $2, '', '', $3, 0, '', $4, $4)
		 ON CONFLICT (access_code) DO UPDATE SET expired_at = COALESCE(interview_sessions.expired_at, EXCLUDED.expired_at)`,
		tomb.AccessCode, tomb.ID, tomb.DurationSeconds, tomb.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM interview_sessions WHERE access_code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scan(row pgx.Row) (*domain.InterviewSession, error) {
	var sess domain.InterviewSession
	err := row.Scan(&sess.AccessCode, &sess.ID, &sess.Title, &sess.Description, &sess.DurationSeconds,
		&sess.MaxParticipants, &sess.CreatedBy, &sess.CreatedAt, &sess.ExpiredAt)
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = sess.CreatedAt.UTC()
	if sess.ExpiredAt != nil {
		t := sess.ExpiredAt.UTC()
		sess.ExpiredAt = &t
	}
	return &sess, nil
}
