// Package sqlite keeps interview sessions in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	_ "modernc.org/sqlite"
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
	created_at       INTEGER NOT NULL,
	expired_at       INTEGER
)`

const columns = `access_code, id, title, description, duration_seconds, max_participants, created_by, created_at, expired_at`

type Store struct {
	db *sql.DB
}

// NewStore opens dsn (":memory:" works) and creates the schema.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Create(ctx context.Context, sess *domain.InterviewSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interview_sessions (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.AccessCode, sess.ID, sess.Title, sess.Description, sess.DurationSeconds,
		sess.MaxParticipants, sess.CreatedBy, sess.CreatedAt.UnixMilli(), unixMilli(sess.ExpiredAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrSessionExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, code string) (*domain.InterviewSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM interview_sessions WHERE access_code = ?`, code)
	sess, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	return sess, err
}

func (s *Store) List(ctx context.Context) ([]*domain.InterviewSession, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM interview_sessions ORDER BY created_at`)
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
	res, err := s.db.ExecContext(ctx,
		`UPDATE interview_sessions SET expired_at = ? WHERE access_code = ? AND expired_at IS NULL`,
		at.UnixMilli(), string(room))
	if err != nil {
		return fmt.Errorf("expire session: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	err = s.Create(ctx, domain.NewTombstone(room, at))
	if errors.Is(err, domain.ErrSessionExists) {
		return nil
	}
	return err
}

func (s *Store) Delete(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interview_sessions WHERE access_code = ?`, code)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (*domain.InterviewSession, error) {
	var (
		sess      domain.InterviewSession
		createdAt int64
		expiredAt sql.NullInt64
	)
	err := row.Scan(&sess.AccessCode, &sess.ID, &sess.Title, &sess.Description, &sess.DurationSeconds,
		&sess.MaxParticipants, &sess.CreatedBy, &createdAt, &expiredAt)
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = time.UnixMilli(createdAt).UTC()
	if expiredAt.Valid {
		t := time.UnixMilli(expiredAt.Int64).UTC()
		sess.ExpiredAt = &t
	}
	return &sess, nil
}

func unixMilli(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
