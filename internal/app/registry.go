package app

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/Interview/internal/core"
	"github.com/rs/zerolog/log"
)

type sessionEntry struct {
	Conn   *core.Connection
	Cancel context.CancelFunc
}

// Registry tracks live transport sessions so they can be counted and
// cancelled on shutdown.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[core.SessionID]*sessionEntry)}
}

func (r *Registry) BindSignal(conn *core.Connection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[conn.SID()] = &sessionEntry{Conn: conn, Cancel: cancel}
	log.Debug().Str("module", "app.registry").Str("sid", string(conn.SID())).Msg("bound signal")
}

func (r *Registry) Get(sid core.SessionID) (*core.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Conn, true
	}
	return nil, false
}

// List snapshots the live connections ordered by session id.
func (r *Registry) List() []*core.Connection {
	r.mu.RLock()
	out := make([]*core.Connection, 0, len(r.sessions))
	for _, e := range r.sessions {
		out = append(out, e.Conn)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *core.Connection) int { return strings.Compare(string(a.SID()), string(b.SID())) })
	return out
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Joined counts sessions currently attached to a room.
func (r *Registry) Joined() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.sessions {
		if e.Conn.State() == core.Joined {
			n++
		}
	}
	return n
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

// CancelAll stops every session, used on shutdown.
func (r *Registry) CancelAll() int {
	r.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Cancel != nil {
			cancels = append(cancels, e.Cancel)
		}
	}
	r.mu.RUnlock()
	for _, cancel := range cancels {
		cancel()
	}
	return len(cancels)
}
