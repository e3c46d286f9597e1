package core

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

type Option func(*RoomManager)

// WithExpiredHook is called once per room when its session expires.
func WithExpiredHook(fn func(id domain.RoomID, at time.Time)) Option {
	return func(rm *RoomManager) { rm.onExpired = fn }
}

// WithDropHook receives deliveries that failed on the tick path.
func WithDropHook(fn func(r *Room, res PublishResult)) Option {
	return func(rm *RoomManager) { rm.onDropped = fn }
}

// RoomManager is the room registry. Each live room owns one tick
// goroutine that drives its timer and its eviction.
type RoomManager struct {
	ctx    context.Context
	cancel context.CancelFunc
	clock  clockwork.Clock
	cfg    RoomConfig

	onExpired func(domain.RoomID, time.Time)
	onDropped func(*Room, PublishResult)

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
	wg    conc.WaitGroup
}

func NewRoomManager(parent context.Context, clock clockwork.Clock, cfg RoomConfig, opts ...Option) *RoomManager {
	ctx, cancel := context.WithCancel(parent)
	rm := &RoomManager{
		ctx:    ctx,
		cancel: cancel,
		clock:  clock,
		cfg:    cfg,
		rooms:  make(map[domain.RoomID]*Room),
	}
	for _, opt := range opts {
		opt(rm)
	}
	return rm
}

func (rm *RoomManager) Clock() clockwork.Clock { return rm.clock }
func (rm *RoomManager) Config() RoomConfig     { return rm.cfg }

func (rm *RoomManager) GetOrCreate(id domain.RoomID) *Room {
	rm.mu.RLock()
	room, ok := rm.rooms[id]
	rm.mu.RUnlock()
	if ok {
		return room
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if room, ok = rm.rooms[id]; ok {
		return room
	}
	room = newRoom(rm.ctx, id, rm.cfg, rm.clock.Now())
	rm.rooms[id] = room
	rm.wg.Go(func() { rm.run(room) })
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room created")
	return room
}

func (rm *RoomManager) Get(id domain.RoomID) (*Room, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	room, ok := rm.rooms[id]
	return room, ok
}

func (rm *RoomManager) Len() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

func (rm *RoomManager) List() []RoomInfo {
	rm.mu.RLock()
	rooms := make([]*Room, 0, len(rm.rooms))
	for _, r := range rm.rooms {
		rooms = append(rooms, r)
	}
	rm.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

// RemoveIfEmpty drops the room right away when nobody is attached,
// skipping the grace window.
func (rm *RoomManager) RemoveIfEmpty(id domain.RoomID) bool {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	room, ok := rm.rooms[id]
	if !ok {
		return false
	}
	if _, ok := room.closeIf(func() bool { return len(room.members) == 0 }); !ok {
		return false
	}
	delete(rm.rooms, id)
	log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("empty room removed")
	return true
}

// Expire ends the session of room and fires the expired hook once.
func (rm *RoomManager) Expire(room *Room) PublishResult {
	now := rm.clock.Now()
	res, ok := room.Expire(now)
	if ok {
		rm.expired(room.ID(), now)
	}
	return res
}

// Stop tears a room down immediately, sending exit to whoever is left.
// A room stopped before its timer ran out counts as expired, so its id is
// refused afterwards like any other finished session.
func (rm *RoomManager) Stop(id domain.RoomID) bool {
	rm.mu.Lock()
	room, ok := rm.rooms[id]
	if !ok {
		rm.mu.Unlock()
		return false
	}
	now := rm.clock.Now()
	var (
		res     PublishResult
		expired bool
	)
	conns, _ := room.closeIf(func() bool {
		res, expired = room.expireLocked(now)
		return true
	})
	delete(rm.rooms, id)
	rm.mu.Unlock()

	if expired {
		rm.expired(id, now)
	}
	if len(res.Dropped) > 0 && rm.onDropped != nil {
		rm.onDropped(room, res)
	}
	for _, c := range conns {
		c.Close()
	}
	log.Info().Str("module", "core.registry").Str("room", string(id)).Int("closed", len(conns)).Msg("room stopped")
	return true
}

// Shutdown cancels every room tick and waits for them to return.
func (rm *RoomManager) Shutdown() {
	rm.cancel()
	rm.wg.Wait()
}

func (rm *RoomManager) run(room *Room) {
	ticker := rm.clock.NewTicker(rm.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-room.Done():
			return
		case <-ticker.Chan():
			rm.tick(room)
		}
	}
}

func (rm *RoomManager) tick(room *Room) {
	now := rm.clock.Now()
	res := room.tick(now)
	if res.Expired {
		rm.expired(room.ID(), now)
	}
	if len(res.Publish.Dropped) > 0 && rm.onDropped != nil {
		rm.onDropped(room, res.Publish)
	}
	if res.Evict {
		rm.evict(room, now)
	}
}

func (rm *RoomManager) evict(room *Room, now time.Time) bool {
	rm.mu.Lock()
	if cur, ok := rm.rooms[room.ID()]; !ok || cur != room {
		rm.mu.Unlock()
		return false
	}
	conns, ok := room.closeIf(func() bool { return room.evictableLocked(now) })
	if !ok {
		rm.mu.Unlock()
		return false
	}
	delete(rm.rooms, room.ID())
	rm.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	log.Info().Str("module", "core.registry").Str("room", string(room.ID())).Int("closed", len(conns)).Msg("room evicted")
	return true
}

func (rm *RoomManager) expired(id domain.RoomID, at time.Time) {
	if rm.onExpired != nil {
		rm.onExpired(id, at)
	}
}
