package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrRoomClosed is returned by a room that was torn down. Clients see it
// as room_not_found.
var ErrRoomClosed = fmt.Errorf("room closed: %w", domain.ErrRoomNotFound)

type RoomConfig struct {
	TickInterval  time.Duration
	EmptyGrace    time.Duration
	TeardownGrace time.Duration
}

func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		TickInterval:  time.Second,
		EmptyGrace:    30 * time.Second,
		TeardownGrace: 5 * time.Second,
	}
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []SignalConnection
}

type JoinRequest struct {
	Prior domain.ParticipantID
	// Token must match the one the prior id was issued to.
	Token      string
	Conn       SignalConnection
	MaxMembers int
}

type JoinResult struct {
	Participant domain.ParticipantID
	// Replaced is a stale transport that held the same participant id.
	Replaced SignalConnection
	Resync   bool
	Publish  PublishResult
}

// RoomInfo is a read-only view for APIs.
type RoomInfo struct {
	ID            domain.RoomID `json:"id"`
	MemberCount   int           `json:"member_count"`
	Timer         string        `json:"timer"`
	EndTime       *time.Time    `json:"end_time,omitempty"`
	HasWhiteboard bool          `json:"has_whiteboard"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Room holds the authoritative state of one interview.
// Every mutation and the fan-out it causes happen under mu, which gives
// all members the same order of updates.
type Room struct {
	id      domain.RoomID
	cfg     RoomConfig
	created time.Time
	ctx     context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	doc        string
	whiteboard json.RawMessage
	timer      domain.Timer
	members    map[domain.ParticipantID]SignalConnection
	issued     map[domain.ParticipantID]string
	seq        int
	emptySince time.Time
	closed     bool
}

func newRoom(parent context.Context, id domain.RoomID, cfg RoomConfig, now time.Time) *Room {
	ctx, cancel := context.WithCancel(parent)
	return &Room{
		id:         id,
		cfg:        cfg,
		created:    now,
		ctx:        ctx,
		cancel:     cancel,
		members:    make(map[domain.ParticipantID]SignalConnection),
		issued:     make(map[domain.ParticipantID]string),
		emptySince: now,
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

// Done is closed once the room has been torn down.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Join attaches conn and sends it the join reply plus a snapshot of the
// current state. A prior id is reused only by the client it was issued to;
// anyone else gets a fresh id.
func (r *Room) Join(req JoinRequest) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return JoinResult{}, ErrRoomClosed
	}
	if r.timer.State() == domain.TimerExpired {
		return JoinResult{}, domain.ErrRoomExpired
	}

	var res JoinResult
	pid := req.Prior
	owner, known := r.issued[pid]
	reclaim := known && req.Token != "" && owner == req.Token
	old, attached := r.members[pid]
	switch {
	case known && attached && old == req.Conn:
		res.Resync = true
	case reclaim && attached:
		res.Replaced = old
	case req.MaxMembers > 0 && len(r.members) >= req.MaxMembers:
		return JoinResult{}, domain.ErrRoomFull
	case !reclaim:
		pid = r.mint(req.Token)
	}

	r.members[pid] = req.Conn
	r.emptySince = time.Time{}
	res.Participant = pid
	res.Publish = r.sendSnapshot(pid, req.Conn)

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("participant", string(pid)).
		Bool("resync", res.Resync).Bool("replaced", res.Replaced != nil).Int("members", len(r.members)).Msg("member joined")
	return res, nil
}

func (r *Room) mint(token string) domain.ParticipantID {
	r.seq++
	pid := domain.NewParticipantID(r.seq)
	r.issued[pid] = token
	return pid
}

func (r *Room) sendSnapshot(pid domain.ParticipantID, conn SignalConnection) PublishResult {
	frames := []Frame{JoinFrame(pid), TextFrame(r.doc)}
	if r.whiteboard != nil {
		frames = append(frames, WhiteboardFrame(r.whiteboard))
	}
	if r.timer.Active() {
		frames = append(frames, TimerFrame(r.timer.EndTime()))
	}
	for _, f := range frames {
		if err := conn.TrySend(f); err != nil {
			return PublishResult{Dropped: []SignalConnection{conn}}
		}
	}
	return PublishResult{SendTo: 1}
}

// Leave detaches conn if it still holds pid. Room state is kept.
func (r *Room) Leave(pid domain.ParticipantID, conn SignalConnection, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.members[pid]
	if !ok || cur != conn {
		return false
	}
	delete(r.members, pid)
	if len(r.members) == 0 {
		r.emptySince = now
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("participant", string(pid)).
		Int("members", len(r.members)).Msg("member left")
	return true
}

func (r *Room) writable() error {
	if r.closed {
		return ErrRoomClosed
	}
	if r.timer.State() == domain.TimerExpired {
		return domain.ErrRoomExpired
	}
	return nil
}

// UpdateText replaces the document and forwards it to everyone but the sender.
func (r *Room) UpdateText(from domain.ParticipantID, text string) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writable(); err != nil {
		return PublishResult{}, err
	}
	r.doc = text
	return r.publish(from, TextFrame(text)), nil
}

// UpdateWhiteboard replaces the drawing buffer wholesale.
func (r *Room) UpdateWhiteboard(from domain.ParticipantID, buf json.RawMessage) (PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writable(); err != nil {
		return PublishResult{}, err
	}
	r.whiteboard = buf
	return r.publish(from, WhiteboardFrame(buf)), nil
}

// StartTimer sets endTime = now + d and pushes it to all members.
func (r *Room) StartTimer(now time.Time, d time.Duration) (time.Time, PublishResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writable(); err != nil {
		return time.Time{}, PublishResult{}, err
	}
	end, err := r.timer.Start(now, d)
	if err != nil {
		return end, PublishResult{}, err
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Time("end_time", end).Msg("timer started")
	return end, r.publish("", TimerFrame(end)), nil
}

func (r *Room) Timer() (domain.TimerState, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timer.State(), r.timer.EndTime()
}

// Expire sends exit to every member. It reports false if the room had
// already expired.
func (r *Room) Expire(now time.Time) (PublishResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return PublishResult{}, false
	}
	return r.expireLocked(now)
}

func (r *Room) expireLocked(now time.Time) (PublishResult, bool) {
	if !r.timer.Expire(now) {
		return PublishResult{}, false
	}
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Int("members", len(r.members)).Msg("session expired")
	return r.publish("", ExitFrame()), true
}

type tickResult struct {
	Publish PublishResult
	Expired bool
	Evict   bool
}

func (r *Room) tick(now time.Time) tickResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res tickResult
	if r.closed {
		return res
	}
	if r.timer.Due(now) {
		res.Publish, res.Expired = r.expireLocked(now)
	} else if r.timer.Active() {
		log.Debug().Str("module", "core.timer").Str("room", string(r.id)).
			Dur("remaining", r.timer.Remaining(now)).Msg("tick")
	}
	res.Evict = r.evictableLocked(now)
	return res
}

func (r *Room) evictableLocked(now time.Time) bool {
	if r.timer.State() == domain.TimerExpired {
		return now.Sub(r.timer.ExpiredAt()) >= r.cfg.TeardownGrace
	}
	if len(r.members) > 0 || r.emptySince.IsZero() {
		return false
	}
	return now.Sub(r.emptySince) >= r.cfg.EmptyGrace
}

// closeIf marks the room closed when ok holds and returns the members
// still attached so the caller can close them outside the lock.
func (r *Room) closeIf(ok func() bool) ([]SignalConnection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !ok() {
		return nil, false
	}
	r.closed = true
	conns := make([]SignalConnection, 0, len(r.members))
	for _, c := range r.members {
		conns = append(conns, c)
	}
	clear(r.members)
	r.cancel()
	return conns, true
}

// publish copies the member set before sending so a slow member cannot
// hold the iteration open. TrySend never blocks.
func (r *Room) publish(except domain.ParticipantID, f Frame) PublishResult {
	targets := make([]SignalConnection, 0, len(r.members))
	for pid, c := range r.members {
		if pid == except {
			continue
		}
		targets = append(targets, c)
	}
	res := PublishResult{}
	for _, c := range targets {
		if err := c.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, c)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("from", string(except)).
		Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := RoomInfo{
		ID:            r.id,
		MemberCount:   len(r.members),
		Timer:         r.timer.State().String(),
		HasWhiteboard: r.whiteboard != nil,
		CreatedAt:     r.created,
	}
	if r.timer.Active() {
		end := r.timer.EndTime()
		info.EndTime = &end
	}
	return info
}
