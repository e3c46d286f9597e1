package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Interview/internal/app"
	"github.com/dkeye/Interview/internal/core"
	"github.com/dkeye/Interview/internal/domain"
	"github.com/dkeye/Interview/internal/store"
	"github.com/rs/zerolog/log"
)

const storeTimeout = 3 * time.Second

// Orchestrator routes client messages to rooms. A connection's messages
// are handled one at a time in arrival order; rooms serialize the rest.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *core.RoomManager
	Policy   app.Policy
	Sessions store.SessionStore

	DefaultDuration time.Duration
	MaxDuration     time.Duration
}

// Handle parses and dispatches one frame. Returned errors are scoped to
// this frame; the connection stays usable.
func (o *Orchestrator) Handle(ctx context.Context, c *core.Connection, raw []byte) error {
	if c.State() == core.Closed {
		return nil
	}
	msg, err := core.ParseInbound(raw)
	if err != nil {
		o.reject(c, err)
		return err
	}
	if msg.Kind == core.KindJoin {
		return o.Join(ctx, c, msg.Room, msg.Prior)
	}

	room, pid, ok := c.Current()
	if !ok {
		o.reject(c, domain.ErrNotJoined)
		return domain.ErrNotJoined
	}

	var res core.PublishResult
	switch msg.Kind {
	case core.KindText:
		res, err = room.UpdateText(pid, msg.Text)
	case core.KindWhiteboard:
		res, err = room.UpdateWhiteboard(pid, msg.Buffer)
	case core.KindGetTimer:
		o.sendTimer(c, room)
	case core.KindStartTimer:
		res, err = o.startTimer(ctx, room, msg)
	case core.KindExpire:
		res = o.Rooms.Expire(room)
	}
	o.ApplyPolicy(room, res)
	if err != nil {
		o.reject(c, err)
		return fmt.Errorf("%s in %s: %w", pid, room.ID(), err)
	}
	return nil
}

// Join attaches c to roomID and sends it the snapshot, or exit when the
// session is over or full.
func (o *Orchestrator) Join(ctx context.Context, c *core.Connection, roomID domain.RoomID, prior domain.ParticipantID) error {
	if cur, pid, ok := c.Current(); ok {
		if cur.ID() == roomID {
			prior = pid
		} else {
			o.leave(c)
		}
	}

	limit, err := o.admit(ctx, roomID)
	if err != nil {
		o.refuse(c, roomID, err)
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		room := o.Rooms.GetOrCreate(roomID)
		res, err := room.Join(core.JoinRequest{Prior: prior, Token: c.ClientToken(), Conn: c.Signal(), MaxMembers: limit})
		if errors.Is(err, core.ErrRoomClosed) {
			continue
		}
		if err != nil {
			o.refuse(c, roomID, err)
			return err
		}
		if !c.Attach(room, res.Participant) {
			room.Leave(res.Participant, c.Signal(), o.Rooms.Clock().Now())
			return nil
		}
		if res.Replaced != nil {
			log.Info().Str("module", "orch").Str("room", string(roomID)).Str("participant", string(res.Participant)).Msg("replacing stale connection")
			res.Replaced.Close()
		}
		o.ApplyPolicy(room, res.Publish)
		return nil
	}
	err = fmt.Errorf("join %s: %w", roomID, core.ErrRoomClosed)
	o.refuse(c, roomID, err)
	return err
}

// admit consults the session directory. Store failures do not block joins.
func (o *Orchestrator) admit(ctx context.Context, roomID domain.RoomID) (int, error) {
	if o.Sessions == nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	sess, err := o.Sessions.Get(ctx, string(roomID))
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return 0, nil
	case err != nil:
		log.Error().Err(err).Str("module", "orch").Str("room", string(roomID)).Msg("session lookup failed")
		return 0, nil
	case sess.Expired():
		return 0, domain.ErrRoomExpired
	}
	return sess.MaxParticipants, nil
}

func (o *Orchestrator) startTimer(ctx context.Context, room *core.Room, msg core.Inbound) (core.PublishResult, error) {
	d := msg.Duration
	if d == 0 {
		d = o.sessionDuration(ctx, room.ID())
	}
	if o.MaxDuration > 0 && d > o.MaxDuration {
		return core.PublishResult{}, fmt.Errorf("%w: %s above %s", domain.ErrInvalidDuration, d, o.MaxDuration)
	}
	if msg.Room != "" && msg.Room != room.ID() {
		log.Debug().Str("module", "orch").Str("room", string(room.ID())).Str("claimed", string(msg.Room)).Msg("start_timer for another room, using current")
	}
	_, res, err := room.StartTimer(o.Rooms.Clock().Now(), d)
	return res, err
}

func (o *Orchestrator) sessionDuration(ctx context.Context, roomID domain.RoomID) time.Duration {
	if o.Sessions != nil {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		if sess, err := o.Sessions.Get(ctx, string(roomID)); err == nil && sess.DurationSeconds > 0 {
			return sess.Duration()
		}
	}
	if o.DefaultDuration > 0 {
		return o.DefaultDuration
	}
	return domain.DefaultSessionDuration
}

func (o *Orchestrator) sendTimer(c *core.Connection, room *core.Room) {
	switch state, end := room.Timer(); state {
	case domain.TimerRunning:
		o.send(c, core.TimerFrame(end))
	case domain.TimerExpired:
		o.send(c, core.ExitFrame())
	case domain.TimerInert:
	}
}

// OnDisconnect detaches c. The room keeps its state for the grace window.
func (o *Orchestrator) OnDisconnect(c *core.Connection) {
	room, pid, ok := c.MarkClosed()
	if !ok {
		return
	}
	o.release(room, pid, c.Signal())
}

func (o *Orchestrator) leave(c *core.Connection) {
	room, pid, ok := c.Detach()
	if !ok {
		return
	}
	o.release(room, pid, c.Signal())
}

func (o *Orchestrator) release(room *core.Room, pid domain.ParticipantID, sig core.SignalConnection) {
	if room.Leave(pid, sig, o.Rooms.Clock().Now()) && o.Rooms.Config().EmptyGrace == 0 {
		o.Rooms.RemoveIfEmpty(room.ID())
	}
}

// OnRoomExpired records expiry in the session directory.
func (o *Orchestrator) OnRoomExpired(id domain.RoomID, at time.Time) {
	if o.Sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := o.Sessions.MarkExpired(ctx, id, at); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("room", string(id)).Msg("mark session expired")
	}
}

// ApplyPolicy acts on members whose send buffers were full.
func (o *Orchestrator) ApplyPolicy(room *core.Room, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		action := o.Policy.OnBackPressure(room, slow)
		log.Warn().Str("module", "orch").Str("room", string(room.ID())).Stringer("action", action).Msg("backpressure")
		switch action {
		case app.KickMember:
			slow.Close()
		case app.DropFrame, app.NoAction:
		}
	}
}

// EvictRoom ends a room on operator request.
func (o *Orchestrator) EvictRoom(id domain.RoomID) bool {
	return o.Rooms.Stop(id)
}

func (o *Orchestrator) send(c *core.Connection, f core.Frame) {
	if err := c.Signal().TrySend(f); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(c.SID())).Msg("reply dropped")
	}
}

func (o *Orchestrator) reject(c *core.Connection, err error) {
	log.Warn().Err(err).Str("module", "orch").Str("sid", string(c.SID())).Msg("message rejected")
	o.send(c, core.ErrorFrame(err))
}

// refuse answers a failed join with exit and closes the transport.
func (o *Orchestrator) refuse(c *core.Connection, roomID domain.RoomID, err error) {
	log.Info().Err(err).Str("module", "orch").Str("sid", string(c.SID())).Str("room", string(roomID)).Msg("join refused")
	o.send(c, core.ExitFrame())
	c.Signal().Close()
}
