package core

import (
	"sync"

	"github.com/dkeye/Interview/internal/domain"
)

type SessionID string

type ConnState int

const (
	Connecting ConnState = iota
	Joined
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Joined:
		return "joined"
	default:
		return "closed"
	}
}

// Connection pairs a transport with its current room attachment.
// The adapter owns it; the router is the only writer of its state.
type Connection struct {
	sid    SessionID
	token  string
	signal SignalConnection

	mu          sync.Mutex
	state       ConnState
	room        *Room
	participant domain.ParticipantID
}

// NewConnection binds a transport to the client token it arrived with.
// The token proves ownership of participant ids on reconnect.
func NewConnection(sid SessionID, token string, signal SignalConnection) *Connection {
	return &Connection{sid: sid, token: token, signal: signal}
}

func (c *Connection) SID() SessionID           { return c.sid }
func (c *Connection) ClientToken() string      { return c.token }
func (c *Connection) Signal() SignalConnection { return c.signal }

func (c *Connection) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the room this connection is joined to.
func (c *Connection) Current() (*Room, domain.ParticipantID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Joined {
		return nil, "", false
	}
	return c.room, c.participant, true
}

// Attach marks the connection joined. It is a no-op once closed.
func (c *Connection) Attach(room *Room, pid domain.ParticipantID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return false
	}
	c.state, c.room, c.participant = Joined, room, pid
	return true
}

// Detach returns the connection to Connecting and hands back the old attachment.
func (c *Connection) Detach() (*Room, domain.ParticipantID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, pid, ok := c.room, c.participant, c.state == Joined
	if c.state != Closed {
		c.state = Connecting
	}
	c.room, c.participant = nil, ""
	return room, pid, ok
}

// MarkClosed is terminal and returns the attachment that was dropped.
func (c *Connection) MarkClosed() (*Room, domain.ParticipantID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, pid, ok := c.room, c.participant, c.state == Joined
	c.state, c.room, c.participant = Closed, nil, ""
	return room, pid, ok
}
