package core

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

var errFull = errors.New("full")

const testToken = "client-a"

// mockConn collects frames instead of writing them to a socket.
type mockConn struct {
	mu     sync.Mutex
	frames []Frame
	full   bool
	closed int
}

func (m *mockConn) TrySend(f Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return errFull
	}
	m.frames = append(m.frames, f)
	return nil
}

func (m *mockConn) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *mockConn) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *mockConn) Messages(t *testing.T) []map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, 0, len(m.frames))
	for _, f := range m.frames {
		var v map[string]any
		require.NoError(t, json.Unmarshal(f, &v))
		out = append(out, v)
	}
	return out
}

func (m *mockConn) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
}

// ofType keeps the data field of every frame with the given type.
func ofType(msgs []map[string]any, typ string) []any {
	var out []any
	for _, m := range msgs {
		if m["type"] == typ {
			out = append(out, m["data"])
		}
	}
	return out
}

func countExit(msgs []map[string]any) int {
	n := 0
	for _, m := range msgs {
		if m["exit"] == float64(1) {
			n++
		}
	}
	return n
}

func testConfig() RoomConfig {
	return RoomConfig{
		TickInterval:  time.Hour,
		EmptyGrace:    30 * time.Second,
		TeardownGrace: 5 * time.Second,
	}
}

func newTestRoom(t *testing.T) (*Room, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	ctx := t.Context()
	return newRoom(ctx, "r1", testConfig(), clock.Now()), clock
}

func join(t *testing.T, r *Room, conn SignalConnection) JoinResult {
	t.Helper()
	res, err := r.Join(JoinRequest{Token: testToken, Conn: conn})
	require.NoError(t, err)
	return res
}
