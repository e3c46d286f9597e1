package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoom_JoinAssignsParticipantIDs(t *testing.T) {
	r, _ := newTestRoom(t)
	a, b := &mockConn{}, &mockConn{}

	assert.Equal(t, domain.ParticipantID("p1"), join(t, r, a).Participant)
	assert.Equal(t, domain.ParticipantID("p2"), join(t, r, b).Participant)

	msgs := a.Messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "p1", msgs[0]["join"])
	assert.Equal(t, "txt_update", msgs[1]["type"])
	assert.Equal(t, "", msgs[1]["data"])
	assert.Equal(t, 2, r.MemberCount())
}

func TestRoom_TextUpdatesKeepTotalOrder(t *testing.T) {
	r, _ := newTestRoom(t)
	a, b, c := &mockConn{}, &mockConn{}, &mockConn{}
	pa := join(t, r, a).Participant
	pb := join(t, r, b).Participant
	join(t, r, c)
	for _, m := range []*mockConn{a, b, c} {
		m.Reset()
	}

	steps := []struct {
		from domain.ParticipantID
		text string
	}{
		{pa, "one"}, {pb, "two"}, {pa, "three"}, {pb, "four"},
	}
	for _, s := range steps {
		_, err := r.UpdateText(s.from, s.text)
		require.NoError(t, err)
	}

	assert.Equal(t, []any{"two", "four"}, ofType(a.Messages(t), TypeText))
	assert.Equal(t, []any{"one", "three"}, ofType(b.Messages(t), TypeText))
	assert.Equal(t, []any{"one", "two", "three", "four"}, ofType(c.Messages(t), TypeText))

	late := &mockConn{}
	join(t, r, late)
	assert.Equal(t, []any{"four"}, ofType(late.Messages(t), TypeText))
}

func TestRoom_WhiteboardReachesOthersAndLatecomers(t *testing.T) {
	r, _ := newTestRoom(t)
	a, b := &mockConn{}, &mockConn{}
	pa := join(t, r, a).Participant
	join(t, r, b)
	a.Reset()
	b.Reset()

	res, err := r.UpdateWhiteboard(pa, json.RawMessage(`"X"`))
	require.NoError(t, err)
	assert.Equal(t, 1, res.SendTo)

	assert.Empty(t, a.Messages(t))
	assert.Equal(t, []any{"X"}, ofType(b.Messages(t), TypeWhiteboard))

	c := &mockConn{}
	join(t, r, c)
	assert.Equal(t, []any{"X"}, ofType(c.Messages(t), TypeWhiteboard))
}

func TestRoom_SnapshotAfterMutations(t *testing.T) {
	r, clock := newTestRoom(t)
	a := &mockConn{}
	pa := join(t, r, a).Participant

	_, err := r.UpdateText(pa, "func main() {}")
	require.NoError(t, err)
	_, err = r.UpdateWhiteboard(pa, json.RawMessage(`{"lines":[1,2,3]}`))
	require.NoError(t, err)
	end, _, err := r.StartTimer(clock.Now(), 10*time.Minute)
	require.NoError(t, err)

	b := &mockConn{}
	join(t, r, b)
	msgs := b.Messages(t)
	require.Len(t, msgs, 4)
	assert.Equal(t, "p2", msgs[0]["join"])
	assert.Equal(t, "func main() {}", msgs[1]["data"])
	assert.Equal(t, map[string]any{"lines": []any{float64(1), float64(2), float64(3)}}, msgs[2]["data"])
	assert.Equal(t, TypeTimer, msgs[3]["type"])
	assert.Equal(t, end.Format(EndTimeLayout), msgs[3]["end_time"])
}

func TestRoom_ReconnectKeepsStateAndID(t *testing.T) {
	r, clock := newTestRoom(t)
	a := &mockConn{}
	pa := join(t, r, a).Participant
	_, err := r.UpdateText(pa, "draft")
	require.NoError(t, err)
	_, err = r.UpdateWhiteboard(pa, json.RawMessage(`"W"`))
	require.NoError(t, err)
	end, _, err := r.StartTimer(clock.Now(), time.Minute)
	require.NoError(t, err)

	require.True(t, r.Leave(pa, a, clock.Now()))
	assert.Equal(t, 0, r.MemberCount())

	again := &mockConn{}
	res, err := r.Join(JoinRequest{Token: testToken, Prior: pa, Conn: again})
	require.NoError(t, err)
	assert.Equal(t, pa, res.Participant)

	msgs := again.Messages(t)
	assert.Equal(t, "p1", msgs[0]["join"])
	assert.Equal(t, []any{"draft"}, ofType(msgs, TypeText))
	assert.Equal(t, []any{"W"}, ofType(msgs, TypeWhiteboard))
	assert.Equal(t, end.Format(EndTimeLayout), msgs[len(msgs)-1]["end_time"])
}

func TestRoom_JoinWithPriorID(t *testing.T) {
	tests := []struct {
		name     string
		prior    domain.ParticipantID
		token    string
		want     domain.ParticipantID
		replaced bool
		resync   bool
		sameConn bool
	}{
		{name: "unknown id mints a new one", prior: "p42", token: testToken, want: "p2"},
		{name: "known id replaces stale transport", prior: "p1", token: testToken, want: "p1", replaced: true},
		{name: "same transport resyncs", prior: "p1", token: testToken, want: "p1", resync: true, sameConn: true},
		{name: "foreign client cannot take the id", prior: "p1", token: "client-b", want: "p2"},
		{name: "anonymous client cannot take the id", prior: "p1", want: "p2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRoom(t)
			first := &mockConn{}
			join(t, r, first)

			conn := &mockConn{}
			if tt.sameConn {
				conn = first
			}
			res, err := r.Join(JoinRequest{Token: tt.token, Prior: tt.prior, Conn: conn})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Participant)
			assert.Equal(t, tt.resync, res.Resync)
			if tt.replaced {
				assert.Same(t, first, res.Replaced)
			} else {
				assert.Nil(t, res.Replaced)
			}
		})
	}
}

func TestRoom_ForeignTokenCannotReclaimDetachedID(t *testing.T) {
	r, clock := newTestRoom(t)
	a := &mockConn{}
	pa := join(t, r, a).Participant
	require.True(t, r.Leave(pa, a, clock.Now()))

	res, err := r.Join(JoinRequest{Token: "client-b", Prior: pa, Conn: &mockConn{}})
	require.NoError(t, err)
	assert.NotEqual(t, pa, res.Participant)

	back, err := r.Join(JoinRequest{Token: testToken, Prior: pa, Conn: &mockConn{}})
	require.NoError(t, err)
	assert.Equal(t, pa, back.Participant)
}

func TestRoom_StaleLeaveIsIgnored(t *testing.T) {
	r, clock := newTestRoom(t)
	old := &mockConn{}
	pid := join(t, r, old).Participant
	fresh := &mockConn{}
	_, err := r.Join(JoinRequest{Token: testToken, Prior: pid, Conn: fresh})
	require.NoError(t, err)

	assert.False(t, r.Leave(pid, old, clock.Now()))
	assert.Equal(t, 1, r.MemberCount())
}

func TestRoom_MaxMembers(t *testing.T) {
	r, clock := newTestRoom(t)
	a := &mockConn{}
	pa := join(t, r, a).Participant
	_, err := r.Join(JoinRequest{Conn: &mockConn{}, MaxMembers: 1})
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	// a returning participant takes its seat back
	r.Leave(pa, a, clock.Now())
	_, err = r.Join(JoinRequest{Token: testToken, Prior: pa, Conn: &mockConn{}, MaxMembers: 1})
	assert.NoError(t, err)
}

func TestRoom_StartTimerWhileRunning(t *testing.T) {
	r, clock := newTestRoom(t)
	a, b := &mockConn{}, &mockConn{}
	join(t, r, a)
	join(t, r, b)
	a.Reset()
	b.Reset()

	end, res, err := r.StartTimer(clock.Now(), 600*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SendTo)

	clock.Advance(time.Second)
	got, res, err := r.StartTimer(clock.Now(), 60*time.Second)
	assert.ErrorIs(t, err, domain.ErrTimerAlreadyRunning)
	assert.Equal(t, end, got)
	assert.Zero(t, res.SendTo)

	state, current := r.Timer()
	assert.Equal(t, domain.TimerRunning, state)
	assert.Equal(t, end, current)
	for _, m := range []*mockConn{a, b} {
		assert.Len(t, m.Messages(t), 1)
	}
}

func TestRoom_ExpireTwiceSendsOneExit(t *testing.T) {
	r, clock := newTestRoom(t)
	a, b := &mockConn{}, &mockConn{}
	join(t, r, a)
	join(t, r, b)

	_, ok := r.Expire(clock.Now())
	assert.True(t, ok)
	_, ok = r.Expire(clock.Now())
	assert.False(t, ok)

	assert.Equal(t, 1, countExit(a.Messages(t)))
	assert.Equal(t, 1, countExit(b.Messages(t)))
}

func TestRoom_ExpiredRoomRejects(t *testing.T) {
	r, clock := newTestRoom(t)
	a := &mockConn{}
	pa := join(t, r, a).Participant
	r.Expire(clock.Now())

	_, err := r.Join(JoinRequest{Conn: &mockConn{}})
	assert.ErrorIs(t, err, domain.ErrRoomExpired)
	_, err = r.UpdateText(pa, "late")
	assert.ErrorIs(t, err, domain.ErrRoomExpired)
	_, _, err = r.StartTimer(clock.Now(), time.Minute)
	assert.ErrorIs(t, err, domain.ErrRoomExpired)
}

func TestRoom_BackpressureReportsDropped(t *testing.T) {
	r, _ := newTestRoom(t)
	a, slow := &mockConn{}, &mockConn{}
	pa := join(t, r, a).Participant
	join(t, r, slow)
	slow.full = true

	res, err := r.UpdateText(pa, "hello")
	require.NoError(t, err)
	assert.Equal(t, 0, res.SendTo)
	require.Len(t, res.Dropped, 1)
	assert.Same(t, slow, res.Dropped[0])
}

func TestRoom_TickExpiresDueTimer(t *testing.T) {
	r, clock := newTestRoom(t)
	a := &mockConn{}
	join(t, r, a)
	_, _, err := r.StartTimer(clock.Now(), 5*time.Second)
	require.NoError(t, err)

	clock.Advance(4 * time.Second)
	res := r.tick(clock.Now())
	assert.False(t, res.Expired)
	assert.Zero(t, countExit(a.Messages(t)))

	clock.Advance(time.Second)
	res = r.tick(clock.Now())
	assert.True(t, res.Expired)
	assert.False(t, res.Evict)
	assert.Equal(t, 1, countExit(a.Messages(t)))

	clock.Advance(5 * time.Second)
	res = r.tick(clock.Now())
	assert.False(t, res.Expired)
	assert.True(t, res.Evict)
}

func TestRoom_Info(t *testing.T) {
	r, clock := newTestRoom(t)
	pa := join(t, r, &mockConn{}).Participant
	_, err := r.UpdateWhiteboard(pa, json.RawMessage(`"X"`))
	require.NoError(t, err)
	end, _, err := r.StartTimer(clock.Now(), time.Minute)
	require.NoError(t, err)

	info := r.Info()
	assert.Equal(t, domain.RoomID("r1"), info.ID)
	assert.Equal(t, 1, info.MemberCount)
	assert.Equal(t, "running", info.Timer)
	assert.True(t, info.HasWhiteboard)
	require.NotNil(t, info.EndTime)
	assert.Equal(t, end, *info.EndTime)
}

func TestRoom_ClosedRoomRejectsWrites(t *testing.T) {
	r, _ := newTestRoom(t)
	a := &mockConn{}
	pa := join(t, r, a).Participant
	_, closed := r.closeIf(func() bool { return true })
	require.True(t, closed)

	_, err := r.UpdateText(pa, "late")
	assert.ErrorIs(t, err, ErrRoomClosed)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.Equal(t, "room_not_found", domain.ErrorCode(err))
	assert.JSONEq(t, `{"type":"error","error":"room_not_found"}`, string(ErrorFrame(err)))
}
