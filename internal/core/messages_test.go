package core

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Interview/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{
			name: "join",
			raw:  `{"join":"r1"}`,
			want: Inbound{Kind: KindJoin, Room: "r1"},
		},
		{
			name: "join with prior id and typed alias",
			raw:  `{"type":"join","room":"r1","id":"p3"}`,
			want: Inbound{Kind: KindJoin, Room: "r1", Prior: "p3"},
		},
		{
			name: "over-long prior id is ignored",
			raw:  `{"join":"r1","id":"` + strings.Repeat("p", domain.MaxParticipantIDLen+1) + `"}`,
			want: Inbound{Kind: KindJoin, Room: "r1"},
		},
		{
			name: "text update ignores unknown fields",
			raw:  `{"type":"txt_update","data":"hi","id":"p1","cursor":12}`,
			want: Inbound{Kind: KindText, Text: "hi"},
		},
		{
			name: "empty text is valid",
			raw:  `{"type":"txt_update","data":""}`,
			want: Inbound{Kind: KindText},
		},
		{
			name: "whiteboard keeps raw payload",
			raw:  `{"type":"wb_buffer","data":{"a":[1,2]}}`,
			want: Inbound{Kind: KindWhiteboard, Buffer: json.RawMessage(`{"a":[1,2]}`)},
		},
		{
			name: "get timer",
			raw:  `{"type":"get_timer"}`,
			want: Inbound{Kind: KindGetTimer},
		},
		{
			name: "start timer",
			raw:  `{"type":"start_timer","room":"r1","duration":5}`,
			want: Inbound{Kind: KindStartTimer, Room: "r1", Duration: 5 * time.Second},
		},
		{
			name: "start timer without duration",
			raw:  `{"type":"start_timer","room":"r1"}`,
			want: Inbound{Kind: KindStartTimer, Room: "r1"},
		},
		{
			name: "expire",
			raw:  `{"type":"expire_session","room":"r1"}`,
			want: Inbound{Kind: KindExpire, Room: "r1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInbound([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInbound_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{"type":`},
		{"array", `[1,2]`},
		{"empty join", `{"join":""}`},
		{"numeric join", `{"join":7}`},
		{"missing type", `{"data":"x"}`},
		{"unknown type", `{"type":"dance"}`},
		{"text not a string", `{"type":"txt_update","data":{"x":1}}`},
		{"text missing", `{"type":"txt_update"}`},
		{"whiteboard null", `{"type":"wb_buffer","data":null}`},
		{"negative duration", `{"type":"start_timer","duration":-1}`},
		{"duration not a number", `{"type":"start_timer","duration":"5"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInbound([]byte(tt.raw))
			assert.ErrorIs(t, err, domain.ErrMalformedMessage)
		})
	}
}

func TestFrames(t *testing.T) {
	end := time.Date(2026, 3, 1, 10, 5, 0, 0, time.FixedZone("CET", 3600))

	assert.JSONEq(t, `{"join":"p1"}`, string(JoinFrame("p1")))
	assert.JSONEq(t, `{"type":"txt_update","data":"a\"b"}`, string(TextFrame(`a"b`)))
	assert.JSONEq(t, `{"type":"wb_buffer","data":"X"}`, string(WhiteboardFrame(json.RawMessage(`"X"`))))
	assert.JSONEq(t, `{"type":"timer_update","end_time":"2026-03-01T09:05:00.000Z"}`, string(TimerFrame(end)))
	assert.JSONEq(t, `{"exit":1}`, string(ExitFrame()))
	assert.JSONEq(t, `{"type":"error","error":"not_joined"}`, string(ErrorFrame(domain.ErrNotJoined)))
}

func TestConnection_States(t *testing.T) {
	r, _ := newTestRoom(t)
	c := NewConnection("s1", "tok", &mockConn{})
	assert.Equal(t, Connecting, c.State())
	_, _, ok := c.Current()
	assert.False(t, ok)

	require.True(t, c.Attach(r, "p1"))
	got, pid, ok := c.Current()
	require.True(t, ok)
	assert.Same(t, r, got)
	assert.Equal(t, domain.ParticipantID("p1"), pid)

	_, _, ok = c.Detach()
	assert.True(t, ok)
	assert.Equal(t, Connecting, c.State())

	c.Attach(r, "p1")
	_, _, ok = c.MarkClosed()
	assert.True(t, ok)
	assert.Equal(t, Closed, c.State())
	assert.False(t, c.Attach(r, "p1"))
}
