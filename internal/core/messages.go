package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/Interview/internal/domain"
)

type MessageKind int

const (
	KindJoin MessageKind = iota + 1
	KindText
	KindWhiteboard
	KindGetTimer
	KindStartTimer
	KindExpire
)

const (
	TypeJoin       = "join"
	TypeText       = "txt_update"
	TypeWhiteboard = "wb_buffer"
	TypeGetTimer   = "get_timer"
	TypeStartTimer = "start_timer"
	TypeTimer      = "timer_update"
	TypeExpire     = "expire_session"
	TypeError      = "error"
)

// EndTimeLayout is ISO8601 with millisecond precision, always UTC.
const EndTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Inbound is a parsed client message. Only the fields relevant to Kind are set.
type Inbound struct {
	Kind     MessageKind
	Room     domain.RoomID
	Prior    domain.ParticipantID
	Text     string
	Buffer   json.RawMessage
	Duration time.Duration
}

type inboundWire struct {
	Join     *string         `json:"join"`
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	Room     string          `json:"room"`
	Data     json.RawMessage `json:"data"`
	Duration *float64        `json:"duration"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedMessage, fmt.Sprintf(format, args...))
}

// ParseInbound decodes one frame. Unknown fields are ignored.
// Every error wraps domain.ErrMalformedMessage.
func ParseInbound(raw []byte) (Inbound, error) {
	var w inboundWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return Inbound{}, malformed("%v", err)
	}

	if w.Join != nil || w.Type == TypeJoin {
		target := w.Room
		if w.Join != nil {
			target = *w.Join
		}
		id, err := domain.NewRoomID(target)
		if err != nil {
			return Inbound{}, malformed("join: %v", err)
		}
		in := Inbound{Kind: KindJoin, Room: id}
		// an unusable prior id is dropped and the room mints a fresh one
		if prior := domain.ParticipantID(w.ID); prior.Valid() {
			in.Prior = prior
		}
		return in, nil
	}

	in := Inbound{Room: domain.RoomID(w.Room)}
	switch w.Type {
	case TypeText:
		var text string
		if err := json.Unmarshal(w.Data, &text); err != nil {
			return Inbound{}, malformed("txt_update data must be a string")
		}
		in.Kind, in.Text = KindText, text
	case TypeWhiteboard:
		if len(w.Data) == 0 || string(w.Data) == "null" {
			return Inbound{}, malformed("wb_buffer without data")
		}
		in.Kind, in.Buffer = KindWhiteboard, w.Data
	case TypeGetTimer:
		in.Kind = KindGetTimer
	case TypeStartTimer:
		in.Kind = KindStartTimer
		if w.Duration != nil {
			if *w.Duration < 0 {
				return Inbound{}, malformed("negative duration %v", *w.Duration)
			}
			in.Duration = time.Duration(*w.Duration * float64(time.Second))
		}
	case TypeExpire:
		in.Kind = KindExpire
	case "":
		return Inbound{}, malformed("missing type")
	default:
		return Inbound{}, malformed("unknown type %q", w.Type)
	}
	return in, nil
}

func mustFrame(v any) Frame {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("core: encode frame: %v", err))
	}
	return b
}

var exitFrame = mustFrame(struct {
	Exit int `json:"exit"`
}{1})

func JoinFrame(pid domain.ParticipantID) Frame {
	return mustFrame(struct {
		Join domain.ParticipantID `json:"join"`
	}{pid})
}

func TextFrame(text string) Frame {
	return mustFrame(struct {
		Type string `json:"type"`
		Data string `json:"data"`
	}{TypeText, text})
}

func WhiteboardFrame(buf json.RawMessage) Frame {
	return mustFrame(struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}{TypeWhiteboard, buf})
}

func TimerFrame(end time.Time) Frame {
	return mustFrame(struct {
		Type    string `json:"type"`
		EndTime string `json:"end_time"`
	}{TypeTimer, end.UTC().Format(EndTimeLayout)})
}

// ExitFrame tells the client to leave the session.
func ExitFrame() Frame { return exitFrame }

func ErrorFrame(err error) Frame {
	return mustFrame(struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}{TypeError, domain.ErrorCode(err)})
}
