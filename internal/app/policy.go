package app

import "github.com/dkeye/Interview/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

func (a BackpressureAction) String() string {
	switch a {
	case KickMember:
		return "kick"
	case DropFrame:
		return "drop"
	default:
		return "none"
	}
}

// Policy decides what to do with a member whose send buffer is full.
type Policy interface {
	OnBackPressure(room *core.Room, member core.SignalConnection) BackpressureAction
}

// SimplePolicy kicks slow members. A kicked client reconnects and
// catches up from the join snapshot.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(*core.Room, core.SignalConnection) BackpressureAction {
	return KickMember
}

// PolicyFor maps the configured name to a policy.
func PolicyFor(name string) Policy {
	switch name {
	case "drop":
		return DropPolicy{}
	default:
		return SimplePolicy{}
	}
}

// DropPolicy keeps slow members and loses the frame for them.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(*core.Room, core.SignalConnection) BackpressureAction {
	return DropFrame
}
