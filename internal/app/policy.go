package app

import "github.com/dkeye/vlcsync/internal/core"

// BackpressureAction says what to do with a subscriber whose send buffer is
// full when a message is fanned out.
type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	// DropFrame loses the message for that subscriber only.
	DropFrame
	// KickMember disconnects the subscriber.
	KickMember
)

func (a BackpressureAction) String() string {
	switch a {
	case DropFrame:
		return "drop"
	case KickMember:
		return "kick"
	default:
		return "none"
	}
}

type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession) BackpressureAction
}

// KickPolicy disconnects slow subscribers.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(core.RoomService, core.MemberSession) BackpressureAction {
	return KickMember
}

// DropPolicy keeps slow subscribers and loses the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.RoomService, core.MemberSession) BackpressureAction {
	return DropFrame
}
