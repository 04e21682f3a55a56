package core

import (
	"context"

	"github.com/dkeye/vlcsync/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID     domain.SessionID `json:"id"`
	Remote string           `json:"remote"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() *domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO

	AddMember(sid domain.SessionID, ms MemberSession)
	RemoveMember(sid domain.SessionID)
	Broadcast(data Frame) PublishResult
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"member_count"`
}

type RoomManager interface {
	GetOrCreate(name domain.RoomName) RoomService
	Get(name domain.RoomName) (RoomService, bool)
	List() []RoomInfo
	StopRoom(name domain.RoomName)
}

// Player is the local media player as seen by a session.
// Every call may fail with domain.ErrAdapterUnavailable.
type Player interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, position float64) error
	AddFile(ctx context.Context, path string) error
	QueryPosition(ctx context.Context) (float64, error)
	QueryLength(ctx context.Context) (float64, error)
	QueryPlaying(ctx context.Context) (bool, error)
	QueryProperty(ctx context.Context, name string) (Value, error)
	Close() error
}

type EventType int

const (
	// EventSubscribe confirms that the subscription is live.
	EventSubscribe EventType = iota + 1
	EventMessage
)

type Event struct {
	Type    EventType
	Room    domain.RoomName
	Payload []byte
}

// Subscription is the event stream of one room. Next blocks until an event
// arrives; it returns an error once the room is unsubscribed or the
// transport is gone.
type Subscription interface {
	Next(ctx context.Context) (Event, error)
}

// Transport is the shared publish/subscribe channel rooms live on.
type Transport interface {
	Publish(ctx context.Context, room domain.RoomName, payload []byte) error
	Subscribe(ctx context.Context, room domain.RoomName) (Subscription, error)
	Unsubscribe(ctx context.Context, room domain.RoomName) error
	CountSubscribers(ctx context.Context, room domain.RoomName) (int, error)
	Close() error
}
