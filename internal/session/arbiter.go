package session

import (
	"context"
	"fmt"

	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/rs/zerolog/log"
)

// SubscriberCounter is the part of the transport the role decision needs.
type SubscriberCounter interface {
	CountSubscribers(ctx context.Context, room domain.RoomName) (int, error)
}

// DetermineRole makes the first participant of an empty room the master.
// Two participants joining an empty room at the same moment can both see
// zero subscribers and both become master.
func DetermineRole(ctx context.Context, counter SubscriberCounter, room domain.RoomName) (domain.Role, error) {
	n, err := counter.CountSubscribers(ctx, room)
	if err != nil {
		return domain.RoleUnknown, fmt.Errorf("count subscribers of %q: %w", room, err)
	}
	if n == 0 {
		return domain.RoleMaster, nil
	}
	return domain.RoleFollower, nil
}

// Join decides the role, then subscribes to the room.
func (s *Session) Join(ctx context.Context) (core.Subscription, error) {
	role, err := DetermineRole(ctx, s.transport, s.room)
	if err != nil {
		return nil, err
	}
	if err := s.setRole(role); err != nil {
		return nil, err
	}

	sub, err := s.transport.Subscribe(ctx, s.room)
	if err != nil {
		return nil, fmt.Errorf("subscribe %q: %w", s.room, err)
	}
	log.Info().Str("module", "session").Str("room", string(s.room)).Str("role", role.String()).Msg("joined room")
	s.say("Joined room %s as %s", s.room, role)
	return sub, nil
}

// onSubscribed brings followers that were already waiting in the room up to
// the master's state.
func (s *Session) onSubscribed(ctx context.Context) {
	if !s.IsMaster() {
		return
	}
	if err := s.broadcastSnapshot(ctx, false); err != nil {
		log.Error().Err(err).Str("module", "session").Msg("initial snapshot failed")
	}
}
