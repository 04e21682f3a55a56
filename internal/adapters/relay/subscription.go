package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/rs/zerolog/log"
)

type subscription struct {
	room   domain.RoomName
	events chan core.Event

	closed    chan struct{}
	closeOnce sync.Once
}

func newSubscription(room domain.RoomName) *subscription {
	return &subscription{
		room:   room,
		events: make(chan core.Event, eventBuffer),
		closed: make(chan struct{}),
	}
}

// push never blocks the read pump. When the reader has fallen behind by a
// full buffer the oldest event is discarded, so request replies keep flowing.
func (s *subscription) push(ev core.Event) {
	for {
		select {
		case s.events <- ev:
			return
		case <-s.closed:
			return
		default:
		}
		select {
		case <-s.events:
			log.Warn().Str("module", "adapters.relay").Str("room", string(s.room)).Msg("subscription buffer full, dropping oldest event")
		default:
		}
	}
}

func (s *subscription) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

func (s *subscription) Next(ctx context.Context) (core.Event, error) {
	select {
	case <-s.closed:
		return core.Event{}, fmt.Errorf("%w: %s", domain.ErrNotSubscribed, s.room)
	default:
	}
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.closed:
		return core.Event{}, fmt.Errorf("%w: %s", domain.ErrNotSubscribed, s.room)
	case <-ctx.Done():
		return core.Event{}, ctx.Err()
	}
}
