package p2p

import (
	"context"
	"fmt"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
)

const eventBuffer = 256

type subscription struct {
	room   domain.RoomName
	ps     *pubsub.Subscription
	events chan core.Event

	ctx       context.Context
	stop      context.CancelFunc
	closeOnce sync.Once
}

func newSubscription(room domain.RoomName, ps *pubsub.Subscription) *subscription {
	ctx, stop := context.WithCancel(context.Background())
	return &subscription{
		room:   room,
		ps:     ps,
		events: make(chan core.Event, eventBuffer),
		ctx:    ctx,
		stop:   stop,
	}
}

func (s *subscription) pump() {
	defer s.cancel()
	for {
		m, err := s.ps.Next(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				log.Warn().Err(err).Str("module", "adapters.p2p").Str("room", string(s.room)).Msg("subscription ended")
			}
			return
		}
		s.push(core.Event{Type: core.EventMessage, Room: s.room, Payload: m.Data})
	}
}

func (s *subscription) push(ev core.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *subscription) cancel() {
	s.closeOnce.Do(func() {
		s.stop()
		s.ps.Cancel()
	})
}

func (s *subscription) Next(ctx context.Context) (core.Event, error) {
	select {
	case <-s.ctx.Done():
		return core.Event{}, fmt.Errorf("%w: %s", domain.ErrNotSubscribed, s.room)
	default:
	}
	select {
	case ev := <-s.events:
		return ev, nil
	case <-s.ctx.Done():
		return core.Event{}, fmt.Errorf("%w: %s", domain.ErrNotSubscribed, s.room)
	case <-ctx.Done():
		return core.Event{}, ctx.Err()
	}
}
