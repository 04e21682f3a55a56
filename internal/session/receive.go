package session

import (
	"context"

	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/protocol"
	"github.com/rs/zerolog/log"
)

// ReceiveLoop handles room events until the subscription ends. Leaving the
// room or cancelling ctx ends it cleanly; any other stream error is
// returned.
func (s *Session) ReceiveLoop(ctx context.Context, sub core.Subscription) error {
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			if !s.Alive() || ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.HandleEvent(ctx, ev)
	}
}

// HandleEvent dispatches one transport event. Failures stay inside the event.
func (s *Session) HandleEvent(ctx context.Context, ev core.Event) {
	switch ev.Type {
	case core.EventSubscribe:
		s.onSubscribed(ctx)
	case core.EventMessage:
		if err := s.handleMessage(ctx, ev.Payload); err != nil {
			log.Error().Err(err).Str("module", "session").Msg("message handling failed")
		}
	}
}

func (s *Session) handleMessage(ctx context.Context, payload []byte) error {
	msg, err := protocol.Decode(payload)
	if err != nil {
		log.Debug().Err(err).Str("module", "session").Msg("dropping message")
		return nil
	}

	if s.IsMaster() {
		if c, ok := msg.(protocol.Control); ok && c.Tag == protocol.TagSync {
			log.Info().Str("module", "session").Msg("sync requested, sending snapshot")
			return s.broadcastSnapshot(ctx, false)
		}
		return nil
	}

	switch m := msg.(type) {
	case protocol.Snapshot:
		_, err := s.engine.Reconcile(ctx, m)
		return err
	case protocol.Control:
		return s.engine.HandleControl(ctx, m)
	case protocol.Unknown:
		log.Debug().Str("module", "session").Str("tag", string(m.Tag)).Msg("ignoring unknown tag")
	}
	return nil
}
