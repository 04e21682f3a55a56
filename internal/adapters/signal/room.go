package signal

import (
	"encoding/json"

	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/dkeye/vlcsync/internal/protocol"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleSubscribe(sid domain.SessionID, conn *WsSignalConn, f protocol.RelayFrame) {
	name, err := domain.NewRoomName(string(f.Room))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad subscribe room")
		ctl.sendError(conn, f.ID, protocol.ErrCodeBadRoom)
		return
	}
	if !ctl.Orch.Subscribe(sid, name) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("subscribe from unbound session")
		ctl.sendError(conn, f.ID, protocol.ErrCodeNotBound)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(name)).Msg("subscribe")
	ctl.sendJSON(conn, protocol.RelayFrame{
		Type:  protocol.FrameSubscribed,
		ID:    f.ID,
		Room:  name,
		Count: ctl.Orch.Count(name),
	})
}

// handleUnsubscribe leaves the current room; the connection stays open.
func (ctl *SignalWSController) handleUnsubscribe(sid domain.SessionID, conn *WsSignalConn, f protocol.RelayFrame) {
	room, ok := ctl.Orch.Unsubscribe(sid)
	if !ok {
		room = f.Room
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(room)).Msg("unsubscribe")
	ctl.sendJSON(conn, protocol.RelayFrame{
		Type: protocol.FrameUnsubscribed,
		ID:   f.ID,
		Room: room,
	})
}

func (ctl *SignalWSController) handlePublish(sid domain.SessionID, conn *WsSignalConn, f protocol.RelayFrame) {
	if !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("publish rate limited")
		ctl.sendError(conn, f.ID, protocol.ErrCodeRateLimited)
		return
	}
	name, err := domain.NewRoomName(string(f.Room))
	if err != nil {
		ctl.sendError(conn, f.ID, protocol.ErrCodeBadRoom)
		return
	}
	data, err := json.Marshal(protocol.RelayFrame{
		Type:    protocol.FrameMessage,
		Room:    name,
		Payload: f.Payload,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("publish marshal")
		return
	}
	n := ctl.Orch.Publish(name, data)
	log.Debug().Str("module", "signal").Str("sid", string(sid)).Str("room", string(name)).Int("receivers", n).Msg("publish")
}

func (ctl *SignalWSController) handleNumSub(conn *WsSignalConn, f protocol.RelayFrame) {
	count := 0
	if name, err := domain.NewRoomName(string(f.Room)); err == nil {
		count = ctl.Orch.Count(name)
	}
	ctl.sendJSON(conn, protocol.RelayFrame{
		Type:  protocol.FrameNumSub,
		ID:    f.ID,
		Room:  f.Room,
		Count: count,
	})
}
