package signal

import "github.com/dkeye/vlcsync/internal/protocol"

func (ctl *SignalWSController) handlePing(conn *WsSignalConn, f protocol.RelayFrame) {
	ctl.sendJSON(conn, protocol.RelayFrame{Type: protocol.FramePong, ID: f.ID})
}
