package app

import (
	"sync"

	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator applies subscribe, unsubscribe and publish requests of relay
// connections to the room registry. A connection is subscribed to at most
// one room; a room with no subscribers left is dropped.
type Orchestrator struct {
	Registry *Registry
	Rooms    core.RoomManager
	Policy   Policy

	// membership guards room membership changes so an emptied room is not
	// dropped while someone joins it.
	membership sync.Mutex
}

// Subscribe puts sid into roomName, leaving its previous room if any.
func (o *Orchestrator) Subscribe(sid domain.SessionID, roomName domain.RoomName) bool {
	o.membership.Lock()
	defer o.membership.Unlock()

	session, ok := o.Registry.GetSession(sid)
	if !ok {
		return false
	}
	if from, _, ok := o.Registry.RoomOf(sid); ok {
		if from == roomName {
			return true
		}
		o.leaveLocked(sid, from)
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("from", string(from)).Str("to", string(roomName)).Msg("moving subscriber")
	}
	room := o.Rooms.GetOrCreate(roomName)
	room.AddMember(sid, session)
	return o.Registry.UpdateRoom(sid, roomName)
}

// Unsubscribe removes sid from its room and reports which room that was.
func (o *Orchestrator) Unsubscribe(sid domain.SessionID) (domain.RoomName, bool) {
	o.membership.Lock()
	defer o.membership.Unlock()

	roomName, _, ok := o.Registry.RoomOf(sid)
	if !ok {
		return "", false
	}
	o.leaveLocked(sid, roomName)
	return roomName, true
}

// Publish fans frame out to every subscriber of roomName and returns how many
// received it. Unknown rooms have no receivers.
func (o *Orchestrator) Publish(roomName domain.RoomName, frame core.Frame) int {
	room, ok := o.Rooms.Get(roomName)
	if !ok {
		return 0
	}
	res := room.Broadcast(frame)
	if o.Policy == nil || len(res.Dropped) == 0 {
		return res.SendTo
	}
	for _, slow := range res.Dropped {
		action := o.Policy.OnBackPressure(room, slow)
		log.Warn().Str("module", "app.orch").Str("room", string(roomName)).Str("sid", string(slow.Meta().ID)).Stringer("action", action).Msg("subscriber send buffer full")
		if action == KickMember {
			o.Kick(slow.Meta().ID)
		}
	}
	return res.SendTo
}

// Count is the number of subscribers of roomName.
func (o *Orchestrator) Count(roomName domain.RoomName) int {
	room, ok := o.Rooms.Get(roomName)
	if !ok {
		return 0
	}
	return room.MemberCount()
}

// Kick unsubscribes sid and cancels its connection.
func (o *Orchestrator) Kick(sid domain.SessionID) {
	o.Unsubscribe(sid)
	o.Registry.Cancel(sid)
}

func (o *Orchestrator) OnDisconnect(sid domain.SessionID) {
	o.Unsubscribe(sid)
	o.Registry.Unbind(sid)
}

func (o *Orchestrator) EvictRoom(name domain.RoomName) {
	for _, snap := range o.Registry.MembersOfRoom(name) {
		o.Kick(snap.SID)
	}
	o.Rooms.StopRoom(name)
}

func (o *Orchestrator) leaveLocked(sid domain.SessionID, roomName domain.RoomName) {
	o.Registry.RemoveRoom(sid)
	room, ok := o.Rooms.Get(roomName)
	if !ok {
		return
	}
	room.RemoveMember(sid)
	if room.MemberCount() == 0 {
		o.Rooms.StopRoom(roomName)
		log.Debug().Str("module", "app.orch").Str("room", string(roomName)).Msg("dropped empty room")
	}
}
