package core

import (
	"sync"

	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	room  *domain.Room
	mu    sync.RWMutex
	bySID map[domain.SessionID]MemberSession
}

func NewRoomService(room *domain.Room) RoomService {
	return &roomImpl{
		room:  room,
		bySID: make(map[domain.SessionID]MemberSession),
	}
}

func (r *roomImpl) Room() *domain.Room { return r.room }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(sid domain.SessionID, ms MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySID[sid] = ms
	log.Info().Str("module", "core.room").Str("room", string(r.room.Name)).Str("sid", string(sid)).Int("members", len(r.bySID)).Msg("member added")
}

func (r *roomImpl) RemoveMember(sid domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bySID[sid]; !ok {
		return
	}
	delete(r.bySID, sid)
	log.Info().Str("module", "core.room").Str("room", string(r.room.Name)).Str("sid", string(sid)).Int("members", len(r.bySID)).Msg("member removed")
}

// Broadcast fans data out to every member, the publisher included.
func (r *roomImpl) Broadcast(data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for _, m := range r.bySID {
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.room.Name)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for _, ms := range r.bySID {
		m := ms.Meta()
		out = append(out, MemberDTO{ID: m.ID, Remote: m.Remote})
	}
	return out
}
