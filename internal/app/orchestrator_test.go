package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("send buffer full")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func newOrch(policy Policy) *Orchestrator {
	return &Orchestrator{Registry: NewRegistry(), Rooms: NewRoomManager(), Policy: policy}
}

func bind(o *Orchestrator, sid domain.SessionID, conn *fakeConn) (cancelled *bool) {
	flag := false
	sess := core.NewMemberSession(domain.NewMember(sid, "127.0.0.1:5000"), conn)
	o.Registry.BindSignal(sid, sess, func() { flag = true })
	return &flag
}

func TestSubscribeCountsMembers(t *testing.T) {
	o := newOrch(KickPolicy{})
	bind(o, "a", &fakeConn{})
	bind(o, "b", &fakeConn{})

	assert.Equal(t, 0, o.Count("movieroom"))
	require.True(t, o.Subscribe("a", "movieroom"))
	require.True(t, o.Subscribe("b", "movieroom"))
	assert.Equal(t, 2, o.Count("movieroom"))

	// Subscribing twice to the same room is a no-op.
	require.True(t, o.Subscribe("a", "movieroom"))
	assert.Equal(t, 2, o.Count("movieroom"))
}

func TestSubscribeUnknownSession(t *testing.T) {
	o := newOrch(KickPolicy{})
	assert.False(t, o.Subscribe("ghost", "movieroom"))
	assert.Equal(t, 0, o.Count("movieroom"))
}

func TestSubscribeMovesBetweenRooms(t *testing.T) {
	o := newOrch(KickPolicy{})
	bind(o, "a", &fakeConn{})
	bind(o, "b", &fakeConn{})
	o.Subscribe("a", "one")
	o.Subscribe("b", "one")

	o.Subscribe("a", "two")

	assert.Equal(t, 1, o.Count("one"))
	assert.Equal(t, 1, o.Count("two"))
	room, _, ok := o.Registry.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, domain.RoomName("two"), room)
}

func TestEmptyRoomIsDropped(t *testing.T) {
	o := newOrch(KickPolicy{})
	bind(o, "a", &fakeConn{})
	o.Subscribe("a", "movieroom")

	left, ok := o.Unsubscribe("a")
	require.True(t, ok)
	assert.Equal(t, domain.RoomName("movieroom"), left)

	_, exists := o.Rooms.Get("movieroom")
	assert.False(t, exists)
	assert.Empty(t, o.Rooms.List())

	_, ok = o.Unsubscribe("a")
	assert.False(t, ok)
}

func TestPublishIncludesPublisher(t *testing.T) {
	o := newOrch(KickPolicy{})
	a, b, outsider := &fakeConn{}, &fakeConn{}, &fakeConn{}
	bind(o, "a", a)
	bind(o, "b", b)
	bind(o, "c", outsider)
	o.Subscribe("a", "movieroom")
	o.Subscribe("b", "movieroom")

	n := o.Publish("movieroom", core.Frame(`{"tag":"pause"}`))

	assert.Equal(t, 2, n)
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 1, b.count())
	assert.Equal(t, 0, outsider.count())
}

func TestPublishToUnknownRoom(t *testing.T) {
	o := newOrch(KickPolicy{})
	assert.Equal(t, 0, o.Publish("nobody-here", core.Frame("x")))
}

func TestKickPolicyDisconnectsSlowSubscriber(t *testing.T) {
	o := newOrch(KickPolicy{})
	fast, slow := &fakeConn{}, &fakeConn{full: true}
	bind(o, "fast", fast)
	cancelled := bind(o, "slow", slow)
	o.Subscribe("fast", "movieroom")
	o.Subscribe("slow", "movieroom")

	n := o.Publish("movieroom", core.Frame("x"))

	assert.Equal(t, 1, n)
	assert.True(t, *cancelled)
	assert.Equal(t, 1, o.Count("movieroom"))
}

func TestDropPolicyKeepsSlowSubscriber(t *testing.T) {
	o := newOrch(DropPolicy{})
	cancelled := bind(o, "slow", &fakeConn{full: true})
	o.Subscribe("slow", "movieroom")

	o.Publish("movieroom", core.Frame("x"))

	assert.False(t, *cancelled)
	assert.Equal(t, 1, o.Count("movieroom"))
}

func TestOnDisconnect(t *testing.T) {
	o := newOrch(KickPolicy{})
	bind(o, "a", &fakeConn{})
	bind(o, "b", &fakeConn{})
	o.Subscribe("a", "movieroom")
	o.Subscribe("b", "movieroom")

	o.OnDisconnect("a")

	assert.Equal(t, 1, o.Count("movieroom"))
	_, ok := o.Registry.GetSession("a")
	assert.False(t, ok)
}

func TestEvictRoom(t *testing.T) {
	o := newOrch(KickPolicy{})
	ca := bind(o, "a", &fakeConn{})
	cb := bind(o, "b", &fakeConn{})
	o.Subscribe("a", "movieroom")
	o.Subscribe("b", "movieroom")

	o.EvictRoom("movieroom")

	assert.True(t, *ca)
	assert.True(t, *cb)
	assert.Equal(t, 0, o.Count("movieroom"))
}

func TestRoomListSorted(t *testing.T) {
	o := newOrch(KickPolicy{})
	for _, sid := range []domain.SessionID{"a", "b", "c"} {
		bind(o, sid, &fakeConn{})
	}
	o.Subscribe("a", "zeta")
	o.Subscribe("b", "alpha")
	o.Subscribe("c", "alpha")

	assert.Equal(t, []core.RoomInfo{
		{Name: "alpha", MemberCount: 2},
		{Name: "zeta", MemberCount: 1},
	}, o.Rooms.List())
}

func TestRegistryCancelUnknown(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Cancel("nope"))

	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.BindSignal("a", core.NewMemberSession(domain.NewMember("a", ""), &fakeConn{}), cancel)
	assert.True(t, r.Cancel("a"))
}
