package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
)

var ErrClosed = errors.New("fake transport closed")

type Published struct {
	Room    domain.RoomName
	Payload []byte
}

// Transport is an in-memory core.Transport fake. Events pushed with Deliver
// come out of the subscription in order.
type Transport struct {
	mu sync.Mutex

	Count        int
	CountErr     error
	PublishErr   error
	Published    []Published
	Subscribed   []domain.RoomName
	Unsubscribed []domain.RoomName

	events chan core.Event
	done   chan struct{}
	once   sync.Once
}

func NewTransport(count int) *Transport {
	return &Transport{
		Count:  count,
		events: make(chan core.Event, 64),
		done:   make(chan struct{}),
	}
}

func (t *Transport) Publish(_ context.Context, room domain.RoomName, payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.PublishErr != nil {
		return t.PublishErr
	}
	t.Published = append(t.Published, Published{Room: room, Payload: append([]byte(nil), payload...)})
	return nil
}

// Subscribe queues the subscribe confirmation ahead of any delivered event.
func (t *Transport) Subscribe(_ context.Context, room domain.RoomName) (core.Subscription, error) {
	t.mu.Lock()
	t.Subscribed = append(t.Subscribed, room)
	t.mu.Unlock()
	t.events <- core.Event{Type: core.EventSubscribe, Room: room}
	return &subscription{t: t}, nil
}

func (t *Transport) Unsubscribe(_ context.Context, room domain.RoomName) error {
	t.mu.Lock()
	t.Unsubscribed = append(t.Unsubscribed, room)
	t.mu.Unlock()
	t.once.Do(func() { close(t.done) })
	return nil
}

func (t *Transport) CountSubscribers(_ context.Context, _ domain.RoomName) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Count, t.CountErr
}

func (t *Transport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}

// Deliver pushes a message event onto the subscription.
func (t *Transport) Deliver(room domain.RoomName, payload []byte) {
	t.events <- core.Event{Type: core.EventMessage, Room: room, Payload: payload}
}

// PublishedPayloads returns a copy of every payload published so far.
func (t *Transport) PublishedPayloads() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, 0, len(t.Published))
	for _, p := range t.Published {
		out = append(out, p.Payload)
	}
	return out
}

type subscription struct {
	t *Transport
}

func (s *subscription) Next(ctx context.Context) (core.Event, error) {
	select {
	case ev := <-s.t.events:
		return ev, nil
	case <-s.t.done:
		return core.Event{}, ErrClosed
	case <-ctx.Done():
		return core.Event{}, ctx.Err()
	}
}
