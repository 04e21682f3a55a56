// Package relay is the participant side of the relay server: a core.Transport
// over one WebSocket connection.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/dkeye/vlcsync/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeTimeout = 10 * time.Second
	eventBuffer  = 256
)

var errClosed = errors.New("relay connection closed")

type Options struct {
	// Host is host:port of the relay, or a full ws:// or http:// URL.
	Host     string
	Password string
	// Attempts bounds the dial retries.
	Attempts   int
	RetryDelay time.Duration
	// PingTimeout bounds the liveness ping sent right after connecting.
	PingTimeout time.Duration
}

// Transport implements core.Transport on top of the relay protocol.
type Transport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan protocol.RelayFrame
	subs    map[domain.RoomName]*subscription

	done      chan struct{}
	closeOnce sync.Once
}

var _ core.Transport = (*Transport)(nil)

// Dial connects to the relay, retrying a bounded number of times.
func Dial(ctx context.Context, opts Options) (*Transport, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 5 * time.Second
	}
	target, err := wsURL(opts.Host)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	header := http.Header{}
	if opts.Password != "" {
		header.Set("Authorization", "Bearer "+opts.Password)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.RetryDelay
	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return nil, backoff.Permanent(errors.New("relay rejected the password"))
			}
			log.Warn().Err(err).Str("module", "adapters.relay").Str("url", target).Msg("relay dial failed")
			return nil, err
		}
		return conn, nil
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(uint(opts.Attempts)))
	if err != nil {
		return nil, fmt.Errorf("%w: relay at %s: %v", domain.ErrConnection, target, err)
	}

	t := &Transport{
		conn:    conn,
		pending: make(map[string]chan protocol.RelayFrame),
		subs:    make(map[domain.RoomName]*subscription),
		done:    make(chan struct{}),
	}
	go t.readPump()

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()
	if err := t.Ping(pingCtx); err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("%w: relay at %s did not answer ping: %v", domain.ErrConnection, target, err)
	}
	log.Info().Str("module", "adapters.relay").Str("url", target).Msg("connected to relay")
	return t, nil
}

func wsURL(host string) (string, error) {
	if host == "" {
		return "", errors.New("empty relay host")
	}
	if !strings.Contains(host, "://") {
		host = "ws://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/api/ws"
	}
	return u.String(), nil
}

func (t *Transport) Publish(ctx context.Context, room domain.RoomName, payload []byte) error {
	return t.write(ctx, protocol.RelayFrame{
		Type:    protocol.FramePublish,
		Room:    room,
		Payload: string(payload),
	})
}

// Subscribe registers the room's event stream before asking the relay, so
// the "subscribed" confirmation is always its first event. It returns once
// the relay has confirmed or refused the subscription.
func (t *Transport) Subscribe(ctx context.Context, room domain.RoomName) (core.Subscription, error) {
	sub := newSubscription(room)
	t.mu.Lock()
	if old, ok := t.subs[room]; ok {
		old.close()
	}
	t.subs[room] = sub
	t.mu.Unlock()

	if _, err := t.request(ctx, protocol.RelayFrame{Type: protocol.FrameSubscribe, Room: room}); err != nil {
		t.dropSub(room, sub)
		return nil, err
	}
	return sub, nil
}

// Unsubscribe ends the room's event stream and tells the relay.
func (t *Transport) Unsubscribe(ctx context.Context, room domain.RoomName) error {
	t.mu.Lock()
	sub, ok := t.subs[room]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotSubscribed, room)
	}
	t.dropSub(room, sub)

	_, err := t.request(ctx, protocol.RelayFrame{Type: protocol.FrameUnsubscribe, Room: room})
	return err
}

func (t *Transport) CountSubscribers(ctx context.Context, room domain.RoomName) (int, error) {
	reply, err := t.request(ctx, protocol.RelayFrame{Type: protocol.FrameNumSub, Room: room})
	if err != nil {
		return 0, err
	}
	return reply.Count, nil
}

// Ping checks the relay round trip. Dial pings once before returning.
func (t *Transport) Ping(ctx context.Context) error {
	_, err := t.request(ctx, protocol.RelayFrame{Type: protocol.FramePing})
	return err
}

func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		t.mu.Lock()
		for _, sub := range t.subs {
			sub.close()
		}
		t.mu.Unlock()
		err = t.conn.Close()
		<-t.done
	})
	return err
}

func (t *Transport) request(ctx context.Context, f protocol.RelayFrame) (protocol.RelayFrame, error) {
	f.ID = uuid.NewString()
	ch := make(chan protocol.RelayFrame, 1)
	t.mu.Lock()
	t.pending[f.ID] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, f.ID)
		t.mu.Unlock()
	}()

	if err := t.write(ctx, f); err != nil {
		return protocol.RelayFrame{}, err
	}
	select {
	case reply := <-ch:
		if reply.Type == protocol.FrameError {
			return reply, fmt.Errorf("%w: relay refused %s: %s", domain.ErrConnection, f.Type, reply.Error)
		}
		return reply, nil
	case <-t.done:
		return protocol.RelayFrame{}, fmt.Errorf("%w: %v", domain.ErrConnection, errClosed)
	case <-ctx.Done():
		return protocol.RelayFrame{}, ctx.Err()
	}
}

func (t *Transport) write(ctx context.Context, f protocol.RelayFrame) error {
	select {
	case <-t.done:
		return fmt.Errorf("%w: %v", domain.ErrConnection, errClosed)
	default:
	}
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrConnection, f.Type, err)
	}
	return nil
}

func (t *Transport) readPump() {
	defer func() {
		t.mu.Lock()
		for room, sub := range t.subs {
			sub.close()
			delete(t.subs, room)
		}
		t.mu.Unlock()
		close(t.done)
	}()

	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "adapters.relay").Msg("relay connection lost")
			}
			return
		}
		var f protocol.RelayFrame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Err(err).Str("module", "adapters.relay").Msg("bad frame from relay")
			continue
		}
		t.dispatch(f)
	}
}

// dispatch feeds room events to their subscription first, then hands any
// id-carrying frame to the caller waiting on that id.
func (t *Transport) dispatch(f protocol.RelayFrame) {
	switch f.Type {
	case protocol.FrameSubscribed:
		t.deliver(f.Room, core.Event{Type: core.EventSubscribe, Room: f.Room})
	case protocol.FrameMessage:
		t.deliver(f.Room, core.Event{Type: core.EventMessage, Room: f.Room, Payload: []byte(f.Payload)})
		return
	}
	if f.ID == "" {
		if f.Type != protocol.FrameSubscribed {
			log.Warn().Str("module", "adapters.relay").Str("type", string(f.Type)).Str("error", f.Error).Msg("unsolicited frame")
		}
		return
	}
	t.mu.Lock()
	ch, ok := t.pending[f.ID]
	t.mu.Unlock()
	if ok {
		select {
		case ch <- f:
		default:
		}
	}
}

func (t *Transport) deliver(room domain.RoomName, ev core.Event) {
	t.mu.Lock()
	sub, ok := t.subs[room]
	t.mu.Unlock()
	if !ok {
		return
	}
	sub.push(ev)
}

func (t *Transport) dropSub(room domain.RoomName, sub *subscription) {
	t.mu.Lock()
	if t.subs[room] == sub {
		delete(t.subs, room)
	}
	t.mu.Unlock()
	sub.close()
}
