package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	router "github.com/dkeye/vlcsync/internal/adapters/http"
	"github.com/dkeye/vlcsync/internal/app"
	"github.com/dkeye/vlcsync/internal/config"
	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startRelay(t *testing.T, password string) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{
		Mode:          "release",
		Password:      password,
		ReadLimit:     65536,
		PingPeriod:    time.Minute,
		SendBuffer:    16,
		PublishLimit:  100,
		PublishWindow: time.Second,
	}
	orch := &app.Orchestrator{Registry: app.NewRegistry(), Rooms: app.NewRoomManager(), Policy: app.KickPolicy{}}
	srv := httptest.NewServer(router.SetupRouter(ctx, cfg, orch))
	t.Cleanup(srv.Close)
	return srv.URL
}

func dial(t *testing.T, url, password string) *Transport {
	t.Helper()
	tr, err := Dial(context.Background(), Options{Host: url, Password: password, Attempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func next(t *testing.T, sub core.Subscription) core.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := sub.Next(ctx)
	require.NoError(t, err)
	return ev
}

func TestSubscribeAndCount(t *testing.T) {
	url := startRelay(t, "")
	a, b := dial(t, url, ""), dial(t, url, "")
	ctx := context.Background()

	n, err := a.CountSubscribers(ctx, "movieroom")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	subA, err := a.Subscribe(ctx, "movieroom")
	require.NoError(t, err)
	ev := next(t, subA)
	assert.Equal(t, core.EventSubscribe, ev.Type)
	assert.Equal(t, domain.RoomName("movieroom"), ev.Room)

	n, err = b.CountSubscribers(ctx, "movieroom")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = b.Subscribe(ctx, "movieroom")
	require.NoError(t, err)
	n, err = a.CountSubscribers(ctx, "movieroom")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	url := startRelay(t, "")
	a, b := dial(t, url, ""), dial(t, url, "")
	ctx := context.Background()

	subA, err := a.Subscribe(ctx, "movieroom")
	require.NoError(t, err)
	next(t, subA)
	subB, err := b.Subscribe(ctx, "movieroom")
	require.NoError(t, err)
	next(t, subB)

	payload := []byte(`{"tag":"update","position":12.5,"length":100,"playing":true,"forceSync":false}`)
	require.NoError(t, b.Publish(ctx, "movieroom", payload))

	for _, sub := range []core.Subscription{subA, subB} {
		ev := next(t, sub)
		assert.Equal(t, core.EventMessage, ev.Type)
		assert.JSONEq(t, string(payload), string(ev.Payload))
	}
}

func TestUnsubscribeEndsStream(t *testing.T) {
	url := startRelay(t, "")
	a := dial(t, url, "")
	ctx := context.Background()

	sub, err := a.Subscribe(ctx, "movieroom")
	require.NoError(t, err)
	next(t, sub)

	require.NoError(t, a.Unsubscribe(ctx, "movieroom"))
	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, domain.ErrNotSubscribed)

	n, err := a.CountSubscribers(ctx, "movieroom")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.ErrorIs(t, a.Unsubscribe(ctx, "movieroom"), domain.ErrNotSubscribed)
}

func TestCloseEndsStream(t *testing.T) {
	url := startRelay(t, "")
	a := dial(t, url, "")
	ctx := context.Background()

	sub, err := a.Subscribe(ctx, "movieroom")
	require.NoError(t, err)
	next(t, sub)

	require.NoError(t, a.Close())
	_, err = sub.Next(ctx)
	assert.Error(t, err)
	assert.ErrorIs(t, a.Publish(ctx, "movieroom", []byte("{}")), domain.ErrConnection)
}

func TestPasswordRequired(t *testing.T) {
	url := startRelay(t, "hunter2")

	_, err := Dial(context.Background(), Options{Host: url, Attempts: 1})
	assert.ErrorIs(t, err, domain.ErrConnection)

	tr := dial(t, url, "hunter2")
	require.NoError(t, tr.Ping(context.Background()))
}

func TestDialRequiresPong(t *testing.T) {
	upgrader := websocket.Upgrader{}
	silent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(silent.Close)

	_, err := Dial(context.Background(), Options{Host: silent.URL, Attempts: 1, PingTimeout: 100 * time.Millisecond})
	assert.ErrorIs(t, err, domain.ErrConnection)
}

func TestDialUnreachable(t *testing.T) {
	_, err := Dial(context.Background(), Options{Host: "127.0.0.1:1", Attempts: 2, RetryDelay: time.Millisecond})
	assert.ErrorIs(t, err, domain.ErrConnection)
}

func TestWsURL(t *testing.T) {
	cases := map[string]string{
		"localhost:6380":             "ws://localhost:6380/api/ws",
		"http://127.0.0.1:9000":      "ws://127.0.0.1:9000/api/ws",
		"https://relay.example.org":  "wss://relay.example.org/api/ws",
		"ws://relay.example.org/sub": "ws://relay.example.org/sub",
	}
	for in, want := range cases {
		got, err := wsURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := wsURL("")
	assert.Error(t, err)
}

func TestSubscribeRefusedReturnsError(t *testing.T) {
	url := startRelay(t, "")
	a := dial(t, url, "")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := a.Subscribe(ctx, "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConnection)
	assert.ErrorContains(t, err, "bad_room")

	// The refused room left no stream behind.
	assert.ErrorIs(t, a.Unsubscribe(ctx, "   "), domain.ErrNotSubscribed)
}
