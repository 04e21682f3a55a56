// Package p2p is a serverless core.Transport: peers on the LAN find each
// other over mDNS and share rooms as GossipSub topics.
package p2p

import (
	"context"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
)

const (
	DefaultMdnsTag = "vlcsync"
	topicPrefix    = "vlcsync/"
	connectTimeout = 10 * time.Second
)

func init() {
	logging.SetLogLevel("swarm2", "error")
	logging.SetLogLevel("pubsub", "error")
	logging.SetLogLevel("mdns", "error")
}

type Options struct {
	ListenHost string
	ListenPort int
	MdnsTag    string
	// Settle is how long after start CountSubscribers waits for discovery
	// and subscription gossip before trusting the peer list.
	Settle time.Duration
	// NoDiscovery turns mDNS off; peers must then be connected explicitly.
	NoDiscovery bool
}

type Transport struct {
	host    host.Host
	mdns    mdns.Service
	ps      *pubsub.PubSub
	settled time.Time

	mu     sync.Mutex
	topics map[domain.RoomName]*pubsub.Topic
	subs   map[domain.RoomName]*subscription
}

var _ core.Transport = (*Transport)(nil)

type mdnsNotifee struct {
	h host.Host
}

func (n *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == n.h.ID() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := n.h.Connect(ctx, pi); err != nil {
		log.Debug().Err(err).Str("module", "adapters.p2p").Str("peer", pi.ID.String()).Msg("connect to discovered peer")
		return
	}
	log.Info().Str("module", "adapters.p2p").Str("peer", pi.ID.String()).Msg("peer discovered")
}

// New starts a libp2p host, LAN discovery and GossipSub.
func New(ctx context.Context, opts Options) (*Transport, error) {
	if opts.ListenHost == "" {
		opts.ListenHost = "0.0.0.0"
	}
	if opts.MdnsTag == "" {
		opts.MdnsTag = DefaultMdnsTag
	}

	h, err := libp2p.New(
		libp2p.ListenAddrStrings(fmt.Sprintf("/ip4/%s/tcp/%d", opts.ListenHost, opts.ListenPort)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: libp2p host: %v", domain.ErrConnection, err)
	}

	t := &Transport{
		host:    h,
		settled: time.Now().Add(opts.Settle),
		topics:  make(map[domain.RoomName]*pubsub.Topic),
		subs:    make(map[domain.RoomName]*subscription),
	}

	if !opts.NoDiscovery {
		t.mdns = mdns.NewMdnsService(h, opts.MdnsTag, &mdnsNotifee{h: h})
		if err := t.mdns.Start(); err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("%w: mdns: %v", domain.ErrConnection, err)
		}
	}

	t.ps, err = pubsub.NewGossipSub(ctx, h)
	if err != nil {
		_ = t.Close()
		return nil, fmt.Errorf("%w: gossipsub: %v", domain.ErrConnection, err)
	}

	log.Info().Str("module", "adapters.p2p").Str("peer", h.ID().String()).Strs("addrs", addrStrings(h)).Msg("p2p transport started")
	return t, nil
}

// AddrInfo is how other peers can reach this one.
func (t *Transport) AddrInfo() peer.AddrInfo {
	return peer.AddrInfo{ID: t.host.ID(), Addrs: t.host.Addrs()}
}

// Connect dials a known peer directly.
func (t *Transport) Connect(ctx context.Context, pi peer.AddrInfo) error {
	if err := t.host.Connect(ctx, pi); err != nil {
		return fmt.Errorf("%w: peer %s: %v", domain.ErrConnection, pi.ID, err)
	}
	return nil
}

func (t *Transport) Publish(ctx context.Context, room domain.RoomName, payload []byte) error {
	topic, err := t.join(room)
	if err != nil {
		return err
	}
	if err := topic.Publish(ctx, payload); err != nil {
		return fmt.Errorf("%w: publish to %s: %v", domain.ErrConnection, room, err)
	}
	return nil
}

// Subscribe yields a synthetic subscribe event first, then room messages.
func (t *Transport) Subscribe(ctx context.Context, room domain.RoomName) (core.Subscription, error) {
	topic, err := t.join(room)
	if err != nil {
		return nil, err
	}
	ps, err := topic.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe to %s: %v", domain.ErrConnection, room, err)
	}

	sub := newSubscription(room, ps)
	t.mu.Lock()
	if old, ok := t.subs[room]; ok {
		old.cancel()
	}
	t.subs[room] = sub
	t.mu.Unlock()

	sub.push(core.Event{Type: core.EventSubscribe, Room: room})
	go sub.pump()
	return sub, nil
}

func (t *Transport) Unsubscribe(_ context.Context, room domain.RoomName) error {
	t.mu.Lock()
	sub, ok := t.subs[room]
	delete(t.subs, room)
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotSubscribed, room)
	}
	sub.cancel()
	return nil
}

// CountSubscribers counts the other peers known to be subscribed to the
// room, after discovery has had Settle to run.
func (t *Transport) CountSubscribers(ctx context.Context, room domain.RoomName) (int, error) {
	if wait := time.Until(t.settled); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	topic, err := t.join(room)
	if err != nil {
		return 0, err
	}
	n := len(topic.ListPeers())
	t.mu.Lock()
	if _, self := t.subs[room]; self {
		n++
	}
	t.mu.Unlock()
	return n, nil
}

func (t *Transport) Close() error {
	t.mu.Lock()
	for room, sub := range t.subs {
		sub.cancel()
		delete(t.subs, room)
	}
	for room, topic := range t.topics {
		_ = topic.Close()
		delete(t.topics, room)
	}
	t.mu.Unlock()

	if t.mdns != nil {
		_ = t.mdns.Close()
	}
	return t.host.Close()
}

func (t *Transport) join(room domain.RoomName) (*pubsub.Topic, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if topic, ok := t.topics[room]; ok {
		return topic, nil
	}
	topic, err := t.ps.Join(topicPrefix + string(room))
	if err != nil {
		return nil, fmt.Errorf("%w: join %s: %v", domain.ErrConnection, room, err)
	}
	t.topics[room] = topic
	return topic, nil
}

func addrStrings(h host.Host) []string {
	out := make([]string, 0, len(h.Addrs()))
	for _, a := range h.Addrs() {
		out = append(out, a.String())
	}
	return out
}
