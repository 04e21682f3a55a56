// Package session runs one participant in a room: it decides the role at
// join, mirrors or drives playback over the room channel, and executes
// operator commands.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/vlcsync/internal/command"
	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/dkeye/vlcsync/internal/protocol"
	"github.com/dkeye/vlcsync/internal/reconcile"
	"github.com/rs/zerolog/log"
)

const leaveTimeout = 5 * time.Second

// ErrQuit is returned by the operator loop when the operator asked to quit.
var ErrQuit = errors.New("quit requested")

type Options struct {
	Room           domain.RoomName
	Transport      core.Transport
	Player         core.Player
	DriftThreshold float64
	// Out receives one-line operator feedback. Defaults to io.Discard.
	Out io.Writer
}

// Session is shared by the receive loop and the operator loop. Role is
// written once at join and only read afterwards; the transport and player
// handles serialise their own calls.
type Session struct {
	room      domain.RoomName
	role      atomic.Int32
	alive     atomic.Bool
	transport core.Transport
	player    core.Player
	engine    *reconcile.Engine
	commands  command.Table

	outMu sync.Mutex
	out   io.Writer

	closeOnce sync.Once
}

func New(opts Options) *Session {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	s := &Session{
		room:      opts.Room,
		transport: opts.Transport,
		player:    opts.Player,
		engine:    reconcile.New(opts.Player, opts.DriftThreshold),
		commands:  command.Build(command.Names),
		out:       out,
	}
	s.alive.Store(true)
	return s
}

func (s *Session) Room() domain.RoomName { return s.room }

func (s *Session) Role() domain.Role { return domain.Role(s.role.Load()) }

func (s *Session) IsMaster() bool { return s.Role() == domain.RoleMaster }

func (s *Session) Alive() bool { return s.alive.Load() }

func (s *Session) setRole(r domain.Role) error {
	if !s.role.CompareAndSwap(int32(domain.RoleUnknown), int32(r)) {
		return fmt.Errorf("%w: %s", domain.ErrRoleAlreadySet, s.Role())
	}
	return nil
}

// Run joins the room and runs the receive loop and the operator loop until
// one of them ends or ctx is cancelled, then leaves the room.
func (s *Session) Run(ctx context.Context, in io.Reader) error {
	sub, err := s.Join(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 2)
	go func() { done <- s.ReceiveLoop(ctx, sub) }()
	go func() { done <- s.OperatorLoop(ctx, in) }()

	var runErr error
	select {
	case <-ctx.Done():
		s.say("Quitting...")
	case runErr = <-done:
	}

	closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), leaveTimeout)
	defer closeCancel()
	s.Close(closeCtx)
	if errors.Is(runErr, ErrQuit) {
		return nil
	}
	return runErr
}

// Close marks the session dead and leaves the room. Safe to call twice.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		s.alive.Store(false)
		if err := s.transport.Unsubscribe(ctx, s.room); err != nil {
			log.Warn().Err(err).Str("module", "session").Str("room", string(s.room)).Msg("unsubscribe failed")
		}
		log.Info().Str("module", "session").Str("room", string(s.room)).Str("role", s.Role().String()).Msg("left room")
	})
}

func (s *Session) say(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format+"\n", args...)
}

func (s *Session) publish(ctx context.Context, msg protocol.Message) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	if err := s.transport.Publish(ctx, s.room, b); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (s *Session) broadcastSnapshot(ctx context.Context, force bool) error {
	snap, err := s.engine.BuildSnapshot(ctx, force)
	if err != nil {
		return err
	}
	log.Debug().Str("module", "session").Float64("position", snap.Position).Bool("playing", snap.Playing).Bool("force", force).Msg("sending snapshot")
	return s.publish(ctx, snap)
}
