package session

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dkeye/vlcsync/internal/command"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/dkeye/vlcsync/internal/protocol"
)

const MasterHelp = `Commands:
  play     - start/unpause the video
  pause    - pause the video
  allsync  - force all the clients to sync
  quit     - quit the session
  status   - show the session status
  load     - load file at path
  help     - show this list`

const FollowerHelp = `Commands:
  quit - quit the session
  sync - resync the clients video
  help - show this list`

// Execute runs one resolved action. Role-gated actions invoked by the wrong
// role are reported and touch neither the player nor the channel.
func (s *Session) Execute(ctx context.Context, action command.Action, line command.Line) error {
	switch action {
	case command.ActionHelp:
		return s.help()
	case command.ActionQuit:
		return ErrQuit
	case command.ActionSync:
		if s.IsMaster() {
			s.say("You are the master, there is no one to sync from")
			return nil
		}
		return s.requestSync(ctx)
	}

	if !s.IsMaster() {
		s.say("Only the master can %s", action)
		return nil
	}

	switch action {
	case command.ActionPlay:
		return s.play(ctx)
	case command.ActionPause:
		return s.pause(ctx)
	case command.ActionAllSync:
		return s.allSync(ctx)
	case command.ActionStatus:
		return s.status(ctx)
	case command.ActionLoad:
		return s.load(ctx, line)
	default:
		return fmt.Errorf("%w: %d", domain.ErrUnknownCommand, action)
	}
}

func (s *Session) help() error {
	if s.IsMaster() {
		s.say(MasterHelp)
	} else {
		s.say(FollowerHelp)
	}
	return nil
}

// play and pause change the local player before telling the room.
func (s *Session) play(ctx context.Context) error {
	s.say("Starting playback")
	if err := s.player.Play(ctx); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	if err := s.broadcastSnapshot(ctx, false); err != nil {
		return err
	}
	return s.publish(ctx, protocol.NewControl(protocol.TagPlay))
}

func (s *Session) pause(ctx context.Context) error {
	s.say("Pausing playback")
	if err := s.player.Pause(ctx); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	if err := s.broadcastSnapshot(ctx, false); err != nil {
		return err
	}
	return s.publish(ctx, protocol.NewControl(protocol.TagPause))
}

func (s *Session) allSync(ctx context.Context) error {
	s.say("Syncing all clients")
	return s.broadcastSnapshot(ctx, true)
}

func (s *Session) requestSync(ctx context.Context) error {
	s.say("Requesting sync from master")
	return s.publish(ctx, protocol.NewControl(protocol.TagSync))
}

func (s *Session) status(ctx context.Context) error {
	members, err := s.transport.CountSubscribers(ctx, s.room)
	if err != nil {
		return fmt.Errorf("count subscribers: %w", err)
	}
	snap, err := s.engine.BuildSnapshot(ctx, false)
	if err != nil {
		return err
	}
	s.say("Room:     %s\nMembers:  %d\nPlaying:  %t\nPosition: %s / %s",
		s.room, members, snap.Playing, formatClock(snap.Position), formatClock(snap.Length))
	return nil
}

func (s *Session) load(ctx context.Context, line command.Line) error {
	path := strings.TrimSpace(line.Rest)
	if path == "" {
		return fmt.Errorf("%w: you must give a file to load", domain.ErrInvalidArgument)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: no file at path `%s`", domain.ErrInvalidArgument, path)
	}

	s.say("Adding file...")
	if err := s.player.AddFile(ctx, path); err != nil {
		return fmt.Errorf("add file: %w", err)
	}
	return s.broadcastSnapshot(ctx, false)
}

func formatClock(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total/60%60, total%60)
}
