// Package reconcile converges a follower's player onto the master's reported
// state and builds the snapshots the master reports.
package reconcile

import (
	"context"
	"fmt"
	"math"

	"github.com/dkeye/vlcsync/internal/core"
	"github.com/dkeye/vlcsync/internal/protocol"
	"github.com/rs/zerolog/log"
)

// DefaultDriftThreshold is the drift in seconds a follower tolerates before
// seeking.
const DefaultDriftThreshold = 1.0

// Engine holds no playback state of its own; every decision is made from a
// fresh query of the player.
type Engine struct {
	player    core.Player
	threshold float64
}

func New(player core.Player, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}
	return &Engine{player: player, threshold: threshold}
}

func (e *Engine) Threshold() float64 { return e.threshold }

// Correction records what Reconcile did to the player.
type Correction struct {
	Seeked bool
	SeekTo float64
	Fix    protocol.Tag // TagPlay, TagPause or empty
}

// NeedsSeek reports whether local drifted from remote by more than threshold.
func NeedsSeek(local, remote, threshold float64) bool {
	return math.Abs(local-remote) > threshold
}

// StateFix returns the transport command that brings localPlaying to
// remotePlaying, or "" when they already agree.
func StateFix(localPlaying, remotePlaying bool) protocol.Tag {
	switch {
	case localPlaying == remotePlaying:
		return ""
	case remotePlaying:
		return protocol.TagPlay
	default:
		return protocol.TagPause
	}
}

// BuildSnapshot packages the player's current position, length and playing
// flag.
func (e *Engine) BuildSnapshot(ctx context.Context, force bool) (protocol.Snapshot, error) {
	pos, err := e.player.QueryPosition(ctx)
	if err != nil {
		return protocol.Snapshot{}, fmt.Errorf("query position: %w", err)
	}
	length, err := e.player.QueryLength(ctx)
	if err != nil {
		return protocol.Snapshot{}, fmt.Errorf("query length: %w", err)
	}
	playing, err := e.player.QueryPlaying(ctx)
	if err != nil {
		return protocol.Snapshot{}, fmt.Errorf("query playing: %w", err)
	}
	return protocol.NewSnapshot(pos, length, playing, force), nil
}

// Reconcile corrects drift first, then play state. The playing flag is
// queried after any seek, never reused from an earlier read.
func (e *Engine) Reconcile(ctx context.Context, snap protocol.Snapshot) (Correction, error) {
	var c Correction

	pos, err := e.player.QueryPosition(ctx)
	if err != nil {
		return c, fmt.Errorf("query position: %w", err)
	}
	if NeedsSeek(pos, snap.Position, e.threshold) {
		log.Info().Str("module", "reconcile").Float64("local", pos).Float64("remote", snap.Position).Msg("offset in times, adjusting playback")
		if err := e.player.Seek(ctx, snap.Position); err != nil {
			return c, fmt.Errorf("seek: %w", err)
		}
		c.Seeked = true
		c.SeekTo = snap.Position
	}

	playing, err := e.player.QueryPlaying(ctx)
	if err != nil {
		return c, fmt.Errorf("query playing: %w", err)
	}
	c.Fix = StateFix(playing, snap.Playing)
	if c.Fix != "" {
		log.Info().Str("module", "reconcile").Bool("local", playing).Bool("remote", snap.Playing).Msg("states are different, adjusting")
		if err := e.apply(ctx, c.Fix); err != nil {
			return c, err
		}
	}

	log.Debug().Str("module", "reconcile").Float64("length", snap.Length).Bool("force", snap.ForceSync).Bool("seeked", c.Seeked).Str("fix", string(c.Fix)).Msg("snapshot reconciled")
	return c, nil
}

// HandleControl applies a follower-side control message. Sync requests are
// for the master and do nothing here.
func (e *Engine) HandleControl(ctx context.Context, msg protocol.Control) error {
	switch msg.Tag {
	case protocol.TagPlay, protocol.TagPause:
		return e.apply(ctx, msg.Tag)
	default:
		return nil
	}
}

func (e *Engine) apply(ctx context.Context, tag protocol.Tag) error {
	switch tag {
	case protocol.TagPlay:
		if err := e.player.Play(ctx); err != nil {
			return fmt.Errorf("play: %w", err)
		}
	case protocol.TagPause:
		if err := e.player.Pause(ctx); err != nil {
			return fmt.Errorf("pause: %w", err)
		}
	}
	return nil
}
