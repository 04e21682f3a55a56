// Package fakes holds in-memory collaborators for session and reconcile tests.
package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/vlcsync/internal/core"
)

// Player is a recording core.Player fake. Queries return the configured
// state; transport calls are recorded and update that state.
type Player struct {
	mu sync.Mutex

	Position   float64
	Length     float64
	Playing    bool
	Properties map[string]string
	Err        error

	Calls []string
}

func NewPlayer(position, length float64, playing bool) *Player {
	return &Player{Position: position, Length: length, Playing: playing, Properties: map[string]string{}}
}

func (p *Player) record(call string) error {
	p.Calls = append(p.Calls, call)
	return p.Err
}

func (p *Player) Play(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("play"); err != nil {
		return err
	}
	p.Playing = true
	return nil
}

func (p *Player) Pause(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("pause"); err != nil {
		return err
	}
	p.Playing = false
	return nil
}

func (p *Player) Seek(_ context.Context, position float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record(fmt.Sprintf("seek %g", position)); err != nil {
		return err
	}
	p.Position = position
	return nil
}

func (p *Player) AddFile(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.record("add " + path)
}

func (p *Player) QueryPosition(_ context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Position, p.Err
}

func (p *Player) QueryLength(_ context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Length, p.Err
}

func (p *Player) QueryPlaying(_ context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Playing, p.Err
}

func (p *Player) QueryProperty(_ context.Context, name string) (core.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return core.Value{Raw: p.Properties[name]}, p.Err
}

func (p *Player) Close() error { return nil }

// TransportCalls returns the recorded play/pause/seek/add calls.
func (p *Player) TransportCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Calls...)
}
