package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/dkeye/vlcsync/internal/command"
	"github.com/dkeye/vlcsync/internal/domain"
	"github.com/rs/zerolog/log"
)

const prompt = "> "

// OperatorLoop reads one command per line from in. Every failed or rejected
// command is reported on one line and the loop carries on; only quit, end
// of input or ctx cancellation end it.
func (s *Session) OperatorLoop(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.prompt()
		if !sc.Scan() {
			return sc.Err()
		}
		if err := s.HandleLine(ctx, sc.Text()); err != nil {
			return err
		}
	}
}

// HandleLine resolves and executes one operator line. It only returns an
// error for quit.
func (s *Session) HandleLine(ctx context.Context, raw string) error {
	line := command.Parse(raw)
	if line.Command == "" {
		return nil
	}

	action, err := s.commands.Lookup(line.Command)
	if err != nil {
		s.say("No command `%s`...", line.Command)
		return nil
	}

	err = s.Execute(ctx, action, line)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrQuit):
		return err
	case errors.Is(err, domain.ErrInvalidArgument):
		s.say("%s", strings.TrimPrefix(err.Error(), domain.ErrInvalidArgument.Error()+": "))
	default:
		s.say("%s failed: %v", action, err)
	}
	log.Warn().Err(err).Str("module", "session").Str("command", action.String()).Msg("command failed")
	return nil
}

func (s *Session) prompt() {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	io.WriteString(s.out, prompt)
}
