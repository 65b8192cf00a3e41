// Package ssh opens an interactive shell on a cluster node through the
// engine's exec API.
package ssh

import (
	"context"
	"fmt"
	"io"

	"github.com/clusterdock/clusterdock/internal/domain"
	"github.com/clusterdock/clusterdock/internal/engine"
	"github.com/moby/term"
	"github.com/rs/zerolog"
)

var shells = []string{"/bin/bash", "/bin/sh"}

type NodeFinder interface {
	FindByHostname(ctx context.Context, hostname string) (domain.Container, error)
}

type Shell struct {
	engine engine.Engine
	finder NodeFinder
	logger zerolog.Logger
}

func NewShell(eng engine.Engine, finder NodeFinder, logger zerolog.Logger) *Shell {
	return &Shell{engine: eng, finder: finder, logger: logger}
}

// Open attaches in and out to a login shell on the node and returns the
// shell's exit code. A terminal on in is switched to raw mode for the session.
func (s *Shell) Open(ctx context.Context, hostname string, in io.Reader, out io.Writer) (int, error) {
	c, err := s.finder.FindByHostname(ctx, hostname)
	if err != nil {
		return 0, err
	}
	shell, err := s.pickShell(ctx, c.ID)
	if err != nil {
		return 0, err
	}
	opts := engine.ExecOptions{Cmd: []string{shell, "-l"}, Tty: true}

	if fd, isTerm := term.GetFdInfo(in); isTerm {
		state, err := term.SetRawTerminal(fd)
		if err != nil {
			return 0, fmt.Errorf("set raw terminal: %w", err)
		}
		defer func() {
			if err := term.RestoreTerminal(fd, state); err != nil {
				s.logger.Warn().Err(err).Msg("Could not restore terminal")
			}
		}()
	}
	if fd, isTerm := term.GetFdInfo(out); isTerm {
		if ws, err := term.GetWinsize(fd); err == nil {
			opts.ConsoleSize = &[2]uint{uint(ws.Height), uint(ws.Width)}
		}
	}

	s.logger.Debug().Msgf("Opening %s on %s (%s) ...", shell, c.Hostname, c.ShortID)
	return s.engine.ExecInteractive(ctx, c.ID, opts, in, out)
}

func (s *Shell) pickShell(ctx context.Context, id string) (string, error) {
	for _, shell := range shells[:len(shells)-1] {
		code, err := s.engine.Exec(ctx, id, engine.ExecOptions{Cmd: []string{"test", "-x", shell}}, io.Discard)
		if err != nil {
			return "", err
		}
		if code == 0 {
			return shell, nil
		}
	}
	return shells[len(shells)-1], nil
}
