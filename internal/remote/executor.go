// Package remote runs shell commands on the deployment host and owns
// the command-builder used to compose them safely.
package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Executor runs one shell command on the deployment host, blocking until
// the remote side completes. A non-zero exit status is always returned as
// a *CommandError. The command string is passed to the remote shell as-is;
// quoting is the caller's job (see the builder in command.go).
type Executor interface {
	Exec(ctx context.Context, command string) (output string, err error)
}

// CommandError reports a remote command that exited non-zero. It carries
// the attempted command text and whatever diagnostic output was captured.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	diag := strings.TrimSpace(e.Output)
	if diag == "" && e.Err != nil {
		diag = e.Err.Error()
	}
	return fmt.Sprintf("remote command failed: %s: %s", e.Command, diag)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Surface selects how a session surfaces non-empty command output.
// The exit status of the command is not affected: a non-zero exit is
// fatal in every mode.
type Surface int

const (
	// SurfaceSilent logs output at debug level only.
	SurfaceSilent Surface = iota
	// SurfaceInfo emits output as an informational notice.
	SurfaceInfo
	// SurfaceWarn emits output as a warning.
	SurfaceWarn
	// SurfaceFatal treats any non-empty output as an error. Used with
	// commands composed to tolerate failure but print a diagnostic.
	SurfaceFatal
)

// ParseSurface maps a config-file surface name to its mode. The empty
// string means silent.
func ParseSurface(name string) (Surface, error) {
	switch name {
	case "", "silent":
		return SurfaceSilent, nil
	case "info":
		return SurfaceInfo, nil
	case "warn":
		return SurfaceWarn, nil
	case "fatal":
		return SurfaceFatal, nil
	}
	return SurfaceSilent, errors.Errorf("unknown surface mode %q", name)
}

// Session couples an executor with a logger and the output surfacing
// policy. All pipeline steps go through a session.
type Session struct {
	ex  Executor
	log *zap.Logger
}

func NewSession(ex Executor, log *zap.Logger) *Session {
	return &Session{ex: ex, log: log}
}

// Run executes command and surfaces its output according to mode.
// Any transport or exit-status failure is returned unchanged.
func (s *Session) Run(ctx context.Context, command string, mode Surface) (string, error) {
	s.log.Debug("running remote command", zap.String("command", command))

	out, err := s.ex.Exec(ctx, command)
	if err != nil {
		return "", err
	}

	trimmed := strings.TrimSpace(out)
	if trimmed != "" {
		switch mode {
		case SurfaceInfo:
			s.log.Info(trimmed, zap.String("command", command))
		case SurfaceWarn:
			s.log.Warn(trimmed, zap.String("command", command))
		case SurfaceFatal:
			return "", errors.Errorf("remote command reported: %s", trimmed)
		default:
			s.log.Debug(trimmed, zap.String("command", command))
		}
	}

	return trimmed, nil
}
