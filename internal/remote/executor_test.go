package remote

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type scriptedExecutor struct {
	output   string
	err      error
	commands []string
}

func (s *scriptedExecutor) Exec(ctx context.Context, command string) (string, error) {
	s.commands = append(s.commands, command)
	if s.err != nil {
		return "", s.err
	}
	return s.output, nil
}

func TestSessionTrimsOutput(t *testing.T) {
	ex := &scriptedExecutor{output: "abc123\n"}
	sess := NewSession(ex, zap.NewNop())

	out, err := sess.Run(context.Background(), "git rev-parse HEAD", SurfaceSilent)
	if err != nil {
		t.Fatal(err)
	}
	if out != "abc123" {
		t.Fatalf("expected trimmed output, got %q", out)
	}
}

func TestSessionFatalSurface(t *testing.T) {
	ex := &scriptedExecutor{output: "disk almost full\n"}
	sess := NewSession(ex, zap.NewNop())

	_, err := sess.Run(context.Background(), "df --check", SurfaceFatal)
	if err == nil {
		t.Fatal("expected fatal surface to reject non-empty output")
	}
	if !strings.Contains(err.Error(), "disk almost full") {
		t.Fatalf("diagnostic not surfaced: %v", err)
	}
}

func TestSessionFatalSurfaceEmptyOutput(t *testing.T) {
	ex := &scriptedExecutor{output: "  \n"}
	sess := NewSession(ex, zap.NewNop())

	if _, err := sess.Run(context.Background(), "true", SurfaceFatal); err != nil {
		t.Fatalf("whitespace-only output must not be fatal: %v", err)
	}
}

func TestSessionPropagatesCommandError(t *testing.T) {
	cmdErr := &CommandError{Command: "git clone repo dst", Output: "fatal: repository not found"}
	ex := &scriptedExecutor{err: cmdErr}
	sess := NewSession(ex, zap.NewNop())

	_, err := sess.Run(context.Background(), "git clone repo dst", SurfaceWarn)
	if err != cmdErr {
		t.Fatalf("expected the executor error unchanged, got %v", err)
	}
}

func TestCommandErrorMessage(t *testing.T) {
	err := &CommandError{Command: "ls -1 /srv/app/releases", Output: "ls: cannot access\n"}
	want := "remote command failed: ls -1 /srv/app/releases: ls: cannot access"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
