package remote

import (
	"bytes"
	"context"
	"io"
	"os/exec"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LocalHost is the host value selecting the local transport.
const LocalHost = "local"

// LocalExecutor runs commands on the invoking machine through /bin/sh.
// It satisfies the same contract as the SSH transport and exists so a
// pipeline can be exercised without a remote host.
type LocalExecutor struct{}

func (LocalExecutor) Exec(ctx context.Context, command string) (string, error) {
	var buf bytes.Buffer

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Stdout = io.MultiWriter(&buf, NewZapWriter(zapcore.DebugLevel, "stdout", zap.String("command", command)))
	cmd.Stderr = io.MultiWriter(&buf, NewZapWriter(zapcore.DebugLevel, "stderr", zap.String("command", command)))

	if err := cmd.Run(); err != nil {
		return "", &CommandError{Command: command, Output: buf.String(), Err: err}
	}

	return buf.String(), nil
}
