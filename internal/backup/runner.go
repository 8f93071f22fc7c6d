package backup

import (
	"bytes"
	"context"
	"os"
	"os/exec"
)

// Runner executes the external postgres client tools
type Runner interface {
	Run(ctx context.Context, name string, args []string, env []string) (stdout, stderr []byte, err error)
}

const defaultMaxOutput = 64 * 1024

// ExecRunner runs tools as child processes. Captured output is capped at MaxOutput bytes per stream.
type ExecRunner struct {
	MaxOutput int
}

func (r ExecRunner) Run(ctx context.Context, name string, args []string, env []string) ([]byte, []byte, error) {
	limit := r.MaxOutput
	if limit <= 0 {
		limit = defaultMaxOutput
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = &limitedWriter{w: &stdout, limit: limit}
	cmd.Stderr = &limitedWriter{w: &stderr, limit: limit}

	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// limitedWriter drops bytes past limit but reports them as written so the child never blocks
type limitedWriter struct {
	w       *bytes.Buffer
	limit   int
	written int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	remaining := lw.limit - lw.written
	if remaining > 0 {
		chunk := p
		if len(chunk) > remaining {
			chunk = chunk[:remaining]
		}
		lw.w.Write(chunk)
		lw.written += len(chunk)
	}
	return len(p), nil
}
