package corpus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// Rebuilder regenerates both corpus files. Implementations must replace the
// files together (for example by writing to a staging directory and renaming)
// so that a concurrent reload never pairs tables from different scrapes.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// RebuilderFunc adapts a function to [Rebuilder].
type RebuilderFunc func(ctx context.Context) error

// Rebuild calls f(ctx).
func (f RebuilderFunc) Rebuild(ctx context.Context) error { return f(ctx) }

// maxRebuildOutput bounds how much scraper output is kept for the error
// message.
const maxRebuildOutput = 4 << 10

// ExecRebuilder runs an external scraper command.
type ExecRebuilder struct {
	argv    []string
	timeout time.Duration
}

// NewExecRebuilder returns a Rebuilder that runs argv without a shell. A
// timeout of zero means no limit beyond the caller's context.
func NewExecRebuilder(argv []string, timeout time.Duration) *ExecRebuilder {
	return &ExecRebuilder{argv: append([]string(nil), argv...), timeout: timeout}
}

// Rebuild runs the command and waits for it to exit.
func (r *ExecRebuilder) Rebuild(ctx context.Context) error {
	if len(r.argv) == 0 {
		return errors.New("corpus: rebuild: no command configured")
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	// Grandchildren holding the output pipe must not outlive the deadline.
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	slog.Info("corpus: running rebuild command", "command", r.argv)
	if err := cmd.Run(); err != nil {
		tail := out.Bytes()
		if len(tail) > maxRebuildOutput {
			tail = tail[len(tail)-maxRebuildOutput:]
		}
		return fmt.Errorf("corpus: rebuild %q: %w: %s", r.argv[0], err, bytes.TrimSpace(tail))
	}
	slog.Info("corpus: rebuild finished", "duration", time.Since(start))
	return nil
}
