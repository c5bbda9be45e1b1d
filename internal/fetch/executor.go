// package fetch runs declared sources to obtain raw audio bytes.
//
// The only source kind is the shell command: the track's input is
// substituted into the declared argument template and the command is
// spawned with a bounded timeout. Retry policy, if any, belongs to
// the caller.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/desertthunder/dmm/internal/library"
	"github.com/desertthunder/dmm/internal/shared"
)

// stderrTail bounds how much command stderr is kept for error reports.
const stderrTail = 2048

// Executor spawns source commands.
type Executor struct {
	// Timeout bounds a single fetch; zero means no limit.
	Timeout time.Duration
}

// Fetch runs src with the given input, leaving the raw audio bytes at
// dest.
//
// Commands whose argument template references ${output} are expected
// to write dest themselves; otherwise stdout is captured into dest.
// A non-zero exit, a timeout, or a spawn failure wraps ErrFetchFailed.
//
// With a timeout set, a started command is bounded by that timeout
// alone; cancelling ctx stops callers from issuing further fetches but
// never kills a command mid-write.
func (e *Executor) Fetch(ctx context.Context, src *library.Source, input, dest string) error {
	if err := src.Kind.Validate(); err != nil {
		return err
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), e.Timeout)
		defer cancel()
	}

	switch {
	case src.Kind.Shell != nil:
		return e.fetchShell(ctx, src, input, dest)
	default:
		return fmt.Errorf("%w: source %q has unknown kind", shared.ErrFetchFailed, src.Name)
	}
}

func (e *Executor) fetchShell(ctx context.Context, src *library.Source, input, dest string) error {
	sh := src.Kind.Shell

	writesOutput := false
	args := make([]string, len(sh.Args))
	for i, arg := range sh.Args {
		if strings.Contains(arg, "${output}") {
			writesOutput = true
		}
		arg = strings.ReplaceAll(arg, "${input}", input)
		arg = strings.ReplaceAll(arg, "${output}", dest)
		args[i] = arg
	}

	cmd := exec.CommandContext(ctx, sh.Cmd, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if writesOutput {
		// some fetchers refuse to overwrite an existing output file,
		// so clear the staging path before spawning
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
		}
	} else {
		out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrCacheIO, err)
		}
		defer out.Close()
		cmd.Stdout = out
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: source %q timed out after %s", shared.ErrFetchFailed, src.Name, e.Timeout)
	}

	detail := tail(stderr.Bytes())
	if detail != "" {
		return fmt.Errorf("%w: source %q: %v: %s", shared.ErrFetchFailed, src.Name, err, detail)
	}
	return fmt.Errorf("%w: source %q: %v", shared.ErrFetchFailed, src.Name, err)
}

func tail(b []byte) string {
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return strings.TrimSpace(string(b))
}
