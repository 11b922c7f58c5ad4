// Package svn provides a wrapper around the svn command-line client for
// repository operations.
package svn

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	svnmergeerrors "github.com/Ariequ/svn-auto-merge/internal/errors"
)

// DefaultCommandTimeout caps a single svn invocation when the caller does
// not configure one.
const DefaultCommandTimeout = 5 * time.Minute

// Runner defines the interface for executing svn commands. It allows the
// gateway to be tested against canned command output.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
	RunRaw(ctx context.Context, args ...string) (string, error)
}

// CommandRunner shells out to the svn binary inside a working copy.
type CommandRunner struct {
	dir     string
	timeout time.Duration
}

// NewCommandRunner creates a runner rooted at workingDir. A non-positive
// timeout falls back to DefaultCommandTimeout.
func NewCommandRunner(workingDir string, timeout time.Duration) *CommandRunner {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &CommandRunner{dir: workingDir, timeout: timeout}
}

// Run executes an svn command and returns its output with surrounding
// whitespace removed.
func (r *CommandRunner) Run(ctx context.Context, args ...string) (string, error) {
	out, err := r.RunRaw(ctx, args...)
	return strings.TrimSpace(out), err
}

// RunRaw executes an svn command and returns the output untouched, for
// callers that parse line structure such as merge conflict markers.
func (r *CommandRunner) RunRaw(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := r.deadline(ctx)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "svn", args...)
	cmd.Dir = r.dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// Prefer the deadline error over the generic "signal: killed".
		if ctx.Err() == context.DeadlineExceeded {
			err = ctx.Err()
		}
		return "", svnmergeerrors.NewSVNCommandError("svn", args, stdout.String(), stderr.String(), err)
	}
	return stdout.String(), nil
}

// deadline applies the configured timeout unless the caller already set
// its own.
func (r *CommandRunner) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}
