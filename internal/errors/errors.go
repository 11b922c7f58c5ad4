// Package errors provides sentinel errors and custom error types for the svn-auto-merge application.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions
var (
	// ErrTransient indicates a gateway failure that is expected to clear on its
	// own; the affected revision is retried on the next cycle.
	ErrTransient = errors.New("transient gateway failure")

	// ErrFatal indicates a structural gateway failure (bad branch path,
	// permission denied) that aborts the cycle.
	ErrFatal = errors.New("fatal gateway failure")

	// ErrRollbackFailed indicates the working copy could not be reverted and
	// may be in an inconsistent state.
	ErrRollbackFailed = errors.New("rollback failed")

	// ErrCursorRegression indicates an attempt to move the revision cursor
	// backward.
	ErrCursorRegression = errors.New("cursor regression")

	// ErrGatewayUnhealthy indicates the pre-cycle connectivity check failed.
	ErrGatewayUnhealthy = errors.New("gateway unhealthy")
)

// TransientGatewayError wraps a gateway failure that should be retried on the
// next cycle without advancing the cursor for the affected revision.
type TransientGatewayError struct {
	Op       string
	Revision int64
	Err      error
}

func (e *TransientGatewayError) Error() string {
	if e.Revision > 0 {
		return fmt.Sprintf("transient failure in %s for r%d: %v", e.Op, e.Revision, e.Err)
	}
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientGatewayError) Unwrap() error {
	return e.Err
}

// Is returns true if the target error is ErrTransient
func (e *TransientGatewayError) Is(target error) bool {
	return target == ErrTransient
}

// NewTransientGatewayError creates a new TransientGatewayError
func NewTransientGatewayError(op string, revision int64, err error) *TransientGatewayError {
	return &TransientGatewayError{Op: op, Revision: revision, Err: err}
}

// FatalGatewayError wraps a structural gateway failure that aborts the cycle
// without cursor movement.
type FatalGatewayError struct {
	Op       string
	Revision int64
	Err      error
}

func (e *FatalGatewayError) Error() string {
	if e.Revision > 0 {
		return fmt.Sprintf("fatal failure in %s for r%d: %v", e.Op, e.Revision, e.Err)
	}
	return fmt.Sprintf("fatal failure in %s: %v", e.Op, e.Err)
}

func (e *FatalGatewayError) Unwrap() error {
	return e.Err
}

// Is returns true if the target error is ErrFatal
func (e *FatalGatewayError) Is(target error) bool {
	return target == ErrFatal
}

// NewFatalGatewayError creates a new FatalGatewayError
func NewFatalGatewayError(op string, revision int64, err error) *FatalGatewayError {
	return &FatalGatewayError{Op: op, Revision: revision, Err: err}
}

// RollbackFailureError indicates the working copy could not be reverted after
// a conflicted or aborted merge. The process must stop advancing until the
// working copy has been inspected.
type RollbackFailureError struct {
	Revision int64
	Err      error
}

func (e *RollbackFailureError) Error() string {
	return fmt.Sprintf("rollback failed after r%d, working copy needs manual inspection: %v", e.Revision, e.Err)
}

func (e *RollbackFailureError) Unwrap() error {
	return e.Err
}

// Is returns true if the target error is ErrRollbackFailed
func (e *RollbackFailureError) Is(target error) bool {
	return target == ErrRollbackFailed
}

// NewRollbackFailureError creates a new RollbackFailureError
func NewRollbackFailureError(revision int64, err error) *RollbackFailureError {
	return &RollbackFailureError{Revision: revision, Err: err}
}

// RegressionError indicates an attempt to advance the cursor to a value lower
// than the one already committed. The cursor never moves backward; callers
// log and ignore this.
type RegressionError struct {
	Current   int64
	Requested int64
}

func (e *RegressionError) Error() string {
	return fmt.Sprintf("cursor regression: have r%d, refusing r%d", e.Current, e.Requested)
}

// Is returns true if the target error is ErrCursorRegression
func (e *RegressionError) Is(target error) bool {
	return target == ErrCursorRegression
}

// NewRegressionError creates a new RegressionError
func NewRegressionError(current, requested int64) *RegressionError {
	return &RegressionError{Current: current, Requested: requested}
}

// SVNCommandError represents an error from an svn command execution
type SVNCommandError struct {
	Command string
	Args    []string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *SVNCommandError) Error() string {
	msg := fmt.Sprintf("svn command failed: %s", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *SVNCommandError) Unwrap() error {
	return e.Err
}

// NewSVNCommandError creates a new SVNCommandError
func NewSVNCommandError(command string, args []string, stdout, stderr string, err error) *SVNCommandError {
	return &SVNCommandError{
		Command: command,
		Args:    args,
		Stdout:  stdout,
		Stderr:  stderr,
		Err:     err,
	}
}

// IsTransient reports whether err should be retried on a later cycle.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsFatal reports whether err aborts the cycle without retry semantics.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal) || errors.Is(err, ErrRollbackFailed)
}
