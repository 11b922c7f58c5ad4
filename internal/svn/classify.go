package svn

import (
	"context"
	"errors"
	"strings"

	svnmergeerrors "github.com/Ariequ/svn-auto-merge/internal/errors"
)

// svn error codes that indicate a structural problem with the configuration
// or repository. Retrying these without operator intervention cannot succeed.
var fatalErrorCodes = []string{
	"E160013", // path not found
	"E170001", // authorization failed
	"E200009", // could not resolve target
	"E205000", // malformed command usage
	"E215004", // no more credentials
}

// classifyError wraps a failed svn invocation in the gateway error taxonomy.
// Command timeouts are transient. Everything not recognized as fatal is
// treated as transient so an unknown failure is retried on the next cycle
// instead of wedging the agent.
func classifyError(op string, revision int64, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return svnmergeerrors.NewTransientGatewayError(op, revision, err)
	}

	var cmdErr *svnmergeerrors.SVNCommandError
	if errors.As(err, &cmdErr) {
		for _, code := range fatalErrorCodes {
			if strings.Contains(cmdErr.Stderr, code) {
				return svnmergeerrors.NewFatalGatewayError(op, revision, err)
			}
		}
		return svnmergeerrors.NewTransientGatewayError(op, revision, err)
	}

	return svnmergeerrors.NewTransientGatewayError(op, revision, err)
}

// isWorkingCopyLocked reports whether err is the locked-working-copy failure
// that `svn cleanup` repairs.
func isWorkingCopyLocked(err error) bool {
	var cmdErr *svnmergeerrors.SVNCommandError
	if errors.As(err, &cmdErr) {
		return strings.Contains(cmdErr.Stderr, "E155004")
	}
	return false
}

// isNoSuchRevision reports whether err means the requested log range starts
// past HEAD, i.e. there are no new revisions yet.
func isNoSuchRevision(err error) bool {
	var cmdErr *svnmergeerrors.SVNCommandError
	if errors.As(err, &cmdErr) {
		return strings.Contains(cmdErr.Stderr, "E160006") ||
			strings.Contains(cmdErr.Stderr, "E195012") ||
			strings.Contains(cmdErr.Stderr, "No such revision")
	}
	return false
}
