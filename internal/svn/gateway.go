package svn

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	svnmergeerrors "github.com/Ariequ/svn-auto-merge/internal/errors"
)

// healthCheckTimeout bounds the pre-cycle connectivity probe
const healthCheckTimeout = 10 * time.Second

// MergeResult describes the outcome of one merge invocation. A conflicted
// result leaves the working copy inspectable: conflict markers in place,
// nothing auto-resolved.
type MergeResult struct {
	Conflicted      bool
	ConflictedPaths []string
	ChangedPaths    []string
	Output          string
}

// Gateway abstracts the svn client for the merge engine. Engine tests
// substitute the in-memory fake in gateway_fake.go.
type Gateway interface {
	// ListNewRevisions returns source-branch revisions after since, ascending.
	// An empty slice means nothing new.
	ListNewRevisions(ctx context.Context, since int64) ([]Revision, error)

	// Merge replays one source revision into the target working copy without
	// committing. The working copy keeps the merged state on a clean result
	// and the conflict markers on a conflicted one.
	Merge(ctx context.Context, rev Revision) (MergeResult, error)

	// Commit promotes the merged working copy state onto the target branch
	// and returns the new revision number there.
	Commit(ctx context.Context, message string) (int64, error)

	// Rollback reverts the working copy to its pre-merge state. Idempotent:
	// safe to call when nothing changed.
	Rollback(ctx context.Context) error

	// Prepare brings the working copy to a clean, current state before a
	// cycle: revert leftovers, update, cleanup if locked.
	Prepare(ctx context.Context) error

	// IsHealthy is a cheap connectivity/lock probe run before a cycle.
	IsHealthy(ctx context.Context) bool

	// LatestRevision returns the newest revision on the source branch.
	LatestRevision(ctx context.Context) (int64, error)
}

// CLIGateway implements Gateway by shelling out to the svn client rooted in
// the target working copy.
type CLIGateway struct {
	runner       Runner
	sourceBranch string
	sourceURL    string
}

// NewGateway creates a Gateway running svn commands in workingDir.
// sourceBranch is a full URL or a path relative to the repository root.
func NewGateway(workingDir, sourceBranch string, timeout time.Duration) *CLIGateway {
	return &CLIGateway{
		runner:       NewCommandRunner(workingDir, timeout),
		sourceBranch: sourceBranch,
	}
}

// NewGatewayWithRunner creates a Gateway with a custom runner, used by tests
// to feed canned svn output.
func NewGatewayWithRunner(runner Runner, sourceBranch string) *CLIGateway {
	return &CLIGateway{
		runner:       runner,
		sourceBranch: sourceBranch,
	}
}

// resolveSourceURL resolves the configured source branch to a repository URL,
// caching the answer. Relative branch paths are joined onto the repository
// root of the working copy.
func (g *CLIGateway) resolveSourceURL(ctx context.Context) (string, error) {
	if g.sourceURL != "" {
		return g.sourceURL, nil
	}
	if strings.Contains(g.sourceBranch, "://") {
		g.sourceURL = strings.TrimRight(g.sourceBranch, "/")
		return g.sourceURL, nil
	}

	root, err := g.runner.Run(ctx, "info", "--show-item", "repos-root-url", "--non-interactive")
	if err != nil {
		return "", classifyError("resolve source url", 0, err)
	}
	g.sourceURL = strings.TrimRight(root, "/") + "/" + strings.Trim(g.sourceBranch, "/")
	return g.sourceURL, nil
}

func (g *CLIGateway) ListNewRevisions(ctx context.Context, since int64) ([]Revision, error) {
	url, err := g.resolveSourceURL(ctx)
	if err != nil {
		return nil, err
	}

	out, err := g.runner.RunRaw(ctx, "log", url,
		"-r", fmt.Sprintf("%d:HEAD", since+1),
		"--xml", "--non-interactive")
	if err != nil {
		if isNoSuchRevision(err) {
			return nil, nil
		}
		return nil, classifyError("list revisions", 0, err)
	}

	revisions, err := ParseLogXML(out)
	if err != nil {
		return nil, classifyError("list revisions", 0, err)
	}

	// The range starts at since+1, but svn includes the boundary revision
	// when the range start equals an existing revision on other branches.
	filtered := revisions[:0]
	for _, rev := range revisions {
		if rev.Number > since {
			filtered = append(filtered, rev)
		}
	}
	return filtered, nil
}

func (g *CLIGateway) Merge(ctx context.Context, rev Revision) (MergeResult, error) {
	url, err := g.resolveSourceURL(ctx)
	if err != nil {
		return MergeResult{}, err
	}

	out, err := g.runner.RunRaw(ctx, "merge",
		"-c", strconv.FormatInt(rev.Number, 10),
		url, ".",
		"--accept", "postpone", "--non-interactive")
	if err != nil {
		// Older clients exit non-zero on conflicts even with postpone.
		if combined := commandOutput(err) + out; looksConflicted(combined) {
			result := parseMergeOutput(combined)
			result.Conflicted = true
			return result, nil
		}
		return MergeResult{}, classifyError("merge", rev.Number, err)
	}

	return parseMergeOutput(out), nil
}

var committedRevisionRE = regexp.MustCompile(`Committed revision (\d+)`)

func (g *CLIGateway) Commit(ctx context.Context, message string) (int64, error) {
	out, err := g.runner.Run(ctx, "commit", "-m", message, "--non-interactive")
	if err != nil {
		return 0, classifyError("commit", 0, err)
	}
	if m := committedRevisionRE.FindStringSubmatch(out); m != nil {
		n, _ := strconv.ParseInt(m[1], 10, 64)
		return n, nil
	}
	return 0, nil
}

func (g *CLIGateway) Rollback(ctx context.Context) error {
	_, err := g.runner.Run(ctx, "revert", "-R", ".", "--non-interactive")
	return err
}

func (g *CLIGateway) Prepare(ctx context.Context) error {
	if _, err := g.runner.Run(ctx, "revert", "-R", ".", "--non-interactive"); err != nil {
		if !isWorkingCopyLocked(err) {
			return classifyError("prepare", 0, err)
		}
		if _, err := g.runner.Run(ctx, "cleanup"); err != nil {
			return classifyError("prepare", 0, err)
		}
		if _, err := g.runner.Run(ctx, "revert", "-R", ".", "--non-interactive"); err != nil {
			return classifyError("prepare", 0, err)
		}
	}

	if _, err := g.runner.Run(ctx, "update", "--non-interactive"); err != nil {
		return classifyError("prepare", 0, err)
	}
	return nil
}

func (g *CLIGateway) IsHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	_, err := g.runner.Run(ctx, "info", "--show-item", "revision", "--non-interactive")
	return err == nil
}

func (g *CLIGateway) LatestRevision(ctx context.Context) (int64, error) {
	url, err := g.resolveSourceURL(ctx)
	if err != nil {
		return 0, err
	}
	out, err := g.runner.Run(ctx, "info", url, "--show-item", "last-changed-revision", "--non-interactive")
	if err != nil {
		return 0, classifyError("latest revision", 0, err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, classifyError("latest revision", 0, fmt.Errorf("unexpected svn info output %q: %w", out, err))
	}
	return n, nil
}

// Merge output parsing. svn prints one line per touched path with a status
// field ("U    path", "A    path", "C    path"; a C in any of the leading
// columns marks a text, property, or tree conflict) and, when conflicts
// remain, a "Summary of conflicts" trailer.
var (
	conflictLineRE = regexp.MustCompile(`^\s{0,3}C[ UADG]{0,3}\s+(\S.*)$`)
	changeLineRE   = regexp.MustCompile(`^\s{0,3}[AUDGR][ UADGC]{0,3}\s+(\S.*)$`)
)

func parseMergeOutput(out string) MergeResult {
	result := MergeResult{Output: out}

	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "---") || strings.TrimSpace(line) == "" {
			continue
		}
		if m := conflictLineRE.FindStringSubmatch(line); m != nil {
			result.Conflicted = true
			result.ConflictedPaths = append(result.ConflictedPaths, m[1])
			continue
		}
		if m := changeLineRE.FindStringSubmatch(line); m != nil {
			result.ChangedPaths = append(result.ChangedPaths, m[1])
		}
	}

	if strings.Contains(out, "Summary of conflicts") {
		result.Conflicted = true
	}
	return result
}

func looksConflicted(output string) bool {
	return strings.Contains(strings.ToLower(output), "conflict")
}

// commandOutput pulls stdout and stderr back out of a failed command error
// so conflict markers reported there are not lost.
func commandOutput(err error) string {
	var cmdErr *svnmergeerrors.SVNCommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Stdout + "\n" + cmdErr.Stderr
	}
	return ""
}
