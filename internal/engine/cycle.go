package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Ariequ/svn-auto-merge/internal/analysis"
	svnmergeerrors "github.com/Ariequ/svn-auto-merge/internal/errors"
	"github.com/Ariequ/svn-auto-merge/internal/journal"
	"github.com/Ariequ/svn-auto-merge/internal/svn"
)

// maxCommitPaths caps the changed-path listing in generated commit messages.
const maxCommitPaths = 10

// RunCycle performs one pass: cursor read, health check, working copy
// preparation, discovery, then ordered processing of every candidate.
// Revisions are never reordered or parallelized; a later revision may
// depend on an earlier one's merge.
func (e *Engine) RunCycle(ctx context.Context, scope Scope) CycleResult {
	result := CycleResult{}

	since, err := e.cursor.Read()
	if err != nil {
		result.Err = fmt.Errorf("reading revision cursor: %w", err)
		e.log.Error("revision cursor is unreadable: %v", err)
		return result
	}
	result.Cursor = since

	// A trigger at or behind the cursor was already answered by an earlier
	// cycle. Returning before the health check keeps stale hooks free of
	// gateway calls.
	if scope.Bounded() && scope.Limit <= since {
		e.log.Debug("trigger for r%d is at or behind cursor r%d; nothing to do", scope.Limit, since)
		return result
	}

	// Gateway work is detached from the trigger's context so a shutdown
	// request cannot interrupt a merge mid-flight. The request is honored
	// between revisions instead.
	opCtx := context.WithoutCancel(ctx)

	if !e.gateway.IsHealthy(opCtx) {
		result.Err = svnmergeerrors.NewTransientGatewayError("health check", 0, svnmergeerrors.ErrGatewayUnhealthy)
		e.log.Warn("working copy is not a healthy checkout; retrying next cycle")
		return result
	}

	if err := e.gateway.Prepare(opCtx); err != nil {
		result.Err = err
		e.logCycleError("preparing working copy", err)
		return result
	}

	revisions, err := e.gateway.ListNewRevisions(opCtx, since)
	if err != nil {
		result.Err = err
		e.logCycleError("discovering revisions", err)
		return result
	}

	if scope.Bounded() {
		bounded := revisions[:0]
		for _, rev := range revisions {
			if rev.Number <= scope.Limit {
				bounded = append(bounded, rev)
			}
		}
		revisions = bounded
	}

	if len(revisions) == 0 {
		e.log.Debug("no new revisions past r%d", since)
		return result
	}

	e.log.Info("found %d new revision(s) past r%d", len(revisions), since)

	for _, rev := range revisions {
		if err := ctx.Err(); err != nil {
			e.log.Info("shutdown requested; stopping after r%d", result.Cursor)
			result.Err = err
			return result
		}

		attempt, procErr := e.processRevision(opCtx, rev, false)
		if attempt != nil {
			e.recordAttempt(opCtx, *attempt)
			result.Attempts = append(result.Attempts, *attempt)
		}

		if procErr != nil {
			result.Err = procErr
			if attempt != nil {
				result.Failed = true
			} else {
				e.log.Warn("r%d hit a transient failure, retrying next cycle: %v", rev.Number, procErr)
			}
			return result
		}

		switch attempt.Outcome {
		case journal.OutcomeMerged:
			result.Merged++
		case journal.OutcomeSkipped:
			result.Skipped++
		case journal.OutcomeConflicted:
			result.Conflicted++
		}

		if err := e.advance(rev.Number); err != nil {
			result.Err = err
			return result
		}
		result.Cursor = rev.Number
	}

	e.log.Info("cycle complete: %d merged, %d skipped, %d conflicted",
		result.Merged, result.Skipped, result.Conflicted)
	return result
}

// MergeRevision replays a single revision on demand, bypassing the pattern
// rules. It never moves the cursor: a manual merge of one revision says
// nothing about the revisions before it. Used by the interactive shell to
// retry a conflict after it was resolved upstream.
func (e *Engine) MergeRevision(ctx context.Context, number int64) (journal.Attempt, error) {
	opCtx := context.WithoutCancel(ctx)

	if !e.gateway.IsHealthy(opCtx) {
		return journal.Attempt{}, svnmergeerrors.NewTransientGatewayError("health check", number, svnmergeerrors.ErrGatewayUnhealthy)
	}
	if err := e.gateway.Prepare(opCtx); err != nil {
		return journal.Attempt{}, err
	}

	revisions, err := e.gateway.ListNewRevisions(opCtx, number-1)
	if err != nil {
		return journal.Attempt{}, err
	}
	if len(revisions) == 0 || revisions[0].Number != number {
		return journal.Attempt{}, fmt.Errorf("revision r%d not found on %s", number, e.source)
	}

	attempt, procErr := e.processRevision(opCtx, revisions[0], true)
	if attempt == nil {
		return journal.Attempt{}, procErr
	}

	e.recordAttempt(opCtx, *attempt)
	return *attempt, procErr
}

// processRevision walks one revision to a terminal outcome.
//
// The return shapes encode the state machine:
//   - attempt, nil error: terminal advancing outcome (merged, skipped,
//     conflicted-rolled-back); the caller advances the cursor.
//   - attempt, error: failed outcome; the cursor stays put so the next
//     cycle retries the revision.
//   - nil attempt, error: transient interruption before a terminal state;
//     nothing is recorded and the next trigger retries.
func (e *Engine) processRevision(ctx context.Context, rev svn.Revision, force bool) (*journal.Attempt, error) {
	if !force {
		matched, failedRules := e.matcher.Explain(rev)
		if !matched {
			return &journal.Attempt{
				Revision: rev.Number,
				Outcome:  journal.OutcomeSkipped,
				Detail:   skipDetail(failedRules),
				Author:   rev.Author,
				Message:  rev.Message,
			}, nil
		}
	}

	e.log.Info("merging r%d by %s: %s", rev.Number, rev.Author, firstLine(rev.Message))

	mergeResult, err := e.gateway.Merge(ctx, rev)
	if err != nil {
		// The copy may hold a partial merge. Restore it before deciding
		// whether the cycle can continue. A failed restore outranks the
		// merge error: the copy state is now unknown and nothing may
		// advance until someone looks at it.
		if rollbackErr := e.gateway.Rollback(ctx); rollbackErr != nil {
			failure := svnmergeerrors.NewRollbackFailureError(rev.Number, rollbackErr)
			return e.failedAttempt(rev, failure), failure
		}
		if svnmergeerrors.IsTransient(err) {
			return nil, err
		}
		return e.failedAttempt(rev, err), err
	}

	if mergeResult.Conflicted {
		return e.resolveConflict(ctx, rev, mergeResult)
	}

	committed, err := e.gateway.Commit(ctx, commitMessage(e.source, rev, mergeResult.ChangedPaths))
	if err != nil {
		// The merged-but-uncommitted state must not leak into the next
		// attempt, so the rollback is unconditional.
		if rollbackErr := e.gateway.Rollback(ctx); rollbackErr != nil {
			failure := svnmergeerrors.NewRollbackFailureError(rev.Number, rollbackErr)
			return e.failedAttempt(rev, failure), failure
		}
		commitErr := fmt.Errorf("commit of r%d failed: %w", rev.Number, err)
		return e.failedAttempt(rev, commitErr), commitErr
	}

	detail := fmt.Sprintf("committed as r%d", committed)
	if committed == 0 {
		// An empty merge (change already present on the target) commits
		// nothing and svn reports no new revision.
		detail = "merge produced no changes"
	}

	e.log.Info("r%d merged, %s", rev.Number, detail)
	return &journal.Attempt{
		Revision: rev.Number,
		Outcome:  journal.OutcomeMerged,
		Detail:   detail,
		Author:   rev.Author,
		Message:  rev.Message,
	}, nil
}

// resolveConflict rolls the working copy back and asks the analysis client
// for a best-effort explanation. Analysis never gates the outcome; the
// rollback has already happened when it runs.
func (e *Engine) resolveConflict(ctx context.Context, rev svn.Revision, mergeResult svn.MergeResult) (*journal.Attempt, error) {
	e.log.Warn("r%d conflicts in %d path(s), rolling back", rev.Number, len(mergeResult.ConflictedPaths))

	if err := e.gateway.Rollback(ctx); err != nil {
		failure := svnmergeerrors.NewRollbackFailureError(rev.Number, err)
		return e.failedAttempt(rev, failure), failure
	}

	detail := conflictDetail(mergeResult.ConflictedPaths)

	analysisResult := e.analyzer.Analyze(ctx, analysis.Request{
		Revision:        rev,
		SourceBranch:    e.source,
		TargetBranch:    e.target,
		ConflictedPaths: mergeResult.ConflictedPaths,
		MergeOutput:     mergeResult.Output,
	})
	if analysisResult.Unavailable {
		e.log.Debug("conflict analysis unavailable for r%d: %s", rev.Number, analysisResult.Reason)
	} else {
		e.log.Tip("r%d: %s", rev.Number, analysisResult.Explanation)
		detail += "; analysis: " + analysisResult.Explanation
	}

	return &journal.Attempt{
		Revision: rev.Number,
		Outcome:  journal.OutcomeConflicted,
		Detail:   detail,
		Author:   rev.Author,
		Message:  rev.Message,
	}, nil
}

// advance moves the cursor past a finished revision. A regression means
// another actor already moved the watermark further; the cursor stays where
// it is.
func (e *Engine) advance(number int64) error {
	err := e.cursor.Advance(number)
	if err == nil {
		return nil
	}

	var regression *svnmergeerrors.RegressionError
	if errors.As(err, &regression) {
		e.log.Warn("cursor already at r%d, past r%d; leaving it in place", regression.Current, regression.Requested)
		return nil
	}
	return fmt.Errorf("advancing revision cursor to r%d: %w", number, err)
}

func (e *Engine) recordAttempt(ctx context.Context, attempt journal.Attempt) {
	e.log.Attempt(attempt.Revision, string(attempt.Outcome), attempt.Detail)
	if err := e.journal.Record(ctx, attempt); err != nil {
		e.log.Warn("journal write for r%d failed: %v", attempt.Revision, err)
	}
}

func (e *Engine) failedAttempt(rev svn.Revision, err error) *journal.Attempt {
	return &journal.Attempt{
		Revision: rev.Number,
		Outcome:  journal.OutcomeFailed,
		Detail:   err.Error(),
		Author:   rev.Author,
		Message:  rev.Message,
	}
}

func (e *Engine) logCycleError(op string, err error) {
	if svnmergeerrors.IsTransient(err) {
		e.log.Warn("%s failed, retrying next cycle: %v", op, err)
		return
	}
	e.log.Error("%s failed: %v", op, err)
}

// commitMessage generates the target-branch commit message for a merged
// revision: a one-line summary plus up to maxCommitPaths changed paths.
func commitMessage(source string, rev svn.Revision, changed []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Merged revision %d from %s: %s", rev.Number, source, firstLine(rev.Message))

	if len(changed) > 0 {
		b.WriteString("\n\nChanged paths:\n")
		for i, path := range changed {
			if i == maxCommitPaths {
				fmt.Fprintf(&b, "  (%d more)\n", len(changed)-maxCommitPaths)
				break
			}
			fmt.Fprintf(&b, "  %s\n", path)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func skipDetail(failedRules []string) string {
	if len(failedRules) == 0 {
		return "no match patterns configured"
	}
	return "patterns not matched: " + strings.Join(failedRules, ", ")
}

func conflictDetail(paths []string) string {
	const maxPaths = 5

	if len(paths) == 0 {
		return "merge reported conflicts"
	}

	shown := paths
	suffix := ""
	if len(paths) > maxPaths {
		shown = paths[:maxPaths]
		suffix = fmt.Sprintf(" (+%d more)", len(paths)-maxPaths)
	}
	return "conflicts: " + strings.Join(shown, ", ") + suffix
}
