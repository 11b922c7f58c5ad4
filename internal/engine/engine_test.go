package engine_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ariequ/svn-auto-merge/internal/analysis"
	"github.com/Ariequ/svn-auto-merge/internal/cursor"
	"github.com/Ariequ/svn-auto-merge/internal/engine"
	svnmergeerrors "github.com/Ariequ/svn-auto-merge/internal/errors"
	"github.com/Ariequ/svn-auto-merge/internal/journal"
	"github.com/Ariequ/svn-auto-merge/internal/match"
	"github.com/Ariequ/svn-auto-merge/internal/output"
	"github.com/Ariequ/svn-auto-merge/internal/svn"
)

// recordingJournal captures attempts in memory for assertions.
type recordingJournal struct {
	mu       sync.Mutex
	attempts []journal.Attempt
}

func (r *recordingJournal) Record(_ context.Context, attempt journal.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	return nil
}

func (r *recordingJournal) Attempts() []journal.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]journal.Attempt(nil), r.attempts...)
}

type harness struct {
	gateway    *svn.FakeGateway
	cursor     *cursor.FileCursor
	cursorPath string
	journal    *recordingJournal
	analyzer   *analysis.MockClient
	engine     *engine.Engine
}

func newHarness(t *testing.T, start int64) *harness {
	t.Helper()

	h := &harness{
		gateway:    svn.NewFakeGateway(),
		cursorPath: filepath.Join(t.TempDir(), "cursor.txt"),
		journal:    &recordingJournal{},
		analyzer:   analysis.NewMockClient(),
	}
	h.cursor = cursor.NewFileCursor(h.cursorPath, start)

	matcher, err := match.Compile(map[string]string{
		"bug":  `--bug=\w+`,
		"user": `--user=alice`,
	}, match.ModeAll)
	require.NoError(t, err)

	log := output.NewSplog()
	log.SetQuiet(true)

	h.engine = engine.New(engine.Params{
		Gateway:      h.gateway,
		Cursor:       h.cursor,
		Matcher:      matcher,
		Journal:      h.journal,
		Analyzer:     h.analyzer,
		Log:          log,
		SourceBranch: "branches/feature-x",
	})
	return h
}

func (h *harness) cursorValue(t *testing.T) int64 {
	t.Helper()
	value, err := h.cursor.Read()
	require.NoError(t, err)
	return value
}

func matchingRevision(number int64) svn.Revision {
	return svn.Revision{
		Number:  number,
		Author:  "alice",
		Message: "fix login --bug=12345 --user=alice",
	}
}

func TestRunCycle(t *testing.T) {
	ctx := context.Background()

	t.Run("merges a matching revision and advances the cursor", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.NoError(t, result.Err)
		require.Equal(t, 1, result.Merged)
		require.False(t, result.Failed)
		require.Equal(t, int64(5), result.Cursor)
		require.Equal(t, int64(5), h.cursorValue(t))
		require.False(t, h.gateway.WorkingCopyDirty())

		attempts := h.journal.Attempts()
		require.Len(t, attempts, 1)
		require.Equal(t, journal.OutcomeMerged, attempts[0].Outcome)
		require.Equal(t, "alice", attempts[0].Author)

		messages := h.gateway.CommitMessages()
		require.Len(t, messages, 1)
		require.Contains(t, messages[0], "Merged revision 5 from branches/feature-x: fix login --bug=12345 --user=alice")
		require.Contains(t, messages[0], "Changed paths:")
		require.Contains(t, messages[0], "src/changed.go")
	})

	t.Run("skips a non-matching revision without a merge call", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(svn.Revision{Number: 5, Author: "bob", Message: "minor tweak"})

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.NoError(t, result.Err)
		require.Equal(t, 1, result.Skipped)
		require.Empty(t, h.gateway.MergeCalls())
		require.Equal(t, int64(5), h.cursorValue(t))

		attempts := h.journal.Attempts()
		require.Len(t, attempts, 1)
		require.Equal(t, journal.OutcomeSkipped, attempts[0].Outcome)
		require.Contains(t, attempts[0].Detail, "patterns not matched")
	})

	t.Run("rolls back a conflicted merge and still advances", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.SetConflict(5, "src/login.go", "src/session.go")
		h.analyzer.SetExplanation("both branches changed the session constructor")

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.NoError(t, result.Err)
		require.Equal(t, 1, result.Conflicted)
		require.Equal(t, 1, h.gateway.RollbackCalls())
		require.False(t, h.gateway.WorkingCopyDirty())
		require.Equal(t, int64(5), h.cursorValue(t))
		require.Zero(t, h.gateway.CommitCalls())

		attempts := h.journal.Attempts()
		require.Len(t, attempts, 1)
		require.Equal(t, journal.OutcomeConflicted, attempts[0].Outcome)
		require.Contains(t, attempts[0].Detail, "src/login.go")
		require.Contains(t, attempts[0].Detail, "both branches changed the session constructor")

		require.Equal(t, 1, h.analyzer.CallCount())
		require.Equal(t, []string{"src/login.go", "src/session.go"}, h.analyzer.LastRequest().ConflictedPaths)
	})

	t.Run("records conflicted even when analysis is unavailable", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.SetConflict(5)
		h.analyzer.SetUnavailable("analysis timed out")

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.NoError(t, result.Err)
		require.Equal(t, 1, result.Conflicted)
		require.Equal(t, int64(5), h.cursorValue(t))

		attempts := h.journal.Attempts()
		require.Len(t, attempts, 1)
		require.Equal(t, journal.OutcomeConflicted, attempts[0].Outcome)
		require.NotContains(t, attempts[0].Detail, "analysis:")
	})

	t.Run("processes revisions strictly in ascending order", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.AddRevision(svn.Revision{Number: 6, Author: "bob", Message: "minor tweak"})
		h.gateway.AddRevision(matchingRevision(7))

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.NoError(t, result.Err)
		require.Equal(t, []int64{5, 7}, h.gateway.MergeCalls())
		require.Equal(t, int64(7), h.cursorValue(t))

		attempts := h.journal.Attempts()
		require.Len(t, attempts, 3)
		require.Equal(t, int64(5), attempts[0].Revision)
		require.Equal(t, int64(6), attempts[1].Revision)
		require.Equal(t, int64(7), attempts[2].Revision)
	})

	t.Run("parks the cursor on a transient merge error", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.AddRevision(matchingRevision(6))
		h.gateway.SetMergeError(5, svnmergeerrors.NewTransientGatewayError("merge", 5, errors.New("connection refused")))

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.Error(t, result.Err)
		require.True(t, svnmergeerrors.IsTransient(result.Err))
		require.False(t, result.Failed)
		require.Equal(t, int64(4), h.cursorValue(t))
		require.Equal(t, []int64{5}, h.gateway.MergeCalls())
		require.Empty(t, h.journal.Attempts())
	})

	t.Run("retries a parked revision on the next cycle", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.SetMergeError(5, svnmergeerrors.NewTransientGatewayError("merge", 5, errors.New("connection refused")))

		first := h.engine.RunCycle(ctx, engine.Scope{})
		require.True(t, svnmergeerrors.IsTransient(first.Err))

		h.gateway.SetMergeError(5, nil)
		second := h.engine.RunCycle(ctx, engine.Scope{})

		require.NoError(t, second.Err)
		require.Equal(t, 1, second.Merged)
		require.Equal(t, []int64{5, 5}, h.gateway.MergeCalls())
		require.Equal(t, int64(5), h.cursorValue(t))
	})

	t.Run("records failed and stops on a fatal merge error", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.AddRevision(matchingRevision(6))
		h.gateway.SetMergeError(5, svnmergeerrors.NewFatalGatewayError("merge", 5, errors.New("authentication failed")))

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.Error(t, result.Err)
		require.True(t, svnmergeerrors.IsFatal(result.Err))
		require.True(t, result.Failed)
		require.Equal(t, int64(4), h.cursorValue(t))
		require.Equal(t, []int64{5}, h.gateway.MergeCalls())

		attempts := h.journal.Attempts()
		require.Len(t, attempts, 1)
		require.Equal(t, journal.OutcomeFailed, attempts[0].Outcome)
	})

	t.Run("rolls back and leaves the cursor behind a failed commit", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.SetCommitError(svnmergeerrors.NewTransientGatewayError("commit", 0, errors.New("connection reset")))

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.Error(t, result.Err)
		require.True(t, result.Failed)
		require.Equal(t, 1, h.gateway.RollbackCalls())
		require.False(t, h.gateway.WorkingCopyDirty())
		require.Equal(t, int64(4), h.cursorValue(t))

		attempts := h.journal.Attempts()
		require.Len(t, attempts, 1)
		require.Equal(t, journal.OutcomeFailed, attempts[0].Outcome)
		require.Contains(t, attempts[0].Detail, "commit of r5 failed")
	})

	t.Run("treats a rollback failure as fatal", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.SetConflict(5)
		h.gateway.SetRollbackError(errors.New("working copy obstructed"))

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.Error(t, result.Err)
		require.True(t, result.Failed)
		require.True(t, svnmergeerrors.IsFatal(result.Err))
		require.ErrorIs(t, result.Err, svnmergeerrors.ErrRollbackFailed)
		require.Equal(t, int64(4), h.cursorValue(t))
	})

	t.Run("rollback failure outranks a transient merge error", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.SetMergeError(5, svnmergeerrors.NewTransientGatewayError("merge", 5, errors.New("connection refused")))
		h.gateway.SetRollbackError(errors.New("working copy obstructed"))

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.True(t, result.Failed)
		require.ErrorIs(t, result.Err, svnmergeerrors.ErrRollbackFailed)
		require.Equal(t, int64(4), h.cursorValue(t))

		attempts := h.journal.Attempts()
		require.Len(t, attempts, 1)
		require.Equal(t, journal.OutcomeFailed, attempts[0].Outcome)
	})

	t.Run("reports an unhealthy working copy as transient", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.SetHealthy(false)

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.Error(t, result.Err)
		require.True(t, svnmergeerrors.IsTransient(result.Err))
		require.ErrorIs(t, result.Err, svnmergeerrors.ErrGatewayUnhealthy)
		require.Zero(t, h.gateway.PrepareCalls())
	})

	t.Run("prepares the working copy before discovery", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.NoError(t, result.Err)
		require.Equal(t, 1, h.gateway.PrepareCalls())
	})

	t.Run("parks the cycle when preparation fails transiently", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.SetPrepareError(svnmergeerrors.NewTransientGatewayError("prepare", 0, errors.New("working copy locked")))

		result := h.engine.RunCycle(ctx, engine.Scope{})

		require.Error(t, result.Err)
		require.True(t, svnmergeerrors.IsTransient(result.Err))
		require.Empty(t, h.gateway.MergeCalls())
		require.Equal(t, int64(4), h.cursorValue(t))
	})

	t.Run("bounds discovery to the trigger scope", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.AddRevision(matchingRevision(6))
		h.gateway.AddRevision(matchingRevision(7))

		result := h.engine.RunCycle(ctx, engine.Scope{Limit: 6})

		require.NoError(t, result.Err)
		require.Equal(t, 2, result.Merged)
		require.Equal(t, []int64{5, 6}, h.gateway.MergeCalls())
		require.Equal(t, int64(6), h.cursorValue(t))

		followUp := h.engine.RunCycle(ctx, engine.Scope{})
		require.NoError(t, followUp.Err)
		require.Equal(t, 1, followUp.Merged)
		require.Equal(t, int64(7), h.cursorValue(t))
	})

	t.Run("does nothing for a scope at or behind the cursor", func(t *testing.T) {
		h := newHarness(t, 7)
		h.gateway.AddRevision(matchingRevision(8))

		result := h.engine.RunCycle(ctx, engine.Scope{Limit: 6})

		require.NoError(t, result.Err)
		require.Zero(t, result.Processed())
		require.Zero(t, h.gateway.PrepareCalls(), "a stale trigger should not touch the gateway")
		require.Empty(t, h.gateway.MergeCalls())
		require.Equal(t, int64(7), h.cursorValue(t))
	})

	t.Run("honors a shutdown request between revisions", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		result := h.engine.RunCycle(canceled, engine.Scope{})

		require.ErrorIs(t, result.Err, context.Canceled)
		require.Empty(t, h.gateway.MergeCalls())
		require.Equal(t, int64(4), h.cursorValue(t))
	})

	t.Run("does not reprocess revisions after a restart", func(t *testing.T) {
		h := newHarness(t, 4)
		h.gateway.AddRevision(matchingRevision(5))

		first := h.engine.RunCycle(ctx, engine.Scope{})
		require.Equal(t, 1, first.Merged)

		// A fresh process reads the persisted cursor from the same file.
		matcher, err := match.Compile(map[string]string{"bug": `--bug=\w+`}, match.ModeAll)
		require.NoError(t, err)
		log := output.NewSplog()
		log.SetQuiet(true)
		restarted := engine.New(engine.Params{
			Gateway:      h.gateway,
			Cursor:       cursor.NewFileCursor(h.cursorPath, 0),
			Matcher:      matcher,
			Journal:      h.journal,
			Log:          log,
			SourceBranch: "branches/feature-x",
		})

		second := restarted.RunCycle(ctx, engine.Scope{})
		require.NoError(t, second.Err)
		require.Zero(t, second.Processed())
		require.Equal(t, []int64{5}, h.gateway.MergeCalls())
		require.Len(t, h.journal.Attempts(), 1)
	})
}

func TestMergeRevision(t *testing.T) {
	ctx := context.Background()

	t.Run("replays one revision regardless of patterns", func(t *testing.T) {
		h := newHarness(t, 10)
		h.gateway.AddRevision(svn.Revision{Number: 5, Author: "bob", Message: "minor tweak"})

		attempt, err := h.engine.MergeRevision(ctx, 5)

		require.NoError(t, err)
		require.Equal(t, journal.OutcomeMerged, attempt.Outcome)
		require.Equal(t, []int64{5}, h.gateway.MergeCalls())
		require.Equal(t, int64(10), h.cursorValue(t), "a manual merge must not move the cursor")
	})

	t.Run("reports a revision missing from the source branch", func(t *testing.T) {
		h := newHarness(t, 0)
		h.gateway.AddRevision(matchingRevision(5))

		_, err := h.engine.MergeRevision(ctx, 3)

		require.Error(t, err)
		require.Contains(t, err.Error(), "r3 not found")
		require.Empty(t, h.gateway.MergeCalls())
	})

	t.Run("rolls back a conflicted replay", func(t *testing.T) {
		h := newHarness(t, 10)
		h.gateway.AddRevision(matchingRevision(5))
		h.gateway.SetConflict(5)

		attempt, err := h.engine.MergeRevision(ctx, 5)

		require.NoError(t, err)
		require.Equal(t, journal.OutcomeConflicted, attempt.Outcome)
		require.Equal(t, 1, h.gateway.RollbackCalls())
		require.False(t, h.gateway.WorkingCopyDirty())
	})
}

func TestScope(t *testing.T) {
	t.Run("coalesces two bounds to the higher revision", func(t *testing.T) {
		merged := engine.Scope{Limit: 5}.Merge(engine.Scope{Limit: 9})
		require.Equal(t, int64(9), merged.Limit)
	})

	t.Run("an unbounded scope absorbs any bound", func(t *testing.T) {
		require.False(t, engine.Scope{}.Merge(engine.Scope{Limit: 9}).Bounded())
		require.False(t, engine.Scope{Limit: 9}.Merge(engine.Scope{}).Bounded())
	})
}
