package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ariequ/svn-auto-merge/internal/engine"
	svnmergeerrors "github.com/Ariequ/svn-auto-merge/internal/errors"
	"github.com/Ariequ/svn-auto-merge/internal/runtime"
	"github.com/Ariequ/svn-auto-merge/internal/tui"
)

// newCheckCmd creates the check command
func newCheckCmd(root *rootFlags) *cobra.Command {
	f := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one merge cycle and exit",
		Long: `Check discovers every revision on the source branch past the cursor, merges
the ones that match the configured patterns, and exits. Equivalent to a
single tick of the schedule daemon.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeCheck(cmd, root, f)
		},
	}

	addCheckFlags(cmd, f)
	return cmd
}

type checkFlags struct {
	upTo  int64
	plain bool
}

func addCheckFlags(cmd *cobra.Command, f *checkFlags) {
	cmd.Flags().Int64Var(&f.upTo, "up-to", 0, "Stop discovery at this revision instead of the branch head")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "Plain log output even on a terminal")
}

func executeCheck(cmd *cobra.Command, root *rootFlags, f *checkFlags) error {
	return withRuntime(root, func(rc *runtime.Context) error {
		logBacklog(cmd.Context(), rc)
		result, err := runCycle(cmd.Context(), rc, engine.Scope{Limit: f.upTo}, !f.plain)
		if err != nil {
			// Quitting the progress view leaves the cursor untouched, the
			// same as an interrupt between revisions.
			if errors.Is(err, tui.ErrCanceled) {
				return nil
			}
			return err
		}
		return cycleStatus(result)
	})
}

// logBacklog reports where the source head and the cursor stand before the
// cycle runs. Best effort: discovery repeats the lookup with real error
// handling moments later.
func logBacklog(ctx context.Context, rc *runtime.Context) {
	head, err := rc.Gateway.LatestRevision(ctx)
	if err != nil {
		rc.Splog.Debug("source head lookup failed: %v", err)
		return
	}
	cursor, err := rc.Cursor.Read()
	if err != nil {
		return
	}
	if head <= cursor {
		rc.Splog.Info("%s is at r%d, cursor is caught up", rc.Config.SourceBranch, head)
		return
	}
	rc.Splog.Info("%s is at r%d, cursor at r%d", rc.Config.SourceBranch, head, cursor)
}

// runCycle executes one cycle, behind the progress UI when attached to a
// terminal.
func runCycle(ctx context.Context, rc *runtime.Context, scope engine.Scope, allowTUI bool) (engine.CycleResult, error) {
	if allowTUI && tui.IsTTY() {
		rc.Splog.SetQuiet(true)
		defer rc.Splog.SetQuiet(false)
		return tui.RunCycleTUI(ctx, rc.Config.SourceBranch, func(ctx context.Context) engine.CycleResult {
			return rc.Engine.RunCycle(ctx, scope)
		})
	}
	return rc.Engine.RunCycle(ctx, scope), nil
}

// cycleStatus maps a cycle result to the command's exit status. Transient
// interruptions and shutdown requests are not failures: the cursor stays
// put and the next cycle retries.
func cycleStatus(result engine.CycleResult) error {
	if result.Failed {
		return fmt.Errorf("merge stopped on a failed revision, see the log for details")
	}
	if result.Err == nil {
		return nil
	}
	if svnmergeerrors.IsTransient(result.Err) || errors.Is(result.Err, context.Canceled) {
		return nil
	}
	return result.Err
}
