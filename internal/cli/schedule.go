package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ariequ/svn-auto-merge/internal/engine"
	svnmergeerrors "github.com/Ariequ/svn-auto-merge/internal/errors"
	"github.com/Ariequ/svn-auto-merge/internal/runtime"
	"github.com/Ariequ/svn-auto-merge/internal/trigger"
)

// newScheduleCmd creates the schedule command
func newScheduleCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the agent until interrupted, merging as revisions arrive",
		Long: `Schedule runs the merge agent as a long-lived process. A ticker triggers a
catch-up cycle every check_interval seconds, and a watch on the hook signal
file turns post-commit notifications into immediate cycles.

SIGINT or SIGTERM stops the agent once the in-flight revision reaches a
terminal state.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeSchedule(cmd, root)
		},
	}
	return cmd
}

func executeSchedule(cmd *cobra.Command, root *rootFlags) error {
	return withRuntime(root, func(rc *runtime.Context) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		gate := trigger.NewGate(rc.Splog)
		poller := trigger.NewPoller(rc.Config.PollInterval(), gate, rc.Splog)
		queue := trigger.NewQueue(rc.QueuePath())

		watcher, err := trigger.NewWatcher(rc.SignalPath(), queue, gate, rc.Splog)
		if err != nil {
			return fmt.Errorf("failed to watch hook signal file: %w", err)
		}
		defer watcher.Stop()

		rc.Splog.Info("watching %s, polling every %s", rc.Config.SourceBranch, rc.Config.PollInterval())

		go poller.Run(ctx) //nolint:errcheck // exits with ctx
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				rc.Splog.Warn("signal watcher stopped: %v", err)
			}
		}()

		// Hook requests that arrived while the agent was down are covered
		// by the catch-up cycle below; drain them so the queue file stays
		// small.
		if stale, drainErr := queue.Drain(); drainErr == nil && len(stale) > 0 {
			rc.Splog.Info("%d hook request(s) arrived while the agent was down", len(stale))
		}

		// Catch up on anything committed while the agent was down before the
		// first tick fires.
		gate.Submit(engine.Scope{})

		cycleCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var fatal error
		err = gate.Run(cycleCtx, func(ctx context.Context, scope engine.Scope) {
			result := rc.Engine.RunCycle(ctx, scope)
			if result.Err != nil && svnmergeerrors.IsFatal(result.Err) {
				// Failed revisions retry on later cycles; a fatal gateway or
				// rollback state needs a human before anything else runs.
				fatal = result.Err
				cancel()
			}
		})

		if fatal != nil {
			return fatal
		}
		if errors.Is(err, context.Canceled) {
			rc.Splog.Info("agent stopped")
			return nil
		}
		return err
	})
}
