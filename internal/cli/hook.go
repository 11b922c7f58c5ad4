package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ariequ/svn-auto-merge/internal/config"
	"github.com/Ariequ/svn-auto-merge/internal/engine"
	"github.com/Ariequ/svn-auto-merge/internal/output"
	"github.com/Ariequ/svn-auto-merge/internal/runtime"
	"github.com/Ariequ/svn-auto-merge/internal/trigger"
)

// newHookCmd creates the hook command
func newHookCmd(root *rootFlags) *cobra.Command {
	f := &hookFlags{}

	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Post-commit entry point: merge a fresh revision or queue it for the agent",
		Long: `Hook is what a Subversion post-commit hook should invoke. By default it runs
one bounded merge cycle covering everything up to the given revision, so a
notification can never leapfrog older unprocessed commits; a revision at or
behind the cursor is a no-op.

With --enqueue the revision is appended to the merge request queue and the
signal file is touched instead; a running schedule agent picks it up. Use
this when the hook must return before the merge finishes.

Example post-commit hook:
  svn-auto-merge hook --revision "$2" --enqueue \
    --author "$(svnlook author -r "$2" "$1")" \
    --message "$(svnlook log -r "$2" "$1")"`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeHook(cmd, root, f)
		},
	}

	addHookFlags(cmd, f)
	return cmd
}

type hookFlags struct {
	revision int64
	repoPath string
	author   string
	message  string
	enqueue  bool
}

func addHookFlags(cmd *cobra.Command, f *hookFlags) {
	cmd.Flags().Int64VarP(&f.revision, "revision", "r", 0, "Revision that was just committed")
	cmd.Flags().StringVar(&f.repoPath, "repo-path", "", "Override the working copy path from the config")
	cmd.Flags().StringVar(&f.author, "author", "", "Commit author, recorded with a queued request")
	cmd.Flags().StringVar(&f.message, "message", "", "Commit message, recorded with a queued request")
	cmd.Flags().BoolVar(&f.enqueue, "enqueue", false, "Queue the request for a running agent instead of merging inline")
	_ = cmd.MarkFlagRequired("revision")
}

func executeHook(cmd *cobra.Command, root *rootFlags, f *hookFlags) error {
	if f.revision <= 0 {
		return fmt.Errorf("--revision must be a positive revision number")
	}

	cfg, err := config.Load(root.configPath)
	if err != nil {
		return err
	}
	if f.repoPath != "" {
		cfg.RepoPath = f.repoPath
	}

	if f.enqueue {
		return enqueueHook(cfg, f)
	}

	rc, err := runtime.NewContext(cfg)
	if err != nil {
		return err
	}
	defer rc.Close()

	result := rc.Engine.RunCycle(cmd.Context(), engine.Scope{Limit: f.revision})
	return cycleStatus(result)
}

// enqueueHook appends the revision to the queue and wakes the agent. It
// deliberately skips the full runtime: hook processes must not contend for
// the journal or the working copy.
func enqueueHook(cfg *config.Config, f *hookFlags) error {
	queue := trigger.NewQueue(cfg.ResolvePath(cfg.MergeRequestsFile))
	if err := queue.Enqueue(f.revision, f.author, f.message); err != nil {
		return err
	}
	if err := trigger.TouchSignal(cfg.ResolvePath(cfg.HookSignalFile)); err != nil {
		return err
	}

	output.NewSplog().Info("queued r%d for the merge agent", f.revision)
	return nil
}
