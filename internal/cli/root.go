// Package cli implements the svn-auto-merge command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ariequ/svn-auto-merge/internal/config"
	"github.com/Ariequ/svn-auto-merge/internal/runtime"
	"github.com/Ariequ/svn-auto-merge/internal/tui"
)

type rootFlags struct {
	configPath string
}

// NewRootCmd creates the root cobra command
func NewRootCmd(version, commit, date string) *cobra.Command {
	f := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "svn-auto-merge",
		Short: "Unattended branch promotion for Subversion repositories",
		Long: `svn-auto-merge watches a source branch and merges matching revisions into a
target working copy, committing each merge as it lands.

Revisions qualify through regular expressions over their commit messages.
Conflicted merges are rolled back and recorded so a developer can pick them
up by hand.`,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Bare invocation opens the interactive shell on a terminal.
			if tui.IsTTY() {
				return executeShell(cmd, f)
			}
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&f.configPath, "config", "c", config.DefaultPath, "Path to the agent config file")

	// Add subcommands
	rootCmd.AddCommand(newCheckCmd(f))
	rootCmd.AddCommand(newScheduleCmd(f))
	rootCmd.AddCommand(newHookCmd(f))
	rootCmd.AddCommand(newLogsCmd(f))
	rootCmd.AddCommand(newConfigCmd(f))

	return rootCmd
}

// withRuntime loads the runtime context for a command, hands it to fn, and
// closes it afterwards.
func withRuntime(root *rootFlags, fn func(rc *runtime.Context) error) error {
	rc, err := runtime.GetContext(root.configPath)
	if err != nil {
		return err
	}
	defer rc.Close()
	return fn(rc)
}
