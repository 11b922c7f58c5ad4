package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Ariequ/svn-auto-merge/internal/journal"
	"github.com/Ariequ/svn-auto-merge/internal/runtime"
)

// newLogsCmd creates the logs command
func newLogsCmd(root *rootFlags) *cobra.Command {
	f := &logsFlags{}

	cmd := &cobra.Command{
		Use:          "logs",
		Short:        "Show recent merge attempts from the journal",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeLogs(cmd, root, f)
		},
	}

	addLogsFlags(cmd, f)
	return cmd
}

type logsFlags struct {
	limit    int
	revision int64
}

func addLogsFlags(cmd *cobra.Command, f *logsFlags) {
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 20, "Number of attempts to show, newest first")
	cmd.Flags().Int64VarP(&f.revision, "revision", "r", 0, "Show the full history of a single revision instead")
}

func executeLogs(cmd *cobra.Command, root *rootFlags, f *logsFlags) error {
	return withRuntime(root, func(rc *runtime.Context) error {
		if rc.Journal == nil {
			return fmt.Errorf("the merge journal is unavailable, check journal_file in the config")
		}

		var attempts []journal.Attempt
		var err error
		if f.revision > 0 {
			attempts, err = rc.Journal.History(cmd.Context(), f.revision)
		} else {
			attempts, err = rc.Journal.Recent(cmd.Context(), f.limit)
		}
		if err != nil {
			return err
		}

		if len(attempts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No merge attempts recorded yet.")
			return nil
		}

		renderAttempts(cmd.OutOrStdout(), attempts)
		return nil
	})
}

var outcomeStyles = map[journal.Outcome]lipgloss.Style{
	journal.OutcomeMerged:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	journal.OutcomeSkipped:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	journal.OutcomeConflicted: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	journal.OutcomeFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
}

// renderAttempts prints one line per attempt: timestamp, revision, outcome,
// detail. Padding happens before styling so ANSI codes do not skew columns.
func renderAttempts(w io.Writer, attempts []journal.Attempt) {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	for _, attempt := range attempts {
		style, ok := outcomeStyles[attempt.Outcome]
		if !ok {
			style = lipgloss.NewStyle()
		}
		outcome := style.Render(fmt.Sprintf("%-24s", attempt.Outcome))
		stamp := dimStyle.Render(attempt.RecordedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "%s  r%-9d %s %s\n", stamp, attempt.Revision, outcome, attempt.Detail)
	}
}
