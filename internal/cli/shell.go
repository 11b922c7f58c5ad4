package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ariequ/svn-auto-merge/internal/engine"
	svnmergeerrors "github.com/Ariequ/svn-auto-merge/internal/errors"
	"github.com/Ariequ/svn-auto-merge/internal/runtime"
	"github.com/Ariequ/svn-auto-merge/internal/tui"
)

var shellOptions = []tui.SelectOption{
	{Label: "Run a merge check now", Value: "check"},
	{Label: "Replay a single revision", Value: "merge"},
	{Label: "Show recent merge attempts", Value: "logs"},
	{Label: "Show the effective config", Value: "config"},
	{Label: "Quit", Value: "quit"},
}

// executeShell runs the interactive menu until the user quits. It is the
// default mode for a bare invocation on a terminal.
func executeShell(cmd *cobra.Command, root *rootFlags) error {
	rc, err := shellRuntime(root)
	if err != nil || rc == nil {
		return err
	}
	defer rc.Close()

	for {
		choice, err := tui.PromptSelect("svn-auto-merge", shellOptions, 0)
		if err != nil {
			if errors.Is(err, tui.ErrCanceled) {
				return nil
			}
			return err
		}

		var shellErr error
		switch choice {
		case "check":
			shellErr = shellCheck(cmd.Context(), rc)
		case "merge":
			shellErr = shellMerge(cmd.Context(), rc)
		case "logs":
			shellErr = shellLogs(cmd.Context(), rc)
		case "config":
			shellErr = printConfig(cmd, rc.Config)
		case "quit":
			return nil
		}

		if shellErr != nil {
			if errors.Is(shellErr, tui.ErrCanceled) {
				continue
			}
			rc.Splog.Error("%v", shellErr)
		}
	}
}

// shellRuntime loads the runtime context, offering to create a starter
// config when none exists yet. A nil context with a nil error means the
// user declined.
func shellRuntime(root *rootFlags) (*runtime.Context, error) {
	rc, err := runtime.GetContext(root.configPath)
	if err == nil {
		return rc, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	create, promptErr := tui.PromptConfirm(fmt.Sprintf("No config at %s. Create a starter config?", root.configPath), true)
	if promptErr != nil {
		if errors.Is(promptErr, tui.ErrCanceled) {
			return nil, nil
		}
		return nil, promptErr
	}
	if !create {
		return nil, nil
	}

	if err := executeConfigInit(root, &configInitFlags{}); err != nil {
		return nil, err
	}
	return runtime.GetContext(root.configPath)
}

func shellCheck(ctx context.Context, rc *runtime.Context) error {
	logBacklog(ctx, rc)
	result, err := runCycle(ctx, rc, engine.Scope{}, true)
	if err != nil {
		return err
	}
	if result.Err != nil && svnmergeerrors.IsFatal(result.Err) {
		return result.Err
	}
	return nil
}

func shellMerge(ctx context.Context, rc *runtime.Context) error {
	raw, err := tui.PromptTextInput("Revision to replay (e.g. 1234)", "")
	if err != nil {
		return err
	}

	number, err := parseRevision(raw)
	if err != nil {
		return err
	}

	confirmed, err := tui.PromptConfirm(fmt.Sprintf("Replay r%d into %s?", number, rc.Config.TargetBranch), false)
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	// The engine logs the attempt outcome; errors surface here.
	_, err = rc.Engine.MergeRevision(ctx, number)
	return err
}

func shellLogs(ctx context.Context, rc *runtime.Context) error {
	if rc.Journal == nil {
		return fmt.Errorf("the merge journal is unavailable, check journal_file in the config")
	}

	attempts, err := rc.Journal.Recent(ctx, 20)
	if err != nil {
		return err
	}
	if len(attempts) == 0 {
		fmt.Println("No merge attempts recorded yet.")
		return nil
	}

	renderAttempts(os.Stdout, attempts)
	return nil
}

// parseRevision accepts "1234" or "r1234".
func parseRevision(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "r")
	number, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || number <= 0 {
		return 0, fmt.Errorf("not a revision number: %q", raw)
	}
	return number, nil
}
