package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/Ariequ/svn-auto-merge/internal/config"
	"github.com/Ariequ/svn-auto-merge/internal/output"
	"github.com/Ariequ/svn-auto-merge/internal/tui"
)

// newConfigCmd creates the config command
func newConfigCmd(root *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective agent configuration",
		Long: `Config prints the configuration the agent would run with: the file content
with defaults applied, paths still relative to repo_path.

Examples:
  svn-auto-merge config
  svn-auto-merge config init
  svn-auto-merge config init --force`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeConfigShow(cmd, root)
		},
	}

	cmd.AddCommand(newConfigInitCmd(root))
	return cmd
}

func executeConfigShow(cmd *cobra.Command, root *rootFlags) error {
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return err
	}
	return printConfig(cmd, cfg)
}

func printConfig(cmd *cobra.Command, cfg *config.Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// newConfigInitCmd creates the config init command
func newConfigInitCmd(root *rootFlags) *cobra.Command {
	f := &configInitFlags{}

	cmd := &cobra.Command{
		Use:          "init",
		Short:        "Write a starter configuration file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeConfigInit(root, f)
		},
	}

	cmd.Flags().BoolVar(&f.force, "force", false, "Overwrite an existing config file")
	return cmd
}

type configInitFlags struct {
	force bool
}

func executeConfigInit(root *rootFlags, f *configInitFlags) error {
	if _, err := os.Stat(root.configPath); err == nil && !f.force {
		return fmt.Errorf("%s already exists (pass --force to overwrite)", root.configPath)
	}

	cfg := starterConfig()
	if tui.IsTTY() {
		if err := promptStarterConfig(cfg); err != nil {
			return err
		}
	}

	if err := cfg.Save(root.configPath); err != nil {
		return err
	}

	splog := output.NewSplog()
	splog.Info("Wrote %s", root.configPath)
	splog.Tip("edit match_patterns before scheduling the agent; an empty set merges nothing")
	return nil
}

// starterConfig is the default config with placeholder branch paths and one
// example rule.
func starterConfig() *config.Config {
	cfg := config.Default()
	cfg.SourceBranch = "branches/dev"
	cfg.TargetBranch = "trunk"
	cfg.MatchPatterns = map[string]string{
		"ticket": `--ticket=\w+`,
	}
	return cfg
}

func promptStarterConfig(cfg *config.Config) error {
	prompts := []struct {
		message string
		target  *string
	}{
		{"Working copy of the target branch", &cfg.RepoPath},
		{"Source branch path inside the repository", &cfg.SourceBranch},
		{"Target branch path", &cfg.TargetBranch},
	}

	for _, p := range prompts {
		var value string
		prompt := &survey.Input{
			Message: p.message,
			Default: *p.target,
		}
		if err := survey.AskOne(prompt, &value); err != nil {
			return tui.ErrCanceled
		}
		if value != "" {
			*p.target = value
		}
	}
	return nil
}
