package runtime_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ariequ/svn-auto-merge/internal/config"
	"github.com/Ariequ/svn-auto-merge/internal/runtime"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.RepoPath = t.TempDir()
	cfg.SourceBranch = "branches/feature-x"
	cfg.TargetBranch = "trunk"
	cfg.MatchPatterns = map[string]string{"bug": `--bug=\w+`}
	return cfg
}

func TestNewContext(t *testing.T) {
	t.Run("wires every collaborator", func(t *testing.T) {
		ctx, err := runtime.NewContext(testConfig(t))
		require.NoError(t, err)
		defer ctx.Close()

		require.NotNil(t, ctx.Engine)
		require.NotNil(t, ctx.Gateway)
		require.NotNil(t, ctx.Cursor)
		require.NotNil(t, ctx.Matcher)
		require.NotNil(t, ctx.Journal)
		require.NotNil(t, ctx.Analyzer)
		require.NotNil(t, ctx.Splog)
	})

	t.Run("resolves queue and signal paths against the working copy", func(t *testing.T) {
		cfg := testConfig(t)
		ctx, err := runtime.NewContext(cfg)
		require.NoError(t, err)
		defer ctx.Close()

		require.Equal(t, filepath.Join(cfg.RepoPath, "logs", "merge_requests.json"), ctx.QueuePath())
		require.Equal(t, filepath.Join(cfg.RepoPath, "logs", "hook_signal.txt"), ctx.SignalPath())
	})

	t.Run("rejects a match pattern that does not compile", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.MatchPatterns = map[string]string{"bad": "("}

		_, err := runtime.NewContext(cfg)
		require.Error(t, err)
		require.Contains(t, err.Error(), "match pattern")
	})
}

func TestGetContext(t *testing.T) {
	t.Run("reports a missing config file", func(t *testing.T) {
		_, err := runtime.GetContext(filepath.Join(t.TempDir(), "nope.json"))
		require.Error(t, err)
		require.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("builds a context from a config file", func(t *testing.T) {
		cfg := testConfig(t)
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, cfg.Save(path))

		ctx, err := runtime.GetContext(path)
		require.NoError(t, err)
		defer ctx.Close()

		require.Equal(t, "branches/feature-x", ctx.Config.SourceBranch)
	})
}
