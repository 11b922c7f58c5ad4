package runtime

import (
	"fmt"

	"github.com/Ariequ/svn-auto-merge/internal/analysis"
	"github.com/Ariequ/svn-auto-merge/internal/config"
	"github.com/Ariequ/svn-auto-merge/internal/cursor"
	"github.com/Ariequ/svn-auto-merge/internal/engine"
	"github.com/Ariequ/svn-auto-merge/internal/journal"
	"github.com/Ariequ/svn-auto-merge/internal/match"
	"github.com/Ariequ/svn-auto-merge/internal/output"
	"github.com/Ariequ/svn-auto-merge/internal/svn"
)

// Context provides access to the wired collaborators for commands
type Context struct {
	Config   *config.Config
	Splog    *output.Splog
	Gateway  svn.Gateway
	Cursor   cursor.Cursor
	Matcher  *match.Matcher
	Journal  *journal.Store
	Analyzer analysis.Client
	Engine   *engine.Engine
}

// GetContext loads the configuration at configPath and assembles the context
// commands execute against.
func GetContext(configPath string) (*Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewContext(cfg)
}

// NewContext wires a context from an already-loaded configuration.
func NewContext(cfg *config.Config) (*Context, error) {
	var splog *output.Splog
	if cfg.LogFile != "" {
		s, err := output.NewSplogWithFile(cfg.ResolvePath(cfg.LogFile))
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		splog = s
	} else {
		splog = output.NewSplog()
	}

	matcher, err := match.Compile(cfg.MatchPatterns, match.Mode(cfg.MatchMode))
	if err != nil {
		return nil, fmt.Errorf("failed to compile match patterns: %w", err)
	}

	gateway := svn.NewGateway(cfg.RepoPath, cfg.SourceBranch, cfg.SVNTimeout())
	cur := cursor.NewFileCursor(cfg.ResolvePath(cfg.CursorFile), cfg.StartRevision)
	analyzer := analysis.NewClient(cfg.Ollama)

	// The journal is advisory history. Merging continues without it, the
	// cursor file alone decides what has been processed.
	var store *journal.Store
	if path := cfg.ResolvePath(cfg.JournalFile); path != "" {
		store, err = journal.Open(path)
		if err != nil {
			splog.Warn("merge journal unavailable: %v", err)
			store = nil
		}
	}

	params := engine.Params{
		Gateway:      gateway,
		Cursor:       cur,
		Matcher:      matcher,
		Analyzer:     analyzer,
		Log:          splog,
		SourceBranch: cfg.SourceBranch,
		TargetBranch: cfg.TargetBranch,
	}
	if store != nil {
		params.Journal = store
	}

	return &Context{
		Config:   cfg,
		Splog:    splog,
		Gateway:  gateway,
		Cursor:   cur,
		Matcher:  matcher,
		Journal:  store,
		Analyzer: analyzer,
		Engine:   engine.New(params),
	}, nil
}

// QueuePath returns the resolved merge request queue path.
func (c *Context) QueuePath() string {
	return c.Config.ResolvePath(c.Config.MergeRequestsFile)
}

// SignalPath returns the resolved hook signal file path.
func (c *Context) SignalPath() string {
	return c.Config.ResolvePath(c.Config.HookSignalFile)
}

// Close releases the journal and log file handles.
func (c *Context) Close() {
	if c.Journal != nil {
		_ = c.Journal.Close()
	}
	_ = c.Splog.Close()
}
