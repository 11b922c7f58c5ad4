// Package engine drives the merge state machine. Each cycle discovers
// revisions on the source branch past the cursor, filters them through the
// configured patterns, and walks every candidate to a terminal outcome
// before touching the next one.
package engine

import (
	"github.com/Ariequ/svn-auto-merge/internal/analysis"
	"github.com/Ariequ/svn-auto-merge/internal/config"
	"github.com/Ariequ/svn-auto-merge/internal/cursor"
	"github.com/Ariequ/svn-auto-merge/internal/journal"
	"github.com/Ariequ/svn-auto-merge/internal/match"
	"github.com/Ariequ/svn-auto-merge/internal/output"
	"github.com/Ariequ/svn-auto-merge/internal/svn"
)

// Scope bounds candidate discovery for one cycle. The zero value is
// unbounded and processes everything newer than the cursor.
type Scope struct {
	// Limit is the highest revision the cycle may process. Zero means no
	// bound.
	Limit int64
}

// Bounded reports whether the scope caps discovery.
func (s Scope) Bounded() bool {
	return s.Limit > 0
}

// Merge coalesces two scopes into the wider one. An unbounded scope absorbs
// any bound; two bounds keep the higher revision.
func (s Scope) Merge(other Scope) Scope {
	if !s.Bounded() || !other.Bounded() {
		return Scope{}
	}
	if other.Limit > s.Limit {
		return other
	}
	return s
}

// CycleResult summarizes one pass over the source branch.
type CycleResult struct {
	Merged     int
	Skipped    int
	Conflicted int

	// Failed is set when a revision reached the failed outcome. The cursor
	// stays behind that revision so the next cycle retries it.
	Failed bool

	// Err is the error that ended the cycle early, if any. Transient errors
	// park the cursor for the next trigger; fatal errors should stop the
	// process.
	Err error

	// Attempts lists every processed revision in order.
	Attempts []journal.Attempt

	// Cursor is the watermark after the pass.
	Cursor int64
}

// Processed returns the number of revisions that reached a terminal
// outcome this cycle.
func (r CycleResult) Processed() int {
	return len(r.Attempts)
}

// Params carries the collaborators the engine needs.
type Params struct {
	Gateway      svn.Gateway
	Cursor       cursor.Cursor
	Matcher      *match.Matcher
	Journal      journal.Recorder
	Analyzer     analysis.Client
	Log          *output.Splog
	SourceBranch string
	TargetBranch string
}

// Engine owns the target working copy for the duration of a cycle. It is
// not safe for concurrent cycles; the trigger gate serializes callers.
type Engine struct {
	gateway  svn.Gateway
	cursor   cursor.Cursor
	matcher  *match.Matcher
	journal  journal.Recorder
	analyzer analysis.Client
	log      *output.Splog
	source   string
	target   string
}

// New creates an engine. A nil journal or analyzer degrades to no-op
// collaborators so callers without those features configured need no
// special casing.
func New(p Params) *Engine {
	if p.Journal == nil {
		p.Journal = journal.Discard{}
	}
	if p.Analyzer == nil {
		p.Analyzer = analysis.NewClient(config.OllamaConfig{})
	}
	if p.Log == nil {
		p.Log = output.NewSplog()
	}
	if p.Matcher == nil {
		// An absent rule set matches nothing; revisions are skipped, never
		// merged by accident.
		p.Matcher, _ = match.Compile(nil, match.ModeAll)
	}

	return &Engine{
		gateway:  p.Gateway,
		cursor:   p.Cursor,
		matcher:  p.Matcher,
		journal:  p.Journal,
		analyzer: p.Analyzer,
		log:      p.Log,
		source:   p.SourceBranch,
		target:   p.TargetBranch,
	}
}
