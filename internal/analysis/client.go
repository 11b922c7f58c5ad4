// Package analysis provides the optional conflict-analysis collaborator.
// It is strictly advisory: a failed or slow analysis collapses into an
// "unavailable" result and never influences the rollback already taken.
package analysis

import (
	"context"

	"github.com/Ariequ/svn-auto-merge/internal/config"
	"github.com/Ariequ/svn-auto-merge/internal/svn"
)

// Request carries the conflict context handed to the analysis service.
type Request struct {
	Revision        svn.Revision
	SourceBranch    string
	TargetBranch    string
	ConflictedPaths []string
	MergeOutput     string
}

// Result is the advisory outcome of one analysis call. Unavailable is the
// sentinel for a disabled, unreachable, or timed-out service; Reason says
// which.
type Result struct {
	Revision        int64
	Explanation     string
	ConflictedPaths []string
	Unavailable     bool
	Reason          string
}

// Client analyzes merge conflicts.
//
// Analyze never returns an error: every failure mode is reported through the
// unavailable sentinel so callers cannot accidentally couple cycle control
// flow to the analysis service.
type Client interface {
	Analyze(ctx context.Context, req Request) Result
}

// Unavailable builds the sentinel result for req.
func Unavailable(req Request, reason string) Result {
	return Result{
		Revision:        req.Revision.Number,
		ConflictedPaths: req.ConflictedPaths,
		Unavailable:     true,
		Reason:          reason,
	}
}

// NewClient builds the collaborator for the given configuration. A disabled
// section yields a client that always reports unavailable.
func NewClient(cfg config.OllamaConfig) Client {
	if !cfg.Enabled {
		return &disabledClient{}
	}
	return NewOpenAIClient(cfg)
}

type disabledClient struct{}

func (d *disabledClient) Analyze(_ context.Context, req Request) Result {
	return Unavailable(req, "analysis disabled")
}
