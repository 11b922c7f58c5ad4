// Package trigger turns hook deliveries, timer ticks, and signal-file
// writes into serialized merge cycles. The working copy tolerates exactly
// one cycle at a time, so every trigger source funnels through the Gate.
package trigger

import (
	"context"
	"sync"

	"github.com/Ariequ/svn-auto-merge/internal/engine"
	"github.com/Ariequ/svn-auto-merge/internal/output"
)

// Gate serializes cycles: at most one runs, at most one is pending. A
// trigger arriving while a follow-up is already pending coalesces its scope
// into the pending one instead of queueing a second cycle.
type Gate struct {
	mu      sync.Mutex
	pending bool
	scope   engine.Scope
	dropped int

	// signal carries "work is pending" to the dispatcher. Buffered size 1:
	// bursts collapse into a single wakeup.
	signal chan struct{}

	log *output.Splog
}

// NewGate creates an idle gate.
func NewGate(log *output.Splog) *Gate {
	if log == nil {
		log = output.NewSplog()
	}
	return &Gate{
		signal: make(chan struct{}, 1),
		log:    log,
	}
}

// Submit requests a cycle bounded by scope. Safe from any goroutine.
func (g *Gate) Submit(scope engine.Scope) {
	g.mu.Lock()
	if g.pending {
		g.scope = g.scope.Merge(scope)
		g.dropped++
		g.mu.Unlock()
		g.log.Debug("cycle already pending; trigger coalesced")
		return
	}
	g.pending = true
	g.scope = scope
	g.mu.Unlock()

	select {
	case g.signal <- struct{}{}:
	default:
	}
}

// Dropped returns how many triggers were coalesced into an already-pending
// cycle instead of queueing their own.
func (g *Gate) Dropped() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dropped
}

// take claims the pending scope, if any.
func (g *Gate) take() (engine.Scope, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.pending {
		return engine.Scope{}, false
	}
	g.pending = false
	scope := g.scope
	g.scope = engine.Scope{}
	return scope, true
}

// Run dispatches cycles until ctx is done. runCycle is invoked strictly
// serially; triggers submitted while it executes coalesce into one
// follow-up cycle that runs immediately after.
func (g *Gate) Run(ctx context.Context, runCycle func(context.Context, engine.Scope)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.signal:
			for {
				scope, ok := g.take()
				if !ok {
					break
				}
				runCycle(ctx, scope)
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}
