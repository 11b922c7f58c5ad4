package trigger

import (
	"context"
	"time"

	"github.com/Ariequ/svn-auto-merge/internal/engine"
	"github.com/Ariequ/svn-auto-merge/internal/output"
)

// Poller submits an open-range cycle at a fixed interval. It is the safety
// net for lost hook deliveries: anything a hook missed is at most one
// interval away from being picked up.
type Poller struct {
	interval time.Duration
	gate     *Gate
	log      *output.Splog
}

// NewPoller creates a poller that submits to gate every interval.
func NewPoller(interval time.Duration, gate *Gate, log *output.Splog) *Poller {
	return &Poller{
		interval: interval,
		gate:     gate,
		log:      log,
	}
}

// Run blocks until ctx is done, submitting one open-range cycle per tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Debug("polling every %s", p.interval)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.gate.Submit(engine.Scope{})
		}
	}
}
