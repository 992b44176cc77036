package zoneload

import (
	"context"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/geodnsd/geodnsd/internal/ztree"
)

// Reloader periodically rescans a zone directory and swaps a freshly
// built Tree into a ztree.Manager, paced by a token bucket so a storm
// of rapid mtime changes (e.g. an rsync of many zone files) coalesces
// into at most one rebuild per configured interval, the same idiom the
// teacher's engine.RateLimiter applies to per-client query rates
// (internal/engine/ratelimiter.go), repurposed here to reload pacing.
type Reloader struct {
	dir        string
	defaultTTL uint32
	mgr        *ztree.Manager
	limiter    *rate.Limiter
	interval   time.Duration
}

// NewReloader returns a Reloader that rescans dir no more than once per
// interval.
func NewReloader(dir string, defaultTTL uint32, mgr *ztree.Manager, interval time.Duration) *Reloader {
	return &Reloader{
		dir:        dir,
		defaultTTL: defaultTTL,
		mgr:        mgr,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		interval:   interval,
	}
}

// LoadOnce performs a single synchronous load-and-swap, used at
// startup before Run's background loop takes over.
func (r *Reloader) LoadOnce() error {
	tree, err := LoadDir(r.dir, r.defaultTTL)
	if tree != nil {
		r.mgr.Swap(tree)
	}
	return err
}

// Run rescans the zone directory until ctx is cancelled, waiting on
// the rate limiter between rescans so a burst of filesystem events
// never triggers more than one rebuild per interval.
func (r *Reloader) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.limiter.Wait(ctx); err != nil {
				return
			}
			tree, err := LoadDir(r.dir, r.defaultTTL)
			if err != nil {
				log.Printf("zoneload: reload: %v", err)
				continue
			}
			r.mgr.Swap(tree)
		}
	}
}
