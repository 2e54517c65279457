package queueprocessor

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunWorkers starts n independent Processor loops against the same spool,
// all sharing cfg (and hence cfg.NewMailer, called separately per
// delivery attempt so no connection state is shared). The hard-link claim
// in the per-message protocol is what makes this safe: it was already
// required to be safe across separate OS processes, so it is equally
// safe across goroutines within one. RunWorkers blocks until ctx is
// cancelled or a worker fails to even start (a malformed spool path,
// for instance); a failure in delivering any single message never
// surfaces here.
func RunWorkers(ctx context.Context, cfg Config, n int) error {
	if n < 1 {
		n = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			p, err := New(cfg)
			if err != nil {
				return err
			}
			return p.Run(ctx)
		})
	}
	return g.Wait()
}
