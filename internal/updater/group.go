package updater

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunAll runs every loop until ctx is cancelled. The first fatal loop error
// cancels the others and is returned once all have stopped.
func RunAll(ctx context.Context, loops ...*Loop) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		g.Go(func() error {
			return l.Run(gctx)
		})
	}
	return g.Wait()
}
