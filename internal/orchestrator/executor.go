package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/replyscout/internal/config"
)

// Executor runs n independent jobs. Jobs never fail; each records its own
// outcome.
type Executor interface {
	Run(ctx context.Context, n int, job func(ctx context.Context, i int))
}

// Sequential runs jobs one after another in index order.
type Sequential struct{}

func (Sequential) Run(ctx context.Context, n int, job func(ctx context.Context, i int)) {
	for i := 0; i < n; i++ {
		job(ctx, i)
	}
}

// Pool runs jobs concurrently on at most Workers goroutines.
type Pool struct {
	Workers int
}

func (p Pool) Run(ctx context.Context, n int, job func(ctx context.Context, i int)) {
	var g errgroup.Group
	g.SetLimit(max(p.Workers, 1))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			job(ctx, i)
			return nil
		})
	}
	g.Wait()
}

// NewExecutor returns the executor named by scan.executor.
func NewExecutor(cfg config.ScanConfig) Executor {
	if cfg.Executor == config.ExecutorPool {
		return Pool{Workers: cfg.Workers}
	}
	return Sequential{}
}
