package groutine

import (
	"context"
	"errors"
	"runtime/pprof"
	"sync"

	"github.com/sirupsen/logrus"
)

// Group runs the named workers of one pipeline. Each worker carries a pprof
// label with its name. The first worker to return cancels the shared context,
// so the remaining workers wind down with it.
type Group struct {
	cancel context.CancelFunc
	logger *logrus.Logger
	wg     sync.WaitGroup

	mu  sync.Mutex
	err error
}

// WithContext returns a Group and the context its workers run under.
// If parent is nil, context.Background() is used.
func WithContext(parent context.Context, logger *logrus.Logger) (*Group, context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Group{cancel: cancel, logger: logger}, ctx
}

// Go starts fn as a worker named name.
func (g *Group) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	g.wg.Add(1)
	labels := pprof.Labels("worker_name", name)

	go pprof.Do(ctx, labels, func(ctx context.Context) {
		defer g.wg.Done()

		err := fn(ctx)
		entry := g.logger.WithField("worker", name)
		if err != nil && !errors.Is(err, context.Canceled) {
			entry.WithError(err).Warn("Worker stopped with error")
			g.mu.Lock()
			if g.err == nil {
				g.err = err
			}
			g.mu.Unlock()
		} else {
			entry.Debug("Worker stopped")
		}
		g.cancel()
	})
}

// Wait blocks until every worker has returned and reports the first error
// other than context.Canceled.
func (g *Group) Wait() error {
	g.wg.Wait()
	g.cancel()

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
