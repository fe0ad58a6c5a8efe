package coordinator

import (
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
)

// executor is one concurrency domain. Go submits work without waiting for
// it (except for the direct executor); Wait joins everything submitted.
type executor interface {
	Go(f func())
	Wait()
}

// directExecutor runs work immediately on the caller's goroutine.
type directExecutor struct{}

func (directExecutor) Go(f func()) { f() }

func (directExecutor) Wait() {}

// poolExecutor runs work on a bounded worker pool.
type poolExecutor struct {
	p *pool.Pool
}

func newPoolExecutor(size int) *poolExecutor {
	return &poolExecutor{p: pool.New().WithMaxGoroutines(size)}
}

func (e *poolExecutor) Go(f func()) { e.p.Go(f) }

func (e *poolExecutor) Wait() { e.p.Wait() }

// asyncExecutor starts every piece of work on its own goroutine; the
// goroutines park on network I/O and are woken by the runtime poller.
type asyncExecutor struct {
	wg conc.WaitGroup
}

func (e *asyncExecutor) Go(f func()) { e.wg.Go(f) }

func (e *asyncExecutor) Wait() { e.wg.Wait() }
