package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/snapshot"
	"cropfetcher/internal/source"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger used for per-source result lines.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPoolSize sets the worker pool size for pooled sources. The pool is
// never smaller than the number of pooled sources.
func WithPoolSize(n int) Option {
	return func(c *Coordinator) {
		c.poolSize = n
	}
}

// WithTimeout bounds each source's fetch. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.timeout = d
	}
}

// Coordinator runs every source under its execution model and aggregates
// the outcomes.
type Coordinator struct {
	tasks    []Task
	writer   snapshot.Writer
	logger   *slog.Logger
	poolSize int
	timeout  time.Duration
}

// New creates a new Coordinator with the given tasks and snapshot writer
func New(tasks []Task, writer snapshot.Writer, opts ...Option) *Coordinator {
	c := &Coordinator{
		tasks:  tasks,
		writer: writer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes all sources and returns once every one has reached a
// terminal state. Pooled and async sources start first and run in two
// independent domains; direct sources then run on the calling goroutine.
//
// Run returns an error only when the task list itself is malformed.
// Source failures are reported in the Summary.
func (c *Coordinator) Run(ctx context.Context) (*Summary, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
	}
	c.logger.Info("run started", "run_id", summary.RunID, "sources", len(c.tasks))

	groups := make(map[source.Mode][]int)
	for i, t := range c.tasks {
		groups[t.Descriptor.Mode] = append(groups[t.Descriptor.Mode], i)
	}

	pooled := newPoolExecutor(max(c.poolSize, len(groups[source.ModePooled]), 1))
	async := &asyncExecutor{}
	executors := []struct {
		mode source.Mode
		ex   executor
	}{
		{source.ModePooled, pooled},
		{source.ModeAsync, async},
		{source.ModeDirect, directExecutor{}},
	}

	// Each slot is written by exactly one goroutine and read after Wait.
	outcomes := make([]fetcher.Outcome, len(c.tasks))
	for _, e := range executors {
		for _, i := range groups[e.mode] {
			i := i
			r := Bind(c.tasks[i], c.writer, c.timeout)
			e.ex.Go(func() {
				outcomes[i] = r.Run(ctx)
				c.report(outcomes[i])
			})
		}
	}

	pooled.Wait()
	async.Wait()

	summary.Outcomes = outcomes
	summary.Duration = time.Since(summary.StartedAt)
	c.logger.Info("run finished",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded(),
		"failed", summary.Failed(),
		"duration", summary.Duration)

	return summary, nil
}

func (c *Coordinator) validate() error {
	if len(c.tasks) == 0 {
		return fmt.Errorf("no fetchers configured")
	}
	if c.writer == nil {
		return fmt.Errorf("no snapshot writer configured")
	}

	descs := make([]source.Descriptor, len(c.tasks))
	for i, t := range c.tasks {
		if t.Fetcher == nil {
			return fmt.Errorf("source %s: no fetcher", t.Descriptor.Name)
		}
		descs[i] = t.Descriptor
	}
	if err := source.Validate(descs); err != nil {
		return fmt.Errorf("invalid sources: %w", err)
	}
	return nil
}

// report logs one outcome as soon as it is known.
func (c *Coordinator) report(o fetcher.Outcome) {
	if o.Err != nil {
		c.logger.Error("source failed",
			"source", o.Source,
			"mode", o.Mode,
			"error_type", fetcher.TypeOf(o.Err),
			"error", o.Err,
			"duration", o.Duration)
		return
	}
	c.logger.Info("source saved",
		"source", o.Source,
		"mode", o.Mode,
		"rows", o.Rows,
		"columns", o.Columns,
		"destination", o.Destination,
		"duration", o.Duration)
}
