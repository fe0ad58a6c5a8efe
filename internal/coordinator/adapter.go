package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/snapshot"
	"cropfetcher/internal/source"
	"cropfetcher/internal/table"
)

// Task pairs a source descriptor with the fetcher that implements it.
type Task struct {
	Descriptor source.Descriptor
	Fetcher    fetcher.Fetcher
}

// Runnable is a source ready to run to completion. Run never panics and
// never returns an error: every failure is reported in the Outcome.
type Runnable interface {
	Descriptor() source.Descriptor
	Run(ctx context.Context) fetcher.Outcome
}

// adapter runs one task end to end: fetch, check, write.
type adapter struct {
	task    Task
	writer  snapshot.Writer
	timeout time.Duration
}

// Bind wraps a task and the snapshot writer into a Runnable. A positive
// timeout bounds the fetch.
func Bind(task Task, writer snapshot.Writer, timeout time.Duration) Runnable {
	return &adapter{
		task:    task,
		writer:  writer,
		timeout: timeout,
	}
}

func (a *adapter) Descriptor() source.Descriptor {
	return a.task.Descriptor
}

func (a *adapter) Run(ctx context.Context) fetcher.Outcome {
	d := a.task.Descriptor
	start := time.Now()

	out := fetcher.Outcome{
		Source:      d.Name,
		Destination: d.Destination,
		Mode:        string(d.Mode),
	}

	var (
		rows *table.Table
		err  error
	)
	if r := panics.Try(func() { rows, err = a.fetch(ctx) }); r != nil {
		rows, err = nil, fetcher.NewPanicError(d.Name, r.AsError())
	}

	if err == nil {
		err = a.check(rows)
	}
	if err == nil {
		if werr := a.writer.Write(d.Destination, rows); werr != nil {
			err = fetcher.NewPersistenceError(d.Destination, werr)
		}
	}

	out.Duration = time.Since(start)
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", d.Name, err)
		return out
	}

	out.Rows = rows.Len()
	out.Columns = len(rows.Columns())
	return out
}

func (a *adapter) fetch(ctx context.Context) (*table.Table, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	return a.task.Fetcher.Fetch(ctx)
}

// check enforces the only shape rule a snapshot has: at least one row and
// equal-length columns.
func (a *adapter) check(rows *table.Table) error {
	if rows.Empty() {
		return fetcher.NewEmptyError(a.task.Descriptor.Name)
	}
	if err := rows.Validate(); err != nil {
		return fetcher.NewParseError("malformed table", err)
	}
	return nil
}
