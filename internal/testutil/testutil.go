package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/table"
)

// MockFetcher is a mock implementation of the Fetcher interface for testing
type MockFetcher struct {
	FetchFunc func(ctx context.Context) (*table.Table, error)
	NameFunc  func() string
}

// Fetch implements the Fetcher interface
func (m *MockFetcher) Fetch(ctx context.Context) (*table.Table, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx)
	}
	return NewTable(1), nil
}

// Name implements the Fetcher interface
func (m *MockFetcher) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

// NewMockFetcher creates a simple mock fetcher with predefined results
func NewMockFetcher(name string, rows *table.Table, err error) fetcher.Fetcher {
	return &MockFetcher{
		FetchFunc: func(ctx context.Context) (*table.Table, error) {
			return rows, err
		},
		NameFunc: func() string {
			return name
		},
	}
}

// NewSlowFetcher creates a mock fetcher that returns n rows after delay,
// or the context error if ctx ends first.
func NewSlowFetcher(name string, n int, delay time.Duration) fetcher.Fetcher {
	return &MockFetcher{
		FetchFunc: func(ctx context.Context) (*table.Table, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				return NewTable(n), nil
			}
		},
		NameFunc: func() string {
			return name
		},
	}
}

// NewTable creates a two-column table with n rows.
func NewTable(n int) *table.Table {
	t := table.New("date", "value")
	for i := 0; i < n; i++ {
		t.AppendRow(fmt.Sprintf("2024-01-%02d", i%28+1), fmt.Sprintf("%d", i))
	}
	return t
}

// RecordingWriter is an in-memory snapshot writer that records every call.
// It is safe for concurrent use.
type RecordingWriter struct {
	mu     sync.Mutex
	writes map[string]*table.Table
	calls  []string

	// FailFor makes Write fail for the listed destinations
	FailFor map[string]error
}

// NewRecordingWriter creates an empty RecordingWriter
func NewRecordingWriter() *RecordingWriter {
	return &RecordingWriter{
		writes:  make(map[string]*table.Table),
		FailFor: make(map[string]error),
	}
}

// Write implements snapshot.Writer
func (w *RecordingWriter) Write(destination string, t *table.Table) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls = append(w.calls, destination)
	if err, ok := w.FailFor[destination]; ok {
		return err
	}
	w.writes[destination] = t
	return nil
}

// Calls returns every destination Write was called with, in call order
func (w *RecordingWriter) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

// Written returns the table stored for destination, if any
func (w *RecordingWriter) Written(destination string) (*table.Table, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.writes[destination]
	return t, ok
}
