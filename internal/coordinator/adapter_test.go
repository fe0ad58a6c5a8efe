package coordinator

import (
	"context"
	"testing"
	"time"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/source"
	"cropfetcher/internal/table"
	"cropfetcher/internal/testutil"
)

func TestBind_Success(t *testing.T) {
	d := source.Descriptor{Name: "weather", Mode: source.ModeAsync, Destination: "noaa_weather_data.csv"}
	writer := testutil.NewRecordingWriter()

	r := Bind(Task{Descriptor: d, Fetcher: testutil.NewMockFetcher("weather", testutil.NewTable(4), nil)}, writer, 0)
	if r.Descriptor() != d {
		t.Errorf("Descriptor() = %+v, want %+v", r.Descriptor(), d)
	}

	out := r.Run(context.Background())
	if !out.Succeeded() {
		t.Fatalf("Run() failed: %v", out.Err)
	}
	if out.Rows != 4 || out.Destination != d.Destination || out.Mode != "async" {
		t.Errorf("Run() = %+v", out)
	}
	if _, ok := writer.Written(d.Destination); !ok {
		t.Error("table not written")
	}
}

func TestBind_TimeoutAppliedToContext(t *testing.T) {
	var deadline time.Time
	var hasDeadline bool
	f := &testutil.MockFetcher{
		FetchFunc: func(ctx context.Context) (*table.Table, error) {
			deadline, hasDeadline = ctx.Deadline()
			return testutil.NewTable(1), nil
		},
	}
	d := source.Descriptor{Name: "x", Mode: source.ModeDirect, Destination: "x.csv"}

	Bind(Task{Descriptor: d, Fetcher: f}, testutil.NewRecordingWriter(), time.Minute).Run(context.Background())
	if !hasDeadline || time.Until(deadline) > time.Minute {
		t.Errorf("deadline = %v (set=%v), want within one minute", deadline, hasDeadline)
	}

	Bind(Task{Descriptor: d, Fetcher: f}, testutil.NewRecordingWriter(), 0).Run(context.Background())
	if hasDeadline {
		t.Error("zero timeout should not set a deadline")
	}
}

func TestBind_PanicWithError(t *testing.T) {
	f := &testutil.MockFetcher{
		FetchFunc: func(ctx context.Context) (*table.Table, error) {
			panic("unexpected payload")
		},
	}
	d := source.Descriptor{Name: "trends", Mode: source.ModePooled, Destination: "google_trends.csv"}
	writer := testutil.NewRecordingWriter()

	out := Bind(Task{Descriptor: d, Fetcher: f}, writer, 0).Run(context.Background())
	if fetcher.TypeOf(out.Err) != fetcher.ErrorTypePanic {
		t.Errorf("TypeOf() = %s, want panic", fetcher.TypeOf(out.Err))
	}
	if len(writer.Calls()) != 0 {
		t.Error("writer called after panic")
	}
}
