package noaa

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/ratelimit"
)

var testQuery = Query{
	DatasetID:    "GHCND",
	StationID:    "GHCND:USW00094846",
	LookbackDays: 30,
	Limit:        1000,
	Units:        "metric",
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)
}

const dataBody = `{
	"metadata": {"resultset": {"offset": 1, "count": 3, "limit": 1000}},
	"results": [
		{"date": "2024-02-14T00:00:00", "datatype": "PRCP", "station": "GHCND:USW00094846", "attributes": ",,W,2400", "value": 2.3},
		{"date": "2024-02-14T00:00:00", "datatype": "TMAX", "station": "GHCND:USW00094846", "attributes": ",,W,2400", "value": 4.4},
		{"date": "2024-02-14T00:00:00", "datatype": "TMIN", "station": "GHCND:USW00094846", "attributes": ",,W,2400", "value": -3}
	]
}`

func TestNewWeatherFetcher(t *testing.T) {
	f := NewWeatherFetcher("test_token", testQuery, "https://www.ncei.noaa.gov/cdo-web/api/v2", ratelimit.Unlimited())

	if f == nil {
		t.Fatal("NewWeatherFetcher() returned nil")
	}
	if f.token != "test_token" {
		t.Errorf("token = %q, want %q", f.token, "test_token")
	}
	if f.now == nil {
		t.Error("clock is nil")
	}
	if f.Name() != "weather" {
		t.Errorf("Name() = %q, want weather", f.Name())
	}
}

func TestWeatherFetcher_Window(t *testing.T) {
	f := NewWeatherFetcher("t", testQuery, "http://unused", ratelimit.Unlimited(), WithClock(fixedClock))

	start, end := f.Window()
	if start != "2024-02-14" {
		t.Errorf("start = %q, want 2024-02-14", start)
	}
	if end != "2024-03-15" {
		t.Errorf("end = %q, want 2024-03-15", end)
	}
}

func TestWeatherFetcher_Fetch_Success(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data" {
			t.Errorf("path = %q, want /data", r.URL.Path)
		}
		if got := r.Header.Get("token"); got != "test_token" {
			t.Errorf("token header = %q, want test_token", got)
		}

		want := map[string]string{
			"datasetid": "GHCND",
			"stationid": "GHCND:USW00094846",
			"startdate": "2024-02-14",
			"enddate":   "2024-03-15",
			"limit":     "1000",
			"units":     "metric",
		}
		for k, v := range want {
			if got := r.URL.Query().Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(dataBody))
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	f := NewWeatherFetcher("test_token", testQuery, server.URL, ratelimit.Unlimited(), WithClock(fixedClock))
	rows, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}

	if rows.Len() != 3 {
		t.Errorf("Len() = %d, want 3", rows.Len())
	}
	if got := rows.Columns(); !reflect.DeepEqual(got, Columns) {
		t.Errorf("Columns() = %v, want %v", got, Columns)
	}

	want := []string{"2024-02-14T00:00:00", "TMIN", "GHCND:USW00094846", ",,W,2400", "-3"}
	if got := rows.Row(2); !reflect.DeepEqual(got, want) {
		t.Errorf("Row(2) = %v, want %v", got, want)
	}
}

func TestWeatherFetcher_Fetch_EmptyWindow(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"empty results", `{"metadata": {"resultset": {"offset": 1, "count": 0, "limit": 1000}}, "results": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(tt.body))
			})

			server := httptest.NewServer(handler)
			defer server.Close()

			f := NewWeatherFetcher("test_token", testQuery, server.URL, ratelimit.Unlimited(), WithClock(fixedClock))
			_, err := f.Fetch(context.Background())
			if !errors.Is(err, fetcher.ErrNoData) {
				t.Errorf("Fetch() error = %v, want ErrNoData", err)
			}
		})
	}
}

func TestWeatherFetcher_Fetch_HTTPErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantType   fetcher.ErrorType
	}{
		{"bad token", http.StatusBadRequest, fetcher.ErrorTypeClient},
		{"rate limited", http.StatusTooManyRequests, fetcher.ErrorTypeRateLimit},
		{"server error", http.StatusServiceUnavailable, fetcher.ErrorTypeServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			server := httptest.NewServer(handler)
			defer server.Close()

			f := NewWeatherFetcher("test_token", testQuery, server.URL, ratelimit.Unlimited(), WithClock(fixedClock))
			_, err := f.Fetch(context.Background())

			var fe *fetcher.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("Fetch() error = %v, want FetchError", err)
			}
			if fe.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", fe.Type, tt.wantType)
			}
			if fe.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", fe.StatusCode, tt.statusCode)
			}
		})
	}
}

func TestWeatherFetcher_Fetch_Timeout(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	f := NewWeatherFetcher("test_token", testQuery, server.URL, ratelimit.Unlimited(), WithClock(fixedClock))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx)
	if got := fetcher.TypeOf(err); got != fetcher.ErrorTypeTimeout {
		t.Errorf("TypeOf() = %q, want %q (%v)", got, fetcher.ErrorTypeTimeout, err)
	}
}
