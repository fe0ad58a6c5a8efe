package nass

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/ratelimit"
)

var testCommodities = []Commodity{
	{Name: "Corn", Desc: "CORN"},
	{Name: "Soybeans", Desc: "SOYBEANS"},
	{Name: "Rice", Desc: "RICE"},
}

func statsBody(desc string) string {
	return `{"data": [
		{"year": 2023, "reference_period_desc": "YEAR", "state_fips_code": "19", "state_alpha": "IA",
		 "state_name": "IOWA", "county_code": "001", "county_name": "ADAIR", "commodity_desc": "` + desc + `",
		 "statisticcat_desc": "AREA HARVESTED", "unit_desc": "ACRES", "Value": "92,500", "source_desc": "SURVEY"},
		{"year": 2022, "reference_period_desc": "YEAR", "state_fips_code": "19", "state_alpha": "IA",
		 "state_name": "IOWA", "county_code": "003", "county_name": "ADAMS", "commodity_desc": "` + desc + `",
		 "statisticcat_desc": "AREA HARVESTED", "unit_desc": "ACRES", "Value": "61,200"}
	]}`
}

func newStatsServer(t *testing.T, failing map[string]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		desc := r.URL.Query().Get("commodity_desc")
		if status, ok := failing[desc]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			w.Write([]byte(`{"error": ["bad request - invalid query"]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(statsBody(desc)))
	}))
}

func TestNewStatsFetcher(t *testing.T) {
	f := NewStatsFetcher("test_key", testCommodities, Query{YearFrom: 2015}, "https://quickstats.nass.usda.gov/api", ratelimit.Unlimited())

	if f == nil {
		t.Fatal("NewStatsFetcher() returned nil")
	}
	if f.apiKey != "test_key" {
		t.Errorf("apiKey = %q, want %q", f.apiKey, "test_key")
	}
	if f.Name() != "farm" {
		t.Errorf("Name() = %q, want farm", f.Name())
	}
}

func TestStatsFetcher_Fetch_VerifyQueryParams(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api_GET/" {
			t.Errorf("path = %q, want /api_GET/", r.URL.Path)
		}

		want := map[string]string{
			"key":               "test_key",
			"commodity_desc":    "CORN",
			"sector_desc":       "CROPS",
			"statisticcat_desc": "AREA HARVESTED",
			"unit_desc":         "ACRES",
			"year__GE":          "2015",
			"agg_level_desc":    "COUNTY",
			"format":            "json",
		}
		for k, v := range want {
			if got := r.URL.Query().Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(statsBody("CORN")))
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	f := NewStatsFetcher("test_key", testCommodities[:1], Query{YearFrom: 2015}, server.URL, ratelimit.Unlimited())
	if _, err := f.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}
}

func TestStatsFetcher_Fetch_Success(t *testing.T) {
	server := newStatsServer(t, nil)
	defer server.Close()

	f := NewStatsFetcher("test_key", testCommodities, Query{YearFrom: 2015}, server.URL, ratelimit.Unlimited())
	rows, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}

	if rows.Len() != 6 {
		t.Errorf("Len() = %d, want 6", rows.Len())
	}
	if got := rows.Columns(); !reflect.DeepEqual(got, Columns) {
		t.Errorf("Columns() = %v, want %v", got, Columns)
	}

	want := []string{"2023", "YEAR", "19", "IA", "IOWA", "001", "ADAIR", "CORN", "AREA HARVESTED", "ACRES", "92,500"}
	if got := rows.Row(0); !reflect.DeepEqual(got, want) {
		t.Errorf("Row(0) = %v, want %v", got, want)
	}

	descs, _ := rows.Column("commodity_desc")
	if descs[2] != "SOYBEANS" || descs[4] != "RICE" {
		t.Errorf("commodity order = %v, want input order", descs)
	}
}

func TestStatsFetcher_Fetch_OneSubFetchFails(t *testing.T) {
	server := newStatsServer(t, map[string]int{"RICE": http.StatusBadRequest})
	defer server.Close()

	f := NewStatsFetcher("test_key", testCommodities, Query{YearFrom: 2015}, server.URL, ratelimit.Unlimited())
	rows, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() returned unexpected error: %v", err)
	}

	if rows.Len() != 4 {
		t.Errorf("Len() = %d, want 4", rows.Len())
	}
	descs, _ := rows.Column("commodity_desc")
	for _, d := range descs {
		if d == "RICE" {
			t.Error("rows from the failed commodity were included")
		}
	}
}

func TestStatsFetcher_Fetch_AllFail(t *testing.T) {
	server := newStatsServer(t, map[string]int{
		"CORN":     http.StatusUnauthorized,
		"SOYBEANS": http.StatusUnauthorized,
		"RICE":     http.StatusUnauthorized,
	})
	defer server.Close()

	f := NewStatsFetcher("bad_key", testCommodities, Query{YearFrom: 2015}, server.URL, ratelimit.Unlimited())
	_, err := f.Fetch(context.Background())
	if err == nil {
		t.Fatal("Fetch() expected error, got nil")
	}

	var fe *fetcher.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("error should wrap a FetchError, got %T", err)
	}
	if fe.Type != fetcher.ErrorTypeClient {
		t.Errorf("Type = %q, want %q", fe.Type, fetcher.ErrorTypeClient)
	}
}

func TestStatsFetcher_Fetch_NoRecords(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": []}`))
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	f := NewStatsFetcher("test_key", testCommodities[:1], Query{YearFrom: 2015}, server.URL, ratelimit.Unlimited())
	_, err := f.Fetch(context.Background())
	if !errors.Is(err, fetcher.ErrNoData) {
		t.Errorf("Fetch() error = %v, want ErrNoData", err)
	}
}

func TestStatsFetcher_Fetch_InvalidJSON(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": [`))
	})

	server := httptest.NewServer(handler)
	defer server.Close()

	f := NewStatsFetcher("test_key", testCommodities[:1], Query{YearFrom: 2015}, server.URL, ratelimit.Unlimited())
	_, err := f.Fetch(context.Background())
	if err == nil {
		t.Fatal("Fetch() expected error for invalid JSON, got nil")
	}
	if !strings.Contains(err.Error(), "farm CORN") {
		t.Errorf("error should name the sub-fetch, got %q", err.Error())
	}
	if got := fetcher.TypeOf(err); got != fetcher.ErrorTypeParse {
		t.Errorf("TypeOf() = %q, want %q", got, fetcher.ErrorTypeParse)
	}
}

func TestParseRecords_MissingFields(t *testing.T) {
	rows := parseRecords([]map[string]any{
		{"year": float64(2021), "Value": "(D)"},
	})

	if rows.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", rows.Len())
	}
	year, _ := rows.Column("year")
	if year[0] != "2021" {
		t.Errorf("year = %q, want 2021", year[0])
	}
	county, _ := rows.Column("county_name")
	if county[0] != "" {
		t.Errorf("county_name = %q, want empty", county[0])
	}
}
