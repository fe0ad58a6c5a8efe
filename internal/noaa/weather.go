package noaa

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"resty.dev/v3"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/ratelimit"
	"cropfetcher/internal/source"
	"cropfetcher/internal/table"
)

// Columns of the weather snapshot, in order
var Columns = []string{"date", "datatype", "station", "attributes", "value"}

// DataResponse represents the CDO v2 /data response. An empty object means
// the window holds no observations.
type DataResponse struct {
	Metadata struct {
		ResultSet struct {
			Offset int `json:"offset"`
			Count  int `json:"count"`
			Limit  int `json:"limit"`
		} `json:"resultset"`
	} `json:"metadata"`
	Results []Observation `json:"results"`
}

// Observation is one station reading
type Observation struct {
	Date       string   `json:"date"`
	DataType   string   `json:"datatype"`
	Station    string   `json:"station"`
	Attributes string   `json:"attributes"`
	Value      *float64 `json:"value"`
}

// Query selects the dataset, station and window to request
type Query struct {
	DatasetID    string
	StationID    string
	LookbackDays int
	Limit        int
	Units        string
}

// Option configures a WeatherFetcher
type Option func(*WeatherFetcher)

// WithClock replaces the clock used to compute the observation window
func WithClock(now func() time.Time) Option {
	return func(f *WeatherFetcher) {
		f.now = now
	}
}

// WeatherFetcher fetches recent daily observations for one station from
// NOAA Climate Data Online
type WeatherFetcher struct {
	token   string
	query   Query
	client  *resty.Client
	limiter *ratelimit.Limiter
	now     func() time.Time
}

// NewWeatherFetcher creates a new weather fetcher
func NewWeatherFetcher(token string, query Query, baseURL string, limiter *ratelimit.Limiter, opts ...Option) *WeatherFetcher {
	f := &WeatherFetcher{
		token:   token,
		query:   query,
		client:  fetcher.NewHTTPClient(baseURL),
		limiter: limiter,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the source name
func (f *WeatherFetcher) Name() string {
	return source.Weather
}

// Window returns the start and end dates of the requested window, both
// inclusive and formatted as YYYY-MM-DD
func (f *WeatherFetcher) Window() (string, string) {
	end := f.now()
	start := end.AddDate(0, 0, -f.query.LookbackDays)
	return start.Format(time.DateOnly), end.Format(time.DateOnly)
}

// Fetch requests the observation window in a single call
func (f *WeatherFetcher) Fetch(ctx context.Context) (*table.Table, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APINOAA); err != nil {
		return nil, fetcher.NewNetworkError("weather: rate limiter", err)
	}

	start, end := f.Window()
	var result DataResponse

	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("token", f.token).
		SetQueryParams(map[string]string{
			"datasetid": f.query.DatasetID,
			"stationid": f.query.StationID,
			"startdate": start,
			"enddate":   end,
			"limit":     strconv.Itoa(f.query.Limit),
			"units":     f.query.Units,
		}).
		SetResult(&result).
		Get("/data")

	if err := fetcher.CheckResponse("weather", resp, err); err != nil {
		return nil, err
	}

	if len(result.Results) == 0 {
		return nil, fetcher.NewEmptyError(fmt.Sprintf("weather %s %s..%s", f.query.StationID, start, end))
	}

	t := table.New(Columns...)
	for _, o := range result.Results {
		t.AppendRow(o.Date, o.DataType, o.Station, o.Attributes, table.Cell(o.Value))
	}
	return t, nil
}
