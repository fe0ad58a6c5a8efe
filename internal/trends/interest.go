package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"resty.dev/v3"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/ratelimit"
	"cropfetcher/internal/source"
	"cropfetcher/internal/table"
)

// timeseriesWidget is the explore widget that carries interest over time
const timeseriesWidget = "TIMESERIES"

// Query describes the keyword comparison to request
type Query struct {
	Keywords  []string
	Timeframe string
	Geo       string
	Language  string
	TZOffset  int
}

// ExploreResponse is the explore payload after the anti-JSON prefix
type ExploreResponse struct {
	Widgets []Widget `json:"widgets"`
}

// Widget is one explore widget. Request is echoed back verbatim to the
// widget data endpoint.
type Widget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

// MultilineResponse is the interest-over-time payload
type MultilineResponse struct {
	Default struct {
		TimelineData []TimelinePoint `json:"timelineData"`
	} `json:"default"`
}

// TimelinePoint is one period with one value per keyword
type TimelinePoint struct {
	Time      string `json:"time"`
	Value     []int  `json:"value"`
	IsPartial bool   `json:"isPartial"`
}

type comparisonItem struct {
	Keyword string `json:"keyword"`
	Geo     string `json:"geo"`
	Time    string `json:"time"`
}

type exploreRequest struct {
	ComparisonItem []comparisonItem `json:"comparisonItem"`
	Category       int              `json:"category"`
	Property       string           `json:"property"`
}

// InterestFetcher fetches relative search interest over time for a set of
// keywords from Google Trends
type InterestFetcher struct {
	query   Query
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// NewInterestFetcher creates a new trends fetcher
func NewInterestFetcher(query Query, baseURL string, limiter *ratelimit.Limiter) *InterestFetcher {
	return &InterestFetcher{
		query:   query,
		client:  fetcher.NewHTTPClient(baseURL),
		limiter: limiter,
	}
}

// Name returns the source name
func (f *InterestFetcher) Name() string {
	return source.Trends
}

// Fetch resolves the time series widget, then downloads its data. The
// result has a date column, one column per keyword and isPartial.
func (f *InterestFetcher) Fetch(ctx context.Context) (*table.Table, error) {
	if len(f.query.Keywords) == 0 {
		return nil, fetcher.NewEmptyError("trends: no keywords")
	}

	widget, err := f.explore(ctx)
	if err != nil {
		return nil, err
	}

	var data MultilineResponse
	if err := f.get(ctx, "/trends/api/widgetdata/multiline", map[string]string{
		"req":   string(widget.Request),
		"token": widget.Token,
	}, &data); err != nil {
		return nil, err
	}

	points := data.Default.TimelineData
	if len(points) == 0 {
		return nil, fetcher.NewEmptyError("trends")
	}

	rows, err := parseTimeline(points, f.query.Keywords)
	if err != nil {
		return nil, fetcher.NewParseError("trends", err)
	}
	return rows, nil
}

// explore returns the time series widget for the configured comparison
func (f *InterestFetcher) explore(ctx context.Context) (*Widget, error) {
	items := make([]comparisonItem, len(f.query.Keywords))
	for i, kw := range f.query.Keywords {
		items[i] = comparisonItem{Keyword: kw, Geo: f.query.Geo, Time: f.query.Timeframe}
	}
	req, err := json.Marshal(exploreRequest{ComparisonItem: items})
	if err != nil {
		return nil, fetcher.NewParseError("trends: encode explore request", err)
	}

	var result ExploreResponse
	if err := f.get(ctx, "/trends/api/explore", map[string]string{"req": string(req)}, &result); err != nil {
		return nil, err
	}

	for _, w := range result.Widgets {
		if w.ID == timeseriesWidget {
			if w.Token == "" {
				return nil, fetcher.NewParseError("trends", fmt.Errorf("%s widget has no token", timeseriesWidget))
			}
			return &w, nil
		}
	}
	return nil, fetcher.NewEmptyError("trends: no time series widget")
}

// get performs one paced request and decodes the prefixed JSON body into v
func (f *InterestFetcher) get(ctx context.Context, path string, params map[string]string, v any) error {
	if err := f.limiter.Wait(ctx, ratelimit.APITrends); err != nil {
		return fetcher.NewNetworkError("trends: rate limiter", err)
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("hl", f.query.Language).
		SetQueryParam("tz", strconv.Itoa(f.query.TZOffset)).
		SetQueryParams(params).
		Get(path)

	if err := fetcher.CheckResponse("trends", resp, err); err != nil {
		return err
	}

	body, err := stripPrefix(resp.Bytes())
	if err != nil {
		return fetcher.NewParseError("trends "+path, err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fetcher.NewParseError("trends "+path, err)
	}
	return nil
}

// stripPrefix drops the ")]}'" guard Google puts in front of JSON bodies
func stripPrefix(body []byte) ([]byte, error) {
	i := bytes.IndexByte(body, '{')
	if i < 0 {
		return nil, fmt.Errorf("no JSON object in response")
	}
	return body[i:], nil
}

func parseTimeline(points []TimelinePoint, keywords []string) (*table.Table, error) {
	cols := make([]string, 0, len(keywords)+2)
	cols = append(cols, "date")
	cols = append(cols, keywords...)
	cols = append(cols, "isPartial")

	t := table.New(cols...)
	row := make([]string, len(cols))
	for _, p := range points {
		if len(p.Value) != len(keywords) {
			return nil, fmt.Errorf("period %s has %d values for %d keywords", p.Time, len(p.Value), len(keywords))
		}
		secs, err := strconv.ParseInt(p.Time, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("period time %q: %w", p.Time, err)
		}
		row[0] = time.Unix(secs, 0).UTC().Format(time.DateOnly)
		for i, v := range p.Value {
			row[i+1] = strconv.Itoa(v)
		}
		row[len(row)-1] = strconv.FormatBool(p.IsPartial)
		t.AppendRow(row...)
	}
	return t, nil
}
