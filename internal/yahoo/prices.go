package yahoo

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/ratelimit"
	"cropfetcher/internal/source"
	"cropfetcher/internal/table"
)

// Columns of the futures price snapshot, in order.
var Columns = []string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume", "Crop", "Ticker"}

// ChartResponse represents the Yahoo Finance chart API response
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartError is the error object Yahoo embeds in chart responses
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResult holds one symbol's candles. Price arrays are parallel to
// Timestamp and contain nulls for missing sessions.
type ChartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		Currency             string `json:"currency"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// Commodity is one futures contract to download
type Commodity struct {
	Name   string
	Ticker string
}

// Params controls the history window requested for every ticker
type Params struct {
	Range    string
	Interval string
}

// PriceFetcher fetches daily futures price history for several commodities
// and combines them into one table
type PriceFetcher struct {
	commodities []Commodity
	params      Params
	client      *resty.Client
	limiter     *ratelimit.Limiter
}

// NewPriceFetcher creates a new futures price fetcher
func NewPriceFetcher(commodities []Commodity, params Params, baseURL string, limiter *ratelimit.Limiter) *PriceFetcher {
	return &PriceFetcher{
		commodities: commodities,
		params:      params,
		client:      fetcher.NewHTTPClient(baseURL),
		limiter:     limiter,
	}
}

// Name returns the source name
func (f *PriceFetcher) Name() string {
	return source.Futures
}

// Fetch downloads every commodity's history. A commodity that fails is
// logged and left out; Fetch fails only if all of them fail.
func (f *PriceFetcher) Fetch(ctx context.Context) (*table.Table, error) {
	parts := make([]fetcher.Part, 0, len(f.commodities))
	for _, c := range f.commodities {
		c := c
		parts = append(parts, fetcher.Part{
			Label: c.Name,
			Fetch: func(ctx context.Context) (*table.Table, error) {
				return f.fetchTicker(ctx, c)
			},
		})
	}
	return fetcher.Gather(ctx, f.Name(), nil, parts)
}

// fetchTicker downloads one ticker and labels its rows with the commodity
func (f *PriceFetcher) fetchTicker(ctx context.Context, c Commodity) (*table.Table, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIYahoo); err != nil {
		return nil, fetcher.NewNetworkError(fmt.Sprintf("futures %s: rate limiter", c.Ticker), err)
	}

	var result ChartResponse

	resp, err := f.client.R().
		SetContext(ctx).
		SetPathParam("ticker", c.Ticker).
		SetQueryParams(map[string]string{
			"range":    f.params.Range,
			"interval": f.params.Interval,
		}).
		SetResult(&result).
		Get("/v8/finance/chart/{ticker}")

	if err := fetcher.CheckResponse(fmt.Sprintf("futures %s", c.Ticker), resp, err); err != nil {
		return nil, err
	}

	if e := result.Chart.Error; e != nil {
		return nil, fetcher.NewClientError(resp.StatusCode(), fmt.Sprintf("futures %s: %s: %s", c.Ticker, e.Code, e.Description))
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Timestamp) == 0 {
		return nil, fetcher.NewEmptyError(fmt.Sprintf("futures %s", c.Ticker))
	}

	rows, err := parseChart(result.Chart.Result[0])
	if err != nil {
		return nil, fetcher.NewParseError(fmt.Sprintf("futures %s", c.Ticker), err)
	}

	return rows.WithConstant("Crop", c.Name).WithConstant("Ticker", c.Ticker), nil
}

// parseChart converts parallel candle arrays into rows, one per session.
// Sessions with no prices at all are dropped.
func parseChart(r ChartResult) (*table.Table, error) {
	if len(r.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote indicators in response")
	}
	q := r.Indicators.Quote[0]
	n := len(r.Timestamp)
	for name, series := range map[string][]*float64{
		"open": q.Open, "high": q.High, "low": q.Low, "close": q.Close, "volume": q.Volume,
	} {
		if len(series) != n {
			return nil, fmt.Errorf("%s has %d values for %d timestamps", name, len(series), n)
		}
	}

	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 && len(r.Indicators.AdjClose[0].AdjClose) == n {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	loc := time.UTC
	if tz := r.Meta.ExchangeTimezoneName; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	t := table.New(Columns[:7]...)
	for i, ts := range r.Timestamp {
		if q.Open[i] == nil && q.High[i] == nil && q.Low[i] == nil && q.Close[i] == nil {
			continue
		}
		adjClose := q.Close[i]
		if adj != nil {
			adjClose = adj[i]
		}
		t.AppendRow(
			time.Unix(ts, 0).In(loc).Format(time.DateOnly),
			table.Cell(q.Open[i]),
			table.Cell(q.High[i]),
			table.Cell(q.Low[i]),
			table.Cell(q.Close[i]),
			table.Cell(adjClose),
			table.Cell(q.Volume[i]),
		)
	}
	return t, nil
}
