package worldbank

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"resty.dev/v3"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/ratelimit"
	"cropfetcher/internal/source"
	"cropfetcher/internal/table"
)

// Columns of the trade snapshot, in order
var Columns = []string{
	"indicator_id",
	"indicator",
	"country_id",
	"country",
	"countryiso3code",
	"date",
	"value",
	"unit",
	"obs_status",
	"decimal",
}

// PageInfo is the first element of an indicator response
type PageInfo struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// APIMessage is returned in place of PageInfo when a request is rejected
type APIMessage struct {
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

// Record is one country-year observation
type Record struct {
	Indicator struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"indicator"`
	Country struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"country"`
	CountryISO3Code string   `json:"countryiso3code"`
	Date            string   `json:"date"`
	Value           *float64 `json:"value"`
	Unit            string   `json:"unit"`
	ObsStatus       string   `json:"obs_status"`
	Decimal         int      `json:"decimal"`
}

// IndicatorFetcher fetches one World Bank indicator for every country
type IndicatorFetcher struct {
	indicator string
	perPage   int
	client    *resty.Client
	limiter   *ratelimit.Limiter
}

// NewIndicatorFetcher creates a new trade statistics fetcher
func NewIndicatorFetcher(indicator string, perPage int, baseURL string, limiter *ratelimit.Limiter) *IndicatorFetcher {
	return &IndicatorFetcher{
		indicator: indicator,
		perPage:   perPage,
		client:    fetcher.NewHTTPClient(baseURL),
		limiter:   limiter,
	}
}

// Name returns the source name
func (f *IndicatorFetcher) Name() string {
	return source.Trade
}

// Fetch requests the first page of the indicator
func (f *IndicatorFetcher) Fetch(ctx context.Context) (*table.Table, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIWorldBank); err != nil {
		return nil, fetcher.NewNetworkError("trade: rate limiter", err)
	}

	// The body is [page-info, records] or [message]; element types differ.
	var result []json.RawMessage

	resp, err := f.client.R().
		SetContext(ctx).
		SetPathParam("indicator", f.indicator).
		SetQueryParams(map[string]string{
			"format":   "json",
			"per_page": strconv.Itoa(f.perPage),
		}).
		SetResult(&result).
		Get("/v2/en/indicator/{indicator}")

	if err := fetcher.CheckResponse("trade", resp, err); err != nil {
		return nil, err
	}

	records, err := f.decode(result)
	if err != nil {
		return nil, err
	}

	t := table.New(Columns...)
	for _, r := range records {
		t.AppendRow(
			r.Indicator.ID,
			r.Indicator.Value,
			r.Country.ID,
			r.Country.Value,
			r.CountryISO3Code,
			r.Date,
			table.Cell(r.Value),
			r.Unit,
			r.ObsStatus,
			strconv.Itoa(r.Decimal),
		)
	}
	return t, nil
}

func (f *IndicatorFetcher) decode(result []json.RawMessage) ([]Record, error) {
	if len(result) == 0 {
		return nil, fetcher.NewParseError("trade", fmt.Errorf("empty response array"))
	}

	var msg APIMessage
	if err := json.Unmarshal(result[0], &msg); err == nil && len(msg.Message) > 0 {
		parts := make([]string, 0, len(msg.Message))
		for _, m := range msg.Message {
			parts = append(parts, fmt.Sprintf("%s %s: %s", m.ID, m.Key, m.Value))
		}
		return nil, fetcher.NewClientError(0, "trade: "+strings.Join(parts, "; "))
	}

	if len(result) < 2 {
		return nil, fetcher.NewParseError("trade", fmt.Errorf("response has %d elements, want 2", len(result)))
	}

	var page PageInfo
	if err := json.Unmarshal(result[0], &page); err != nil {
		return nil, fetcher.NewParseError("trade: page info", err)
	}

	var records []Record
	if err := json.Unmarshal(result[1], &records); err != nil {
		return nil, fetcher.NewParseError("trade: records", err)
	}
	if len(records) == 0 {
		return nil, fetcher.NewEmptyError(fmt.Sprintf("trade %s", f.indicator))
	}

	if page.Pages > 1 {
		slog.Warn("indicator has more pages than requested",
			"indicator", f.indicator,
			"pages", page.Pages,
			"total", page.Total,
			"per_page", page.PerPage)
	}
	return records, nil
}
