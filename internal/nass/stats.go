package nass

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cast"
	"resty.dev/v3"

	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/ratelimit"
	"cropfetcher/internal/source"
	"cropfetcher/internal/table"
)

// Columns of the farm statistics snapshot, in order. Every column is taken
// from the QuickStats record of the same name.
var Columns = []string{
	"year",
	"reference_period_desc",
	"state_fips_code",
	"state_alpha",
	"state_name",
	"county_code",
	"county_name",
	"commodity_desc",
	"statisticcat_desc",
	"unit_desc",
	"Value",
}

// StatsResponse represents the QuickStats api_GET response
type StatsResponse struct {
	Data []map[string]any `json:"data"`
}

// Commodity pairs a display name with the QuickStats commodity_desc
type Commodity struct {
	Name string
	Desc string
}

// Query holds the filters shared by every commodity request
type Query struct {
	YearFrom int
}

// StatsFetcher fetches county-level harvested acreage from USDA QuickStats
type StatsFetcher struct {
	apiKey      string
	commodities []Commodity
	query       Query
	client      *resty.Client
	limiter     *ratelimit.Limiter
}

// NewStatsFetcher creates a new farm statistics fetcher
func NewStatsFetcher(apiKey string, commodities []Commodity, query Query, baseURL string, limiter *ratelimit.Limiter) *StatsFetcher {
	return &StatsFetcher{
		apiKey:      apiKey,
		commodities: commodities,
		query:       query,
		client:      fetcher.NewHTTPClient(baseURL),
		limiter:     limiter,
	}
}

// Name returns the source name
func (f *StatsFetcher) Name() string {
	return source.Farm
}

// Fetch requests each commodity concurrently and combines the results
func (f *StatsFetcher) Fetch(ctx context.Context) (*table.Table, error) {
	parts := make([]fetcher.Part, 0, len(f.commodities))
	for _, c := range f.commodities {
		c := c
		parts = append(parts, fetcher.Part{
			Label: c.Name,
			Fetch: func(ctx context.Context) (*table.Table, error) {
				return f.fetchCommodity(ctx, c)
			},
		})
	}
	return fetcher.Gather(ctx, f.Name(), nil, parts)
}

func (f *StatsFetcher) fetchCommodity(ctx context.Context, c Commodity) (*table.Table, error) {
	label := fmt.Sprintf("farm %s", c.Desc)

	if err := f.limiter.Wait(ctx, ratelimit.APINASS); err != nil {
		return nil, fetcher.NewNetworkError(label+": rate limiter", err)
	}

	var result StatsResponse

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":               f.apiKey,
			"commodity_desc":    c.Desc,
			"sector_desc":       "CROPS",
			"statisticcat_desc": "AREA HARVESTED",
			"unit_desc":         "ACRES",
			"year__GE":          strconv.Itoa(f.query.YearFrom),
			"agg_level_desc":    "COUNTY",
			"format":            "json",
		}).
		SetResult(&result).
		Get("/api_GET/")

	if err := fetcher.CheckResponse(label, resp, err); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, fetcher.NewEmptyError(label)
	}

	return parseRecords(result.Data), nil
}

// parseRecords projects QuickStats records onto Columns. Missing fields
// become empty cells.
func parseRecords(records []map[string]any) *table.Table {
	t := table.New(Columns...)
	row := make([]string, len(Columns))
	for _, rec := range records {
		for i, col := range Columns {
			v, ok := rec[col]
			if !ok {
				row[i] = ""
				continue
			}
			row[i] = cast.ToString(v)
		}
		t.AppendRow(row...)
	}
	return t
}
