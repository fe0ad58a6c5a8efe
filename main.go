package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"cropfetcher/internal/config"
	"cropfetcher/internal/coordinator"
	"cropfetcher/internal/fetcher"
	"cropfetcher/internal/nass"
	"cropfetcher/internal/noaa"
	"cropfetcher/internal/ratelimit"
	"cropfetcher/internal/snapshot"
	"cropfetcher/internal/source"
	"cropfetcher/internal/trends"
	"cropfetcher/internal/worldbank"
	"cropfetcher/internal/yahoo"
)

func main() {
	flags := pflag.NewFlagSet("cropfetcher", pflag.ExitOnError)
	flags.String("config", "", "path to a YAML config file")
	flags.String("data-dir", "", "directory the CSV snapshots are written to")
	flags.String("log-level", "", "debug, info, warn or error")
	showSummary := flags.Bool("summary", false, "print a YAML run summary")
	flags.Parse(os.Args[1:])

	// Load configuration
	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	tasks, err := buildTasks(cfg, ratelimit.New())
	if err != nil {
		log.Fatalf("Invalid source configuration: %v", err)
	}

	writer := snapshot.NewCSVWriter(afero.NewOsFs(), cfg.DataDir)
	coord := coordinator.New(tasks, writer,
		coordinator.WithLogger(logger),
		coordinator.WithPoolSize(cfg.PoolSize),
		coordinator.WithTimeout(cfg.FetchTimeout),
	)

	fmt.Println("Fetching agricultural data from multiple sources...")
	fmt.Println("===================================================")
	summary, err := coord.Run(ctx)
	if err != nil {
		log.Fatalf("Coordinator failed: %v", err)
	}

	printSummary(os.Stdout, summary)
	fmt.Println("===================================================")
	fmt.Printf("Done: %d succeeded, %d failed\n", summary.Succeeded(), summary.Failed())

	if *showSummary {
		out, err := yaml.Marshal(summary.Report())
		if err != nil {
			log.Fatalf("Failed to encode summary: %v", err)
		}
		fmt.Print(string(out))
	}
}

// buildTasks creates the five source fetchers from configuration and pairs
// them with their descriptors.
func buildTasks(cfg *config.Config, limiter *ratelimit.Limiter) ([]coordinator.Task, error) {
	modes, err := cfg.SourceModes()
	if err != nil {
		return nil, err
	}

	var (
		prices   []yahoo.Commodity
		stats    []nass.Commodity
		keywords []string
	)
	for _, c := range cfg.Commodities {
		prices = append(prices, yahoo.Commodity{Name: c.Name, Ticker: c.Ticker})
		stats = append(stats, nass.Commodity{Name: c.Name, Desc: c.NASSDesc})
		keywords = append(keywords, c.Name)
	}

	fetchers := map[string]fetcher.Fetcher{
		source.Futures: yahoo.NewPriceFetcher(
			prices,
			yahoo.Params{Range: cfg.FuturesRange, Interval: cfg.FuturesInterval},
			cfg.YahooBaseURL,
			limiter,
		),
		source.Farm: nass.NewStatsFetcher(
			cfg.NASSAPIKey,
			stats,
			nass.Query{YearFrom: cfg.NASSYearFrom},
			cfg.NASSBaseURL,
			limiter,
		),
		source.Trends: trends.NewInterestFetcher(
			trends.Query{
				Keywords:  keywords,
				Timeframe: cfg.TrendsTimeframe,
				Geo:       cfg.TrendsGeo,
				Language:  "en-US",
				TZOffset:  360,
			},
			cfg.TrendsBaseURL,
			limiter,
		),
		source.Weather: noaa.NewWeatherFetcher(
			cfg.NOAAAPIKey,
			noaa.Query{
				DatasetID:    cfg.NOAADatasetID,
				StationID:    cfg.NOAAStationID,
				LookbackDays: cfg.NOAALookbackDays,
				Limit:        cfg.NOAALimit,
				Units:        "metric",
			},
			cfg.NOAABaseURL,
			limiter,
		),
		source.Trade: worldbank.NewIndicatorFetcher(
			cfg.WorldBankIndicator,
			cfg.WorldBankPerPage,
			cfg.WorldBankBaseURL,
			limiter,
		),
	}

	descs := source.WithModes(source.Defaults(), modes)
	if err := source.Validate(descs); err != nil {
		return nil, err
	}

	tasks := make([]coordinator.Task, 0, len(descs))
	for _, d := range descs {
		tasks = append(tasks, coordinator.Task{Descriptor: d, Fetcher: fetchers[d.Name]})
	}
	return tasks, nil
}

// printSummary writes one line per source in descriptor order
func printSummary(w io.Writer, s *coordinator.Summary) {
	for _, o := range s.Outcomes {
		if o.Succeeded() {
			fmt.Fprintf(w, "%s: %d rows -> %s (%s, %s)\n", o.Source, o.Rows, o.Destination, o.Mode, o.Duration.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "%s: ERROR - %v\n", o.Source, o.Err)
	}
}
