package source

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the execution model a source runs under.
type Mode string

const (
	// ModeDirect runs the fetch on the orchestrator's own goroutine.
	ModeDirect Mode = "direct"
	// ModePooled runs the fetch on the bounded worker pool.
	ModePooled Mode = "pooled"
	// ModeAsync runs the fetch in the async group, fanned out with its siblings.
	ModeAsync Mode = "async"
)

// Source names
const (
	Futures = "futures"
	Farm    = "farm"
	Trends  = "trends"
	Weather = "weather"
	Trade   = "trade"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDirect, ModePooled, ModeAsync:
		return m, nil
	default:
		return "", fmt.Errorf("unknown execution mode %q", s)
	}
}

// Descriptor identifies one data source and where its snapshot goes.
type Descriptor struct {
	Name        string
	Mode        Mode
	Destination string
}

// Defaults returns the descriptors for the five sources. Sources whose
// fetch is a sequence of paced sub-requests run pooled; single-request
// sources run async.
func Defaults() []Descriptor {
	return []Descriptor{
		{Name: Futures, Mode: ModePooled, Destination: "cme_historical_prices.csv"},
		{Name: Farm, Mode: ModePooled, Destination: "usda_farm_data.csv"},
		{Name: Trends, Mode: ModePooled, Destination: "google_trends.csv"},
		{Name: Weather, Mode: ModeAsync, Destination: "noaa_weather_data.csv"},
		{Name: Trade, Mode: ModeAsync, Destination: "trade_data.csv"},
	}
}

// WithModes returns a copy of descs with modes replaced from overrides,
// keyed by source name.
func WithModes(descs []Descriptor, overrides map[string]Mode) []Descriptor {
	out := make([]Descriptor, len(descs))
	copy(out, descs)
	for i := range out {
		if m, ok := overrides[out[i].Name]; ok {
			out[i].Mode = m
		}
	}
	return out
}

// Validate checks a descriptor list for programming errors: missing
// fields, unknown modes, and names or destinations used twice.
func Validate(descs []Descriptor) error {
	if len(descs) == 0 {
		return errors.New("no sources configured")
	}

	names := make(map[string]struct{}, len(descs))
	dests := make(map[string]string, len(descs))
	var errs []error
	for i, d := range descs {
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("source %d: name is required", i))
			continue
		}
		if _, err := ParseMode(string(d.Mode)); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", d.Name, err))
		}
		if d.Destination == "" {
			errs = append(errs, fmt.Errorf("source %s: destination is required", d.Name))
		} else if strings.ContainsAny(d.Destination, `/\`) {
			errs = append(errs, fmt.Errorf("source %s: destination %q must be a bare file name", d.Name, d.Destination))
		}
		if _, dup := names[d.Name]; dup {
			errs = append(errs, fmt.Errorf("source %s: duplicate name", d.Name))
		}
		names[d.Name] = struct{}{}
		if other, dup := dests[d.Destination]; dup && d.Destination != "" {
			errs = append(errs, fmt.Errorf("source %s: destination %q already used by %s", d.Name, d.Destination, other))
		}
		dests[d.Destination] = d.Name
	}
	return errors.Join(errs...)
}
