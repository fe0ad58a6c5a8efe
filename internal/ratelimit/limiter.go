package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// API represents the different external APIs we interact with
type API string

const (
	// APIYahoo represents the Yahoo Finance chart API
	APIYahoo API = "yahoo"
	// APINASS represents the USDA NASS QuickStats API
	APINASS API = "nass"
	// APITrends represents the Google Trends API
	APITrends API = "trends"
	// APINOAA represents the NOAA Climate Data Online API
	APINOAA API = "noaa"
	// APIWorldBank represents the World Bank indicators API
	APIWorldBank API = "worldbank"
)

// Limiter paces requests per API. A nil *Limiter allows every request.
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New returns a limiter with conservative production rates for each API.
func New() *Limiter {
	l := &Limiter{
		limiters: make(map[API]*rate.Limiter),
	}

	// Yahoo does not publish a limit; two requests per second stays clear of blocks
	l.limiters[APIYahoo] = rate.NewLimiter(rate.Limit(2), 1)

	// NASS QuickStats: keep well under the documented per-key throttling
	l.limiters[APINASS] = rate.NewLimiter(rate.Limit(4), 1)

	// Google Trends answers 429 quickly; one request per second
	l.limiters[APITrends] = rate.NewLimiter(rate.Every(time.Second), 1)

	// NOAA CDO: 5 requests per second per token
	l.limiters[APINOAA] = rate.NewLimiter(rate.Limit(5), 1)

	// World Bank: no published limit (conservative estimate)
	l.limiters[APIWorldBank] = rate.NewLimiter(rate.Limit(10), 1)

	return l
}

// Unlimited returns a limiter that never delays. Useful in tests.
func Unlimited() *Limiter {
	l := &Limiter{
		limiters: make(map[API]*rate.Limiter),
	}
	for _, api := range []API{APIYahoo, APINASS, APITrends, APINOAA, APIWorldBank} {
		l.limiters[api] = rate.NewLimiter(rate.Inf, 1)
	}
	return l
}

// Set replaces the rate for one API.
func (l *Limiter) Set(api API, limit rate.Limit, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[api] = rate.NewLimiter(limit, burst)
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, api API) error {
	if l == nil {
		return ctx.Err()
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return nil
	}

	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given API may happen now
func (l *Limiter) Allow(api API) bool {
	if l == nil {
		return true
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request
		return true
	}

	return limiter.Allow()
}
