package fetcher

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"resty.dev/v3"
)

// userAgent is sent on every request; some market data endpoints reject
// requests without a browser-like agent.
const userAgent = "Mozilla/5.0 (compatible; cropfetcher/1.0)"

// NewHTTPClient creates the HTTP client shared by the source fetchers.
// Requests are never retried: a failed request fails its source.
func NewHTTPClient(baseURL string) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetRetryCount(0).
		AddResponseMiddleware(logResponse).
		OnError(logError)

	return client
}

// logResponse logs completed requests for observability
func logResponse(_ *resty.Client, r *resty.Response) error {
	slog.Debug("request completed",
		"method", r.Request.Method,
		"url", r.Request.URL,
		"status_code", r.StatusCode(),
		"duration", r.Duration())
	return nil
}

// logError logs requests that failed before a response was processed
func logError(r *resty.Request, err error) {
	slog.Debug("request failed",
		"method", r.Method,
		"url", r.URL,
		"error", err.Error())
}

// CheckResponse maps the result of a resty call onto the fetch error
// taxonomy. It returns nil for a 2xx response that decoded cleanly.
func CheckResponse(source string, resp *resty.Response, err error) error {
	// A non-2xx status wins over a body that failed to decode.
	if resp != nil && resp.StatusCode() > 0 && !resp.IsSuccess() {
		fe := ClassifyHTTPError(resp.StatusCode())
		fe.Message = fmt.Sprintf("%s: %s", source, fe.Message)
		return fe
	}

	if err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return NewParseError(fmt.Sprintf("%s: decode response", source), err)
		}
		return NewNetworkError(fmt.Sprintf("%s: request failed", source), err)
	}

	return nil
}
