// Package noaa fetches water-level series from the NOAA CO-OPS datagetter API.
package noaa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/wave-frame-cache/internal/domain"
	"github.com/couchcryptid/wave-frame-cache/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production datagetter endpoint.
const DefaultBaseURL = "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter"

// maxSpan is the longest interval CO-OPS serves for one-minute products in a
// single request.
const maxSpan = 4 * 24 * time.Hour

const dateLayout = "20060102 15:04"

// Client implements the remote series source over CO-OPS.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
}

// NewClient creates a CO-OPS client issuing at most ratePerSec requests per
// second across all goroutines. clock times requests; nil means the real
// clock.
func NewClient(baseURL string, timeout time.Duration, ratePerSec float64, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		logger:  logger,
		metrics: metrics,
		clock:   clock,
	}
}

// Fetch returns every sample of product for stationID within w. A window
// longer than the API limit is split into consecutive requests. An empty
// result is not an error.
func (c *Client) Fetch(ctx context.Context, stationID string, product domain.Product, w domain.Window) ([]domain.RawSample, error) {
	var out []domain.RawSample
	for _, span := range chunks(w) {
		samples, err := c.fetchSpan(ctx, stationID, product, span)
		if err != nil {
			return nil, err
		}
		out = append(out, samples...)
	}
	return out, nil
}

// chunks splits w into spans no longer than maxSpan. Spans do not share an
// endpoint so a sample is never requested twice.
func chunks(w domain.Window) []domain.Window {
	var out []domain.Window
	for start := w.Start; !start.After(w.End); {
		end := start.Add(maxSpan - time.Minute)
		if end.After(w.End) {
			end = w.End
		}
		out = append(out, domain.Window{Start: start, End: end})
		start = end.Add(time.Minute)
	}
	return out
}

func (c *Client) fetchSpan(ctx context.Context, stationID string, product domain.Product, w domain.Window) ([]domain.RawSample, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{StationID: stationID, Product: product, Err: err}
	}

	params := url.Values{
		"station":    {stationID},
		"product":    {string(product)},
		"begin_date": {w.Start.UTC().Format(dateLayout)},
		"end_date":   {w.End.UTC().Format(dateLayout)},
		"datum":      {"MLLW"},
		"units":      {"metric"},
		"time_zone":  {"gmt"},
		"format":     {"json"},
	}
	if product == domain.ProductPredicted {
		params.Set("interval", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.WithLabelValues(string(product)).Observe(c.clock.Since(start).Seconds())
	if err != nil {
		return nil, &FetchError{StationID: stationID, Product: product, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &FetchError{
			StationID:  stationID,
			Product:    product,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &FetchError{StationID: stationID, Product: product, Err: fmt.Errorf("decode response: %w", err)}
	}

	if body.Error != nil {
		if isNoData(body.Error.Message) {
			c.logger.Debug("no data for span",
				"station_id", stationID,
				"product", product,
				"begin", params.Get("begin_date"),
				"end", params.Get("end_date"),
			)
			return nil, nil
		}
		return nil, &FetchError{
			StationID: stationID,
			Product:   product,
			Err:       &APIError{Message: body.Error.Message},
		}
	}

	if product == domain.ProductPredicted {
		return body.Predictions, nil
	}
	return body.Data, nil
}

func isNoData(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "no data was found")
}

// CO-OPS response types. Observed products arrive under "data", predictions
// under "predictions"; both use {"t", "v"} samples.

type response struct {
	Data        []domain.RawSample `json:"data"`
	Predictions []domain.RawSample `json:"predictions"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is an error reported in a 200 response body.
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return "coops: " + e.Message }

// FetchError is a failed request for one station/product pair. It matches
// domain.ErrFetchFailure under errors.Is.
type FetchError struct {
	StationID  string
	Product    domain.Product
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s: %v", e.StationID, e.Product, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes every FetchError match domain.ErrFetchFailure.
func (e *FetchError) Is(target error) bool { return target == domain.ErrFetchFailure }

// Permanent reports whether retrying the request cannot succeed: a client
// error other than 429, or an error returned by the API itself.
func (e *FetchError) Permanent() bool {
	var apiErr *APIError
	if errors.As(e.Err, &apiErr) {
		return true
	}
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}
