// Package provider fetches raw flight records from FlightAware AeroAPI.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"airlogger/internal/models"
	"airlogger/pkg/logging"
	"airlogger/pkg/metrics"
)

const (
	DefaultBaseURL  = "https://aeroapi.flightaware.com/aeroapi"
	DefaultTimeout  = 30 * time.Second
	DefaultMaxPages = 5

	maxAttempts    = 4
	initialBackoff = 200 * time.Millisecond
)

// ErrMissingAPIKey is returned when the client is built without credentials.
var ErrMissingAPIKey = errors.New("FLIGHTAWARE_API_KEY not configured")

// StatusError is a non-2xx response from the provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("aeroapi returned status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// FlightAwareClient reads an aircraft's recent flights.
type FlightAwareClient struct {
	apiKey   string
	baseURL  string
	maxPages int
	backoff  time.Duration
	timeout  time.Duration
	client   *http.Client
	logger   *logging.ContextLogger
	metrics  *metrics.Collector
}

// ClientOption configures a FlightAwareClient.
type ClientOption func(*FlightAwareClient)

// WithBaseURL points the client at another AeroAPI root, such as a test server.
func WithBaseURL(u string) ClientOption {
	return func(c *FlightAwareClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default HTTP client. The caller's client is used
// as given; WithTimeout does not modify it. A nil client keeps the default.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *FlightAwareClient) { c.client = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *FlightAwareClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxPages caps how many result pages a single fetch follows.
func WithMaxPages(n int) ClientOption {
	return func(c *FlightAwareClient) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// WithBackoff sets the delay before the first retry; it doubles per attempt.
func WithBackoff(d time.Duration) ClientOption {
	return func(c *FlightAwareClient) { c.backoff = d }
}

// NewFlightAwareClient builds a client. An empty apiKey is a configuration error.
func NewFlightAwareClient(apiKey string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, opts ...ClientOption) (*FlightAwareClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	c := &FlightAwareClient{
		apiKey:   apiKey,
		baseURL:  DefaultBaseURL,
		maxPages: DefaultMaxPages,
		backoff:  initialBackoff,
		timeout:  DefaultTimeout,
		logger:   logger.WithFields(logging.Fields{"provider": "flightaware"}),
		metrics:  metricsCollector,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: c.timeout}
	}
	return c, nil
}

type flightsPage struct {
	Flights []models.RawFlightRecord `json:"flights"`
	Links   *struct {
		Next string `json:"next"`
	} `json:"links"`
}

// FetchFlights returns the raw records for a registration whose departure
// falls within [start, end]. Records with no usable departure time are kept
// so the normalizer can report why they were rejected. If a page fails after
// earlier pages succeeded, the records gathered so far are returned with the error.
func (c *FlightAwareClient) FetchFlights(ctx context.Context, registration string, start, end time.Time) ([]models.RawFlightRecord, error) {
	next := "/flights/" + url.PathEscape(registration)
	var (
		all   []models.RawFlightRecord
		pages int
	)

	for next != "" && pages < c.maxPages {
		page, err := c.fetchPage(ctx, c.baseURL+next)
		if err != nil {
			c.metrics.RecordProviderRequest("error")
			c.logger.Error(ctx, "[PROVIDER_FETCH_ERROR] Error fetching data from FlightAware", logging.Fields{
				"registration": registration,
				"page":         pages + 1,
			}, err)
			return filterWindow(all, start, end), err
		}
		c.metrics.RecordProviderRequest("success")

		all = append(all, page.Flights...)
		pages++

		next = ""
		if page.Links != nil {
			next = page.Links.Next
		}
	}

	filtered := filterWindow(all, start, end)
	c.logger.Info(ctx, "[PROVIDER_FETCH] Retrieved flights", logging.Fields{
		"registration":    registration,
		"pages":           pages,
		"total_flights":   len(all),
		"window_flights":  len(filtered),
		"more_pages_left": next != "",
	})

	return filtered, nil
}

func filterWindow(records []models.RawFlightRecord, start, end time.Time) []models.RawFlightRecord {
	out := make([]models.RawFlightRecord, 0, len(records))
	for _, r := range records {
		dep, err := r.DepartureTime()
		if err != nil || (!dep.Before(start) && !dep.After(end)) {
			out = append(out, r)
		}
	}
	return out
}

func (c *FlightAwareClient) fetchPage(ctx context.Context, pageURL string) (*flightsPage, error) {
	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("x-apikey", c.apiKey)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var page flightsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode flights response: %w", err)
	}
	return &page, nil
}

func (c *FlightAwareClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry retries network errors, 429 and 5xx responses with exponential
// backoff while respecting context cancellation.
func (c *FlightAwareClient) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := makeReq()
		if err != nil {
			return nil, fmt.Errorf("make request: %w", err)
		}

		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var se *StatusError
		if errors.As(err, &se) {
			retry = se.Retryable()
		} else {
			var netErr net.Error
			retry = errors.As(err, &netErr)
		}

		if !retry || attempt == maxAttempts {
			return nil, lastErr
		}

		c.metrics.RecordProviderRequest("retry")
		c.logger.Warn(ctx, "[PROVIDER_RETRY] Retrying FlightAware request", logging.Fields{
			"attempt":    attempt,
			"backoff_ms": backoff.Milliseconds(),
			"error":      err.Error(),
		})

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}
