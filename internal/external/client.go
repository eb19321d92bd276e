// Package external provides the boundary between buildalert domain logic and
// the OpsGenie HTTP API. Outbound calls are routed through the BaseClient,
// which enforces circuit breaking, trace propagation, and error mapping.
//
// The BaseClient never retries. A failed notification degrades to a failed
// outcome and any retry policy belongs to the caller.
package external

import (
	"errors"
	"net/http"
	"time"

	"buildalert/internal/types"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker of a BaseClient.
type BreakerSettings struct {
	Name string
	// Threshold is the number of consecutive failures that opens the
	// breaker. Zero disables tripping.
	Threshold uint32
	// OpenTimeout is how long the breaker stays open before a trial request.
	OpenTimeout time.Duration
}

// DefaultBreakerSettings returns the settings used when none are supplied.
// Tripping is off: an open breaker suppresses the delivery attempt, so it
// must be enabled explicitly where the caller can redeliver later.
func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:        name,
		Threshold:   0,
		OpenTimeout: 30 * time.Second,
	}
}

// BaseClient wraps an *http.Client and a circuit breaker. The breaker is owned
// by the client; separate clients never share failure counts.
type BaseClient struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[*http.Response]
	userAgent string
}

// NewBaseClient creates a BaseClient with the given http client, breaker
// settings, and user agent string.
func NewBaseClient(httpClient *http.Client, settings BreakerSettings, userAgent string) *BaseClient {
	threshold := settings.Threshold
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return threshold > 0 && counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return NewBaseClientWithBreaker(httpClient, cb, userAgent)
}

// NewBaseClientWithBreaker creates a BaseClient with a caller-provided circuit
// breaker. This is useful for testing.
func NewBaseClientWithBreaker(
	httpClient *http.Client,
	breaker *gobreaker.CircuitBreaker[*http.Response],
	userAgent string,
) *BaseClient {
	return &BaseClient{
		client:    httpClient,
		breaker:   breaker,
		userAgent: userAgent,
	}
}

// Do executes the HTTP request with:
//  1. Trace ID injection (X-B3-TraceId from context)
//  2. User-Agent header injection
//  3. Circuit breaker wrapping
//  4. Error mapping to types.AppError
//
// Any response that arrives is returned as-is, including 4xx and 5xx; the
// caller is responsible for closing the body. Only transport failures and an
// open breaker produce an error.
func (c *BaseClient) Do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-B3-TraceId", traceID)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	// Only transport failures count against the breaker. Any response that
	// arrives, 5xx included, is judged by the verifier, not here.
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.client.Do(req)
	})
	if err != nil {
		return nil, c.mapError(err)
	}
	return resp, nil
}

// State reports the breaker state, for logging.
func (c *BaseClient) State() string {
	return c.breaker.State().String()
}

// mapError translates transport-level failures into domain-level AppErrors.
func (c *BaseClient) mapError(err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeDeliveryCircuitOpen,
			"circuit breaker is open; delivery skipped",
			err,
		)
	}

	return types.NewAppError(
		types.ErrCodeDeliveryTransport,
		"delivery request failed",
		err,
	)
}
