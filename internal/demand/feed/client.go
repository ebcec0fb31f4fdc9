// Package feed provides a client for the RateBoard utilization feed API.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/rateboard/rateboard/internal/demand"
	"github.com/rateboard/rateboard/internal/provider/resilience"
)

const (
	// ProviderName identifies this demand provider.
	ProviderName = "utilizationfeed"

	// DefaultBaseURL is the utilization feed base URL.
	DefaultBaseURL = "https://feed.rateboard.io"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 5 * time.Second
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the utilization feed client.
type ClientConfig struct {
	// APIKey is the feed API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to the hosted feed).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 5s).
	Timeout time.Duration

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a utilization feed API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new utilization feed client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		if cfg.Registry != nil {
			clientCfg.Registry = cfg.Registry
		}
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// feedResponse is the feed's wire format for one utilization sample.
type feedResponse struct {
	SubLocationID         string    `json:"subLocationId"`
	Demand                float64   `json:"demand"`
	Supply                float64   `json:"supply"`
	HistoricalAvgPressure float64   `json:"historicalAvgPressure"`
	ObservedAt            time.Time `json:"observedAt"`
}

// feedErrorResponse is the feed's wire format for errors.
type feedErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GetSample retrieves the current demand/supply sample for a sub-location.
func (c *Client) GetSample(ctx context.Context, subLocationID string) (*demand.Sample, error) {
	reqURL := fmt.Sprintf("%s/v1/sublocations/%s/utilization", c.baseURL, url.PathEscape(subLocationID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("sub_location_id", subLocationID).
		Msg("requesting utilization sample")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &demand.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach demand feed",
			Err:      demand.ErrProviderUnavailable,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp.StatusCode, respBody)
	}

	var feedResp feedResponse
	if err := json.Unmarshal(respBody, &feedResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	sample := &demand.Sample{
		SubLocationID:         feedResp.SubLocationID,
		Demand:                feedResp.Demand,
		Supply:                feedResp.Supply,
		HistoricalAvgPressure: feedResp.HistoricalAvgPressure,
		ObservedAt:            feedResp.ObservedAt,
		Provider:              ProviderName,
	}
	if sample.SubLocationID == "" {
		sample.SubLocationID = subLocationID
	}
	if sample.ObservedAt.IsZero() {
		sample.ObservedAt = time.Now()
	}

	c.logger.Debug().
		Str("sub_location_id", sample.SubLocationID).
		Float64("demand", sample.Demand).
		Float64("supply", sample.Supply).
		Msg("received utilization sample")

	return sample, nil
}

// handleErrorResponse maps feed error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var feedErr feedErrorResponse
	if err := json.Unmarshal(body, &feedErr); err != nil {
		return &demand.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("demand feed returned status %d", statusCode),
			Err:      demand.ErrProviderUnavailable,
		}
	}

	switch statusCode {
	case http.StatusNotFound:
		return &demand.Error{
			Provider: ProviderName,
			Code:     "UNKNOWN_SUBLOCATION",
			Message:  "no utilization data for sub-location",
			Err:      demand.ErrSubLocationUnknown,
		}
	case http.StatusTooManyRequests:
		return &demand.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "feed rate limit exceeded, please try again later",
			Err:      demand.ErrRateLimitExceeded,
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &demand.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "feed access denied - check API key configuration",
			Err:      demand.ErrProviderUnavailable,
		}
	default:
		code := feedErr.Code
		if code == "" {
			code = fmt.Sprintf("HTTP_%d", statusCode)
		}
		message := feedErr.Message
		if message == "" {
			message = fmt.Sprintf("demand feed returned status %d", statusCode)
		}
		return &demand.Error{
			Provider: ProviderName,
			Code:     code,
			Message:  message,
			Err:      demand.ErrProviderUnavailable,
		}
	}
}

// Ensure Client implements demand.Provider.
var _ demand.Provider = (*Client)(nil)
