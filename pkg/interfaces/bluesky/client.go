package bluesky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// ClientOption allows for customization of the client
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client talks to the Bluesky AppView API with client-side rate
// limiting and per-call timeouts.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewClient creates a new Bluesky API client
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// Spread the window's budget evenly, burst of 1 for a conservative
	// request cadence.
	r := rate.Every(config.RateWindow / time.Duration(config.RequestsPerWindow))

	client := &Client{
		config:     config,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(r, 1),
		logger:     config.Logger,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

func (c *Client) makeRequest(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	fullURL := c.config.BaseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}

	return resp, nil
}

// handleResponse checks for API errors in the response
func (c *Client) handleResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "failed to read error response"}
	}

	var errBody apiErrorBody
	if err := json.Unmarshal(body, &errBody); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	c.logger.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"error_code":  errBody.Error,
		"message":     errBody.Message,
	}).Error("Bluesky API error")

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       errBody.Error,
		Message:    errBody.Message,
	}
}
