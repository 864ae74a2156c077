// Package onsetapi is the HTTP client for the remote onset analysis
// service, an optional GPU-backed deployment that replaces the native
// detector when ONSET_API_URL is configured.
package onsetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Static errors for onset API client operations.
var (
	// ErrBaseURLRequired is returned when the service URL is not provided.
	ErrBaseURLRequired = errors.New("onsetapi: base URL is required")
	// ErrAnalyzeFailed is returned when the service reports an analysis error.
	ErrAnalyzeFailed = errors.New("onsetapi: analyze failed")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("onsetapi: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("onsetapi: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("onsetapi: request failed")
)

// Client defines the interface for the onset analysis service API.
type Client interface {
	// Analyze submits base64 WAV audio and returns the detected onsets.
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error)
}

// HTTPClient is the HTTP implementation of the Client interface.
type HTTPClient struct {
	token       string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithToken sets the API token for authentication.
func WithToken(token string) ClientOption {
	return func(hc *HTTPClient) {
		hc.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new onset API HTTP client.
// The token can be set via the WithToken option. If not provided, it is
// read from the environment variable ONSET_API_TOKEN; a deployment
// without authentication may leave it empty.
func NewClient(baseURL string, opts ...ClientOption) (*HTTPClient, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}

	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.token == "" {
		c.token = os.Getenv("ONSET_API_TOKEN")
	}

	return c, nil
}

// Analyze submits base64 WAV audio and returns the detected onsets.
func (c *HTTPClient) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResult, error) {
	reqBody := analyzeRequestBody{
		WAVBase64: req.WAVBase64,
		Threshold: req.Threshold,
		HopSize:   req.HopSize,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("onsetapi: marshal request: %w", err)
	}

	var resp analyzeResponseBody
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bodyBytes, &resp); err != nil {
		return AnalyzeResult{}, err
	}

	if resp.Error != "" {
		return AnalyzeResult{}, fmt.Errorf("%w: %s", ErrAnalyzeFailed, resp.Error)
	}

	result := AnalyzeResult{
		Onsets:   make([]Event, 0, len(resp.Onsets)),
		Duration: resp.Duration,
	}
	for _, ev := range resp.Onsets {
		result.Onsets = append(result.Onsets, Event{Time: ev.Time, Confidence: ev.Confidence})
	}
	return result, nil
}

// doRequestWithRetry performs an HTTP request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("onsetapi: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		err := c.doRequest(ctx, method, url, body, result)
		if err == nil {
			return nil
		}

		// Check if error is retryable
		if !isRetryable(err) {
			return err
		}

		lastErr = err
	}

	return fmt.Errorf("onsetapi: max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("onsetapi: create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &retryableError{err: fmt.Errorf("onsetapi: request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &retryableError{err: fmt.Errorf("onsetapi: read response: %w", err)}
	}

	// Handle non-2xx status codes
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 5xx errors are retryable
		if resp.StatusCode >= 500 {
			return &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, string(respBody))}
		}
		// 429 (rate limit) is retryable
		if resp.StatusCode == 429 {
			return &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, string(respBody))}
		}
		// Other errors are not retryable
		return fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("onsetapi: unmarshal response: %w", err)
		}
	}

	return nil
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
