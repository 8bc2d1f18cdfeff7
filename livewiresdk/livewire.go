/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package livewiresdk is the HTTP core shared by every LiveWire backend
// plugin. It owns the transport, default headers, transient-status retries
// and the {success, data} response envelope.
package livewiresdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Logger is the interface for SDK logging. Any logger that implements Printf
// (such as the standard library's *log.Logger or a zerolog.Logger) can be used.
type Logger interface {
	Printf(format string, v ...any)
}

// Client is the core LiveWire backend client.
type Client struct {
	// HTTP client used to communicate with the backend
	httpClient *http.Client

	// Base URL for API requests
	BaseURL *url.URL

	// Configuration for the client
	Config *Config

	// Logger for SDK operations
	logger Logger
}

// GetHTTPClient returns the HTTP client used for API requests
func (c *Client) GetHTTPClient() *http.Client {
	return c.httpClient
}

// GetLogger returns the logger used by the SDK.
func (c *Client) GetLogger() Logger {
	return c.logger
}

// Config holds the configuration for the LiveWire client
type Config struct {
	// BaseURL is the base URL of the LiveWire backend (scheme and host)
	BaseURL string

	// Timeout for API requests
	Timeout time.Duration

	// Default headers to include in API requests, e.g. the session Cookie
	DefaultHeaders map[string]string

	// Custom HTTP client to use instead of the default one
	// If nil, a default client will be created with the specified Timeout
	HttpClient *http.Client

	// MaxRetries is the maximum number of retries for transient statuses (429, 502, 503, 504).
	// Set to 0 to disable retries. Default: 2.
	MaxRetries int

	// RetryBaseDelay is the initial delay between retries. Default: 500ms.
	// Subsequent retries use exponential backoff (delay * 2^attempt).
	RetryBaseDelay time.Duration

	// Logger is the logger for SDK operations. If nil, log.Default() is used.
	Logger Logger
}

// DefaultConfig returns a default configuration for the LiveWire client
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "http://localhost:8080",
		Timeout:        30 * time.Second,
		DefaultHeaders: make(map[string]string),
		HttpClient:     nil,
		MaxRetries:     2,
		RetryBaseDelay: 500 * time.Millisecond,
	}
}

// NewClient creates a new LiveWire backend client with an optional configuration
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}

	baseURL, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, err
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("base URL %q must include scheme and host", config.BaseURL)
	}

	httpClient := config.HttpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}

	if config.DefaultHeaders == nil {
		config.DefaultHeaders = make(map[string]string)
	}

	return &Client{
		httpClient: httpClient,
		BaseURL:    baseURL,
		logger:     logger,
		Config:     config,
	}, nil
}

// RequestWithContext performs a single HTTP request against the backend.
// Caller headers are applied after the configured defaults, and the JSON
// content type is applied last so it is always present.
// The caller is responsible for closing the response body when done.
func (c *Client) RequestWithContext(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL.String() + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	for k, v := range c.Config.DefaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: u.String(), Err: err}
	}
	return resp, nil
}

// RequestWithRetry performs an HTTP request with automatic retry for transient
// statuses. It retries on HTTP 429 (respecting Retry-After) and 502, 503, 504
// using exponential backoff.
// The caller is responsible for closing the response body when done.
func (c *Client) RequestWithRetry(ctx context.Context, method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	maxRetries := c.Config.MaxRetries
	baseDelay := c.Config.RetryBaseDelay
	if baseDelay == 0 {
		baseDelay = 500 * time.Millisecond
	}

	var resp *http.Response
	var err error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err = c.RequestWithContext(ctx, method, path, body, headers)
		if err != nil {
			return nil, err
		}

		if !isRetryableStatus(resp.StatusCode) || attempt == maxRetries {
			return resp, nil
		}

		delay := retryDelay(resp, baseDelay, attempt)
		resp.Body.Close()
		c.logger.Printf("livewire: %s %s returned %d, retrying in %v", method, path, resp.StatusCode, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return resp, err
}

// isRetryableStatus returns true for HTTP status codes that should be retried.
func isRetryableStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusBadGateway ||
		statusCode == http.StatusServiceUnavailable ||
		statusCode == http.StatusGatewayTimeout
}

// retryDelay calculates the delay before the next retry attempt.
// For 429 responses, it respects the Retry-After header if present.
func retryDelay(resp *http.Response, baseDelay time.Duration, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}
	return baseDelay * (1 << uint(attempt))
}

// envelope is the standard LiveWire response body.
type envelope struct {
	Success bool            `json:"success"`
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DoEnvelope performs a request and decodes the data portion of the
// {success: true, data: ...} envelope into out. It fails when the status is
// not 2xx, when the body carries "error": true, or when the success envelope
// is missing or empty. out may be nil when the caller only needs the outcome.
func (c *Client) DoEnvelope(ctx context.Context, method, path string, body interface{}, headers map[string]string, out interface{}) error {
	resp, err := c.RequestWithRetry(ctx, method, path, body, headers)
	if err != nil {
		return err
	}
	return ParseEnvelope(resp, out)
}

// ParseEnvelope reads and closes resp.Body and unwraps the LiveWire envelope.
func ParseEnvelope(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: methodOf(resp), URL: urlOf(resp), Err: err}
	}

	var env envelope
	parseErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || (parseErr == nil && env.Error) {
		return NewAPIError(resp, raw)
	}
	if parseErr != nil || !env.Success || isEmptyData(env.Data) {
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    "Invalid API response format",
			RawBody:    raw,
			Err:        parseErr,
		}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// isEmptyData reports whether the envelope's data field is absent or holds a
// falsy JSON value.
func isEmptyData(data json.RawMessage) bool {
	switch strings.TrimSpace(string(data)) {
	case "", "null", "false", "0", `""`:
		return true
	}
	return false
}

func methodOf(resp *http.Response) string {
	if resp.Request == nil {
		return ""
	}
	return resp.Request.Method
}

func urlOf(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}
