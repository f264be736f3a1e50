package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kelsos/approvals/internal/logger"
)

const maxErrorBodyBytes = 32 << 10

// APIClient talks to a PostgREST style document API (/rest/v1/<collection>)
type APIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAPIClient creates a new API client for the document store at baseURL
func NewAPIClient(baseURL, apiKey string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BuildURL constructs a full URL for the given collection
func (c *APIClient) BuildURL(collection string) string {
	return fmt.Sprintf("%s/rest/v1/%s", c.baseURL, strings.TrimLeft(collection, "/"))
}

// Get fetches the rows of collection matching params and returns the raw body
func (c *APIClient) Get(ctx context.Context, collection string, params map[string]string) ([]byte, error) {
	return c.request(ctx, http.MethodGet, BuildURLWithParams(c.BuildURL(collection), params), nil)
}

// Post inserts body into collection and returns the stored representation
func (c *APIClient) Post(ctx context.Context, collection string, body interface{}) ([]byte, error) {
	return c.request(ctx, http.MethodPost, c.BuildURL(collection), body)
}

// request is the core HTTP request method
func (c *APIClient) request(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	start := time.Now()
	logger.Debug("Starting %s request to %s", method, endpoint)

	var requestBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshaling request body: %w", err)
		}
		requestBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, requestBody)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		logger.Error("Request failed after (%s) %v: %v", endpoint, elapsed, err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	logger.Debug("Request to %s completed in %v with status %d", endpoint, elapsed, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		logger.Error("%s: HTTP error %d: %s", endpoint, resp.StatusCode, string(bodyBytes))
		return nil, fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Error("%s: Error reading response: %v", endpoint, err)
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	return data, nil
}

// Ping checks if the document API is reachable
func (c *APIClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("ping failed with status %d", resp.StatusCode)
	}

	return nil
}

// WaitForAPIReady pings the document API until it answers or attempts run out
func (c *APIClient) WaitForAPIReady(ctx context.Context, attempts int, delay time.Duration) bool {
	logger.Info("Checking ledger API readiness...")

	for attempt := 1; attempt <= attempts; attempt++ {
		logger.Debug("Checking ledger API readiness (attempt %d/%d)...", attempt, attempts)

		if err := c.Ping(ctx); err == nil {
			logger.Info("Ledger API is ready!")
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}

	logger.Error("Ledger API failed to become ready after %d attempts", attempts)
	return false
}

// BuildURLWithParams properly builds a URL with query parameters
func BuildURLWithParams(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}

	// Parse the endpoint to check for existing query parameters
	parts := strings.SplitN(endpoint, "?", 2)
	baseURL := parts[0]

	// Parse existing query parameters if any
	values := url.Values{}
	if len(parts) > 1 {
		existingParams, _ := url.ParseQuery(parts[1])
		values = existingParams
	}

	// Add new parameters
	for key, value := range params {
		values.Set(key, value)
	}

	// Build the final URL
	if len(values) > 0 {
		return baseURL + "?" + values.Encode()
	}
	return baseURL
}
