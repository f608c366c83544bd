// Package api provides the authenticated HTTP client for the Hostfleet API.
package api

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostfleet/hostfleet-cli/internal/auth"
	"github.com/hostfleet/hostfleet-cli/internal/config"
	"github.com/hostfleet/hostfleet-cli/internal/output"
	"github.com/hostfleet/hostfleet-cli/internal/version"
)

const (
	maxRetries = 5
	maxJitter  = 100 * time.Millisecond
)

// baseDelay is a variable so tests can collapse the backoff.
var baseDelay = 1 * time.Second

// Client is an HTTP client for one profile's Hostfleet deployment. Every
// request carries a token resolved by the lifecycle manager.
type Client struct {
	httpClient *http.Client
	auth       *auth.Manager
	profileKey string
	profile    *config.Profile
	logger     *slog.Logger
}

// Response wraps an API response.
type Response struct {
	Data       json.RawMessage
	StatusCode int
	Headers    http.Header
}

// UnmarshalData unmarshals the response data into the given value.
func (r *Response) UnmarshalData(v any) error {
	return json.Unmarshal(r.Data, v)
}

// NewClient creates an API client bound to the resolved profile.
func NewClient(authMgr *auth.Manager, profileKey string, profile *config.Profile) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSClientConfig: &tls.Config{
					MinVersion:         tls.VersionTLS12,
					InsecureSkipVerify: profile.InsecureTLS, //nolint:gosec // G402: per-profile opt-in for self-signed deployments
				},
			},
		},
		auth:       authMgr,
		profileKey: profileKey,
		profile:    profile,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger replaces the request-tracing logger. Traces are emitted at
// debug level and never share a stream with envelope output.
func (c *Client) SetLogger(l *slog.Logger) {
	if l != nil {
		c.logger = l
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.doRequest(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.doRequest(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.doRequest(ctx, http.MethodPut, path, body)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.doRequest(ctx, http.MethodDelete, path, nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*Response, error) {
	url := c.buildURL(path)

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := c.singleRequest(ctx, method, url, body, attempt)
		if err == nil {
			return resp, nil
		}

		apiErr, ok := err.(*output.Error)
		if !ok || !apiErr.Retryable {
			return nil, err
		}
		lastErr = err

		// No point sleeping out the backoff when no attempt follows.
		if attempt == maxRetries {
			break
		}

		delay := c.backoffDelay(attempt)
		c.logger.Debug("retrying request", "attempt", attempt, "max", maxRetries, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

func (c *Client) singleRequest(ctx context.Context, method, url string, body any, attempt int) (*Response, error) {
	token, err := c.auth.ValidToken(ctx, c.profileKey, c.profile)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, output.ErrAuth("Not authenticated")
	}

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = strings.NewReader(string(bodyBytes))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	c.logger.Debug("request", "method", method, "url", url, "attempt", attempt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("response", "status", resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return &Response{
			Data:       respBody,
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
		}, nil

	case http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, output.ErrRateLimit(retryAfter)

	case http.StatusUnauthorized:
		// Force one refresh, then retry with the new token.
		if attempt == 1 {
			if _, err := c.auth.Refresh(ctx, c.profileKey, c.profile); err == nil {
				return nil, &output.Error{
					Code:      output.CodeAuth,
					Message:   "Token refreshed",
					Retryable: true,
				}
			}
		}
		return nil, output.ErrAuth("Authentication failed")

	case http.StatusForbidden:
		return nil, output.ErrAPI(403, "Access denied")

	case http.StatusNotFound:
		return nil, output.ErrNotFound("Resource", url)

	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return nil, &output.Error{
			Code:       output.CodeAPI,
			Message:    fmt.Sprintf("Gateway error (%d)", resp.StatusCode),
			HTTPStatus: resp.StatusCode,
			Retryable:  true,
		}

	default:
		respBody, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil {
			msg := apiErr.Error
			if msg == "" {
				msg = apiErr.Message
			}
			if msg != "" {
				return nil, output.ErrAPI(resp.StatusCode, msg)
			}
		}
		return nil, output.ErrAPI(resp.StatusCode, fmt.Sprintf("Request failed (HTTP %d)", resp.StatusCode))
	}
}

func (c *Client) buildURL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return config.NormalizeBaseURL(c.profile.BaseURL) + path
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	// Exponential backoff: base * 2^(attempt-1)
	delay := baseDelay * time.Duration(1<<(attempt-1))

	// Add jitter (0-100ms)
	jitter := time.Duration(rand.Int63n(int64(maxJitter))) //nolint:gosec // G404: Jitter doesn't need crypto rand

	return delay + jitter
}

// parseRetryAfter parses the Retry-After header value.
func parseRetryAfter(header string) int {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return seconds
	}
	return 0
}
