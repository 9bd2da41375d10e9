package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"suppliersync/internal/supplier/pkg"
	"suppliersync/pkg/logger"
	"suppliersync/pkg/middleware"
)

const maxErrorBody = 512

type BaseClient struct {
	ApiURL    string
	UserAgent string
	log       logger.Logger
	client    *http.Client
	roundTrip middleware.RoundTrip
}

// NewBaseClient собирает клиента с цепочкой middleware вокруг http.Client.
func NewBaseClient(apiURL string, timeout time.Duration, writer io.Writer, logPrefix string, mws ...middleware.Middleware) *BaseClient {
	c := &BaseClient{
		ApiURL: apiURL,
		log:    logger.NewLogger(writer, logPrefix),
		client: &http.Client{Timeout: timeout},
	}
	c.roundTrip = middleware.Chain(c.send, mws...)
	return c
}

func (c *BaseClient) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(ctx))
}

// doRequest sends requestBody as JSON and decodes a 200 answer into response.
// 429 becomes *pkg.RateLimitError, 404 becomes pkg.ErrNotFound.
func (c *BaseClient) doRequest(ctx context.Context, method, url string, requestBody interface{}, response interface{}) error {
	var body io.Reader
	if requestBody != nil {
		bodyBytes, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.execute(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if err := json.Unmarshal(raw, response); err != nil {
		return fmt.Errorf("%w: %v", pkg.ErrMalformedResponse, err)
	}
	return nil
}

// execute runs req through the middleware chain. On success the caller owns
// the response body.
func (c *BaseClient) execute(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.roundTrip(ctx, req)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("request was cancelled: %w", ctx.Err())
		default:
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
	}
	if err := checkStatus(resp, req.URL.String()); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func checkStatus(resp *http.Response, url string) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusTooManyRequests:
		return &pkg.RateLimitError{
			URL:        url,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case http.StatusNotFound:
		return pkg.ErrNotFound
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &pkg.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}

// parseRetryAfter понимает только форму в секундах.
func parseRetryAfter(value string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// flexString accepts any JSON scalar; the supplier sends prices and ids
// both as strings and as numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] == '{' || trimmed[0] == '[' {
		return errors.New("expected scalar value")
	}
	*f = flexString(trimmed)
	return nil
}
