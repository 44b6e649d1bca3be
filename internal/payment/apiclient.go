package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"olkupay-be/internal/logger"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// sensitiveKeys are masked before any payload reaches the log sink,
// including error paths.
var sensitiveKeys = []string{"apiKey", "api_key", "secret", "password", "token"}

// APIClient is a single-attempt request/response wrapper around a provider's
// HTTP API. Retry policy, if any, belongs to the caller.
type APIClient struct {
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

type APIResponse struct {
	StatusCode int
	Data       map[string]any
}

func NewAPIClient(baseURL string, headers map[string]string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return NewAPIClientWithHTTPClient(baseURL, headers, &http.Client{
		Timeout: timeout,
	})
}

// NewAPIClientWithHTTPClient injects the underlying HTTP client, used by
// tests to swap the transport.
func NewAPIClientWithHTTPClient(baseURL string, headers map[string]string, hc *http.Client) *APIClient {
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		headers:    headers,
		httpClient: hc,
	}
}

func (c *APIClient) Get(ctx context.Context, endpoint string) (*APIResponse, error) {
	return c.request(ctx, http.MethodGet, endpoint, nil)
}

func (c *APIClient) Post(ctx context.Context, endpoint string, body map[string]any) (*APIResponse, error) {
	return c.request(ctx, http.MethodPost, endpoint, body)
}

func (c *APIClient) Put(ctx context.Context, endpoint string, body map[string]any) (*APIResponse, error) {
	return c.request(ctx, http.MethodPut, endpoint, body)
}

func (c *APIClient) Delete(ctx context.Context, endpoint string) (*APIResponse, error) {
	return c.request(ctx, http.MethodDelete, endpoint, nil)
}

func (c *APIClient) request(ctx context.Context, method, endpoint string, body map[string]any) (*APIResponse, error) {
	url := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	log := logger.FromCtx(ctx)

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	log.Debug("API request",
		zap.String("method", method),
		zap.String("url", url),
		zap.Any("body", sanitizeLogData(body)),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("API request failed",
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read response body: %w", err)}
	}

	var decoded map[string]any
	if len(respBytes) > 0 {
		// A non-JSON body is not fatal; the status code still decides.
		_ = json.Unmarshal(respBytes, &decoded)
	}

	log.Debug("API response",
		zap.Int("status_code", resp.StatusCode),
		zap.Any("body", sanitizeLogData(decoded)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{
			StatusCode: resp.StatusCode,
			Body:       decoded,
		}
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Data:       decoded,
	}, nil
}

// sanitizeLogData returns a copy of data with sensitive values masked to a
// 4-character prefix plus ellipsis.
func sanitizeLogData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}

	for _, key := range sensitiveKeys {
		if v, ok := out[key]; ok {
			if s, ok := v.(string); ok {
				out[key] = logger.Mask(s)
			}
		}
	}

	return out
}
