package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	types "github.com/yungbote/custrisk-backend/internal/domain"
	"github.com/yungbote/custrisk-backend/internal/oracle"
	"github.com/yungbote/custrisk-backend/internal/platform/httpx"
)

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) HTTPStatusCode() int { return e.StatusCode }

func (e *HTTPError) Error() string {
	if e == nil {
		return "oracle http error"
	}
	if e.Body == "" {
		return fmt.Sprintf("oracle http error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("oracle http error: status=%d body=%s", e.StatusCode, e.Body)
}

const (
	defaultMaxAttempts  = 2
	defaultRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff     = time.Second
)

type Client struct {
	baseURL      string
	apiKey       string
	predictPath  string
	httpClient   *http.Client
	maxAttempts  int
	retryBackoff time.Duration
}

func New(cfg oracle.Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("remote oracle: base_url required")
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        50,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Client{
		baseURL:      baseURL,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		predictPath:  "/predict",
		httpClient:   &http.Client{Transport: tr},
		maxAttempts:  defaultMaxAttempts,
		retryBackoff: defaultRetryBackoff,
	}, nil
}

// NewWithHTTPClient swaps the transport, mainly so tests avoid the network.
func NewWithHTTPClient(cfg oracle.Config, httpClient *http.Client) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c, nil
}

func (c *Client) Name() string { return "remote:" + c.baseURL }

type predictRequest struct {
	Features map[string]float64 `json:"features"`
}

type predictResponse struct {
	RiskLevel       string   `json:"risk_level"`
	ConfidenceScore *float64 `json:"confidence_score"`
}

// Predict retries transient failures (transport errors, 408, 429, 5xx) while ctx allows.
func (c *Client) Predict(ctx context.Context, features map[string]float64) (*oracle.Result, error) {
	body, err := json.Marshal(predictRequest{Features: features})
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		res, resp, err := c.predictOnce(ctx, body)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.maxAttempts || !httpx.IsRetryableError(err) {
			break
		}
		wait := httpx.JitterSleep(httpx.RetryAfterDuration(resp, c.retryBackoff*time.Duration(attempt), maxRetryBackoff))
		if err := httpx.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, classify(lastErr)
}

func (c *Client) predictOnce(ctx context.Context, body []byte) (*oracle.Result, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.predictPath, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, resp, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp, fmt.Errorf("%w: decode oracle response: %v", types.ErrPredictionFailed, err)
	}
	level, err := types.ParseRiskLevel(out.RiskLevel)
	if err != nil {
		return nil, resp, fmt.Errorf("%w: oracle returned %v", types.ErrPredictionFailed, err)
	}
	return &oracle.Result{Level: level, Confidence: out.ConfidenceScore}, resp, nil
}

// classify maps a final failure onto the prediction sentinels.
func classify(err error) error {
	if errors.Is(err, types.ErrPredictionFailed) {
		return err
	}
	var herr *HTTPError
	if errors.As(err, &herr) {
		if herr.StatusCode >= 500 || herr.StatusCode == http.StatusTooManyRequests || herr.StatusCode == http.StatusRequestTimeout {
			return errors.Join(types.ErrOracleUnavailable, herr)
		}
		return fmt.Errorf("%w: %w", types.ErrPredictionFailed, herr)
	}
	return fmt.Errorf("%w: %v", types.ErrOracleUnavailable, err)
}
