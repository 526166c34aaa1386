// Package backend forwards requests to the external REST/JSON service that
// owns the product's business logic.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/portal-dev/portal/internal/metrics"
)

// Backend endpoints the gateway forwards to
const (
	SignupPath          = "/api/v1/auth/signup"
	LoginPath           = "/api/v1/auth/login"
	RefreshPath         = "/api/v1/auth/refresh"
	OnboardingTasksPath = "/api/v1/onboarding/tasks"
	WaitlistPath        = "/api/v1/waitlist"
	DashboardStatsPath  = "/api/v1/dashboard/stats"
)

// maxResponseBytes caps how much of an upstream body is buffered
const maxResponseBytes = 10 << 20

var (
	ErrUpstream         = errors.New("backend request failed")
	ErrUnexpectedStatus = errors.New("unexpected backend status")
)

// Client represents an HTTP client for the backend API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new backend client
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// Request describes one forwarded call
type Request struct {
	Method      string
	Path        string
	Body        []byte
	AccessToken string
	Header      http.Header
}

// Response is the backend's reply, buffered
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports whether the backend answered with a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ErrorMessage extracts an "error" or "message" string from a JSON object body
func (r *Response) ErrorMessage() (string, bool) {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Body, &envelope); err != nil {
		return "", false
	}
	if envelope.Error != "" {
		return envelope.Error, true
	}
	if envelope.Message != "" {
		return envelope.Message, true
	}
	return "", false
}

// Do performs a single best-effort forward. Any non-nil error wraps ErrUpstream
// and means no response was received; backend error statuses are returned in
// the Response, not as errors.
func (c *Client) Do(ctx context.Context, in Request) (*Response, error) {
	start := time.Now()

	var body io.Reader
	if in.Body != nil {
		body = bytes.NewReader(in.Body)
	}

	req, err := http.NewRequestWithContext(ctx, in.Method, c.baseURL+in.Path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrUpstream, err)
	}

	for key, values := range in.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if in.AccessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", in.AccessToken))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(in.Path, 0, time.Since(start))
		return nil, fmt.Errorf("%w: failed to send request: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.ObserveUpstream(in.Path, 0, time.Since(start))
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	metrics.ObserveUpstream(in.Path, resp.StatusCode, time.Since(start))

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// StatusError describes a non-2xx response for callers that need an error
func StatusError(resp *Response) error {
	if msg, ok := resp.ErrorMessage(); ok {
		return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, msg)
	}
	return fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
}

// PostJSON marshals payload and forwards it with POST
func (c *Client) PostJSON(ctx context.Context, path, accessToken string, payload any) (*Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Body:        jsonData,
		AccessToken: accessToken,
	})
}
