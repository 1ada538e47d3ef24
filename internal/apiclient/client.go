// Package apiclient is the HTTP integration layer between the client core and
// the quizgram REST backend. Every failure is returned as a
// *model.RemoteError carrying its kind.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"quizgram/internal/httputil"
	"quizgram/internal/logging"
	"quizgram/internal/model"
)

const maxResponseBody = 1 << 20

// Client talks to the REST backend on behalf of one authenticated user.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logging.Component("APIClient"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends a request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &model.RemoteError{Kind: model.KindUnknown, Message: "encode request", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &model.RemoteError{Kind: model.KindUnknown, Message: "build request", Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return &model.RemoteError{Kind: model.KindNetwork, Message: fmt.Sprintf("%s %s", method, path), Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request done", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(startTime))

	if resp.StatusCode >= http.StatusBadRequest {
		detail := httputil.ReadError(resp)
		return &model.RemoteError{
			Kind:    model.KindServerRejected,
			Status:  resp.StatusCode,
			Code:    detail.Code,
			Message: detail.Message,
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &model.RemoteError{Kind: model.KindNetwork, Status: resp.StatusCode, Message: "read response", Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &model.RemoteError{Kind: model.KindUnknown, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}

func invalidResponse(format string, args ...any) error {
	return &model.RemoteError{Kind: model.KindUnknown, Message: "invalid response: " + fmt.Sprintf(format, args...)}
}
