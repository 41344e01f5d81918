package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/pkg/domain"
)

// DefaultTimeout bounds a single decision-service call.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 1 << 20

// Client calls a remote decision service. The request body is the JSON encoding of
// domain.EvaluationRequest, the response must be a JSON verdict.
//
// Client is safe for concurrent use.
type Client struct {
	url        string
	httpClient *http.Client
	timeout    time.Duration
	headers    http.Header
	logger     *slog.Logger
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client. The client is used as is; the call
// timeout is applied per request and never written to hc.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout overrides DefaultTimeout. Zero or less leaves calls bounded only by the
// caller's context and the http.Client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHeader adds a header to every request, e.g. an API key.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithLogger configures a logger for the Client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client posting to url.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		headers:    make(http.Header),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Evaluate implements ports.Evaluator.
func (c *Client) Evaluate(ctx context.Context, req domain.EvaluationRequest) (domain.TurnVerdict, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.TurnVerdict{}, fmt.Errorf("marshal request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.TurnVerdict{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, vs := range c.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("decision service unreachable", "session_id", req.SessionID, "err", err)
		return domain.TurnVerdict{}, &domain.EvaluatorUnavailableError{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return domain.TurnVerdict{}, &domain.EvaluatorUnavailableError{Cause: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("decision service error",
			"session_id", req.SessionID,
			"status", resp.StatusCode,
		)
		return domain.TurnVerdict{}, &domain.EvaluatorUnavailableError{
			Cause: fmt.Errorf("decision service returned status %d: %s", resp.StatusCode, bytes.TrimSpace(raw)),
		}
	}

	verdict, err := DecodeVerdict(raw)
	if err != nil {
		c.logger.Warn("decision service sent malformed verdict", "session_id", req.SessionID, "err", err)
		return domain.TurnVerdict{}, err
	}

	c.logger.Debug("verdict received",
		"session_id", req.SessionID,
		"signal", verdict.Signal,
		"elapsed", time.Since(start),
	)
	return verdict, nil
}
