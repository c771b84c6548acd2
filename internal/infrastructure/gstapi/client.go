// Package gstapi is the HTTP client for the remote GST and accounting backend.
// It implements the credential, reconciliation and document gateways.
package gstapi

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/domain/errors"
)

const maxErrorBody = 64 << 10

// RequestMetrics observes every remote call.
type RequestMetrics interface {
	RecordRemoteRequest(operation string, statusCode int, duration time.Duration)
}

// RetryConfig bounds retries of idempotent reads.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	MaxRetries      uint64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  20 * time.Second,
		MaxRetries:      4,
	}
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      RetryConfig
	metrics    RequestMetrics
	logger     *zap.Logger
}

// ClientOption modifies the client
type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(c *Client) { c.retry = cfg }
}

func WithMetrics(m RequestMetrics) ClientOption {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		retry:      DefaultRetryConfig(),
		metrics:    noopMetrics{},
		logger:     logger.Named("gstapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// call describes one request.
type call struct {
	operation string
	method    string
	path      string
	body      interface{}
	out       interface{}
	// idempotent calls are retried on transient failures.
	idempotent bool
}

// do runs c and maps failures into the error taxonomy:
// transport errors, timeouts and 5xx are transient, 404 is not_found and any
// other 4xx is a remote rejection carrying the server's message verbatim.
func (c *Client) do(ctx context.Context, cl call) error {
	var payload []byte
	if cl.body != nil {
		var err error
		if payload, err = json.Marshal(cl.body); err != nil {
			return errors.NewInternalError("failed to encode request").WithCause(err)
		}
	}

	attempt := func() ([]byte, error) {
		return c.roundTrip(ctx, cl, payload)
	}

	var raw []byte
	var err error
	if cl.idempotent {
		raw, err = c.withRetry(ctx, cl.operation, attempt)
	} else {
		raw, err = attempt()
	}
	if err != nil {
		return err
	}

	if cl.out == nil {
		return nil
	}
	if out, ok := cl.out.(*[]byte); ok {
		*out = unwrapData(raw)
		return nil
	}
	if err := json.Unmarshal(unwrapData(raw), cl.out); err != nil {
		return errors.NewInternalError(fmt.Sprintf("unexpected %s response", cl.operation)).WithCause(err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, cl call, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	url := c.baseURL + "/" + strings.TrimPrefix(cl.path, "/")
	req, err := http.NewRequestWithContext(ctx, cl.method, url, body)
	if err != nil {
		return nil, errors.NewInternalError("failed to create request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordRemoteRequest(cl.operation, 0, duration)
		c.logger.Error("remote request failed",
			zap.String("operation", cl.operation),
			zap.String("method", cl.method),
			zap.String("path", cl.path),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, errors.NewTransientFailure(cl.operation, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordRemoteRequest(cl.operation, resp.StatusCode, duration)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransientFailure(cl.operation, err)
	}

	fields := []zap.Field{
		zap.String("operation", cl.operation),
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", duration),
	}
	switch {
	case resp.StatusCode >= 500:
		c.logger.Error("remote server error", fields...)
		return nil, errors.NewTransientFailure(cl.operation,
			fmt.Errorf("status %d: %s", resp.StatusCode, remoteMessage(raw, resp.StatusCode)))
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Warn("remote resource not found", fields...)
		return nil, errors.NewNotFoundError(resourceOf(cl.operation)).
			WithDetails(map[string]interface{}{"remoteMessage": remoteMessage(raw, resp.StatusCode)})
	case resp.StatusCode >= 400:
		c.logger.Warn("remote rejection", fields...)
		return nil, rejection(raw, resp.StatusCode)
	}

	c.logger.Debug("remote request completed", fields...)
	return raw, nil
}

// withRetry retries transient failures with exponential backoff. Other errors
// stop the loop immediately.
func (c *Client) withRetry(ctx context.Context, operation string, attempt func() ([]byte, error)) ([]byte, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.retry.InitialInterval
	expBackoff.MaxInterval = c.retry.MaxInterval
	expBackoff.MaxElapsedTime = c.retry.MaxElapsedTime

	var policy backoff.BackOff = expBackoff
	if c.retry.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(policy, c.retry.MaxRetries)
	}

	var raw []byte
	tries := 0
	op := func() error {
		tries++
		var err error
		raw, err = attempt()
		if err != nil && !errors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(policy, ctx))
	if err != nil {
		var permanent *backoff.PermanentError
		if stderrors.As(err, &permanent) {
			err = permanent.Err
		}
		var appErr *errors.AppError
		if !stderrors.As(err, &appErr) {
			err = errors.NewTransientFailure(operation, err)
		}
		if tries > 1 {
			c.logger.Warn("remote read gave up after retries",
				zap.String("operation", operation),
				zap.Int("attempts", tries),
				zap.Error(err))
		}
		return nil, err
	}
	return raw, nil
}

// errorBody accepts both {"message": ...} and {"error": {"message": ...}}.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseErrorBody(raw []byte) (code, message string) {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", ""
	}
	code, message = body.Code, body.Message
	if body.Error != nil {
		if message == "" {
			message = body.Error.Message
		}
		if code == "" {
			code = body.Error.Code
		}
	}
	return code, message
}

func remoteMessage(raw []byte, status int) string {
	if _, msg := parseErrorBody(raw); msg != "" {
		return msg
	}
	if text := strings.TrimSpace(string(raw)); text != "" && len(text) < maxErrorBody && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(status)
}

func rejection(raw []byte, status int) error {
	code, _ := parseErrorBody(raw)
	if code == "" {
		code = fmt.Sprintf("REMOTE_%d", status)
	}
	return errors.NewRemoteRejection(code, remoteMessage(raw, status), status)
}

// unwrapData returns the "data" member of an envelope, or raw unchanged.
func unwrapData(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil || len(envelope.Data) == 0 {
		return trimmed
	}
	return envelope.Data
}

func resourceOf(operation string) string {
	switch {
	case strings.HasPrefix(operation, "credential"):
		return "credential"
	case strings.HasPrefix(operation, "document"):
		return "document"
	default:
		return "remote resource"
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordRemoteRequest(string, int, time.Duration) {}
