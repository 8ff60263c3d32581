// Package contextclient calls the context store's bulk endpoint on behalf of
// the experiments service and the reconciler.
package contextclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/config"
	"github.com/rafaeljc/superposition/internal/contextops"
	"github.com/rafaeljc/superposition/internal/experiment"
	"github.com/rafaeljc/superposition/internal/logger"
	"github.com/rafaeljc/superposition/internal/observability"
	"github.com/rafaeljc/superposition/internal/validation"
)

// BulkPath is the context store endpoint applying an ordered batch.
const BulkPath = "/context/bulk-operations"

var _ experiment.ContextStore = (*Client)(nil)

// StatusError carries a non-2xx answer of the context store.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("context store answered %d", e.StatusCode)
	}
	return fmt.Sprintf("context store answered %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 answer of the context store.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	endpoint   string
	token      string
	maxBytes   int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is overridden
// by the configured call timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New builds a client for cfg.
func New(cfg *config.ContextStoreConfig, opts ...Option) *Client {
	validation.AssertNotNil(cfg, "context store config")

	c := &Client{
		httpClient: &http.Client{},
		endpoint:   strings.TrimRight(cfg.URL, "/") + BulkPath,
		token:      cfg.AdminToken,
		maxBytes:   cfg.MaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.httpClient.Timeout = timeout
	if c.maxBytes <= 0 {
		c.maxBytes = 10 << 20
	}
	return c
}

// BulkOperations sends ops in one PUT and decodes the ordered results.
// Transport failures and non-2xx answers are RemoteCall errors.
func (c *Client) BulkOperations(ctx context.Context, ops contextops.Batch) (contextops.Results, error) {
	start := time.Now()
	results, err := c.bulk(ctx, ops)

	outcome := observability.OutcomeSuccess
	if err != nil {
		outcome = observability.OutcomeFailure
	}
	observability.ContextStoreCallDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	logger.FromContext(ctx).Debug("context store bulk call",
		slog.Int("operations", len(ops)),
		slog.String("outcome", outcome),
		slog.Duration("duration", time.Since(start)),
	)
	return results, err
}

func (c *Client) bulk(ctx context.Context, ops contextops.Batch) (contextops.Results, error) {
	body, err := json.Marshal(ops)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindBadArgument, err, "failed to encode bulk operations")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRemoteCall, err, "failed to build context store request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRemoteCall, err, "context store call failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindRemoteCall, err, "failed to read context store response")
	}
	if int64(len(payload)) > c.maxBytes {
		return nil, apperr.New(apperr.KindRemoteCall, "context store response exceeds %d bytes", c.maxBytes)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.Wrap(apperr.KindRemoteCall, decodeStatusError(resp.StatusCode, payload), "context store rejected bulk operations")
	}

	var results contextops.Results
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, apperr.Wrap(apperr.KindRemoteCall, err, "failed to decode context store response")
	}
	return results, nil
}

func decodeStatusError(status int, payload []byte) *StatusError {
	se := &StatusError{StatusCode: status}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		se.Code = body.Code
		se.Message = body.Message
	}
	return se
}
