// Package gateway is the transport boundary and response classifier for the
// Xpresspay API: it performs one synchronous HTTP exchange per call and
// translates heterogeneous gateway replies (HTTP status + body codes) into a
// typed Outcome or a typed error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	xperrors "github.com/xpresspay/xpresspay-go/pkg/errors"
	"github.com/xpresspay/xpresspay-go/pkg/observability"
	"github.com/xpresspay/xpresspay-go/pkg/resilience"
)

// Config contains configuration for the gateway client
type Config struct {
	// Base URL of the gateway
	// Live:    https://myxpresspay.com:6004
	// Sandbox: https://pgsandbox.xpresspayments.com:6004
	BaseURL string

	// PublicKey is sent as the bearer credential on every call
	PublicKey string

	// MaxRetries is the number of retries for transport-level failures.
	// Only failures where the request never reached the gateway are
	// retried; a reply, even an error reply, is never re-sent.
	MaxRetries int
}

// Client sends requests to the gateway through an injectable HTTPClient and
// classifies every reply. Safe for concurrent use across independent
// transactions; it holds no per-transaction state.
type Client struct {
	baseURL    string
	publicKey  string
	httpClient HTTPClient
	logger     *zap.Logger
	breaker    *CircuitBreaker
	backoff    resilience.BackoffStrategy
	maxRetries int
}

// NewClient creates a gateway client. httpClient is typically built by
// pkg/http; tests pass a mock.
func NewClient(config *Config, httpClient HTTPClient, logger *zap.Logger) *Client {
	maxRetries := config.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		baseURL:    config.BaseURL,
		publicKey:  config.PublicKey,
		httpClient: httpClient,
		logger:     logger,
		breaker:    NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		backoff:    resilience.DefaultExponentialBackoff(),
		maxRetries: maxRetries,
	}
}

// Exchange performs one request/response exchange for the given step and
// classifies the reply. Transport failures surface as *errors.NetworkError
// and are guaranteed to mean no charge occurred.
func (c *Client) Exchange(ctx context.Context, step Step, method, path string, body any) (*Outcome, error) {
	done := observability.ExchangeStarted(step.String())

	status, respBody, err := c.send(ctx, method, path, body)
	if err != nil {
		done(errKind(err))
		return nil, err
	}

	outcome, err := Classify(step, status, respBody)
	if err != nil {
		done(errKind(err))
		return nil, err
	}

	c.logger.Debug("classified gateway response",
		zap.String("step", step.String()),
		zap.String("code", outcome.Code),
		zap.Bool("successful", outcome.Successful),
		zap.Bool("requires_validation", outcome.RequiresValidation),
	)

	done(resultLabel(outcome))
	return outcome, nil
}

// Get fetches a non-transactional resource (e.g. the bank list). Only the
// HTTP status is triaged; the body is returned verbatim.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	status, body, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, statusError(status, body)
	}
	return body, nil
}

// send performs the HTTP call with circuit breaking and transport-level
// retries. It returns the raw status and body; interpreting them is the
// classifier's job.
func (c *Client) send(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	url := c.baseURL + path

	var status int
	var respBody []byte
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff.NextDelay(attempt - 1)
			c.logger.Info("retrying gateway request",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.maxRetries),
				zap.Duration("backoff_delay", delay),
			)
			select {
			case <-ctx.Done():
				return 0, nil, xperrors.NewNetworkError("retry cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		err := c.breaker.Call(func() error {
			req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json")
			req.Header.Set("Authorization", "Bearer "+c.publicKey)

			startTime := time.Now()
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			b, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			c.logger.Debug("received gateway response",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status_code", resp.StatusCode),
				zap.Duration("elapsed", time.Since(startTime)),
				zap.Int("body_length", len(b)),
			)

			status = resp.StatusCode
			respBody = b
			return nil
		})
		if err == nil {
			return status, respBody, nil
		}

		lastErr = err
		if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests) {
			c.logger.Warn("circuit breaker rejected gateway request",
				zap.String("circuit_state", c.breaker.State().String()),
			)
			return 0, nil, xperrors.NewNetworkError("gateway circuit is open", err)
		}

		c.logger.Warn("gateway request failed",
			zap.Error(err),
			zap.Int("attempt", attempt),
		)

		if ctx.Err() != nil {
			break
		}
	}

	return 0, nil, xperrors.NewNetworkError(
		fmt.Sprintf("request never reached the gateway: %v", lastErr), lastErr)
}

func resultLabel(outcome *Outcome) string {
	switch {
	case outcome.Successful:
		return "success"
	case outcome.RequiresValidation:
		return "pending"
	default:
		return "unsuccessful"
	}
}

func errKind(err error) string {
	var (
		netErr  *xperrors.NetworkError
		authErr *xperrors.AuthenticationError
		valErr  *xperrors.ValidationError
		nfErr   *xperrors.NotFoundError
		procErr *xperrors.ProcessingError
	)
	switch {
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &authErr):
		return "authentication_error"
	case errors.As(err, &valErr):
		return "validation_error"
	case errors.As(err, &nfErr):
		return "not_found_error"
	case errors.As(err, &procErr):
		return "processing_error"
	default:
		return "error"
	}
}
