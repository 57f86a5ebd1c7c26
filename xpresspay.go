// Package xpresspay is the Go SDK for the Xpresspay payment gateway. It
// covers the hosted-page, direct card, and direct bank-account flows,
// including the encrypted payload exchange the direct flows require.
//
// A Client is safe for concurrent use; each payment is driven through its
// own Transaction, obtained from NewTransaction.
package xpresspay

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xpresspay/xpresspay-go/banks"
	"github.com/xpresspay/xpresspay-go/codec"
	"github.com/xpresspay/xpresspay-go/gateway"
	xperrors "github.com/xpresspay/xpresspay-go/pkg/errors"
	xphttp "github.com/xpresspay/xpresspay-go/pkg/http"
	"github.com/xpresspay/xpresspay-go/transaction"
)

const (
	// LiveBaseURL is the production gateway host.
	LiveBaseURL = "https://myxpresspay.com:6004"
	// SandboxBaseURL is the integration-testing gateway host.
	SandboxBaseURL = "https://pgsandbox.xpresspayments.com:6004"

	publicKeyPrefix = "XPPUBK-"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
)

// Client holds the merchant credentials and the configured gateway
// connection shared by every transaction it creates.
type Client struct {
	publicKey string
	secretKey string

	gw         *gateway.Client
	httpClient *http.Client
	ownsClient bool
	logger     *zap.Logger
}

// Option configures a Client at construction.
type Option func(*settings)

type settings struct {
	baseURL    string
	live       bool
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	transport  gateway.HTTPClient
	logger     *zap.Logger
}

// WithLive points the client at the production gateway. The default is the
// sandbox, so a misconfigured deployment moves test money, not real money.
func WithLive() Option {
	return func(s *settings) { s.live = true }
}

// WithBaseURL overrides the gateway host entirely, for self-hosted mocks.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) { s.baseURL = baseURL }
}

// WithTimeout sets the per-request timeout. Default 30s.
func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) { s.timeout = timeout }
}

// WithMaxRetries sets how many times a request that never reached the
// gateway is re-sent. Replies are never retried. Default 2.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.maxRetries = n }
}

// WithHTTPClient supplies a caller-owned *http.Client. The SDK will not
// close it.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) { s.httpClient = c }
}

// WithLogger attaches a zap logger. Card data, PINs, OTPs, and secret keys
// are never logged at any level.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// New builds a Client from explicit credentials. Pass secretKey "" for a
// hosted-page-only integration; the direct flows require it. Key prefixes
// are checked here so a swapped or truncated key fails at startup, not on
// the first payment.
func New(publicKey, secretKey string, opts ...Option) (*Client, error) {
	if !hasPrefix(publicKey, publicKeyPrefix) {
		return nil, xperrors.NewLocalValidationError("publicKey", "must start with "+publicKeyPrefix)
	}
	if secretKey != "" && !hasPrefix(secretKey, codec.SecretKeyPrefix) {
		return nil, xperrors.NewLocalValidationError("secretKey", "must start with "+codec.SecretKeyPrefix)
	}

	s := settings{
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(&s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	baseURL := s.baseURL
	if baseURL == "" {
		baseURL = SandboxBaseURL
		if s.live {
			baseURL = LiveBaseURL
		}
	}

	var transport gateway.HTTPClient
	httpClient := s.httpClient
	ownsClient := false
	switch {
	case s.transport != nil:
		transport = s.transport
	case httpClient != nil:
		transport = httpClient
	default:
		httpClient = xphttp.NewHTTPClient(xphttp.GatewayClientConfig(), s.timeout)
		ownsClient = true
		transport = httpClient
	}

	gw := gateway.NewClient(&gateway.Config{
		BaseURL:    baseURL,
		PublicKey:  publicKey,
		MaxRetries: s.maxRetries,
	}, transport, s.logger)

	return &Client{
		publicKey:  publicKey,
		secretKey:  secretKey,
		gw:         gw,
		httpClient: httpClient,
		ownsClient: ownsClient,
		logger:     s.logger,
	}, nil
}

// NewFromEnv builds a Client from XPRESSPAY_PUBLIC_KEY and
// XPRESSPAY_SECRET_KEY, reading a .env file first if one exists.
func NewFromEnv(opts ...Option) (*Client, error) {
	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	return New(creds.PublicKey, creds.SecretKey, opts...)
}

// NewTransaction starts the state machine for one payment. transactionID
// must be 6-30 characters and unique per merchant; pass "" to generate one.
func (c *Client) NewTransaction(kind transaction.Kind, transactionID string) (*transaction.Transaction, error) {
	if kind != transaction.KindHosted && c.secretKey == "" {
		return nil, xperrors.NewLocalValidationError("secretKey", "is required for direct card and account payments")
	}
	return transaction.New(c.gw, c.publicKey, c.secretKey, kind, transactionID, c.logger)
}

// ListBanks fetches the banks available for direct account debits.
func (c *Client) ListBanks(ctx context.Context) ([]banks.Bank, error) {
	return banks.List(ctx, c.gw, c.publicKey)
}

// Close releases pooled connections. It is a no-op for a client supplied
// via WithHTTPClient.
func (c *Client) Close() {
	if c.ownsClient {
		c.httpClient.CloseIdleConnections()
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) > len(prefix) && s[:len(prefix)] == prefix
}
