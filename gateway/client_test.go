package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xpresspay/xpresspay-go/gateway"
	xperrors "github.com/xpresspay/xpresspay-go/pkg/errors"
	"github.com/xpresspay/xpresspay-go/test/mocks"
)

const testPublicKey = "XPPUBK-ead4d14d9ded04aer5d5b63a0a06d2f-X"

func newTestClient(httpClient gateway.HTTPClient, maxRetries int) *gateway.Client {
	return gateway.NewClient(&gateway.Config{
		BaseURL:    "https://pgsandbox.xpresspayments.com:6004",
		PublicKey:  testPublicKey,
		MaxRetries: maxRetries,
	}, httpClient, zap.NewNop())
}

func TestExchangeSetsHeaders(t *testing.T) {
	mock := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return mocks.JSONResponse(200, `{"data":{"payment":{"paymentResponseCode":"000"}}}`), nil
	})
	client := newTestClient(mock, 0)

	_, err := client.Exchange(context.Background(), gateway.StepQuery, http.MethodPost, "/v1/payments/query",
		map[string]any{"transactionId": "TXN-000001"})
	require.NoError(t, err)

	require.Len(t, mock.Calls, 1)
	req := mock.Calls[0]
	assert.Equal(t, "Bearer "+testPublicKey, req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "https://pgsandbox.xpresspayments.com:6004/v1/payments/query", req.URL.String())
	assert.Contains(t, mock.Bodies[0], `"transactionId":"TXN-000001"`)
}

func TestExchangeTransportFailureIsNetworkError(t *testing.T) {
	mock := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})
	client := newTestClient(mock, 2)

	_, err := client.Exchange(context.Background(), gateway.StepQuery, http.MethodPost, "/v1/payments/query", nil)

	var netErr *xperrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, xperrors.IsRetriable(err))

	// Transport failures are retried: initial attempt plus two retries.
	assert.Len(t, mock.Calls, 3)
}

func TestExchangeDoesNotRetryGatewayReplies(t *testing.T) {
	mock := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return mocks.JSONResponse(401, `{"message":"invalid public key"}`), nil
	})
	client := newTestClient(mock, 3)

	_, err := client.Exchange(context.Background(), gateway.StepInitiate, http.MethodPost, "/v1/payments", nil)

	var authErr *xperrors.AuthenticationError
	require.ErrorAs(t, err, &authErr)

	// A reply, even an error reply, is never re-sent.
	assert.Len(t, mock.Calls, 1)
}

func TestExchangeOpensCircuitAfterRepeatedFailures(t *testing.T) {
	mock := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection reset")
	})
	client := newTestClient(mock, 0)

	// Default breaker opens after 5 consecutive transport failures.
	for i := 0; i < 5; i++ {
		_, err := client.Exchange(context.Background(), gateway.StepQuery, http.MethodPost, "/v1/payments/query", nil)
		require.Error(t, err)
	}
	assert.Len(t, mock.Calls, 5)

	_, err := client.Exchange(context.Background(), gateway.StepQuery, http.MethodPost, "/v1/payments/query", nil)
	var netErr *xperrors.NetworkError
	require.ErrorAs(t, err, &netErr)

	// The breaker rejected the call before it reached the transport.
	assert.Len(t, mock.Calls, 5)
}

func TestGetTriagesStatusOnly(t *testing.T) {
	t.Run("2xx returns body verbatim", func(t *testing.T) {
		mock := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
			return mocks.JSONResponse(200, `{"data":[{"bankName":"Access Bank","bankCode":"044"}]}`), nil
		})
		client := newTestClient(mock, 0)

		body, err := client.Get(context.Background(), "/v1/banks")
		require.NoError(t, err)
		assert.Contains(t, string(body), "Access Bank")
		assert.Equal(t, http.MethodGet, mock.Calls[0].Method)
	})

	t.Run("5xx raises ProcessingError", func(t *testing.T) {
		mock := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
			return mocks.JSONResponse(502, `{"message":"bad gateway"}`), nil
		})
		client := newTestClient(mock, 0)

		_, err := client.Get(context.Background(), "/v1/banks")
		var procErr *xperrors.ProcessingError
		assert.ErrorAs(t, err, &procErr)
	})
}

func TestExchangeRespectsContextCancellation(t *testing.T) {
	mock := mocks.NewMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, context.Canceled
	})
	client := newTestClient(mock, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Exchange(ctx, gateway.StepQuery, http.MethodPost, "/v1/payments/query", nil)
	var netErr *xperrors.NetworkError
	require.ErrorAs(t, err, &netErr)

	// No retry loop once the context is gone.
	assert.Len(t, mock.Calls, 1)
}
