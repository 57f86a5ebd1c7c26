package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xpresspay/xpresspay-go/codec"
	"github.com/xpresspay/xpresspay-go/gateway"
	xperrors "github.com/xpresspay/xpresspay-go/pkg/errors"
)

const (
	testPublicKey = "XPPUBK-11aa22bb33cc44dd55ee66ff-X"
	testSecretKey = "XPSECK-ab12cd34ef56gh78ij90kl12-X"
)

type exchangeCall struct {
	step   gateway.Step
	method string
	path   string
	body   map[string]any
}

// fakeExchanger replays scripted outcomes and records every call so tests
// can assert guard failures never reached the wire.
type fakeExchanger struct {
	outcomes []*gateway.Outcome
	err      error
	calls    []exchangeCall
}

func (f *fakeExchanger) Exchange(_ context.Context, step gateway.Step, method, path string, body any) (*gateway.Outcome, error) {
	m, _ := body.(map[string]any)
	f.calls = append(f.calls, exchangeCall{step: step, method: method, path: path, body: m})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.outcomes) == 0 {
		return &gateway.Outcome{}, nil
	}
	next := f.outcomes[0]
	f.outcomes = f.outcomes[1:]
	return next, nil
}

func newCardTx(t *testing.T, gw gateway.Exchanger) *Transaction {
	t.Helper()
	tx, err := New(gw, testPublicKey, testSecretKey, KindCard, "TXN-000001", zap.NewNop())
	require.NoError(t, err)
	return tx
}

func validCardRequest() *CardRequest {
	return &CardRequest{
		CardNumber:  "5061030000000000123",
		CVV:         "123",
		ExpiryMonth: "09",
		ExpiryYear:  "27",
		Amount:      "150000",
		Email:       "shopper@example.com",
	}
}

func TestNew(t *testing.T) {
	gw := &fakeExchanger{}

	t.Run("generates id when empty", func(t *testing.T) {
		tx, err := New(gw, testPublicKey, testSecretKey, KindCard, "", nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(tx.ID()), 6)
		assert.LessOrEqual(t, len(tx.ID()), 30)
		assert.Equal(t, StatusCreated, tx.Status())
	})

	t.Run("rejects out-of-range id", func(t *testing.T) {
		_, err := New(gw, testPublicKey, testSecretKey, KindCard, "short", nil)
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)

		_, err = New(gw, testPublicKey, testSecretKey, KindCard,
			"this-identifier-is-way-past-thirty-characters", nil)
		require.ErrorAs(t, err, &valErr)
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		_, err := New(gw, testPublicKey, testSecretKey, Kind("WALLET"), "TXN-000001", nil)
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
	})
}

func TestInitiateGuards(t *testing.T) {
	t.Run("hosted transactions cannot Initiate", func(t *testing.T) {
		gw := &fakeExchanger{}
		tx, err := New(gw, testPublicKey, testSecretKey, KindHosted, "TXN-000001", nil)
		require.NoError(t, err)

		_, err = tx.Initiate(context.Background(), validCardRequest())
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Empty(t, gw.calls, "guard failure must not reach the gateway")
	})

	t.Run("request kind must match transaction kind", func(t *testing.T) {
		gw := &fakeExchanger{}
		tx := newCardTx(t, gw)

		_, err := tx.Initiate(context.Background(), &AccountRequest{
			AccountNumber: "0123456789", BankCode: "057",
			Amount: "150000", Email: "shopper@example.com",
		})
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Empty(t, gw.calls)
	})

	t.Run("invalid fields fail before the network", func(t *testing.T) {
		gw := &fakeExchanger{}
		tx := newCardTx(t, gw)

		bad := validCardRequest()
		bad.CardNumber = "4111"
		_, err := tx.Initiate(context.Background(), bad)
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Empty(t, gw.calls)
		assert.Equal(t, StatusCreated, tx.Status())
	})

	t.Run("second initiate after pending is rejected", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{RequiresValidation: true, Challenge: gateway.ChallengePIN},
		}}
		tx := newCardTx(t, gw)

		_, err := tx.Initiate(context.Background(), validCardRequest())
		require.NoError(t, err)
		require.Equal(t, StatusAuthPending, tx.Status())

		_, err = tx.Initiate(context.Background(), validCardRequest())
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Len(t, gw.calls, 1)
	})
}

func TestInitiateWireShape(t *testing.T) {
	gw := &fakeExchanger{outcomes: []*gateway.Outcome{{Successful: true}}}
	tx := newCardTx(t, gw)

	_, err := tx.Initiate(context.Background(), validCardRequest())
	require.NoError(t, err)
	require.Len(t, gw.calls, 1)

	call := gw.calls[0]
	assert.Equal(t, gateway.StepInitiate, call.step)
	assert.Equal(t, "POST", call.method)
	assert.Equal(t, "/v1/payments", call.path)
	assert.Equal(t, testPublicKey, call.body["publicKey"])
	assert.Equal(t, "3DES-24", call.body["alg"])
	assert.Equal(t, "CARD", call.body["paymentType"])

	// The sensitive payload travels only inside the encrypted field.
	ciphertext, ok := call.body["request"].(string)
	require.True(t, ok)
	decrypted, err := codec.Decrypt(ciphertext, testSecretKey)
	require.NoError(t, err)
	assert.Equal(t, "5061030000000000123", decrypted["cardNumber"])
	assert.Equal(t, "TXN-000001", decrypted["transactionId"])
	assert.Equal(t, "NGN", decrypted["currency"])
}

func TestInitiateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		outcome       *gateway.Outcome
		wantStatus    Status
		wantChallenge gateway.Challenge
	}{
		{
			name:       "success settles",
			outcome:    &gateway.Outcome{Successful: true},
			wantStatus: StatusSettled,
		},
		{
			name:          "PIN challenge moves to auth pending",
			outcome:       &gateway.Outcome{RequiresValidation: true, Challenge: gateway.ChallengePIN},
			wantStatus:    StatusAuthPending,
			wantChallenge: gateway.ChallengePIN,
		},
		{
			name:          "AVS challenge moves to auth pending",
			outcome:       &gateway.Outcome{RequiresValidation: true, Challenge: gateway.ChallengeAVS},
			wantStatus:    StatusAuthPending,
			wantChallenge: gateway.ChallengeAVS,
		},
		{
			name:          "pending without suggestion means an OTP is in flight",
			outcome:       &gateway.Outcome{RequiresValidation: true, Challenge: gateway.ChallengeOTP},
			wantStatus:    StatusValidationPending,
			wantChallenge: gateway.ChallengeOTP,
		},
		{
			name:       "declined reply leaves the transaction in CREATED",
			outcome:    &gateway.Outcome{Code: "001", Message: "declined"},
			wantStatus: StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeExchanger{outcomes: []*gateway.Outcome{tt.outcome}}
			tx := newCardTx(t, gw)

			_, err := tx.Initiate(context.Background(), validCardRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, tx.Status())
			assert.Equal(t, tt.wantChallenge, tx.Challenge())
		})
	}
}

func TestExchangeErrorLeavesStatusUnchanged(t *testing.T) {
	gw := &fakeExchanger{err: xperrors.NewNetworkError("gateway unreachable", errors.New("dial tcp"))}
	tx := newCardTx(t, gw)

	_, err := tx.Initiate(context.Background(), validCardRequest())
	var netErr *xperrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, StatusCreated, tx.Status())

	// Unknown delivery: the caller resolves it with Query, not a re-send.
	gw.err = nil
	gw.outcomes = []*gateway.Outcome{{Successful: true}}
	_, err = tx.Query(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, tx.Status())
}

func TestAuthenticatePIN(t *testing.T) {
	intoPINPending := func(t *testing.T, gw *fakeExchanger) *Transaction {
		t.Helper()
		gw.outcomes = append([]*gateway.Outcome{
			{RequiresValidation: true, Challenge: gateway.ChallengePIN},
		}, gw.outcomes...)
		tx := newCardTx(t, gw)
		_, err := tx.Initiate(context.Background(), validCardRequest())
		require.NoError(t, err)
		return tx
	}

	t.Run("pending reply moves to validation pending", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{RequiresValidation: true, Code: "02"},
		}}
		tx := intoPINPending(t, gw)

		_, err := tx.AuthenticatePIN(context.Background(), "1234")
		require.NoError(t, err)
		assert.Equal(t, StatusValidationPending, tx.Status())
		assert.Equal(t, gateway.ChallengeOTP, tx.Challenge())

		call := gw.calls[1]
		assert.Equal(t, gateway.StepAuthenticate, call.step)
		assert.Equal(t, "/v1/payments/authenticate", call.path)
		assert.Equal(t, "PIN", call.body["suggestedAuthentication"])
		assert.Equal(t, "1234", call.body["pin"])
	})

	t.Run("success settles directly", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{{Successful: true}}}
		tx := intoPINPending(t, gw)

		_, err := tx.AuthenticatePIN(context.Background(), "1234")
		require.NoError(t, err)
		assert.Equal(t, StatusSettled, tx.Status())
	})

	t.Run("malformed PIN fails locally", func(t *testing.T) {
		gw := &fakeExchanger{}
		tx := intoPINPending(t, gw)

		for _, pin := range []string{"", "123", "12345", "12a4"} {
			_, err := tx.AuthenticatePIN(context.Background(), pin)
			var valErr *xperrors.ValidationError
			require.ErrorAs(t, err, &valErr, "pin %q", pin)
		}
		assert.Len(t, gw.calls, 1, "only the initiate call may reach the gateway")
	})

	t.Run("rejected without a PIN challenge", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{RequiresValidation: true, Challenge: gateway.ChallengeAVS},
		}}
		tx := newCardTx(t, gw)
		_, err := tx.Initiate(context.Background(), validCardRequest())
		require.NoError(t, err)

		_, err = tx.AuthenticatePIN(context.Background(), "1234")
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Len(t, gw.calls, 1)
	})

	t.Run("rejected before initiation", func(t *testing.T) {
		gw := &fakeExchanger{}
		tx := newCardTx(t, gw)

		_, err := tx.AuthenticatePIN(context.Background(), "1234")
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Empty(t, gw.calls)
	})
}

func TestAuthenticateAVS(t *testing.T) {
	intoAVSPending := func(t *testing.T, gw *fakeExchanger) *Transaction {
		t.Helper()
		gw.outcomes = append([]*gateway.Outcome{
			{RequiresValidation: true, Challenge: gateway.ChallengeAVS},
		}, gw.outcomes...)
		tx := newCardTx(t, gw)
		_, err := tx.Initiate(context.Background(), validCardRequest())
		require.NoError(t, err)
		return tx
	}

	billing := BillingAddress{
		Zip: "94105", City: "San Francisco", Address: "1 Market St",
		State: "CA", Country: "US",
	}

	t.Run("3-D-Secure reply stays auth pending and records the URL", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{RequiresValidation: true, AuthURL: "https://acs.example.com/3ds"},
		}}
		tx := intoAVSPending(t, gw)

		outcome, err := tx.AuthenticateAVS(context.Background(), billing)
		require.NoError(t, err)
		assert.Equal(t, StatusAuthPending, tx.Status())
		assert.Equal(t, gateway.ChallengeNone, tx.Challenge())
		assert.Equal(t, "https://acs.example.com/3ds", tx.AuthURL())
		assert.Equal(t, "https://acs.example.com/3ds", outcome.AuthURL)

		call := gw.calls[1]
		assert.Equal(t, "AVS_VBVSECURECODE", call.body["suggestedAuthentication"])
		assert.Equal(t, "94105", call.body["billingZip"])
		assert.Equal(t, "US", call.body["billingCountry"])
	})

	t.Run("OTP reply moves to validation pending", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{RequiresValidation: true, Code: "02"},
		}}
		tx := intoAVSPending(t, gw)

		_, err := tx.AuthenticateAVS(context.Background(), billing)
		require.NoError(t, err)
		assert.Equal(t, StatusValidationPending, tx.Status())
		assert.Equal(t, gateway.ChallengeOTP, tx.Challenge())
	})

	t.Run("empty billing address fails locally", func(t *testing.T) {
		gw := &fakeExchanger{}
		tx := intoAVSPending(t, gw)

		_, err := tx.AuthenticateAVS(context.Background(), BillingAddress{})
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Len(t, gw.calls, 1)
	})

	t.Run("rejected without an AVS challenge", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{RequiresValidation: true, Challenge: gateway.ChallengePIN},
		}}
		tx := newCardTx(t, gw)
		_, err := tx.Initiate(context.Background(), validCardRequest())
		require.NoError(t, err)

		_, err = tx.AuthenticateAVS(context.Background(), billing)
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Len(t, gw.calls, 1)
	})
}

func TestValidateOTP(t *testing.T) {
	intoValidationPending := func(t *testing.T, gw *fakeExchanger, kind Kind) *Transaction {
		t.Helper()
		gw.outcomes = append([]*gateway.Outcome{
			{RequiresValidation: true, Challenge: gateway.ChallengeOTP},
		}, gw.outcomes...)
		tx, err := New(gw, testPublicKey, testSecretKey, kind, "TXN-000001", nil)
		require.NoError(t, err)
		var req InitiateRequest = validCardRequest()
		if kind == KindAccount {
			req = &AccountRequest{
				AccountNumber: "0123456789", BankCode: "057",
				DateOfBirth: "01011990",
				Amount:      "150000", Email: "shopper@example.com",
			}
		}
		_, err = tx.Initiate(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, StatusValidationPending, tx.Status())
		return tx
	}

	t.Run("success settles", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{{Successful: true}}}
		tx := intoValidationPending(t, gw, KindAccount)

		_, err := tx.ValidateOTP(context.Background(), "123456", KindAccount)
		require.NoError(t, err)
		assert.Equal(t, StatusSettled, tx.Status())

		call := gw.calls[1]
		assert.Equal(t, gateway.StepValidate, call.step)
		assert.Equal(t, "/v1/payments/validate", call.path)
		assert.Equal(t, "123456", call.body["otp"])
		assert.Equal(t, "TXN-000001", call.body["transactionReference"])
		assert.Equal(t, "ACCOUNT", call.body["paymentType"])
	})

	t.Run("wrong OTP leaves the transaction retryable", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{Code: "05", Message: "incorrect otp"},
			{Successful: true},
		}}
		tx := intoValidationPending(t, gw, KindCard)

		_, err := tx.ValidateOTP(context.Background(), "000000", KindCard)
		require.NoError(t, err)
		assert.Equal(t, StatusValidationPending, tx.Status())

		_, err = tx.ValidateOTP(context.Background(), "123456", KindCard)
		require.NoError(t, err)
		assert.Equal(t, StatusSettled, tx.Status())
	})

	t.Run("kind discriminator must match", func(t *testing.T) {
		gw := &fakeExchanger{}
		tx := intoValidationPending(t, gw, KindCard)

		_, err := tx.ValidateOTP(context.Background(), "123456", KindAccount)
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Len(t, gw.calls, 1)
	})

	t.Run("rejected outside validation pending", func(t *testing.T) {
		gw := &fakeExchanger{}
		tx := newCardTx(t, gw)

		_, err := tx.ValidateOTP(context.Background(), "123456", KindCard)
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Empty(t, gw.calls)
	})
}

func TestQuery(t *testing.T) {
	t.Run("success settles from any state", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{{Successful: true}}}
		tx := newCardTx(t, gw)

		_, err := tx.Query(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusSettled, tx.Status())

		call := gw.calls[0]
		assert.Equal(t, gateway.StepQuery, call.step)
		assert.Equal(t, "/v1/payments/query", call.path)
		assert.Equal(t, "CARD", call.body["paymentType"])
	})

	t.Run("failed reply is terminal", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{Code: "001", Message: "transaction failed"},
		}}
		tx := newCardTx(t, gw)

		_, err := tx.Query(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, tx.Status())
		assert.True(t, tx.Status().Terminal())
	})

	t.Run("pending reply leaves status unchanged", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{RequiresValidation: true, Challenge: gateway.ChallengePIN},
			{RequiresValidation: true, Code: "02"},
		}}
		tx := newCardTx(t, gw)
		_, err := tx.Initiate(context.Background(), validCardRequest())
		require.NoError(t, err)

		_, err = tx.Query(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusAuthPending, tx.Status())
	})

	t.Run("hosted in-progress reply is not terminal", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{Code: "09", Message: "Pending"},
			{Successful: true},
		}}
		tx, err := New(gw, testPublicKey, "", KindHosted, "TXN-000001", nil)
		require.NoError(t, err)

		// The customer is still on the payment page; a premature verify
		// must not decide the transaction either way.
		_, err = tx.Verify(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusCreated, tx.Status())
		assert.False(t, tx.Status().Terminal())

		_, err = tx.Verify(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusSettled, tx.Status())
	})

	t.Run("repeated query on a settled transaction is stable", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{Successful: true},
			{Successful: true},
		}}
		tx := newCardTx(t, gw)

		first, err := tx.Query(context.Background())
		require.NoError(t, err)
		require.Equal(t, StatusSettled, tx.Status())

		second, err := tx.Query(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusSettled, tx.Status())
		assert.Equal(t, first.Successful, second.Successful)
	})

	t.Run("terminal statuses are sticky", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{
			{Code: "001", Message: "transaction failed"},
			{Successful: true},
		}}
		tx := newCardTx(t, gw)

		_, err := tx.Query(context.Background())
		require.NoError(t, err)
		require.Equal(t, StatusFailed, tx.Status())

		// A contradictory later reply cannot resurrect a failed
		// transaction; the first final answer stands.
		_, err = tx.Query(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, tx.Status())
	})

	t.Run("hosted transactions verify via the hosted endpoint", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{{Successful: true}}}
		tx, err := New(gw, testPublicKey, "", KindHosted, "TXN-000001", nil)
		require.NoError(t, err)

		_, err = tx.Verify(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StatusSettled, tx.Status())

		call := gw.calls[0]
		assert.Equal(t, gateway.StepHostedVerify, call.step)
		assert.Equal(t, "/api/Payments/VerifyPayment", call.path)
	})
}

func TestInitialize(t *testing.T) {
	hostedReq := &HostedRequest{
		Amount:      "1500.00",
		Email:       "shopper@example.com",
		CallbackURL: "https://merchant.example.com/cb",
	}

	t.Run("posts plaintext body and stays CREATED", func(t *testing.T) {
		gw := &fakeExchanger{outcomes: []*gateway.Outcome{{
			Successful: true,
			Raw: map[string]any{
				"data": map[string]any{"paymentUrl": "https://pay.example.com/p/abc"},
			},
		}}}
		tx, err := New(gw, testPublicKey, "", KindHosted, "TXN-000001", nil)
		require.NoError(t, err)

		outcome, err := tx.Initialize(context.Background(), hostedReq)
		require.NoError(t, err)
		assert.Equal(t, StatusCreated, tx.Status())
		assert.Equal(t, "https://pay.example.com/p/abc", outcome.PaymentURL())

		call := gw.calls[0]
		assert.Equal(t, gateway.StepHostedInitialize, call.step)
		assert.Equal(t, "/api/Payments/Initialize", call.path)
		assert.Equal(t, "1500.00", call.body["amount"])
		assert.NotContains(t, call.body, "request", "hosted flow sends no encrypted payload")
	})

	t.Run("card transactions cannot Initialize", func(t *testing.T) {
		gw := &fakeExchanger{}
		tx := newCardTx(t, gw)

		_, err := tx.Initialize(context.Background(), hostedReq)
		var valErr *xperrors.ValidationError
		require.ErrorAs(t, err, &valErr)
		assert.Empty(t, gw.calls)
	})
}
