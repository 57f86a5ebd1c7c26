// Package transaction implements the caller-facing state machine for a
// single Xpresspay transaction: the ordered, branching sequence of steps for
// the hosted, card, and account flows, with per-step required-field guards.
//
// Every guard failure is raised locally, before any network call. That is
// the point of the machine: an out-of-order or incomplete step must never
// reach the gateway, where it could double-charge.
package transaction

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xpresspay/xpresspay-go/codec"
	"github.com/xpresspay/xpresspay-go/gateway"
	xperrors "github.com/xpresspay/xpresspay-go/pkg/errors"
)

const (
	pathPayments         = "/v1/payments"
	pathAuthenticate     = "/v1/payments/authenticate"
	pathValidate         = "/v1/payments/validate"
	pathQuery            = "/v1/payments/query"
	pathHostedInitialize = "/api/Payments/Initialize"
	pathHostedVerify     = "/api/Payments/VerifyPayment"
)

// hostedPendingCode is the hosted verify reply while the customer is still
// on the payment page. Not a final state; a query seeing it must not record
// a terminal status.
const hostedPendingCode = "09"

// Transaction drives one payment through the gateway protocol. It is scoped
// to a single transaction id and holds no state beyond the status field it
// owns; it performs no internal concurrency and each step is one synchronous
// exchange. Concurrent calls for the same id are not synchronized here: the
// gateway is the arbiter.
type Transaction struct {
	id        string
	kind      Kind
	publicKey string
	secretKey string

	status    Status
	challenge gateway.Challenge
	authURL   string

	gw     gateway.Exchanger
	logger *zap.Logger
}

// New creates a transaction in status CREATED. transactionID must be 6-30
// characters and unique per merchant; pass "" to have one generated.
// secretKey may be empty for the hosted flow, which sends no encrypted
// payload.
func New(gw gateway.Exchanger, publicKey, secretKey string, kind Kind, transactionID string, logger *zap.Logger) (*Transaction, error) {
	switch kind {
	case KindHosted, KindCard, KindAccount:
	default:
		return nil, xperrors.NewLocalValidationError("kind", "must be HOSTED, CARD, or ACCOUNT")
	}

	if transactionID == "" {
		transactionID = generateID()
	}
	if len(transactionID) < 6 || len(transactionID) > 30 {
		return nil, xperrors.NewLocalValidationError("transactionId", "must be 6 to 30 characters")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Transaction{
		id:        transactionID,
		kind:      kind,
		publicKey: publicKey,
		secretKey: secretKey,
		status:    StatusCreated,
		gw:        gw,
		logger:    logger,
	}, nil
}

// ID returns the caller-facing transaction identifier.
func (t *Transaction) ID() string { return t.id }

// Kind returns the payment branch fixed at creation.
func (t *Transaction) Kind() Kind { return t.kind }

// Status returns the current lifecycle status.
func (t *Transaction) Status() Status { return t.status }

// Challenge returns the authentication the gateway last asked for.
func (t *Transaction) Challenge() gateway.Challenge { return t.challenge }

// AuthURL returns the 3-D-Secure URL from the last AVS step, when present.
// The caller must send the customer there and then Query.
func (t *Transaction) AuthURL() string { return t.authURL }

// Initiate starts a card or account payment: validates the branch-specific
// required fields, encrypts the sensitive payload, and sends it. On a
// pending reply the transaction moves to AUTH_PENDING (PIN/AVS) or
// VALIDATION_PENDING (OTP).
func (t *Transaction) Initiate(ctx context.Context, req InitiateRequest) (*gateway.Outcome, error) {
	if t.kind == KindHosted {
		return nil, xperrors.NewLocalValidationError("kind", "hosted transactions use Initialize, not Initiate")
	}
	if req.kind() != t.kind {
		return nil, xperrors.NewLocalValidationError("paymentType",
			"request is for "+string(req.kind())+" but transaction is "+string(t.kind))
	}
	if t.status != StatusCreated {
		return nil, t.orderError("initiate", StatusCreated)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	encrypted, err := codec.Encrypt(req.encryptPayload(t.publicKey, t.id), t.secretKey)
	if err != nil {
		// Codec failures are configuration errors; nothing was sent.
		return nil, err
	}

	t.logger.Info("initiating payment",
		zap.String("transaction_id", t.id),
		zap.String("payment_type", string(t.kind)),
	)

	body := map[string]any{
		"publicKey":   t.publicKey,
		"request":     encrypted,
		"alg":         "3DES-24",
		"paymentType": string(t.kind),
	}
	outcome, err := t.gw.Exchange(ctx, gateway.StepInitiate, http.MethodPost, pathPayments, body)
	if err != nil {
		return nil, err
	}

	t.applyInitiateOutcome(outcome)
	return outcome, nil
}

// Initialize starts a hosted-page payment and returns the payment URL to
// redirect the customer to. The hosted flow has no authentication step; the
// only legal call after this is Verify.
func (t *Transaction) Initialize(ctx context.Context, req *HostedRequest) (*gateway.Outcome, error) {
	if t.kind != KindHosted {
		return nil, xperrors.NewLocalValidationError("kind", "only hosted transactions use Initialize")
	}
	if t.status != StatusCreated {
		return nil, t.orderError("initialize", StatusCreated)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	t.logger.Info("initializing hosted payment", zap.String("transaction_id", t.id))

	outcome, err := t.gw.Exchange(ctx, gateway.StepHostedInitialize, http.MethodPost, pathHostedInitialize,
		req.body(t.publicKey, t.id))
	if err != nil {
		return nil, err
	}

	// The customer completes payment on the gateway's page; locally the
	// transaction stays CREATED until Verify observes a terminal state.
	return outcome, nil
}

// AuthenticatePIN submits the cardholder PIN for local (Nigerian) cards.
// The customer typically receives an OTP next; call ValidateOTP.
func (t *Transaction) AuthenticatePIN(ctx context.Context, pin string) (*gateway.Outcome, error) {
	if t.kind != KindCard {
		return nil, xperrors.NewLocalValidationError("kind", "PIN authentication applies to card transactions only")
	}
	if t.status != StatusAuthPending {
		return nil, t.orderError("authenticate", StatusAuthPending)
	}
	if t.challenge != gateway.ChallengePIN {
		return nil, xperrors.NewLocalValidationError("suggestedAuthentication",
			"gateway did not ask for a PIN")
	}
	if len(pin) != 4 || !isDigits(pin) {
		return nil, xperrors.NewLocalValidationError("pin", "must be exactly 4 digits")
	}

	t.logger.Info("authenticating with PIN", zap.String("transaction_id", t.id))

	body := map[string]any{
		"publicKey":               t.publicKey,
		"suggestedAuthentication": string(gateway.ChallengePIN),
		"pin":                     pin,
		"transactionId":           t.id,
		"paymentType":             string(KindCard),
	}
	outcome, err := t.gw.Exchange(ctx, gateway.StepAuthenticate, http.MethodPost, pathAuthenticate, body)
	if err != nil {
		return nil, err
	}

	switch {
	case outcome.Successful:
		t.settle()
	case outcome.RequiresValidation:
		t.status = StatusValidationPending
		t.challenge = gateway.ChallengeOTP
	}
	return outcome, nil
}

// AuthenticateAVS submits the billing address for AVS/3-D-Secure
// international cards. The reply branches: it may carry a 3-D-Secure URL
// (redirect the customer, then Query), or indicate an OTP will follow
// (ValidateOTP next). Both are legal successors of this one call.
func (t *Transaction) AuthenticateAVS(ctx context.Context, billing BillingAddress) (*gateway.Outcome, error) {
	if t.kind != KindCard {
		return nil, xperrors.NewLocalValidationError("kind", "AVS authentication applies to card transactions only")
	}
	if t.status != StatusAuthPending {
		return nil, t.orderError("authenticate", StatusAuthPending)
	}
	if t.challenge != gateway.ChallengeAVS {
		return nil, xperrors.NewLocalValidationError("suggestedAuthentication",
			"gateway did not ask for AVS")
	}
	if billing.empty() {
		return nil, xperrors.NewLocalValidationError("billing", "at least one billing address field is required")
	}

	t.logger.Info("authenticating with AVS", zap.String("transaction_id", t.id))

	body := map[string]any{
		"publicKey":               t.publicKey,
		"suggestedAuthentication": string(gateway.ChallengeAVS),
		"transactionId":           t.id,
		"paymentType":             string(KindCard),
	}
	billing.apply(body)

	outcome, err := t.gw.Exchange(ctx, gateway.StepAuthenticate, http.MethodPost, pathAuthenticate, body)
	if err != nil {
		return nil, err
	}

	switch {
	case outcome.Successful:
		t.settle()
	case outcome.AuthURL != "":
		// 3-D-Secure: the customer authenticates out-of-band. No OTP will
		// come; the next legal call is Query.
		t.authURL = outcome.AuthURL
		t.challenge = gateway.ChallengeNone
	case outcome.RequiresValidation:
		t.status = StatusValidationPending
		t.challenge = gateway.ChallengeOTP
	}
	return outcome, nil
}

// ValidateOTP submits the one-time password sent to the customer. kind is
// the payment-kind discriminator and must match the transaction's branch;
// a mismatch is a caller error, not silently corrected.
func (t *Transaction) ValidateOTP(ctx context.Context, otp string, kind Kind) (*gateway.Outcome, error) {
	if t.status != StatusValidationPending {
		return nil, t.orderError("validate", StatusValidationPending)
	}
	if kind != KindCard && kind != KindAccount {
		return nil, xperrors.NewLocalValidationError("paymentType", "must be CARD or ACCOUNT")
	}
	if kind != t.kind {
		return nil, xperrors.NewLocalValidationError("paymentType",
			"discriminator is "+string(kind)+" but transaction is "+string(t.kind))
	}
	if otp == "" {
		return nil, xperrors.NewLocalValidationError("otp", "is required")
	}

	t.logger.Info("validating OTP", zap.String("transaction_id", t.id))

	body := map[string]any{
		"publicKey":            t.publicKey,
		"transactionReference": t.id,
		"otp":                  otp,
		"paymentType":          string(kind),
	}
	outcome, err := t.gw.Exchange(ctx, gateway.StepValidate, http.MethodPost, pathValidate, body)
	if err != nil {
		return nil, err
	}

	if outcome.Successful {
		t.settle()
	}
	return outcome, nil
}

// Query asks the gateway for the transaction's current state and records
// the terminal status once the gateway reports one; in-progress replies
// leave the status alone. Query is idempotent and may be called from any
// state; treat its answer, not earlier step results, as the source of
// truth before fulfilling an order.
func (t *Transaction) Query(ctx context.Context) (*gateway.Outcome, error) {
	t.logger.Debug("querying transaction status", zap.String("transaction_id", t.id))

	var outcome *gateway.Outcome
	var err error
	if t.kind == KindHosted {
		outcome, err = t.gw.Exchange(ctx, gateway.StepHostedVerify, http.MethodPost, pathHostedVerify,
			map[string]any{"publicKey": t.publicKey, "transactionId": t.id})
	} else {
		outcome, err = t.gw.Exchange(ctx, gateway.StepQuery, http.MethodPost, pathQuery,
			map[string]any{"publicKey": t.publicKey, "transactionId": t.id, "paymentType": string(t.kind)})
	}
	if err != nil {
		return nil, err
	}

	switch {
	case outcome.Successful:
		t.settle()
	case outcome.RequiresValidation:
		// Authentication still outstanding; status is unchanged.
	case t.kind == KindHosted && outcome.Code == hostedPendingCode:
		// The customer is still completing payment on the gateway's page.
	default:
		// Not settled, nothing pending: the gateway's final word.
		t.fail()
	}
	return outcome, nil
}

// Verify is Query under the hosted flow's name. Either works on any branch.
func (t *Transaction) Verify(ctx context.Context) (*gateway.Outcome, error) {
	return t.Query(ctx)
}

// applyInitiateOutcome moves the machine according to an initiate reply.
func (t *Transaction) applyInitiateOutcome(outcome *gateway.Outcome) {
	switch {
	case outcome.Successful:
		t.settle()
	case outcome.RequiresValidation:
		t.challenge = outcome.Challenge
		t.authURL = outcome.AuthURL
		switch outcome.Challenge {
		case gateway.ChallengePIN, gateway.ChallengeAVS:
			t.status = StatusAuthPending
		default:
			// An OTP went straight to the customer (typical for accounts).
			t.status = StatusValidationPending
		}
	}
}

// settle and fail record the terminal statuses. Terminal statuses are
// sticky: once the machine has recorded the gateway's final word, later
// replies must not rewrite it.
func (t *Transaction) settle() {
	if t.status.Terminal() {
		return
	}
	t.status = StatusSettled
	t.challenge = gateway.ChallengeNone
}

func (t *Transaction) fail() {
	if t.status.Terminal() {
		return
	}
	t.status = StatusFailed
	t.challenge = gateway.ChallengeNone
}

func (t *Transaction) orderError(step string, required Status) *xperrors.ValidationError {
	return xperrors.NewLocalValidationError("status",
		step+" requires status "+string(required)+" but transaction is "+string(t.status))
}

// generateID builds a merchant-unique transaction id within the gateway's
// 6-30 character limit.
func generateID() string {
	return "XPAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:20])
}
