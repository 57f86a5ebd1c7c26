package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	xperrors "github.com/xpresspay/xpresspay-go/pkg/errors"
)

// Wire-contract literals. These are protocol constants, not choices:
// the hosted steps signal success with a two-character code, the
// card/account steps with a three-character one, and a separate
// two-character code marks "authentication still pending".
const (
	hostedSuccessCode  = "00"
	paymentSuccessCode = "000"
	pendingAuthCode    = "02"
)

// Classify turns a raw gateway reply into a typed Outcome or a typed error.
//
// Triage order: non-2xx statuses map straight to the error taxonomy; within
// a 2xx body, success is decided by the step-specific response code, never
// by the HTTP status. Any non-success code on a 2xx reply is an
// unsuccessful (non-error) Outcome so callers can inspect the pending axis.
func Classify(step Step, statusCode int, body []byte) (*Outcome, error) {
	if statusCode < 200 || statusCode >= 300 {
		return nil, statusError(statusCode, body)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, xperrors.NewProcessingError(
			fmt.Sprintf("gateway returned a malformed body: %v", err), statusCode)
	}

	outcome := &Outcome{Raw: raw, RawBody: body}

	if step.hosted() {
		outcome.Code, _ = raw["responseCode"].(string)
		outcome.Message = firstString(raw, "responseMessage", "message")
		outcome.Successful = outcome.Code == hostedSuccessCode
		return outcome, nil
	}

	outcome.Message = firstString(raw, "message", "status")

	payment := outcome.payment()
	code, _ := payment["paymentResponseCode"].(string)
	authCode, _ := payment["authenticatePaymentResponseCode"].(string)

	outcome.Code = code
	outcome.Successful = code == paymentSuccessCode
	outcome.RequiresValidation = authCode == pendingAuthCode
	outcome.AuthURL, _ = payment["authUrl"].(string)

	switch suggested, _ := payment["suggestedAuthentication"].(string); suggested {
	case string(ChallengePIN):
		outcome.Challenge = ChallengePIN
	case string(ChallengeAVS):
		outcome.Challenge = ChallengeAVS
	default:
		// A pending reply with no suggested authentication means the
		// customer received an OTP.
		if outcome.RequiresValidation {
			outcome.Challenge = ChallengeOTP
		}
	}

	return outcome, nil
}

// statusError maps non-2xx gateway statuses to the error taxonomy.
func statusError(statusCode int, body []byte) error {
	var raw map[string]any
	_ = json.Unmarshal(body, &raw) // best effort; fall back to the raw text

	msg := firstString(raw, "responseMessage", "message")
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	if msg == "" {
		msg = "unknown gateway error"
	}

	switch {
	case statusCode == http.StatusBadRequest:
		errorType := firstString(raw, "errorType", "error")
		return xperrors.NewValidationError(msg, errorType, statusCode)
	case statusCode == http.StatusUnauthorized:
		return xperrors.NewAuthenticationError(msg, statusCode)
	case statusCode == http.StatusNotFound:
		return xperrors.NewNotFoundError(msg, statusCode)
	case statusCode >= 500:
		return xperrors.NewProcessingError(msg, statusCode)
	default:
		return &xperrors.GatewayError{Message: msg, StatusCode: statusCode}
	}
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
