package transaction

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xpresspay/xpresspay-go/banks"
	xperrors "github.com/xpresspay/xpresspay-go/pkg/errors"
)

// MetaField is an arbitrary key-value pair attached to a payment.
type MetaField struct {
	Name  string
	Value string
}

// BillingAddress carries the AVS billing fields for international cards.
type BillingAddress struct {
	Zip     string
	City    string
	Address string
	State   string
	Country string
}

func (b BillingAddress) empty() bool {
	return b.Zip == "" && b.City == "" && b.Address == "" && b.State == "" && b.Country == ""
}

func (b BillingAddress) apply(payload map[string]any) {
	setIfPresent(payload, "billingZip", b.Zip)
	setIfPresent(payload, "billingCity", b.City)
	setIfPresent(payload, "billingAddress", b.Address)
	setIfPresent(payload, "billingState", b.State)
	setIfPresent(payload, "billingCountry", b.Country)
}

// InitiateRequest is one of the two card/account initiation shapes. The
// branch-specific validation and wire payload live on the request itself so
// the state machine dispatches through a single code path.
type InitiateRequest interface {
	kind() Kind
	validate() error
	// encryptPayload returns the fields that get JSON-serialized and
	// encrypted into the "request" wire field.
	encryptPayload(publicKey, transactionID string) map[string]any
}

// CardRequest holds the fields for initiating a card payment. Amount is in
// kobo. The billing address is optional on initiation but improves auth
// success rates for international cards.
type CardRequest struct {
	CardNumber  string
	CVV         string
	ExpiryMonth string
	ExpiryYear  string
	Amount      string
	Email       string

	Currency string // default NGN
	Country  string // default NG

	PhoneNumber       string
	FirstName         string
	LastName          string
	IP                string
	DeviceFingerprint string
	RedirectURL       string
	Billing           BillingAddress
	Meta              []MetaField
}

func (r *CardRequest) kind() Kind { return KindCard }

func (r *CardRequest) validate() error {
	if err := validateCommon(r.Amount, r.Email); err != nil {
		return err
	}
	if !isDigits(r.CardNumber) || len(r.CardNumber) < 12 || len(r.CardNumber) > 19 {
		return xperrors.NewLocalValidationError("cardNumber", "must be 12 to 19 digits")
	}
	if !isDigits(r.CVV) || len(r.CVV) < 3 || len(r.CVV) > 4 {
		return xperrors.NewLocalValidationError("cvv", "must be 3 or 4 digits")
	}
	if !validExpiryMonth(r.ExpiryMonth) {
		return xperrors.NewLocalValidationError("expiryMonth", "must be 01 through 12")
	}
	if !isDigits(r.ExpiryYear) || len(r.ExpiryYear) != 2 {
		return xperrors.NewLocalValidationError("expiryYear", "must be 2 digits")
	}
	return nil
}

func (r *CardRequest) encryptPayload(publicKey, transactionID string) map[string]any {
	payload := map[string]any{
		"publicKey":     publicKey,
		"cardNumber":    r.CardNumber,
		"cvv":           r.CVV,
		"expiryMonth":   r.ExpiryMonth,
		"expiryYear":    r.ExpiryYear,
		"amount":        r.Amount,
		"email":         r.Email,
		"transactionId": transactionID,
		"currency":      defaultString(r.Currency, "NGN"),
		"country":       defaultString(r.Country, "NG"),
		"paymentType":   string(KindCard),
	}
	setIfPresent(payload, "phoneNumber", r.PhoneNumber)
	setIfPresent(payload, "firstName", r.FirstName)
	setIfPresent(payload, "lastName", r.LastName)
	setIfPresent(payload, "ip", r.IP)
	setIfPresent(payload, "deviceFingerPrint", r.DeviceFingerprint)
	setIfPresent(payload, "redirectUrl", r.RedirectURL)
	r.Billing.apply(payload)
	if len(r.Meta) > 0 {
		meta := make([]any, 0, len(r.Meta))
		for _, m := range r.Meta {
			meta = append(meta, map[string]any{"metaName": m.Name, "metaValue": m.Value})
		}
		payload["meta"] = meta
	}
	return payload
}

// AccountRequest holds the fields for initiating a direct bank account
// debit. Amount is in kobo. Some banks require extra fields; see
// banks.ProfileFor.
type AccountRequest struct {
	AccountNumber string
	BankCode      string
	Amount        string
	Email         string

	Currency string // default NGN
	Country  string // default NG

	PhoneNumber       string
	FirstName         string
	LastName          string
	IP                string
	DeviceFingerprint string

	// Bank-specific required fields
	DateOfBirth string // DDMMYYYY - Zenith, UBA
	BVN         string // UBA
	RedirectURL string // GTB, First Bank
}

func (r *AccountRequest) kind() Kind { return KindAccount }

func (r *AccountRequest) validate() error {
	if err := validateCommon(r.Amount, r.Email); err != nil {
		return err
	}
	if r.AccountNumber == "" || !isDigits(r.AccountNumber) {
		return xperrors.NewLocalValidationError("accountNumber", "must be digits")
	}
	if r.BankCode == "" {
		return xperrors.NewLocalValidationError("bankCode", "is required")
	}

	profile := banks.ProfileFor(r.BankCode)
	if profile.RequiresDateOfBirth && r.DateOfBirth == "" {
		return xperrors.NewLocalValidationError("dateOfBirth", "is required for bank code "+r.BankCode)
	}
	if profile.RequiresBVN && r.BVN == "" {
		return xperrors.NewLocalValidationError("bvn", "is required for bank code "+r.BankCode)
	}
	if profile.RequiresRedirectURL && r.RedirectURL == "" {
		return xperrors.NewLocalValidationError("redirectUrl", "is required for bank code "+r.BankCode)
	}
	return nil
}

func (r *AccountRequest) encryptPayload(publicKey, transactionID string) map[string]any {
	payload := map[string]any{
		"publicKey":     publicKey,
		"accountNumber": r.AccountNumber,
		"bankCode":      r.BankCode,
		"amount":        r.Amount,
		"email":         r.Email,
		"transactionId": transactionID,
		"currency":      defaultString(r.Currency, "NGN"),
		"country":       defaultString(r.Country, "NG"),
		"paymentType":   string(KindAccount),
	}
	setIfPresent(payload, "phoneNumber", r.PhoneNumber)
	setIfPresent(payload, "firstName", r.FirstName)
	setIfPresent(payload, "lastName", r.LastName)
	setIfPresent(payload, "ip", r.IP)
	setIfPresent(payload, "deviceFingerPrint", r.DeviceFingerprint)
	setIfPresent(payload, "dateOfBirth", r.DateOfBirth)
	setIfPresent(payload, "bvn", r.BVN)
	setIfPresent(payload, "redirectUrl", r.RedirectURL)
	return payload
}

// HostedRequest holds the fields for initializing a hosted-page payment.
// Amount is a major-unit decimal string (e.g. "1000.00"), unlike the
// kobo amounts of the direct flows.
type HostedRequest struct {
	Amount string
	Email  string

	Currency    string // default NGN
	CallbackURL string
	Metadata    []MetaField
}

func (r *HostedRequest) validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil || !amount.IsPositive() {
		return xperrors.NewLocalValidationError("amount", "must be a positive decimal string")
	}
	if amount.Exponent() < -2 {
		return xperrors.NewLocalValidationError("amount", "must have at most 2 decimal places")
	}
	return nil
}

func (r *HostedRequest) body(publicKey, transactionID string) map[string]any {
	payload := map[string]any{
		"publicKey":     publicKey,
		"amount":        r.Amount,
		"email":         r.Email,
		"transactionId": transactionID,
		"currency":      defaultString(r.Currency, "NGN"),
	}
	setIfPresent(payload, "callBackUrl", r.CallbackURL)
	if len(r.Metadata) > 0 {
		meta := make([]any, 0, len(r.Metadata))
		for _, m := range r.Metadata {
			meta = append(meta, map[string]any{"metaName": m.Name, "metaValue": m.Value})
		}
		payload["metadata"] = meta
	}
	return payload
}

// validateCommon checks the fields every direct initiation needs. Direct
// amounts are kobo: positive integer strings.
func validateCommon(amount, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil || !parsed.IsPositive() {
		return xperrors.NewLocalValidationError("amount", "must be a positive kobo amount")
	}
	if !parsed.IsInteger() {
		return xperrors.NewLocalValidationError("amount", "kobo amounts must be whole numbers")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" || !strings.Contains(email, "@") {
		return xperrors.NewLocalValidationError("email", "must be a valid email address")
	}
	return nil
}

func validExpiryMonth(month string) bool {
	if len(month) != 2 || !isDigits(month) {
		return false
	}
	return month >= "01" && month <= "12"
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func setIfPresent(payload map[string]any, key, value string) {
	if value != "" {
		payload[key] = value
	}
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
