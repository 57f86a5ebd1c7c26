package gateway

// Step identifies which protocol step produced a gateway reply. The hosted
// steps speak a different response-code vocabulary than the card/account
// steps, so the classifier needs to know which one it is reading.
type Step int

const (
	StepInitiate Step = iota // card/account payment initiation
	StepAuthenticate         // PIN or AVS authentication
	StepValidate             // OTP validation
	StepQuery                // card/account status query
	StepHostedInitialize     // hosted-page initialize
	StepHostedVerify         // hosted-page verify
)

func (s Step) String() string {
	switch s {
	case StepInitiate:
		return "initiate"
	case StepAuthenticate:
		return "authenticate"
	case StepValidate:
		return "validate"
	case StepQuery:
		return "query"
	case StepHostedInitialize:
		return "initialize"
	case StepHostedVerify:
		return "verify"
	default:
		return "unknown"
	}
}

// hosted reports whether the step uses the hosted-page code vocabulary
// (two-character responseCode) instead of the card/account one
// (three-character paymentResponseCode).
func (s Step) hosted() bool {
	return s == StepHostedInitialize || s == StepHostedVerify
}

// Challenge is what the gateway still requires from the customer.
type Challenge string

const (
	ChallengeNone Challenge = ""
	// ChallengePIN - local (Nigerian) card, gather the cardholder PIN.
	ChallengePIN Challenge = "PIN"
	// ChallengeAVS - international card, gather the billing address;
	// the gateway may follow up with a 3-D-Secure redirect URL.
	ChallengeAVS Challenge = "AVS_VBVSECURECODE"
	// ChallengeOTP - a one-time password was sent to the customer.
	ChallengeOTP Challenge = "OTP"
)

// Outcome is the classified result of one HTTP exchange with the gateway.
//
// Successful and RequiresValidation are orthogonal axes: a reply can be
// "not yet successful" and "authentication pending" at the same time.
// Collapsing them into one flag is the classic bug this type exists to
// prevent.
type Outcome struct {
	// Successful is true only when the step-specific success code matched
	// ("00" for hosted steps, "000" for card/account steps). Never inferred
	// from the HTTP status alone.
	Successful bool

	// RequiresValidation is true when authenticatePaymentResponseCode is
	// "02": an OTP/PIN/AVS step is still needed.
	RequiresValidation bool

	// Code is the primary step-specific response code.
	Code string

	// Message is the gateway's human-readable response message.
	Message string

	// Challenge is the authentication the gateway suggests next, derived
	// from suggestedAuthentication (or OTP when validation is pending with
	// no suggestion).
	Challenge Challenge

	// AuthURL is the 3-D-Secure iframe URL, present for international AVS
	// cards. The caller must redirect the customer and then query.
	AuthURL string

	// Raw retains the full decoded response for fields the typed surface
	// does not cover. RawBody is the verbatim response body.
	Raw     map[string]any
	RawBody []byte
}

// payment returns the data.payment object of the raw response, or nil.
func (o *Outcome) payment() map[string]any {
	data, _ := o.Raw["data"].(map[string]any)
	payment, _ := data["payment"].(map[string]any)
	return payment
}

func (o *Outcome) paymentField(key string) string {
	v, _ := o.payment()[key].(string)
	return v
}

func (o *Outcome) dataField(key string) string {
	data, _ := o.Raw["data"].(map[string]any)
	v, _ := data[key].(string)
	return v
}

// Amount is the transaction amount as reported by the gateway.
func (o *Outcome) Amount() string { return o.paymentField("amount") }

// ChargedAmount is the amount actually charged, fees included.
func (o *Outcome) ChargedAmount() string { return o.paymentField("chargedAmount") }

// TransactionReference is the gateway-side reference for the transaction.
func (o *Outcome) TransactionReference() string { return o.paymentField("transactionReference") }

// UniqueKey is the gateway's unique key for the exchange.
func (o *Outcome) UniqueKey() string { return o.paymentField("uniqueKey") }

// PaymentType is the payment kind the gateway recorded.
func (o *Outcome) PaymentType() string { return o.paymentField("paymentType") }

// ValidationInstruction is the human-readable instruction for the next
// customer action (e.g. where the OTP was sent).
func (o *Outcome) ValidationInstruction() string { return o.paymentField("validationInstruction") }

// PaymentURL is the hosted payment page to redirect the customer to.
// Present only on hosted-initialize outcomes.
func (o *Outcome) PaymentURL() string { return o.dataField("paymentUrl") }

// Reference is the gateway reference returned by hosted-initialize.
func (o *Outcome) Reference() string { return o.dataField("reference") }
