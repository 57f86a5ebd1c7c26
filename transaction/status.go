package transaction

// Status is the lifecycle state of a transaction. It is owned exclusively by
// the state machine: callers observe it but never set it.
type Status string

const (
	// StatusCreated - the transaction exists locally; for card/account it
	// has not yet produced a pending challenge, for hosted it is awaiting
	// the customer on the gateway's page.
	StatusCreated Status = "CREATED"
	// StatusAuthPending - the gateway asked for a PIN or AVS step.
	StatusAuthPending Status = "AUTH_PENDING"
	// StatusValidationPending - the gateway asked for an OTP.
	StatusValidationPending Status = "VALIDATION_PENDING"
	// StatusSettled - the gateway confirmed the charge.
	StatusSettled Status = "SETTLED"
	// StatusFailed - the gateway reported a final failure.
	StatusFailed Status = "FAILED"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusFailed
}

// Kind is the payment branch, fixed when the transaction is created. It
// determines which steps and required fields apply.
type Kind string

const (
	// KindHosted - the customer pays on the gateway's own page; no card
	// data passes through the caller's server.
	KindHosted Kind = "HOSTED"
	// KindCard - direct card debit (encrypted card data).
	KindCard Kind = "CARD"
	// KindAccount - direct bank account debit (encrypted account data).
	KindAccount Kind = "ACCOUNT"
)
