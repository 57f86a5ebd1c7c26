package banks

// CBN bank codes for the banks with extra debit requirements.
const (
	CodeZenith    = "057"
	CodeUBA       = "033"
	CodeGTBank    = "058"
	CodeFirstBank = "011"
)

// DebitProfile describes the extra fields a bank requires before it will
// accept a direct account debit. This is static data keyed by bank code,
// consulted by validation only.
type DebitProfile struct {
	// RequiresDateOfBirth - the account holder's date of birth, DDMMYYYY.
	RequiresDateOfBirth bool
	// RequiresBVN - the account holder's Bank Verification Number.
	RequiresBVN bool
	// RequiresRedirectURL - the bank completes the debit on its own page
	// and needs somewhere to send the customer back to.
	RequiresRedirectURL bool
}

var debitProfiles = map[string]DebitProfile{
	CodeZenith:    {RequiresDateOfBirth: true},
	CodeUBA:       {RequiresDateOfBirth: true, RequiresBVN: true},
	CodeGTBank:    {RequiresRedirectURL: true},
	CodeFirstBank: {RequiresRedirectURL: true},
}

// ProfileFor returns the debit profile for a bank code. Banks without extra
// requirements get the zero profile.
func ProfileFor(bankCode string) DebitProfile {
	return debitProfiles[bankCode]
}
