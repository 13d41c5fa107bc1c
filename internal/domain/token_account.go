package domain

// AccountState is the freeze axis of a token account.
type AccountState string

const (
	AccountActive AccountState = "ACTIVE"
	AccountFrozen AccountState = "FROZEN"
)

// String returns the string representation of AccountState.
func (s AccountState) String() string {
	return string(s)
}

// TokenAccount holds a balance of one mint for one owner.
// Corresponds to token_accounts table in PostgreSQL.
type TokenAccount struct {
	Address         string  // base58 record address, PRIMARY KEY
	Mint            string  // FK to mints
	Owner           string  // owning identity
	Amount          uint64  // balance in base units
	Delegate        *string // optional delegate identity
	DelegatedAmount uint64  // delegate ceiling, may exceed Amount
	Frozen          bool    // frozen accounts only accept thaw and revoke
	CreatedAt       int64   // record creation timestamp (ms)
}

// State returns the freeze state of the account.
func (a *TokenAccount) State() AccountState {
	if a.Frozen {
		return AccountFrozen
	}
	return AccountActive
}

// HasDelegate reports whether a delegate is set.
func (a *TokenAccount) HasDelegate() bool {
	return a.Delegate != nil
}

// ClearDelegate removes the delegate and its ceiling.
func (a *TokenAccount) ClearDelegate() {
	a.Delegate = nil
	a.DelegatedAmount = 0
}

// Clone returns a deep copy of the account.
func (a *TokenAccount) Clone() *TokenAccount {
	c := *a
	c.Delegate = clonePtr(a.Delegate)
	return &c
}
