package domain

// Operation names a committed ledger operation.
type Operation string

const (
	OpIssue           Operation = "issue"
	OpOpenAccount     Operation = "open_account"
	OpTransfer        Operation = "transfer"
	OpBurn            Operation = "burn"
	OpMintTo          Operation = "mint_to"
	OpFreeze          Operation = "freeze"
	OpThaw            Operation = "thaw"
	OpApprove         Operation = "approve"
	OpRevoke          Operation = "revoke"
	OpCloseAccount    Operation = "close_account"
	OpSetAuthority    Operation = "set_authority"
	OpUpdateMetadata  Operation = "update_metadata"
	OpUpdateSupplyCap Operation = "update_supply_cap"
)

// String returns the string representation of Operation.
func (o Operation) String() string {
	return string(o)
}

// IsValid checks if the operation is a known value.
func (o Operation) IsValid() bool {
	switch o {
	case OpIssue, OpOpenAccount, OpTransfer, OpBurn, OpMintTo, OpFreeze, OpThaw,
		OpApprove, OpRevoke, OpCloseAccount, OpSetAuthority, OpUpdateMetadata, OpUpdateSupplyCap:
		return true
	}
	return false
}

// Event is the journal entry for one committed operation.
// Corresponds to ledger_events table in ClickHouse.
type Event struct {
	EventID   string    // uuid, unique
	Sequence  uint64    // per-process commit order
	Operation Operation // what was applied
	Mint      string    // mint the operation belongs to
	Accounts  []string  // record addresses touched, primary first
	Authority string    // signing identity, empty for permissionless operations
	Amount    uint64    // amount moved, zero when not applicable
	Detail    string    // short operation-specific note
	Timestamp int64     // commit time (ms)
}

// Touches reports whether the event involved the given record address.
func (e *Event) Touches(address string) bool {
	for _, a := range e.Accounts {
		if a == address {
			return true
		}
	}
	return false
}
