package domain

// RecordKind identifies one of the four persisted record kinds.
type RecordKind uint8

const (
	RecordMint RecordKind = iota + 1
	RecordTokenAccount
	RecordMetadata
	RecordSupplyCap
)

// String returns the string representation of RecordKind.
func (k RecordKind) String() string {
	switch k {
	case RecordMint:
		return "mint"
	case RecordTokenAccount:
		return "token_account"
	case RecordMetadata:
		return "metadata"
	case RecordSupplyCap:
		return "supply_cap"
	default:
		return "unknown"
	}
}

// IsValid checks if the record kind is a known value.
func (k RecordKind) IsValid() bool {
	return k >= RecordMint && k <= RecordSupplyCap
}
