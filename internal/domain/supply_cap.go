package domain

// SupplyCapRecord caps issuance beyond the initial supply of a mint.
// Corresponds to supply_caps table in PostgreSQL.
type SupplyCapRecord struct {
	Address         string  // derived from mint, PRIMARY KEY
	Mint            string  // FK to mints (unique)
	MaxSupply       *uint64 // nil = uncapped, 0 = no further issuance
	Minted          uint64  // units issued after the initial issuance
	UpdateAuthority *string // identity allowed to change the cap
	CreatedAt       int64   // record creation timestamp (ms)
}

// Remaining returns how many more units may be issued.
// The second result is false when the cap is unset.
func (s *SupplyCapRecord) Remaining() (uint64, bool) {
	if s.MaxSupply == nil {
		return 0, false
	}
	if s.Minted >= *s.MaxSupply {
		return 0, true
	}
	return *s.MaxSupply - s.Minted, true
}

// Clone returns a deep copy of the record.
func (s *SupplyCapRecord) Clone() *SupplyCapRecord {
	c := *s
	c.MaxSupply = clonePtr(s.MaxSupply)
	c.UpdateAuthority = clonePtr(s.UpdateAuthority)
	return &c
}
