package domain

// Mint describes one issuable asset.
// Corresponds to mints table in PostgreSQL.
type Mint struct {
	Address         string  // base58 record address, PRIMARY KEY
	Decimals        uint8   // decimal precision
	MintAuthority   *string // nil once issuance is permanently closed
	FreezeAuthority *string // optional
	Supply          uint64  // current minted total
	CreatedAt       int64   // record creation timestamp (ms)
}

// CanIssue reports whether the mint still has an issuing authority.
func (m *Mint) CanIssue() bool {
	return m.MintAuthority != nil
}

// Clone returns a deep copy of the mint.
func (m *Mint) Clone() *Mint {
	c := *m
	c.MintAuthority = clonePtr(m.MintAuthority)
	c.FreezeAuthority = clonePtr(m.FreezeAuthority)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SameIdentity reports whether an optional authority field holds id.
func SameIdentity(field *string, id string) bool {
	return field != nil && *field == id
}
