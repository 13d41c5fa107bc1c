package domain

// Metaplex field limits, in bytes.
const (
	MaxNameLength   = 32
	MaxSymbolLength = 10
	MaxURILength    = 200
	MaxCreators     = 5
)

// Creator is an optional attribution entry on metadata.
type Creator struct {
	Address  string // creator identity
	Verified bool   // creator has signed off
	Share    uint8  // percentage share, all shares sum to 100
}

// Collection links metadata to a collection mint.
type Collection struct {
	Key      string // collection mint address
	Verified bool
}

// MetadataRecord holds descriptive data for a mint.
// Corresponds to metadata_records table in PostgreSQL.
type MetadataRecord struct {
	Address              string      // derived from mint, PRIMARY KEY
	Mint                 string      // FK to mints (unique)
	Name                 string      // asset name
	Symbol               string      // ticker symbol
	URI                  string      // off-chain locator
	SellerFeeBasisPoints uint16      // royalty in basis points
	Creators             []Creator   // optional extension
	Collection           *Collection // optional extension
	UpdateAuthority      *string     // identity allowed to change the record
	IsMutable            bool        // once false, nothing may change
	CreatedAt            int64       // record creation timestamp (ms)
}

// Clone returns a deep copy of the record.
func (m *MetadataRecord) Clone() *MetadataRecord {
	c := *m
	if m.Creators != nil {
		c.Creators = append([]Creator(nil), m.Creators...)
	}
	c.Collection = clonePtr(m.Collection)
	c.UpdateAuthority = clonePtr(m.UpdateAuthority)
	return &c
}
