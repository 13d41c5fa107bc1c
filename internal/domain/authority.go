package domain

import "fmt"

// AuthorityType names one rotatable authority field.
type AuthorityType uint8

const (
	AuthorityMintTokens AuthorityType = iota + 1
	AuthorityFreezeAccount
	AuthorityMetadataUpdate
	AuthoritySupplyCap
)

var authorityNames = map[AuthorityType]string{
	AuthorityMintTokens:     "MINT_TOKENS",
	AuthorityFreezeAccount:  "FREEZE_ACCOUNT",
	AuthorityMetadataUpdate: "METADATA_UPDATE",
	AuthoritySupplyCap:      "SUPPLY_CAP",
}

// AuthorityTypes lists every recognized authority type.
func AuthorityTypes() []AuthorityType {
	return []AuthorityType{
		AuthorityMintTokens,
		AuthorityFreezeAccount,
		AuthorityMetadataUpdate,
		AuthoritySupplyCap,
	}
}

// String returns the string representation of AuthorityType.
func (t AuthorityType) String() string {
	if name, ok := authorityNames[t]; ok {
		return name
	}
	return fmt.Sprintf("AuthorityType(%d)", uint8(t))
}

// IsValid checks if the authority type is a recognized value.
func (t AuthorityType) IsValid() bool {
	_, ok := authorityNames[t]
	return ok
}

// Record returns the record kind that holds the authority field.
func (t AuthorityType) Record() RecordKind {
	switch t {
	case AuthorityMintTokens, AuthorityFreezeAccount:
		return RecordMint
	case AuthorityMetadataUpdate:
		return RecordMetadata
	case AuthoritySupplyCap:
		return RecordSupplyCap
	}
	return 0
}

// ParseAuthorityType parses a name produced by String.
func ParseAuthorityType(s string) (AuthorityType, error) {
	for t, name := range authorityNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown authority type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t AuthorityType) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("invalid authority type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *AuthorityType) UnmarshalText(b []byte) error {
	parsed, err := ParseAuthorityType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
