package address

import "fmt"

// Slots holds the four record addresses created by one issuance.
type Slots struct {
	Mint         string
	TokenAccount string
	Metadata     string
	SupplyCap    string
}

// MintAddress derives the mint slot for an owner and symbol under programID.
// Seeds: ["mint", owner, symbol]
func MintAddress(programID, owner, symbol string) (string, error) {
	ownerBytes, err := ParsePubkey(owner)
	if err != nil {
		return "", fmt.Errorf("owner: %w", err)
	}
	addr, _, err := FindProgramAddress([][]byte{
		[]byte("mint"),
		ownerBytes,
		[]byte(symbol),
	}, programID)
	if err != nil {
		return "", fmt.Errorf("derive mint address: %w", err)
	}
	return addr, nil
}

// AssociatedTokenAddress derives the canonical token account of owner for mint.
// Seeds: [owner, token_program_id, mint] under the associated token program.
func AssociatedTokenAddress(owner, mint string) (string, error) {
	ownerBytes, err := ParsePubkey(owner)
	if err != nil {
		return "", fmt.Errorf("owner: %w", err)
	}
	mintBytes, err := ParsePubkey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	tokenProgram, err := ParsePubkey(TokenProgramID)
	if err != nil {
		return "", err
	}
	addr, _, err := FindProgramAddress([][]byte{ownerBytes, tokenProgram, mintBytes}, AssociatedTokenProgramID)
	if err != nil {
		return "", fmt.Errorf("derive token account address: %w", err)
	}
	return addr, nil
}

// MetadataAddress derives the metadata record of a mint.
// Seeds: ["metadata", metadata_program_id, mint]
func MetadataAddress(mint string) (string, error) {
	return metadataPDA(mint)
}

// SupplyCapAddress derives the supply-cap record of a mint.
// Seeds: ["metadata", metadata_program_id, mint, "edition"]
func SupplyCapAddress(mint string) (string, error) {
	return metadataPDA(mint, []byte("edition"))
}

func metadataPDA(mint string, extra ...[]byte) (string, error) {
	mintBytes, err := ParsePubkey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	programBytes, err := ParsePubkey(MetadataProgramID)
	if err != nil {
		return "", err
	}
	seeds := append([][]byte{[]byte("metadata"), programBytes, mintBytes}, extra...)
	addr, _, err := FindProgramAddress(seeds, MetadataProgramID)
	if err != nil {
		return "", fmt.Errorf("derive metadata address: %w", err)
	}
	return addr, nil
}

// IssuanceSlots derives all four issuance addresses for owner and symbol.
func IssuanceSlots(programID, owner, symbol string) (Slots, error) {
	mint, err := MintAddress(programID, owner, symbol)
	if err != nil {
		return Slots{}, err
	}
	account, err := AssociatedTokenAddress(owner, mint)
	if err != nil {
		return Slots{}, err
	}
	metadata, err := MetadataAddress(mint)
	if err != nil {
		return Slots{}, err
	}
	supplyCap, err := SupplyCapAddress(mint)
	if err != nil {
		return Slots{}, err
	}
	return Slots{
		Mint:         mint,
		TokenAccount: account,
		Metadata:     metadata,
		SupplyCap:    supplyCap,
	}, nil
}
