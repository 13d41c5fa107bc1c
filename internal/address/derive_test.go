package address

import (
	"errors"
	"testing"
)

// Expected values computed independently from the derivation formula.
const (
	testOwner        = "67vHA8qZGCJKw1UNGUJZME4MwEWDRGWzp7MGvsut43A8" // FromSeed("owner")
	testMint         = "4BzjSfxPdcLfAxVQDpQeWCXGL6yPPF8E8PQuzyJq8KrU"
	testTokenAccount = "YEeGfeRU1TzuNyhAjpCp5yyaTybToSSC47RhisZvYzV"
	testMetadata     = "GYk6znyiKZLjQBiJJcEQg664Xeipctamr68t59uDrZLF"
	testSupplyCap    = "BHuQB3sj4xGkN9BDj6LQMRYNMAd7NiLUDuWCKKqvBsGg"
)

func TestFromSeed(t *testing.T) {
	if got := FromSeed("owner"); got != testOwner {
		t.Errorf("FromSeed(owner) = %s, want %s", got, testOwner)
	}
	if FromSeed("a") == FromSeed("b") {
		t.Error("different labels must give different identities")
	}
}

func TestIssuanceSlots_KnownValues(t *testing.T) {
	slots, err := IssuanceSlots(CraftProgramID, testOwner, "CRAFT")
	if err != nil {
		t.Fatalf("IssuanceSlots: %v", err)
	}

	want := Slots{
		Mint:         testMint,
		TokenAccount: testTokenAccount,
		Metadata:     testMetadata,
		SupplyCap:    testSupplyCap,
	}
	if slots != want {
		t.Errorf("IssuanceSlots mismatch:\n got  %+v\n want %+v", slots, want)
	}
}

func TestIssuanceSlots_Deterministic(t *testing.T) {
	a, err := IssuanceSlots(CraftProgramID, testOwner, "AAA")
	if err != nil {
		t.Fatalf("IssuanceSlots: %v", err)
	}
	b, err := IssuanceSlots(CraftProgramID, testOwner, "AAA")
	if err != nil {
		t.Fatalf("IssuanceSlots: %v", err)
	}
	if a != b {
		t.Errorf("derivation not deterministic: %+v vs %+v", a, b)
	}

	c, err := IssuanceSlots(CraftProgramID, testOwner, "BBB")
	if err != nil {
		t.Fatalf("IssuanceSlots: %v", err)
	}
	if a.Mint == c.Mint {
		t.Error("different symbols must derive different mints")
	}
}

func TestFindProgramAddress_OffCurve(t *testing.T) {
	addr, bump, err := FindProgramAddress([][]byte{[]byte("metadata")}, MetadataProgramID)
	if err != nil {
		t.Fatalf("FindProgramAddress: %v", err)
	}

	raw, err := ParsePubkey(addr)
	if err != nil {
		t.Fatalf("ParsePubkey(%s): %v", addr, err)
	}
	if IsOnCurve(raw) {
		t.Error("derived address must be off curve")
	}

	again, err := CreateProgramAddress([][]byte{[]byte("metadata"), {bump}}, MetadataProgramID)
	if err != nil {
		t.Fatalf("CreateProgramAddress: %v", err)
	}
	if again != addr {
		t.Errorf("CreateProgramAddress with bump %d = %s, want %s", bump, again, addr)
	}
}

func TestFindProgramAddress_SeedLimits(t *testing.T) {
	long := make([]byte, MaxSeedLength+1)
	if _, _, err := FindProgramAddress([][]byte{long}, CraftProgramID); !errors.Is(err, ErrSeedTooLong) {
		t.Errorf("expected ErrSeedTooLong, got %v", err)
	}

	many := make([][]byte, MaxSeeds)
	if _, _, err := FindProgramAddress(many, CraftProgramID); !errors.Is(err, ErrSeedTooLong) {
		t.Errorf("expected ErrSeedTooLong for %d seeds, got %v", MaxSeeds, err)
	}
}

func TestValidatePubkey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
	}{
		{name: "token program", input: TokenProgramID, valid: true},
		{name: "wrapped sol", input: "So11111111111111111111111111111111111111112", valid: true},
		{name: "empty", input: "", valid: false},
		{name: "bad alphabet", input: "0OIl", valid: false},
		{name: "too short", input: "abc", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePubkey(tt.input)
			if tt.valid && err != nil {
				t.Errorf("ValidatePubkey(%q): unexpected error %v", tt.input, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidPubkey) {
				t.Errorf("ValidatePubkey(%q): expected ErrInvalidPubkey, got %v", tt.input, err)
			}
		})
	}
}

func TestMintAddress_RejectsBadOwner(t *testing.T) {
	if _, err := MintAddress(CraftProgramID, "not-a-key", "X"); !errors.Is(err, ErrInvalidPubkey) {
		t.Errorf("expected ErrInvalidPubkey, got %v", err)
	}
}
