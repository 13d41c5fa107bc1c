package address

import (
	"crypto/sha256"
	"errors"
	"fmt"
)

// Seed limits for program-derived addresses.
const (
	MaxSeedLength = 32
	MaxSeeds      = 16
)

const pdaMarker = "ProgramDerivedAddress"

var (
	// ErrSeedTooLong is returned when a seed exceeds MaxSeedLength or too many seeds are given.
	ErrSeedTooLong = errors.New("seed too long")

	// ErrOnCurve is returned by CreateProgramAddress when the hash is a valid curve point.
	ErrOnCurve = errors.New("derived address is on curve")

	// ErrNoViableBump is returned when no bump in 255..1 yields an off-curve address.
	ErrNoViableBump = errors.New("no viable bump seed")
)

// CreateProgramAddress hashes seeds under programID.
// Formula: SHA256(seed_0 | ... | seed_n | programID | "ProgramDerivedAddress").
func CreateProgramAddress(seeds [][]byte, programID string) (string, error) {
	programBytes, err := ParsePubkey(programID)
	if err != nil {
		return "", fmt.Errorf("program id: %w", err)
	}
	if len(seeds) > MaxSeeds {
		return "", ErrSeedTooLong
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return "", ErrSeedTooLong
		}
		h.Write(seed)
	}
	h.Write(programBytes)
	h.Write([]byte(pdaMarker))
	hash := h.Sum(nil)

	if IsOnCurve(hash) {
		return "", ErrOnCurve
	}
	return Encode(hash), nil
}

// FindProgramAddress searches bumps from 255 down to 1 and returns the first
// off-curve address with the bump that produced it.
func FindProgramAddress(seeds [][]byte, programID string) (string, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return "", 0, ErrSeedTooLong
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := byte(255); bump > 0; bump-- {
		withBump[len(seeds)] = []byte{bump}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, bump, nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return "", 0, err
		}
	}

	return "", 0, ErrNoViableBump
}
