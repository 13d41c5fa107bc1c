// Package address validates and derives base58 record addresses.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PubkeyLength is the decoded size of every identity and record address.
const PubkeyLength = 32

// Well-known program IDs.
const (
	TokenProgramID           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	AssociatedTokenProgramID = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	MetadataProgramID        = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

	// CraftProgramID owns the mint addresses derived at issuance.
	CraftProgramID = "AMA7Sz5zuBQ5ZYvfGM43V8KBTA6GAHc5YaWrFtXMzph8"
)

// ErrInvalidPubkey is returned for strings that are not 32-byte base58 keys.
var ErrInvalidPubkey = errors.New("invalid pubkey")

// ParsePubkey decodes a base58 address into its 32 raw bytes.
func ParsePubkey(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPubkey)
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	if len(decoded) != PubkeyLength {
		return nil, fmt.Errorf("%w: decoded length %d", ErrInvalidPubkey, len(decoded))
	}
	return decoded, nil
}

// ValidatePubkey returns nil if s is a well-formed address.
func ValidatePubkey(s string) error {
	_, err := ParsePubkey(s)
	return err
}

// IsValid reports whether s is a well-formed address.
func IsValid(s string) bool {
	return ValidatePubkey(s) == nil
}

// Encode encodes 32 raw bytes as a base58 address.
func Encode(b []byte) string {
	return base58.Encode(b)
}

// FromSeed derives a deterministic identity from a label.
// Formula: base58(SHA256(label)). Used for fixtures and dev tooling.
func FromSeed(label string) string {
	hash := sha256.Sum256([]byte(label))
	return base58.Encode(hash[:])
}

// IsOnCurve reports whether the 32 bytes decode to an ed25519 point.
// Program-derived addresses must be off the curve so no private key exists for them.
func IsOnCurve(point []byte) bool {
	if len(point) != PubkeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
