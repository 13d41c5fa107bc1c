package ledger

import (
	"sort"

	"solana-token-craft/internal/domain"
)

// Signers is the set of identities whose signatures the host already verified.
type Signers struct {
	ids map[string]struct{}
}

// NewSigners builds a signer set. Empty ids are ignored.
func NewSigners(ids ...string) Signers {
	s := Signers{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// Has reports whether id signed the request.
func (s Signers) Has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// List returns the signers in sorted order.
func (s Signers) List() []string {
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of signers.
func (s Signers) Len() int {
	return len(s.ids)
}

// requireOwner checks that the record owner signed.
func requireOwner(op string, signers Signers, owner, subject string) error {
	if !signers.Has(owner) {
		return reject(op, KindUnauthorized, "%s owner %s did not sign", subject, owner)
	}
	return nil
}

// requireAuthority checks an optional authority field: an absent field is
// InvalidAuthority, a present but unsigned one is Unauthorized.
func requireAuthority(op string, signers Signers, field *string, name string) (string, error) {
	if field == nil {
		return "", reject(op, KindInvalidAuthority, "%s is not set", name)
	}
	if !signers.Has(*field) {
		return "", reject(op, KindUnauthorized, "%s %s did not sign", name, *field)
	}
	return *field, nil
}

// requireFreezeAuthority reports both an absent and an unsigned freeze
// authority as InvalidAuthority.
func requireFreezeAuthority(op string, signers Signers, mint *domain.Mint) (string, error) {
	if mint.FreezeAuthority == nil {
		return "", reject(op, KindInvalidAuthority, "mint %s has no freeze authority", mint.Address)
	}
	if !signers.Has(*mint.FreezeAuthority) {
		return "", reject(op, KindInvalidAuthority, "freeze authority %s did not sign", *mint.FreezeAuthority)
	}
	return *mint.FreezeAuthority, nil
}

// requireActive rejects frozen accounts.
func requireActive(op string, account *domain.TokenAccount) error {
	if account.Frozen {
		return reject(op, KindFrozenAccount, "token account %s is frozen", account.Address)
	}
	return nil
}

// requireSameMint rejects records that disagree on the mint.
func requireSameMint(op, want string, account *domain.TokenAccount) error {
	if account.Mint != want {
		return reject(op, KindMintMismatch, "token account %s belongs to mint %s, not %s", account.Address, account.Mint, want)
	}
	return nil
}
