package ledger

import (
	"errors"
	"fmt"
	"strings"

	"solana-token-craft/internal/storage"
)

// Kind classifies why an operation was rejected.
type Kind uint8

const (
	// KindInternal marks an unexpected failure of the record store.
	KindInternal Kind = iota
	KindUnauthorized
	KindInvalidAuthority
	KindFrozenAccount
	KindInsufficientFunds
	KindMintMismatch
	KindAlreadyExists
	KindNotFound
	KindInvalidArgument
	KindImmutable
	KindSupplyCapExceeded
	KindNonZeroBalance
	KindOverflow
	KindStorageFull
)

var kindNames = [...]string{
	KindInternal:          "Internal",
	KindUnauthorized:      "Unauthorized",
	KindInvalidAuthority:  "InvalidAuthority",
	KindFrozenAccount:     "FrozenAccount",
	KindInsufficientFunds: "InsufficientFunds",
	KindMintMismatch:      "MintMismatch",
	KindAlreadyExists:     "AlreadyExists",
	KindNotFound:          "NotFound",
	KindInvalidArgument:   "InvalidArgument",
	KindImmutable:         "Immutable",
	KindSupplyCapExceeded: "SupplyCapExceeded",
	KindNonZeroBalance:    "NonZeroBalance",
	KindOverflow:          "Overflow",
	KindStorageFull:       "StorageFull",
}

// String returns the string representation of Kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Kinds lists every kind, KindInternal first.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

// ParseKind parses a name produced by String.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(i), nil
		}
	}
	return KindInternal, fmt.Errorf("unknown error kind %q", s)
}

// Error is the rejection returned by every ledger operation.
// Nothing was written when an operation returns an *Error.
type Error struct {
	Op     string // operation name, empty for sentinels
	Kind   Kind
	Detail string // human readable context
	Err    error  // underlying cause, mostly for KindInternal
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rejected reports whether the error refuses the request, as opposed to an
// internal failure. It satisfies storage.Rejection.
func (e *Error) Rejected() bool {
	return e.Kind != KindInternal
}

// Is matches the kind sentinels, so errors.Is(err, ErrFrozenAccount) works
// for any rejection of that kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Detail == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInternal          = &Error{Kind: KindInternal}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInvalidAuthority  = &Error{Kind: KindInvalidAuthority}
	ErrFrozenAccount     = &Error{Kind: KindFrozenAccount}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrMintMismatch      = &Error{Kind: KindMintMismatch}
	ErrAlreadyExists     = &Error{Kind: KindAlreadyExists}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrImmutable         = &Error{Kind: KindImmutable}
	ErrSupplyCapExceeded = &Error{Kind: KindSupplyCapExceeded}
	ErrNonZeroBalance    = &Error{Kind: KindNonZeroBalance}
	ErrOverflow          = &Error{Kind: KindOverflow}
	ErrStorageFull       = &Error{Kind: KindStorageFull}
)

var _ storage.Rejection = (*Error)(nil)

// KindOf returns the kind of a ledger error and KindInternal for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func reject(op string, kind Kind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// fromStorage translates a record store error at the ledger boundary.
// subject names the record involved, e.g. "token account 9xQe…".
func fromStorage(op, subject string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, storage.ErrNotFound):
		return &Error{Op: op, Kind: KindNotFound, Detail: subject + " does not exist"}
	case errors.Is(err, storage.ErrDuplicateKey):
		return &Error{Op: op, Kind: KindAlreadyExists, Detail: subject + " slot is occupied"}
	case errors.Is(err, storage.ErrUnderflow):
		return &Error{Op: op, Kind: KindInsufficientFunds, Detail: subject + " balance too low"}
	case errors.Is(err, storage.ErrOverflow):
		return &Error{Op: op, Kind: KindOverflow, Detail: subject + " would exceed the amount range"}
	case errors.Is(err, storage.ErrStorageFull):
		return &Error{Op: op, Kind: KindStorageFull, Detail: "cannot allocate " + subject}
	}
	return &Error{Op: op, Kind: KindInternal, Detail: subject, Err: err}
}
