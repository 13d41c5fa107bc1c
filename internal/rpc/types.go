package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/ledger"
)

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeLedgerBase is the code of a ledger error of kind 0. A ledger
	// error of kind k is reported as CodeLedgerBase - k.
	CodeLedgerBase = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification is a server-initiated message without an id.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// Error is a JSON-RPC 2.0 error object. Ledger rejections carry the kind
// name in Data.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Kind returns the ledger error kind carried by e, if any.
func (e *Error) Kind() (ledger.Kind, bool) {
	if e.Code > CodeLedgerBase || e.Data == "" {
		return 0, false
	}
	kind, err := ledger.ParseKind(e.Data)
	if err != nil || CodeLedgerBase-int(kind) != e.Code {
		return 0, false
	}
	return kind, true
}

// Unwrap exposes the ledger kind so errors.Is(err, ledger.ErrFrozenAccount)
// works on the client side.
func (e *Error) Unwrap() error {
	if kind, ok := e.Kind(); ok {
		return &ledger.Error{Kind: kind}
	}
	return nil
}

func errorFor(err error) *Error {
	var le *ledger.Error
	if errors.As(err, &le) {
		return &Error{
			Code:    CodeLedgerBase - int(le.Kind),
			Message: le.Error(),
			Data:    le.Kind.String(),
		}
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

// Signed carries the signer set of a mutating method.
type Signed struct {
	// Signers are the identities the host treats as having signed.
	Signers []string `json:"signers"`
}

func (s Signed) signers() ledger.Signers {
	return ledger.NewSigners(s.Signers...)
}

type IssueParams struct {
	Signed
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	URI    string `json:"uri,omitempty"`
	Owner  string `json:"owner"`
}

type OpenAccountParams struct {
	Signed
	Owner string `json:"owner"`
	Mint  string `json:"mint"`
}

type TransferParams struct {
	Signed
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

type BurnParams struct {
	Signed
	Account string `json:"account"`
	Mint    string `json:"mint"`
	Amount  uint64 `json:"amount"`
}

type MintToParams struct {
	Signed
	Mint        string `json:"mint"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
}

// FreezeParams is used by freeze and thaw.
type FreezeParams struct {
	Signed
	Account string `json:"account"`
	Mint    string `json:"mint"`
}

type ApproveParams struct {
	Signed
	Account  string `json:"account"`
	Delegate string `json:"delegate"`
	Amount   uint64 `json:"amount"`
}

type RevokeParams struct {
	Signed
	Account string `json:"account"`
}

type CloseAccountParams struct {
	Signed
	Account     string `json:"account"`
	Destination string `json:"destination,omitempty"`
}

// SetAuthorityParams clears the authority when NewAuthority is null.
// AuthorityType is one of the domain.AuthorityType names.
type SetAuthorityParams struct {
	Signed
	Mint          string  `json:"mint"`
	AuthorityType string  `json:"authorityType"`
	NewAuthority  *string `json:"newAuthority"`
}

type UpdateMetadataParams struct {
	Signed
	Mint                 string          `json:"mint"`
	Name                 *string         `json:"name,omitempty"`
	Symbol               *string         `json:"symbol,omitempty"`
	URI                  *string         `json:"uri,omitempty"`
	SellerFeeBasisPoints *uint16         `json:"sellerFeeBasisPoints,omitempty"`
	Creators             *[]CreatorView  `json:"creators,omitempty"`
	Collection           *CollectionView `json:"collection,omitempty"`
	IsMutable            *bool           `json:"isMutable,omitempty"`
}

// UpdateSupplyCapParams uncaps the mint when MaxSupply is null.
type UpdateSupplyCapParams struct {
	Signed
	Mint      string  `json:"mint"`
	MaxSupply *uint64 `json:"maxSupply"`
}

type AddressParams struct {
	Address string `json:"address"`
}

type MintParams struct {
	Mint string `json:"mint"`
}

type OwnerParams struct {
	Owner string `json:"owner"`
}

// EventsParams selects journal entries by mint, by account or by time range.
type EventsParams struct {
	Mint    string `json:"mint,omitempty"`
	Account string `json:"account,omitempty"`
	Start   int64  `json:"start,omitempty"`
	End     int64  `json:"end,omitempty"`
}

// ReceiptView is the result of every mutating method.
type ReceiptView struct {
	Operation string `json:"operation"`
	Changed   bool   `json:"changed"`
	EventID   string `json:"eventId,omitempty"`
	Sequence  uint64 `json:"sequence,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func receiptView(r *ledger.Receipt) *ReceiptView {
	return &ReceiptView{
		Operation: r.Operation.String(),
		Changed:   r.Changed,
		EventID:   r.EventID,
		Sequence:  r.Sequence,
		Timestamp: r.Timestamp,
	}
}

type IssueResultView struct {
	Mint         string      `json:"mint"`
	TokenAccount string      `json:"tokenAccount"`
	Metadata     string      `json:"metadata"`
	SupplyCap    string      `json:"supplyCap"`
	Receipt      ReceiptView `json:"receipt"`
}

type OpenAccountResultView struct {
	Address string      `json:"address"`
	Receipt ReceiptView `json:"receipt"`
}

type MintView struct {
	Address         string  `json:"address"`
	Decimals        uint8   `json:"decimals"`
	MintAuthority   *string `json:"mintAuthority"`
	FreezeAuthority *string `json:"freezeAuthority"`
	Supply          uint64  `json:"supply"`
	UISupply        string  `json:"uiSupply"`
	CreatedAt       int64   `json:"createdAt"`
}

func mintView(m *domain.Mint) *MintView {
	return &MintView{
		Address:         m.Address,
		Decimals:        m.Decimals,
		MintAuthority:   m.MintAuthority,
		FreezeAuthority: m.FreezeAuthority,
		Supply:          m.Supply,
		UISupply:        domain.FormatAmount(m.Supply, m.Decimals),
		CreatedAt:       m.CreatedAt,
	}
}

type TokenAccountView struct {
	Address         string  `json:"address"`
	Mint            string  `json:"mint"`
	Owner           string  `json:"owner"`
	Amount          uint64  `json:"amount"`
	Decimals        uint8   `json:"decimals"`
	UIAmountString  string  `json:"uiAmountString"`
	Delegate        *string `json:"delegate"`
	DelegatedAmount uint64  `json:"delegatedAmount"`
	State           string  `json:"state"`
	CreatedAt       int64   `json:"createdAt"`
}

func tokenAccountView(a *domain.TokenAccount, decimals uint8) *TokenAccountView {
	return &TokenAccountView{
		Address:         a.Address,
		Mint:            a.Mint,
		Owner:           a.Owner,
		Amount:          a.Amount,
		Decimals:        decimals,
		UIAmountString:  domain.FormatAmount(a.Amount, decimals),
		Delegate:        a.Delegate,
		DelegatedAmount: a.DelegatedAmount,
		State:           a.State().String(),
		CreatedAt:       a.CreatedAt,
	}
}

type CreatorView struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    uint8  `json:"share"`
}

type CollectionView struct {
	Key      string `json:"key"`
	Verified bool   `json:"verified"`
}

type MetadataView struct {
	Address              string          `json:"address"`
	Mint                 string          `json:"mint"`
	Name                 string          `json:"name"`
	Symbol               string          `json:"symbol"`
	URI                  string          `json:"uri"`
	SellerFeeBasisPoints uint16          `json:"sellerFeeBasisPoints"`
	Creators             []CreatorView   `json:"creators,omitempty"`
	Collection           *CollectionView `json:"collection,omitempty"`
	UpdateAuthority      *string         `json:"updateAuthority"`
	IsMutable            bool            `json:"isMutable"`
	CreatedAt            int64           `json:"createdAt"`
}

func metadataView(m *domain.MetadataRecord) *MetadataView {
	v := &MetadataView{
		Address:              m.Address,
		Mint:                 m.Mint,
		Name:                 m.Name,
		Symbol:               m.Symbol,
		URI:                  m.URI,
		SellerFeeBasisPoints: m.SellerFeeBasisPoints,
		UpdateAuthority:      m.UpdateAuthority,
		IsMutable:            m.IsMutable,
		CreatedAt:            m.CreatedAt,
	}
	for _, c := range m.Creators {
		v.Creators = append(v.Creators, CreatorView{Address: c.Address, Verified: c.Verified, Share: c.Share})
	}
	if m.Collection != nil {
		v.Collection = &CollectionView{Key: m.Collection.Key, Verified: m.Collection.Verified}
	}
	return v
}

type SupplyCapView struct {
	Address         string  `json:"address"`
	Mint            string  `json:"mint"`
	MaxSupply       *uint64 `json:"maxSupply"`
	Minted          uint64  `json:"minted"`
	Remaining       *uint64 `json:"remaining"`
	UpdateAuthority *string `json:"updateAuthority"`
	CreatedAt       int64   `json:"createdAt"`
}

func supplyCapView(c *domain.SupplyCapRecord) *SupplyCapView {
	v := &SupplyCapView{
		Address:         c.Address,
		Mint:            c.Mint,
		MaxSupply:       c.MaxSupply,
		Minted:          c.Minted,
		UpdateAuthority: c.UpdateAuthority,
		CreatedAt:       c.CreatedAt,
	}
	if remaining, capped := c.Remaining(); capped {
		v.Remaining = &remaining
	}
	return v
}

// EventView is the wire form of a journal entry.
type EventView struct {
	EventID   string   `json:"eventId"`
	Sequence  uint64   `json:"sequence"`
	Operation string   `json:"operation"`
	Mint      string   `json:"mint"`
	Accounts  []string `json:"accounts"`
	Authority string   `json:"authority,omitempty"`
	Amount    uint64   `json:"amount"`
	Detail    string   `json:"detail,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// NewEventView converts an event to its wire form.
func NewEventView(e *domain.Event) *EventView {
	return &EventView{
		EventID:   e.EventID,
		Sequence:  e.Sequence,
		Operation: e.Operation.String(),
		Mint:      e.Mint,
		Accounts:  append([]string(nil), e.Accounts...),
		Authority: e.Authority,
		Amount:    e.Amount,
		Detail:    e.Detail,
		Timestamp: e.Timestamp,
	}
}
