// Package rpc exposes the ledger over JSON-RPC 2.0 and provides a client for it.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/ledger"
	"solana-token-craft/internal/observability"
	"solana-token-craft/internal/storage"
)

const maxRequestBytes = 1 << 20

type method func(ctx context.Context, params json.RawMessage) (any, error)

// HandlerOption configures Handler.
type HandlerOption func(*Handler)

// WithEventStore enables getEvents against the operation journal.
func WithEventStore(s storage.EventStore) HandlerOption {
	return func(h *Handler) {
		h.events = s
	}
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = l
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// Handler serves ledger operations as JSON-RPC methods over HTTP POST.
// Mutating methods take their signer set from params; the handler acts as a
// development host that has already verified those signatures.
type Handler struct {
	program *ledger.Program
	events  storage.EventStore
	logger  zerolog.Logger
	metrics *observability.Metrics
	methods map[string]method
}

// NewHandler creates a Handler over program.
func NewHandler(program *ledger.Program, opts ...HandlerOption) *Handler {
	h := &Handler{
		program: program,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.methods = map[string]method{
		"issue":           handle(h.issue),
		"openAccount":     handle(h.openAccount),
		"transfer":        handle(h.transfer),
		"burn":            handle(h.burn),
		"mintTo":          handle(h.mintTo),
		"freeze":          handle(h.freeze),
		"thaw":            handle(h.thaw),
		"approve":         handle(h.approve),
		"revoke":          handle(h.revoke),
		"closeAccount":    handle(h.closeAccount),
		"setAuthority":    handle(h.setAuthority),
		"updateMetadata":  handle(h.updateMetadata),
		"updateSupplyCap": handle(h.updateSupplyCap),

		"getMint":                 handle(h.getMint),
		"getTokenAccount":         handle(h.getTokenAccount),
		"getMetadata":             handle(h.getMetadata),
		"getSupplyCap":            handle(h.getSupplyCap),
		"getTokenAccountsByOwner": handle(h.getTokenAccountsByOwner),
		"getEvents":               handle(h.getEvents),
	}
	return h
}

// Methods returns the served method names in sorted order.
func (h *Handler) Methods() []string {
	out := make([]string, 0, len(h.methods))
	for name := range h.methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		writeResponse(w, &Response{JSONRPC: Version, Error: &Error{Code: CodeInvalidRequest, Message: "read request: " + err.Error()}})
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, &Response{JSONRPC: Version, Error: &Error{Code: CodeParseError, Message: err.Error()}})
		return
	}
	if req.JSONRPC != Version || req.Method == "" {
		writeResponse(w, &Response{JSONRPC: Version, ID: req.ID, Error: &Error{Code: CodeInvalidRequest, Message: "not a JSON-RPC 2.0 request"}})
		return
	}

	resp := h.Dispatch(r.Context(), &req)
	if len(req.ID) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeResponse(w, resp)
}

// Dispatch runs one request and builds its response.
func (h *Handler) Dispatch(ctx context.Context, req *Request) *Response {
	start := time.Now()
	resp := &Response{JSONRPC: Version, ID: req.ID}

	m, ok := h.methods[req.Method]
	if !ok {
		resp.Error = &Error{Code: CodeMethodNotFound, Message: "method not found: " + req.Method}
		h.metrics.RecordRPCRequest("unknown", observability.ResultError)
		return resp
	}

	result, err := m(ctx, req.Params)
	if err == nil {
		resp.Result, err = json.Marshal(result)
	}

	outcome := outcomeOf(err)
	h.metrics.RecordRPCRequest(req.Method, outcome)
	h.metrics.RecordRPCLatency(req.Method, time.Since(start).Seconds())
	if err != nil {
		resp.Result = nil
		resp.Error = errorFor(err)
	}

	ev := h.logger.Debug()
	if outcome == observability.ResultError {
		ev = h.logger.Warn().Err(err)
	}
	ev.Str("method", req.Method).
		Str("outcome", outcome).
		Dur("elapsed", time.Since(start)).
		Msg("rpc request")
	return resp
}

func outcomeOf(err error) string {
	if err == nil {
		return observability.ResultOK
	}
	var le *ledger.Error
	if errors.As(err, &le) && le.Kind != ledger.KindInternal {
		return observability.ResultRejected
	}
	var re *Error
	if errors.As(err, &re) && re.Code == CodeInvalidParams {
		return observability.ResultRejected
	}
	return observability.ResultError
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handle decodes params strictly before calling fn.
func handle[P any](fn func(ctx context.Context, p P) (any, error)) method {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p P
		if len(raw) == 0 {
			return nil, &Error{Code: CodeInvalidParams, Message: "missing params"}
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
		}
		return fn(ctx, p)
	}
}

func receiptResult(r *ledger.Receipt, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return receiptView(r), nil
}

func (h *Handler) issue(ctx context.Context, p IssueParams) (any, error) {
	res, err := h.program.Issue(ctx, p.signers(), ledger.IssueRequest{
		Name:   p.Name,
		Symbol: p.Symbol,
		URI:    p.URI,
		Owner:  p.Owner,
	})
	if err != nil {
		return nil, err
	}
	return &IssueResultView{
		Mint:         res.Mint,
		TokenAccount: res.TokenAccount,
		Metadata:     res.Metadata,
		SupplyCap:    res.SupplyCap,
		Receipt:      *receiptView(&res.Receipt),
	}, nil
}

func (h *Handler) openAccount(ctx context.Context, p OpenAccountParams) (any, error) {
	res, err := h.program.OpenAccount(ctx, p.signers(), ledger.OpenAccountRequest{Owner: p.Owner, Mint: p.Mint})
	if err != nil {
		return nil, err
	}
	return &OpenAccountResultView{Address: res.Address, Receipt: *receiptView(&res.Receipt)}, nil
}

func (h *Handler) transfer(ctx context.Context, p TransferParams) (any, error) {
	return receiptResult(h.program.Transfer(ctx, p.signers(), ledger.TransferRequest{
		From: p.From, To: p.To, Amount: p.Amount,
	}))
}

func (h *Handler) burn(ctx context.Context, p BurnParams) (any, error) {
	return receiptResult(h.program.Burn(ctx, p.signers(), ledger.BurnRequest{
		Account: p.Account, Mint: p.Mint, Amount: p.Amount,
	}))
}

func (h *Handler) mintTo(ctx context.Context, p MintToParams) (any, error) {
	return receiptResult(h.program.MintTo(ctx, p.signers(), ledger.MintToRequest{
		Mint: p.Mint, Destination: p.Destination, Amount: p.Amount,
	}))
}

func (h *Handler) freeze(ctx context.Context, p FreezeParams) (any, error) {
	return receiptResult(h.program.Freeze(ctx, p.signers(), ledger.FreezeRequest{Account: p.Account, Mint: p.Mint}))
}

func (h *Handler) thaw(ctx context.Context, p FreezeParams) (any, error) {
	return receiptResult(h.program.Thaw(ctx, p.signers(), ledger.FreezeRequest{Account: p.Account, Mint: p.Mint}))
}

func (h *Handler) approve(ctx context.Context, p ApproveParams) (any, error) {
	return receiptResult(h.program.Approve(ctx, p.signers(), ledger.ApproveRequest{
		Account: p.Account, Delegate: p.Delegate, Amount: p.Amount,
	}))
}

func (h *Handler) revoke(ctx context.Context, p RevokeParams) (any, error) {
	return receiptResult(h.program.Revoke(ctx, p.signers(), ledger.RevokeRequest{Account: p.Account}))
}

func (h *Handler) closeAccount(ctx context.Context, p CloseAccountParams) (any, error) {
	return receiptResult(h.program.Close(ctx, p.signers(), ledger.CloseRequest{
		Account: p.Account, Destination: p.Destination,
	}))
}

// setAuthority reports an unknown authority name as a ledger rejection,
// the same as a missing one.
func (h *Handler) setAuthority(ctx context.Context, p SetAuthorityParams) (any, error) {
	var kind domain.AuthorityType
	if p.AuthorityType != "" {
		var err error
		if kind, err = domain.ParseAuthorityType(p.AuthorityType); err != nil {
			return nil, &ledger.Error{Op: "set_authority", Kind: ledger.KindInvalidAuthority, Detail: err.Error()}
		}
	}
	return receiptResult(h.program.SetAuthority(ctx, p.signers(), ledger.SetAuthorityRequest{
		Mint: p.Mint, AuthorityType: kind, NewAuthority: p.NewAuthority,
	}))
}

func (h *Handler) updateMetadata(ctx context.Context, p UpdateMetadataParams) (any, error) {
	req := ledger.UpdateMetadataRequest{
		Mint:                 p.Mint,
		Name:                 p.Name,
		Symbol:               p.Symbol,
		URI:                  p.URI,
		SellerFeeBasisPoints: p.SellerFeeBasisPoints,
		IsMutable:            p.IsMutable,
	}
	if p.Creators != nil {
		creators := make([]domain.Creator, 0, len(*p.Creators))
		for _, c := range *p.Creators {
			creators = append(creators, domain.Creator{Address: c.Address, Verified: c.Verified, Share: c.Share})
		}
		req.Creators = &creators
	}
	if p.Collection != nil {
		req.Collection = &domain.Collection{Key: p.Collection.Key, Verified: p.Collection.Verified}
	}
	return receiptResult(h.program.UpdateMetadata(ctx, p.signers(), req))
}

func (h *Handler) updateSupplyCap(ctx context.Context, p UpdateSupplyCapParams) (any, error) {
	return receiptResult(h.program.UpdateSupplyCap(ctx, p.signers(), ledger.UpdateSupplyCapRequest{
		Mint: p.Mint, MaxSupply: p.MaxSupply,
	}))
}

func (h *Handler) getMint(ctx context.Context, p AddressParams) (any, error) {
	m, err := h.program.GetMint(ctx, p.Address)
	if err != nil {
		return nil, err
	}
	return mintView(m), nil
}

func (h *Handler) getTokenAccount(ctx context.Context, p AddressParams) (any, error) {
	a, err := h.program.GetTokenAccount(ctx, p.Address)
	if err != nil {
		return nil, err
	}
	m, err := h.program.GetMint(ctx, a.Mint)
	if err != nil {
		return nil, err
	}
	return tokenAccountView(a, m.Decimals), nil
}

func (h *Handler) getMetadata(ctx context.Context, p MintParams) (any, error) {
	md, err := h.program.GetMetadata(ctx, p.Mint)
	if err != nil {
		return nil, err
	}
	return metadataView(md), nil
}

func (h *Handler) getSupplyCap(ctx context.Context, p MintParams) (any, error) {
	c, err := h.program.GetSupplyCap(ctx, p.Mint)
	if err != nil {
		return nil, err
	}
	return supplyCapView(c), nil
}

func (h *Handler) getTokenAccountsByOwner(ctx context.Context, p OwnerParams) (any, error) {
	accounts, err := h.program.TokenAccountsByOwner(ctx, p.Owner)
	if err != nil {
		return nil, err
	}

	decimals := make(map[string]uint8)
	out := make([]*TokenAccountView, 0, len(accounts))
	for _, a := range accounts {
		d, ok := decimals[a.Mint]
		if !ok {
			m, err := h.program.GetMint(ctx, a.Mint)
			if err != nil {
				return nil, err
			}
			d = m.Decimals
			decimals[a.Mint] = d
		}
		out = append(out, tokenAccountView(a, d))
	}
	return out, nil
}

func (h *Handler) getEvents(ctx context.Context, p EventsParams) (any, error) {
	if h.events == nil {
		return nil, &Error{Code: CodeInternalError, Message: "event journal is not configured"}
	}

	var (
		events []*domain.Event
		err    error
	)
	switch {
	case p.Mint != "":
		events, err = h.events.GetByMint(ctx, p.Mint)
	case p.Account != "":
		events, err = h.events.GetByAccount(ctx, p.Account)
	case p.End > 0:
		events, err = h.events.GetByTimeRange(ctx, p.Start, p.End)
	default:
		return nil, &Error{Code: CodeInvalidParams, Message: "one of mint, account or end is required"}
	}
	if err != nil {
		return nil, err
	}

	out := make([]*EventView, 0, len(events))
	for _, e := range events {
		if p.Mint != "" && p.Account != "" && !e.Touches(p.Account) {
			continue
		}
		out = append(out, NewEventView(e))
	}
	return out, nil
}
