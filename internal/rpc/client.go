package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Client calls a ledger JSON-RPC endpoint over HTTP.
// Read methods are retried with exponential backoff; mutating methods are
// sent once, since a lost response does not mean the operation failed.
type Client struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for read methods.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client for the endpoint URL.
func NewClient(endpoint string, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call performs a JSON-RPC call. When retry is set, transport failures are
// retried with exponential backoff. RPC errors are never retried.
func (c *Client) call(ctx context.Context, method string, params, result any, retry bool) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	id, err := json.Marshal(c.requestID.Add(1))
	if err != nil {
		return fmt.Errorf("marshal id: %w", err)
	}
	body, err := json.Marshal(Request{
		JSONRPC: Version,
		ID:      id,
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	attempts := 1
	if retry {
		attempts += c.maxRetries
	}
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp Response
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}
		if rpcResp.Error != nil {
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	if attempts == 1 {
		return fmt.Errorf("%s: %w", method, lastErr)
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) receipt(ctx context.Context, method string, params any) (*ReceiptView, error) {
	var out ReceiptView
	if err := c.call(ctx, method, params, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Issue creates a new asset.
func (c *Client) Issue(ctx context.Context, p IssueParams) (*IssueResultView, error) {
	var out IssueResultView
	if err := c.call(ctx, "issue", p, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// OpenAccount creates an empty token account.
func (c *Client) OpenAccount(ctx context.Context, p OpenAccountParams) (*OpenAccountResultView, error) {
	var out OpenAccountResultView
	if err := c.call(ctx, "openAccount", p, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transfer moves funds between accounts.
func (c *Client) Transfer(ctx context.Context, p TransferParams) (*ReceiptView, error) {
	return c.receipt(ctx, "transfer", p)
}

// Burn destroys units held by an account.
func (c *Client) Burn(ctx context.Context, p BurnParams) (*ReceiptView, error) {
	return c.receipt(ctx, "burn", p)
}

// MintTo issues new units.
func (c *Client) MintTo(ctx context.Context, p MintToParams) (*ReceiptView, error) {
	return c.receipt(ctx, "mintTo", p)
}

// Freeze freezes an account.
func (c *Client) Freeze(ctx context.Context, p FreezeParams) (*ReceiptView, error) {
	return c.receipt(ctx, "freeze", p)
}

// Thaw thaws an account.
func (c *Client) Thaw(ctx context.Context, p FreezeParams) (*ReceiptView, error) {
	return c.receipt(ctx, "thaw", p)
}

// Approve sets a delegate.
func (c *Client) Approve(ctx context.Context, p ApproveParams) (*ReceiptView, error) {
	return c.receipt(ctx, "approve", p)
}

// Revoke clears a delegate.
func (c *Client) Revoke(ctx context.Context, p RevokeParams) (*ReceiptView, error) {
	return c.receipt(ctx, "revoke", p)
}

// CloseAccount destroys a token account.
func (c *Client) CloseAccount(ctx context.Context, p CloseAccountParams) (*ReceiptView, error) {
	return c.receipt(ctx, "closeAccount", p)
}

// SetAuthority rotates or clears an authority.
func (c *Client) SetAuthority(ctx context.Context, p SetAuthorityParams) (*ReceiptView, error) {
	return c.receipt(ctx, "setAuthority", p)
}

// UpdateMetadata edits a metadata record.
func (c *Client) UpdateMetadata(ctx context.Context, p UpdateMetadataParams) (*ReceiptView, error) {
	return c.receipt(ctx, "updateMetadata", p)
}

// UpdateSupplyCap changes the issuance cap.
func (c *Client) UpdateSupplyCap(ctx context.Context, p UpdateSupplyCapParams) (*ReceiptView, error) {
	return c.receipt(ctx, "updateSupplyCap", p)
}

// GetMint retrieves a mint.
func (c *Client) GetMint(ctx context.Context, address string) (*MintView, error) {
	var out MintView
	if err := c.call(ctx, "getMint", AddressParams{Address: address}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTokenAccount retrieves a token account.
func (c *Client) GetTokenAccount(ctx context.Context, address string) (*TokenAccountView, error) {
	var out TokenAccountView
	if err := c.call(ctx, "getTokenAccount", AddressParams{Address: address}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMetadata retrieves the metadata of a mint.
func (c *Client) GetMetadata(ctx context.Context, mint string) (*MetadataView, error) {
	var out MetadataView
	if err := c.call(ctx, "getMetadata", MintParams{Mint: mint}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSupplyCap retrieves the supply cap of a mint.
func (c *Client) GetSupplyCap(ctx context.Context, mint string) (*SupplyCapView, error) {
	var out SupplyCapView
	if err := c.call(ctx, "getSupplyCap", MintParams{Mint: mint}, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTokenAccountsByOwner lists the accounts of an owner.
func (c *Client) GetTokenAccountsByOwner(ctx context.Context, owner string) ([]*TokenAccountView, error) {
	var out []*TokenAccountView
	if err := c.call(ctx, "getTokenAccountsByOwner", OwnerParams{Owner: owner}, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEvents queries the operation journal.
func (c *Client) GetEvents(ctx context.Context, p EventsParams) ([]*EventView, error) {
	var out []*EventView
	if err := c.call(ctx, "getEvents", p, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}
