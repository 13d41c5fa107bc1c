package ledger

import (
	"context"
	"fmt"
	"math/bits"
	"strings"

	"solana-token-craft/internal/address"
	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/storage"
)

// IssueRequest creates a new asset owned by Owner.
type IssueRequest struct {
	Name   string `validate:"required,maxbytes=32"`
	Symbol string `validate:"required,maxbytes=10"`
	URI    string `validate:"maxbytes=200"`
	Owner  string `validate:"required,pubkey"`
}

// IssueResult holds the addresses of the four issuance records.
type IssueResult struct {
	address.Slots
	Receipt
}

// Issue creates the mint, the owner's token account holding the starting
// supply, the metadata record and the supply cap, all or none.
func (p *Program) Issue(ctx context.Context, signers Signers, req IssueRequest) (*IssueResult, error) {
	const op = "issue"
	var slots address.Slots

	receipt, err := p.execute(ctx, domain.OpIssue, req, func(tx storage.Txn, now int64, fx *effect) error {
		var err error
		slots, err = address.IssuanceSlots(p.programID, req.Owner, req.Symbol)
		if err != nil {
			return &Error{Op: op, Kind: KindInvalidArgument, Detail: "derive issuance addresses", Err: err}
		}
		if err := requireOwner(op, signers, req.Owner, "issuance"); err != nil {
			return err
		}

		owner := req.Owner
		if err := tx.InsertMint(ctx, &domain.Mint{
			Address:         slots.Mint,
			Decimals:        p.decimals,
			MintAuthority:   &owner,
			FreezeAuthority: &owner,
			Supply:          p.startingSupply,
			CreatedAt:       now,
		}); err != nil {
			return fromStorage(op, "mint "+slots.Mint, err)
		}
		if err := tx.InsertTokenAccount(ctx, &domain.TokenAccount{
			Address:   slots.TokenAccount,
			Mint:      slots.Mint,
			Owner:     owner,
			CreatedAt: now,
		}); err != nil {
			return fromStorage(op, "token account "+slots.TokenAccount, err)
		}
		if err := tx.Credit(ctx, slots.TokenAccount, p.startingSupply); err != nil {
			return fromStorage(op, "token account "+slots.TokenAccount, err)
		}
		if err := tx.InsertMetadata(ctx, &domain.MetadataRecord{
			Address:         slots.Metadata,
			Mint:            slots.Mint,
			Name:            req.Name,
			Symbol:          req.Symbol,
			URI:             req.URI,
			UpdateAuthority: &owner,
			IsMutable:       true,
			CreatedAt:       now,
		}); err != nil {
			return fromStorage(op, "metadata "+slots.Metadata, err)
		}
		noFurtherIssuance := uint64(0)
		if err := tx.InsertSupplyCap(ctx, &domain.SupplyCapRecord{
			Address:         slots.SupplyCap,
			Mint:            slots.Mint,
			MaxSupply:       &noFurtherIssuance,
			UpdateAuthority: &owner,
			CreatedAt:       now,
		}); err != nil {
			return fromStorage(op, "supply cap "+slots.SupplyCap, err)
		}

		fx.event.Mint = slots.Mint
		fx.event.Accounts = []string{slots.Mint, slots.TokenAccount, slots.Metadata, slots.SupplyCap}
		fx.event.Authority = owner
		fx.event.Amount = p.startingSupply
		fx.event.Detail = req.Symbol
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &IssueResult{Slots: slots, Receipt: *receipt}, nil
}

// OpenAccountRequest creates Owner's associated token account for Mint.
type OpenAccountRequest struct {
	Owner string `validate:"required,pubkey"`
	Mint  string `validate:"required,pubkey"`
}

// OpenAccountResult holds the new account address.
type OpenAccountResult struct {
	Address string
	Receipt
}

// OpenAccount creates an empty token account. Anyone may pay for it, so no
// signature is required.
func (p *Program) OpenAccount(ctx context.Context, _ Signers, req OpenAccountRequest) (*OpenAccountResult, error) {
	const op = "open_account"
	var account string

	receipt, err := p.execute(ctx, domain.OpOpenAccount, req, func(tx storage.Txn, now int64, fx *effect) error {
		var err error
		account, err = address.AssociatedTokenAddress(req.Owner, req.Mint)
		if err != nil {
			return &Error{Op: op, Kind: KindInvalidArgument, Detail: "derive token account address", Err: err}
		}
		if _, err := tx.GetMint(ctx, req.Mint); err != nil {
			return fromStorage(op, "mint "+req.Mint, err)
		}
		if err := tx.InsertTokenAccount(ctx, &domain.TokenAccount{
			Address:   account,
			Mint:      req.Mint,
			Owner:     req.Owner,
			CreatedAt: now,
		}); err != nil {
			return fromStorage(op, "token account "+account, err)
		}

		fx.event.Mint = req.Mint
		fx.event.Accounts = []string{account}
		fx.event.Detail = "owner " + req.Owner
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &OpenAccountResult{Address: account, Receipt: *receipt}, nil
}

// CloseRequest destroys a token account. An empty Destination credits the owner.
type CloseRequest struct {
	Account     string `validate:"required,pubkey"`
	Destination string `validate:"omitempty,pubkey"`
}

// Close destroys a token account and returns its storage credit to the
// destination. A non-zero balance is rejected unless the program was built
// with WithLenientClose, in which case it is burned.
func (p *Program) Close(ctx context.Context, signers Signers, req CloseRequest) (*Receipt, error) {
	const op = "close_account"

	return p.execute(ctx, domain.OpCloseAccount, req, func(tx storage.Txn, _ int64, fx *effect) error {
		if req.Destination == req.Account {
			return reject(op, KindInvalidArgument, "destination must differ from the closed account")
		}

		account, err := tx.GetTokenAccount(ctx, req.Account)
		if err != nil {
			return fromStorage(op, "token account "+req.Account, err)
		}
		if err := requireOwner(op, signers, account.Owner, "token account"); err != nil {
			return err
		}
		if err := requireActive(op, account); err != nil {
			return err
		}

		destination := req.Destination
		if destination == "" {
			destination = account.Owner
		}

		burned := account.Amount
		if burned > 0 {
			if !p.lenientClose {
				return reject(op, KindNonZeroBalance, "token account %s still holds %d", account.Address, burned)
			}
			if err := tx.Debit(ctx, account.Address, burned); err != nil {
				return fromStorage(op, "token account "+account.Address, err)
			}
			if err := tx.DebitSupply(ctx, account.Mint, burned); err != nil {
				return fromStorage(op, "mint "+account.Mint, err)
			}
		}

		if err := tx.Destroy(ctx, domain.RecordTokenAccount, account.Address, destination); err != nil {
			return fromStorage(op, "token account "+account.Address, err)
		}

		fx.event.Mint = account.Mint
		fx.event.Accounts = []string{account.Address, destination}
		fx.event.Authority = account.Owner
		fx.event.Amount = burned
		fx.event.Detail = "credit to " + destination
		return nil
	})
}

// SetAuthorityRequest rotates one authority field of a mint's records.
// A nil NewAuthority clears the field.
type SetAuthorityRequest struct {
	Mint          string `validate:"required,pubkey"`
	AuthorityType domain.AuthorityType
	NewAuthority  *string `validate:"omitempty,pubkey"`
}

// SetAuthority rotates the field named by AuthorityType. The current holder
// must sign. A cleared field cannot be set again.
func (p *Program) SetAuthority(ctx context.Context, signers Signers, req SetAuthorityRequest) (*Receipt, error) {
	const op = "set_authority"

	return p.execute(ctx, domain.OpSetAuthority, req, func(tx storage.Txn, _ int64, fx *effect) error {
		if !req.AuthorityType.IsValid() {
			return reject(op, KindInvalidAuthority, "unrecognized authority type %d", uint8(req.AuthorityType))
		}

		var (
			record string
			holder string
			err    error
		)
		switch req.AuthorityType {
		case domain.AuthorityMintTokens, domain.AuthorityFreezeAccount:
			record, holder, err = p.rotateMintAuthority(ctx, tx, signers, req)
		case domain.AuthorityMetadataUpdate:
			record, holder, err = p.rotateMetadataAuthority(ctx, tx, signers, req)
		case domain.AuthoritySupplyCap:
			record, holder, err = p.rotateSupplyCapAuthority(ctx, tx, signers, req)
		}
		if err != nil {
			return err
		}

		next := "none"
		if req.NewAuthority != nil {
			next = *req.NewAuthority
		}
		fx.event.Mint = req.Mint
		fx.event.Accounts = []string{record}
		fx.event.Authority = holder
		fx.event.Detail = fmt.Sprintf("%s -> %s", req.AuthorityType, next)
		return nil
	})
}

func (p *Program) rotateMintAuthority(ctx context.Context, tx storage.Txn, signers Signers, req SetAuthorityRequest) (string, string, error) {
	const op = "set_authority"

	mint, err := tx.GetMint(ctx, req.Mint)
	if err != nil {
		return "", "", fromStorage(op, "mint "+req.Mint, err)
	}

	field, name := &mint.MintAuthority, "mint authority"
	if req.AuthorityType == domain.AuthorityFreezeAccount {
		field, name = &mint.FreezeAuthority, "freeze authority"
	}
	holder, err := requireAuthority(op, signers, *field, name)
	if err != nil {
		return "", "", err
	}

	*field = req.NewAuthority
	if err := tx.UpdateMint(ctx, mint); err != nil {
		return "", "", fromStorage(op, "mint "+mint.Address, err)
	}
	return mint.Address, holder, nil
}

func (p *Program) rotateMetadataAuthority(ctx context.Context, tx storage.Txn, signers Signers, req SetAuthorityRequest) (string, string, error) {
	const op = "set_authority"

	md, err := loadMetadata(ctx, tx, op, req.Mint)
	if err != nil {
		return "", "", err
	}
	holder, err := requireAuthority(op, signers, md.UpdateAuthority, "metadata update authority")
	if err != nil {
		return "", "", err
	}
	if !md.IsMutable {
		return "", "", reject(op, KindImmutable, "metadata %s is immutable", md.Address)
	}

	md.UpdateAuthority = req.NewAuthority
	if err := tx.UpdateMetadata(ctx, md); err != nil {
		return "", "", fromStorage(op, "metadata "+md.Address, err)
	}
	return md.Address, holder, nil
}

func (p *Program) rotateSupplyCapAuthority(ctx context.Context, tx storage.Txn, signers Signers, req SetAuthorityRequest) (string, string, error) {
	const op = "set_authority"

	capRec, err := loadSupplyCap(ctx, tx, op, req.Mint)
	if err != nil {
		return "", "", err
	}
	holder, err := requireAuthority(op, signers, capRec.UpdateAuthority, "supply cap authority")
	if err != nil {
		return "", "", err
	}

	capRec.UpdateAuthority = req.NewAuthority
	if err := tx.UpdateSupplyCap(ctx, capRec); err != nil {
		return "", "", fromStorage(op, "supply cap "+capRec.Address, err)
	}
	return capRec.Address, holder, nil
}

func loadMetadata(ctx context.Context, r storage.Reader, op, mint string) (*domain.MetadataRecord, error) {
	addr, err := address.MetadataAddress(mint)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindInvalidArgument, Detail: "derive metadata address", Err: err}
	}
	md, err := r.GetMetadata(ctx, addr)
	if err != nil {
		return nil, fromStorage(op, "metadata of mint "+mint, err)
	}
	return md, nil
}

func loadSupplyCap(ctx context.Context, r storage.Reader, op, mint string) (*domain.SupplyCapRecord, error) {
	addr, err := address.SupplyCapAddress(mint)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindInvalidArgument, Detail: "derive supply cap address", Err: err}
	}
	c, err := r.GetSupplyCap(ctx, addr)
	if err != nil {
		return nil, fromStorage(op, "supply cap of mint "+mint, err)
	}
	return c, nil
}

// MintToRequest issues Amount new units into Destination.
type MintToRequest struct {
	Mint        string `validate:"required,pubkey"`
	Destination string `validate:"required,pubkey"`
	Amount      uint64 `validate:"gt=0"`
}

// MintTo issues new units within the mint's supply cap.
func (p *Program) MintTo(ctx context.Context, signers Signers, req MintToRequest) (*Receipt, error) {
	const op = "mint_to"

	return p.execute(ctx, domain.OpMintTo, req, func(tx storage.Txn, _ int64, fx *effect) error {
		mint, err := tx.GetMint(ctx, req.Mint)
		if err != nil {
			return fromStorage(op, "mint "+req.Mint, err)
		}
		dest, err := tx.GetTokenAccount(ctx, req.Destination)
		if err != nil {
			return fromStorage(op, "token account "+req.Destination, err)
		}
		capRec, err := loadSupplyCap(ctx, tx, op, req.Mint)
		if err != nil {
			return err
		}

		holder, err := requireAuthority(op, signers, mint.MintAuthority, "mint authority")
		if err != nil {
			return err
		}
		if err := requireActive(op, dest); err != nil {
			return err
		}
		if err := requireSameMint(op, mint.Address, dest); err != nil {
			return err
		}

		if remaining, capped := capRec.Remaining(); capped && req.Amount > remaining {
			return reject(op, KindSupplyCapExceeded, "%d requested, %d left under the cap", req.Amount, remaining)
		}
		minted, carry := bits.Add64(capRec.Minted, req.Amount, 0)
		if carry != 0 {
			return reject(op, KindOverflow, "minted total would exceed the amount range")
		}

		if err := tx.CreditSupply(ctx, mint.Address, req.Amount); err != nil {
			return fromStorage(op, "mint "+mint.Address, err)
		}
		if err := tx.Credit(ctx, dest.Address, req.Amount); err != nil {
			return fromStorage(op, "token account "+dest.Address, err)
		}
		capRec.Minted = minted
		if err := tx.UpdateSupplyCap(ctx, capRec); err != nil {
			return fromStorage(op, "supply cap "+capRec.Address, err)
		}

		fx.event.Mint = mint.Address
		fx.event.Accounts = []string{dest.Address, mint.Address}
		fx.event.Authority = holder
		fx.event.Amount = req.Amount
		return nil
	})
}

// UpdateMetadataRequest changes the fields that are set.
// Creators replaces the whole list; an empty list removes it.
// Collection with an empty Key removes the collection link.
type UpdateMetadataRequest struct {
	Mint                 string  `validate:"required,pubkey"`
	Name                 *string `validate:"omitnil,min=1,maxbytes=32"`
	Symbol               *string `validate:"omitnil,min=1,maxbytes=10"`
	URI                  *string `validate:"omitnil,maxbytes=200"`
	SellerFeeBasisPoints *uint16 `validate:"omitnil,max=10000"`
	Creators             *[]domain.Creator
	Collection           *domain.Collection
	IsMutable            *bool
}

// UpdateMetadata edits a mutable metadata record. Clearing IsMutable is final.
// A creator is marked verified only when that creator signed the request,
// and a collection only when its key signed. A request that sets nothing
// leaves the record untouched.
func (p *Program) UpdateMetadata(ctx context.Context, signers Signers, req UpdateMetadataRequest) (*Receipt, error) {
	const op = "update_metadata"

	return p.execute(ctx, domain.OpUpdateMetadata, req, func(tx storage.Txn, _ int64, fx *effect) error {
		var creators []domain.Creator
		if req.Creators != nil {
			var err error
			if creators, err = checkCreators(op, *req.Creators, signers); err != nil {
				return err
			}
		}
		var collection *domain.Collection
		if req.Collection != nil {
			var err error
			if collection, err = checkCollection(op, *req.Collection, signers); err != nil {
				return err
			}
		}

		md, err := loadMetadata(ctx, tx, op, req.Mint)
		if err != nil {
			return err
		}
		holder, err := requireAuthority(op, signers, md.UpdateAuthority, "metadata update authority")
		if err != nil {
			return err
		}
		if !md.IsMutable {
			return reject(op, KindImmutable, "metadata %s is immutable", md.Address)
		}

		var changed []string
		if req.Name != nil {
			md.Name = *req.Name
			changed = append(changed, "name")
		}
		if req.Symbol != nil {
			md.Symbol = *req.Symbol
			changed = append(changed, "symbol")
		}
		if req.URI != nil {
			md.URI = *req.URI
			changed = append(changed, "uri")
		}
		if req.SellerFeeBasisPoints != nil {
			md.SellerFeeBasisPoints = *req.SellerFeeBasisPoints
			changed = append(changed, "seller_fee_basis_points")
		}
		if req.Creators != nil {
			md.Creators = creators
			changed = append(changed, "creators")
		}
		if req.Collection != nil {
			md.Collection = collection
			changed = append(changed, "collection")
		}
		if req.IsMutable != nil {
			md.IsMutable = *req.IsMutable
			changed = append(changed, "is_mutable")
		}
		if len(changed) == 0 {
			fx.unchanged = true
			return nil
		}

		if err := tx.UpdateMetadata(ctx, md); err != nil {
			return fromStorage(op, "metadata "+md.Address, err)
		}

		fx.event.Mint = md.Mint
		fx.event.Accounts = []string{md.Address}
		fx.event.Authority = holder
		fx.event.Detail = strings.Join(changed, ",")
		return nil
	})
}

// checkCollection validates a collection link and sets Verified from the signers.
func checkCollection(op string, in domain.Collection, signers Signers) (*domain.Collection, error) {
	if in.Key == "" {
		return nil, nil
	}
	if !address.IsValid(in.Key) {
		return nil, reject(op, KindInvalidArgument, "collection key is not a valid address")
	}
	return &domain.Collection{Key: in.Key, Verified: signers.Has(in.Key)}, nil
}

// checkCreators validates a creator list and sets each Verified flag from the signers.
func checkCreators(op string, in []domain.Creator, signers Signers) ([]domain.Creator, error) {
	if len(in) == 0 {
		return nil, nil
	}
	if len(in) > domain.MaxCreators {
		return nil, reject(op, KindInvalidArgument, "at most %d creators, got %d", domain.MaxCreators, len(in))
	}

	out := make([]domain.Creator, len(in))
	seen := make(map[string]struct{}, len(in))
	total := 0
	for i, c := range in {
		if !address.IsValid(c.Address) {
			return nil, reject(op, KindInvalidArgument, "creator %d has an invalid address", i)
		}
		if _, dup := seen[c.Address]; dup {
			return nil, reject(op, KindInvalidArgument, "creator %s listed twice", c.Address)
		}
		seen[c.Address] = struct{}{}
		total += int(c.Share)
		out[i] = domain.Creator{Address: c.Address, Share: c.Share, Verified: signers.Has(c.Address)}
	}
	if total != 100 {
		return nil, reject(op, KindInvalidArgument, "creator shares sum to %d, want 100", total)
	}
	return out, nil
}

// UpdateSupplyCapRequest sets or removes the issuance cap. A nil MaxSupply uncaps.
type UpdateSupplyCapRequest struct {
	Mint      string `validate:"required,pubkey"`
	MaxSupply *uint64
}

// UpdateSupplyCap changes the cap. It cannot drop below what was already minted.
func (p *Program) UpdateSupplyCap(ctx context.Context, signers Signers, req UpdateSupplyCapRequest) (*Receipt, error) {
	const op = "update_supply_cap"

	return p.execute(ctx, domain.OpUpdateSupplyCap, req, func(tx storage.Txn, _ int64, fx *effect) error {
		capRec, err := loadSupplyCap(ctx, tx, op, req.Mint)
		if err != nil {
			return err
		}
		holder, err := requireAuthority(op, signers, capRec.UpdateAuthority, "supply cap authority")
		if err != nil {
			return err
		}
		if req.MaxSupply != nil && *req.MaxSupply < capRec.Minted {
			return reject(op, KindInvalidArgument, "cap %d is below the %d already minted", *req.MaxSupply, capRec.Minted)
		}

		capRec.MaxSupply = req.MaxSupply
		if err := tx.UpdateSupplyCap(ctx, capRec); err != nil {
			return fromStorage(op, "supply cap "+capRec.Address, err)
		}

		fx.event.Mint = req.Mint
		fx.event.Accounts = []string{capRec.Address}
		fx.event.Authority = holder
		fx.event.Detail = "uncapped"
		if req.MaxSupply != nil {
			fx.event.Detail = fmt.Sprintf("max %d", *req.MaxSupply)
		}
		return nil
	})
}
