package ledger

import (
	"context"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/storage"
)

// TransferRequest moves Amount from one token account to another of the same mint.
type TransferRequest struct {
	From   string `validate:"required,pubkey"`
	To     string `validate:"required,pubkey"`
	Amount uint64
}

// Transfer moves funds between two accounts. The owner of From must sign and
// neither account may be frozen. A transfer to the same account is checked
// like any other and then moves nothing.
func (p *Program) Transfer(ctx context.Context, signers Signers, req TransferRequest) (*Receipt, error) {
	const op = "transfer"

	return p.execute(ctx, domain.OpTransfer, req, func(tx storage.Txn, _ int64, fx *effect) error {
		from, err := tx.GetTokenAccount(ctx, req.From)
		if err != nil {
			return fromStorage(op, "token account "+req.From, err)
		}
		to, err := tx.GetTokenAccount(ctx, req.To)
		if err != nil {
			return fromStorage(op, "token account "+req.To, err)
		}

		if err := requireOwner(op, signers, from.Owner, "source"); err != nil {
			return err
		}
		if err := requireActive(op, from); err != nil {
			return err
		}
		if err := requireActive(op, to); err != nil {
			return err
		}
		if err := requireSameMint(op, from.Mint, to); err != nil {
			return err
		}
		if from.Amount < req.Amount {
			return reject(op, KindInsufficientFunds, "token account %s holds %d, %d requested", from.Address, from.Amount, req.Amount)
		}

		if from.Address == to.Address {
			fx.unchanged = true
			return nil
		}

		if err := tx.Debit(ctx, from.Address, req.Amount); err != nil {
			return fromStorage(op, "token account "+from.Address, err)
		}
		if err := tx.Credit(ctx, to.Address, req.Amount); err != nil {
			return fromStorage(op, "token account "+to.Address, err)
		}

		fx.event.Mint = from.Mint
		fx.event.Accounts = []string{from.Address, to.Address}
		fx.event.Authority = from.Owner
		fx.event.Amount = req.Amount
		return nil
	})
}

// BurnRequest destroys Amount units held by Account.
type BurnRequest struct {
	Account string `validate:"required,pubkey"`
	Mint    string `validate:"required,pubkey"`
	Amount  uint64
}

// Burn removes units from an account and from the mint supply.
func (p *Program) Burn(ctx context.Context, signers Signers, req BurnRequest) (*Receipt, error) {
	const op = "burn"

	return p.execute(ctx, domain.OpBurn, req, func(tx storage.Txn, _ int64, fx *effect) error {
		account, err := tx.GetTokenAccount(ctx, req.Account)
		if err != nil {
			return fromStorage(op, "token account "+req.Account, err)
		}
		if _, err := tx.GetMint(ctx, req.Mint); err != nil {
			return fromStorage(op, "mint "+req.Mint, err)
		}

		if err := requireOwner(op, signers, account.Owner, "token account"); err != nil {
			return err
		}
		if err := requireActive(op, account); err != nil {
			return err
		}
		if err := requireSameMint(op, req.Mint, account); err != nil {
			return err
		}
		if account.Amount < req.Amount {
			return reject(op, KindInsufficientFunds, "token account %s holds %d, %d requested", account.Address, account.Amount, req.Amount)
		}

		if err := tx.Debit(ctx, account.Address, req.Amount); err != nil {
			return fromStorage(op, "token account "+account.Address, err)
		}
		if err := tx.DebitSupply(ctx, req.Mint, req.Amount); err != nil {
			return fromStorage(op, "mint "+req.Mint, err)
		}

		fx.event.Mint = req.Mint
		fx.event.Accounts = []string{account.Address, req.Mint}
		fx.event.Authority = account.Owner
		fx.event.Amount = req.Amount
		return nil
	})
}

// FreezeRequest names the account and the mint whose freeze authority acts.
// Thaw takes the same request.
type FreezeRequest struct {
	Account string `validate:"required,pubkey"`
	Mint    string `validate:"required,pubkey"`
}

// Freeze marks an account frozen. Freezing a frozen account succeeds and writes nothing.
func (p *Program) Freeze(ctx context.Context, signers Signers, req FreezeRequest) (*Receipt, error) {
	return p.setFrozen(ctx, domain.OpFreeze, signers, req, true)
}

// Thaw clears the frozen flag. Thawing an active account succeeds and writes nothing.
func (p *Program) Thaw(ctx context.Context, signers Signers, req FreezeRequest) (*Receipt, error) {
	return p.setFrozen(ctx, domain.OpThaw, signers, req, false)
}

func (p *Program) setFrozen(ctx context.Context, operation domain.Operation, signers Signers, req FreezeRequest, frozen bool) (*Receipt, error) {
	op := operation.String()

	return p.execute(ctx, operation, req, func(tx storage.Txn, _ int64, fx *effect) error {
		account, err := tx.GetTokenAccount(ctx, req.Account)
		if err != nil {
			return fromStorage(op, "token account "+req.Account, err)
		}
		mint, err := tx.GetMint(ctx, req.Mint)
		if err != nil {
			return fromStorage(op, "mint "+req.Mint, err)
		}

		holder, err := requireFreezeAuthority(op, signers, mint)
		if err != nil {
			return err
		}
		if err := requireSameMint(op, mint.Address, account); err != nil {
			return err
		}

		if account.Frozen == frozen {
			fx.unchanged = true
			return nil
		}
		account.Frozen = frozen
		if err := tx.UpdateTokenAccount(ctx, account); err != nil {
			return fromStorage(op, "token account "+account.Address, err)
		}

		fx.event.Mint = mint.Address
		fx.event.Accounts = []string{account.Address}
		fx.event.Authority = holder
		return nil
	})
}

// ApproveRequest lets Delegate move up to Amount from Account.
type ApproveRequest struct {
	Account  string `validate:"required,pubkey"`
	Delegate string `validate:"required,pubkey"`
	Amount   uint64
}

// Approve sets the delegate and its ceiling, replacing any earlier delegation.
// The ceiling is not checked against the balance.
func (p *Program) Approve(ctx context.Context, signers Signers, req ApproveRequest) (*Receipt, error) {
	const op = "approve"

	return p.execute(ctx, domain.OpApprove, req, func(tx storage.Txn, _ int64, fx *effect) error {
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

		delegate := req.Delegate
		account.Delegate = &delegate
		account.DelegatedAmount = req.Amount
		if err := tx.UpdateTokenAccount(ctx, account); err != nil {
			return fromStorage(op, "token account "+account.Address, err)
		}

		fx.event.Mint = account.Mint
		fx.event.Accounts = []string{account.Address}
		fx.event.Authority = account.Owner
		fx.event.Amount = req.Amount
		fx.event.Detail = "delegate " + delegate
		return nil
	})
}

// RevokeRequest clears the delegation on Account.
type RevokeRequest struct {
	Account string `validate:"required,pubkey"`
}

// Revoke clears the delegate and its ceiling. It is accepted on frozen
// accounts and succeeds without a write when nothing is delegated.
func (p *Program) Revoke(ctx context.Context, signers Signers, req RevokeRequest) (*Receipt, error) {
	const op = "revoke"

	return p.execute(ctx, domain.OpRevoke, req, func(tx storage.Txn, _ int64, fx *effect) error {
		account, err := tx.GetTokenAccount(ctx, req.Account)
		if err != nil {
			return fromStorage(op, "token account "+req.Account, err)
		}
		if err := requireOwner(op, signers, account.Owner, "token account"); err != nil {
			return err
		}

		if !account.HasDelegate() && account.DelegatedAmount == 0 {
			fx.unchanged = true
			return nil
		}
		account.ClearDelegate()
		if err := tx.UpdateTokenAccount(ctx, account); err != nil {
			return fromStorage(op, "token account "+account.Address, err)
		}

		fx.event.Mint = account.Mint
		fx.event.Accounts = []string{account.Address}
		fx.event.Authority = account.Owner
		return nil
	})
}
