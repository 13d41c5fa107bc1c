package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"solana-token-craft/internal/address"
	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/rpc"
)

func issueCmd(c *cli) *cobra.Command {
	var p rpc.IssueParams
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Create a mint with its owner account, metadata and supply cap",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p.Signed = c.signed()
			out, err := c.client().Issue(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Owner, "owner", "", "Owner identity")
	cmd.Flags().StringVar(&p.Name, "name", "", "Token name")
	cmd.Flags().StringVar(&p.Symbol, "symbol", "", "Token symbol")
	cmd.Flags().StringVar(&p.URI, "uri", "", "Metadata URI")
	markRequired(cmd, "owner", "name", "symbol")
	return cmd
}

func openAccountCmd(c *cli) *cobra.Command {
	var p rpc.OpenAccountParams
	cmd := &cobra.Command{
		Use:   "open-account",
		Short: "Create the associated token account of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p.Signed = c.signed()
			out, err := c.client().OpenAccount(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Owner, "owner", "", "Account owner")
	cmd.Flags().StringVar(&p.Mint, "mint", "", "Mint address")
	markRequired(cmd, "owner", "mint")
	return cmd
}

func transferCmd(c *cli) *cobra.Command {
	var (
		p      rpc.TransferParams
		amount amountFlag
	)
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move units between two accounts of the same mint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := c.client()
			n, err := amount.resolve(accountDecimals(cmd.Context(), client, p.From))
			if err != nil {
				return err
			}
			p.Signed, p.Amount = c.signed(), n
			out, err := client.Transfer(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.From, "from", "", "Source account")
	cmd.Flags().StringVar(&p.To, "to", "", "Destination account")
	amount.register(cmd)
	markRequired(cmd, "from", "to")
	return cmd
}

func burnCmd(c *cli) *cobra.Command {
	var (
		p      rpc.BurnParams
		amount amountFlag
	)
	cmd := &cobra.Command{
		Use:   "burn",
		Short: "Destroy units held by an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := c.client()
			n, err := amount.resolve(mintDecimals(cmd.Context(), client, p.Mint))
			if err != nil {
				return err
			}
			p.Signed, p.Amount = c.signed(), n
			out, err := client.Burn(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Account, "account", "", "Token account")
	cmd.Flags().StringVar(&p.Mint, "mint", "", "Mint address")
	amount.register(cmd)
	markRequired(cmd, "account", "mint")
	return cmd
}

func mintToCmd(c *cli) *cobra.Command {
	var (
		p      rpc.MintToParams
		amount amountFlag
	)
	cmd := &cobra.Command{
		Use:   "mint-to",
		Short: "Issue new units into an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := c.client()
			n, err := amount.resolve(mintDecimals(cmd.Context(), client, p.Mint))
			if err != nil {
				return err
			}
			p.Signed, p.Amount = c.signed(), n
			out, err := client.MintTo(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Mint, "mint", "", "Mint address")
	cmd.Flags().StringVar(&p.Destination, "destination", "", "Destination account")
	amount.register(cmd)
	markRequired(cmd, "mint", "destination")
	return cmd
}

// freezeCmd builds freeze, or thaw when freeze is false.
func freezeCmd(c *cli, freeze bool) *cobra.Command {
	var p rpc.FreezeParams
	use, short := "thaw", "Thaw a frozen account"
	if freeze {
		use, short = "freeze", "Freeze an account"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p.Signed = c.signed()
			client := c.client()
			var (
				out *rpc.ReceiptView
				err error
			)
			if freeze {
				out, err = client.Freeze(cmd.Context(), p)
			} else {
				out, err = client.Thaw(cmd.Context(), p)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Account, "account", "", "Token account")
	cmd.Flags().StringVar(&p.Mint, "mint", "", "Mint address")
	markRequired(cmd, "account", "mint")
	return cmd
}

func approveCmd(c *cli) *cobra.Command {
	var (
		p      rpc.ApproveParams
		amount amountFlag
	)
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Allow a delegate to spend from an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := c.client()
			n, err := amount.resolve(accountDecimals(cmd.Context(), client, p.Account))
			if err != nil {
				return err
			}
			p.Signed, p.Amount = c.signed(), n
			out, err := client.Approve(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Account, "account", "", "Token account")
	cmd.Flags().StringVar(&p.Delegate, "delegate", "", "Delegate identity")
	amount.register(cmd)
	markRequired(cmd, "account", "delegate")
	return cmd
}

func revokeCmd(c *cli) *cobra.Command {
	var p rpc.RevokeParams
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Clear the delegate of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p.Signed = c.signed()
			out, err := c.client().Revoke(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Account, "account", "", "Token account")
	markRequired(cmd, "account")
	return cmd
}

func closeCmd(c *cli) *cobra.Command {
	var p rpc.CloseAccountParams
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a token account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p.Signed = c.signed()
			out, err := c.client().CloseAccount(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Account, "account", "", "Token account")
	cmd.Flags().StringVar(&p.Destination, "destination", "", "Identity receiving the reclaimed deposit (default: owner)")
	markRequired(cmd, "account")
	return cmd
}

func setAuthorityCmd(c *cli) *cobra.Command {
	var (
		p        rpc.SetAuthorityParams
		kind     string
		newAuth  string
		clearAll bool
	)
	cmd := &cobra.Command{
		Use:   "set-authority",
		Short: "Rotate or clear an authority of a mint",
		Long: "Rotate or clear one authority of a mint.\n\nTypes: MINT_TOKENS, FREEZE_ACCOUNT, METADATA_UPDATE, SUPPLY_CAP.\n" +
			"Clearing MINT_TOKENS is permanent.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := domain.ParseAuthorityType(kind)
			if err != nil {
				return err
			}
			switch {
			case clearAll && newAuth != "":
				return fmt.Errorf("--new and --clear are mutually exclusive")
			case !clearAll && newAuth == "":
				return fmt.Errorf("one of --new or --clear is required")
			case !clearAll:
				p.NewAuthority = &newAuth
			}
			p.Signed, p.AuthorityType = c.signed(), t.String()
			out, err := c.client().SetAuthority(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Mint, "mint", "", "Mint address")
	cmd.Flags().StringVar(&kind, "type", "", "Authority type")
	cmd.Flags().StringVar(&newAuth, "new", "", "New authority identity")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Clear the authority")
	markRequired(cmd, "mint", "type")
	return cmd
}

func updateMetadataCmd(c *cli) *cobra.Command {
	var (
		p          rpc.UpdateMetadataParams
		creators   []string
		collection string
		immutable  bool
	)
	cmd := &cobra.Command{
		Use:   "update-metadata",
		Short: "Edit the metadata record of a mint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("name") {
				v, _ := flags.GetString("name")
				p.Name = &v
			}
			if flags.Changed("symbol") {
				v, _ := flags.GetString("symbol")
				p.Symbol = &v
			}
			if flags.Changed("uri") {
				v, _ := flags.GetString("uri")
				p.URI = &v
			}
			if flags.Changed("seller-fee-bps") {
				v, _ := flags.GetUint16("seller-fee-bps")
				p.SellerFeeBasisPoints = &v
			}
			if flags.Changed("creator") {
				list := make([]rpc.CreatorView, 0, len(creators))
				for _, s := range creators {
					cr, err := parseCreator(s)
					if err != nil {
						return err
					}
					list = append(list, cr)
				}
				p.Creators = &list
			}
			if flags.Changed("collection") {
				p.Collection = &rpc.CollectionView{Key: collection}
			}
			if immutable {
				f := false
				p.IsMutable = &f
			}

			p.Signed = c.signed()
			out, err := c.client().UpdateMetadata(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Mint, "mint", "", "Mint address")
	cmd.Flags().String("name", "", "New name")
	cmd.Flags().String("symbol", "", "New symbol")
	cmd.Flags().String("uri", "", "New URI")
	cmd.Flags().Uint16("seller-fee-bps", 0, "Seller fee in basis points")
	cmd.Flags().StringArrayVar(&creators, "creator", nil, "Creator as ADDRESS:SHARE (repeatable, replaces the list)")
	cmd.Flags().StringVar(&collection, "collection", "", "Collection mint address, empty to unlink")
	cmd.Flags().BoolVar(&immutable, "immutable", false, "Make the metadata permanently immutable")
	markRequired(cmd, "mint")
	return cmd
}

func updateSupplyCapCmd(c *cli) *cobra.Command {
	var (
		p         rpc.UpdateSupplyCapParams
		maxSupply uint64
		uncap     bool
	)
	cmd := &cobra.Command{
		Use:   "update-supply-cap",
		Short: "Change or remove the issuance cap of a mint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hasMax := cmd.Flags().Changed("max")
			if hasMax == uncap {
				return fmt.Errorf("exactly one of --max or --uncap is required")
			}
			if hasMax {
				p.MaxSupply = &maxSupply
			}
			p.Signed = c.signed()
			out, err := c.client().UpdateSupplyCap(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Mint, "mint", "", "Mint address")
	cmd.Flags().Uint64Var(&maxSupply, "max", 0, "Maximum supply in base units")
	cmd.Flags().BoolVar(&uncap, "uncap", false, "Remove the cap")
	markRequired(cmd, "mint")
	return cmd
}

func accountCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "account ADDRESS",
		Short: "Show a token account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.client().GetTokenAccount(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func accountsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts OWNER",
		Short: "List the token accounts of an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.client().GetTokenAccountsByOwner(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func mintCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mint ADDRESS",
		Short: "Show a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.client().GetMint(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func metadataCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata MINT",
		Short: "Show the metadata of a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.client().GetMetadata(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func supplyCapCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "supply-cap MINT",
		Short: "Show the supply cap of a mint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := c.client().GetSupplyCap(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
}

func eventsCmd(c *cli) *cobra.Command {
	var p rpc.EventsParams
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the operation journal",
		Long:  "Query the operation journal by --mint, --account (both to intersect) or a --start/--end time range in unix milliseconds.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := c.client().GetEvents(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}
	cmd.Flags().StringVar(&p.Mint, "mint", "", "Mint address")
	cmd.Flags().StringVar(&p.Account, "account", "", "Account address")
	cmd.Flags().Int64Var(&p.Start, "start", 0, "Range start, unix milliseconds")
	cmd.Flags().Int64Var(&p.End, "end", 0, "Range end, unix milliseconds")
	return cmd
}

// addressCmd derives addresses locally without contacting the server.
func addressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Derive ledger addresses",
	}

	var programID, owner, symbol, mint string
	slots := &cobra.Command{
		Use:   "issue",
		Short: "Derive the four addresses an issuance occupies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := address.IssuanceSlots(programID, owner, symbol)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"mint":         s.Mint,
				"tokenAccount": s.TokenAccount,
				"metadata":     s.Metadata,
				"supplyCap":    s.SupplyCap,
			})
		},
	}
	slots.Flags().StringVar(&programID, "program-id", address.CraftProgramID, "Program identifier")
	slots.Flags().StringVar(&owner, "owner", "", "Owner identity")
	slots.Flags().StringVar(&symbol, "symbol", "", "Token symbol")
	markRequired(slots, "owner", "symbol")

	ata := &cobra.Command{
		Use:   "account",
		Short: "Derive the associated token account of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := address.AssociatedTokenAddress(owner, mint)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{"address": a})
		},
	}
	ata.Flags().StringVar(&owner, "owner", "", "Owner identity")
	ata.Flags().StringVar(&mint, "mint", "", "Mint address")
	markRequired(ata, "owner", "mint")

	cmd.AddCommand(slots, ata)
	return cmd
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
