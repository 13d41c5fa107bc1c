// Command craft is a command line client for the token ledger JSON-RPC API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"solana-token-craft/internal/domain"
	"solana-token-craft/internal/rpc"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the persistent flags shared by every subcommand.
type cli struct {
	URL     string
	Signers []string
	Timeout time.Duration
	Retries int
}

func (c *cli) client() *rpc.Client {
	return rpc.NewClient(c.URL, rpc.WithTimeout(c.Timeout), rpc.WithMaxRetries(c.Retries))
}

func (c *cli) signed() rpc.Signed {
	return rpc.Signed{Signers: c.Signers}
}

func newRootCmd() *cobra.Command {
	c := new(cli)

	root := &cobra.Command{
		Use:           "craft",
		Short:         "Token ledger client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.URL, "url", "u", envOr("CRAFT_URL", "http://localhost:8899/rpc"), "JSON-RPC endpoint")
	root.PersistentFlags().StringSliceVarP(&c.Signers, "signer", "s", nil, "Identity that signs the request (repeatable)")
	root.PersistentFlags().DurationVar(&c.Timeout, "timeout", 30*time.Second, "Request timeout")
	root.PersistentFlags().IntVar(&c.Retries, "retries", 3, "Retries for read requests")

	root.AddCommand(
		issueCmd(c),
		openAccountCmd(c),
		transferCmd(c),
		burnCmd(c),
		mintToCmd(c),
		freezeCmd(c, true),
		freezeCmd(c, false),
		approveCmd(c),
		revokeCmd(c),
		closeCmd(c),
		setAuthorityCmd(c),
		updateMetadataCmd(c),
		updateSupplyCapCmd(c),
		accountCmd(c),
		accountsCmd(c),
		mintCmd(c),
		metadataCmd(c),
		supplyCapCmd(c),
		eventsCmd(c),
		addressCmd(),
	)

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w\nSee '%s --help'", err, cmd.CommandPath())
	})
	wrapErrors(root)
	return root
}

// wrapErrors prints RunE failures on the command's error stream.
func wrapErrors(cmd *cobra.Command) {
	for _, sub := range cmd.Commands() {
		wrapErrors(sub)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if err != nil {
			cmd.PrintErrf("Error: %v\n", err)
		}
		return err
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// amountFlag accepts base units, or a decimal amount when UI is set.
type amountFlag struct {
	Raw string
	UI  bool
}

func (a *amountFlag) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.Raw, "amount", "", "Amount in base units")
	cmd.Flags().BoolVar(&a.UI, "ui", false, "Interpret --amount as a decimal amount in mint precision")
	_ = cmd.MarkFlagRequired("amount")
}

// resolve converts the flag value; decimals is only consulted for UI amounts.
func (a *amountFlag) resolve(decimals func() (uint8, error)) (uint64, error) {
	if !a.UI {
		n, err := strconv.ParseUint(a.Raw, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid amount %q: %w", a.Raw, err)
		}
		return n, nil
	}
	d, err := decimals()
	if err != nil {
		return 0, err
	}
	return domain.ParseAmount(a.Raw, d)
}

func accountDecimals(ctx context.Context, client *rpc.Client, account string) func() (uint8, error) {
	return func() (uint8, error) {
		a, err := client.GetTokenAccount(ctx, account)
		if err != nil {
			return 0, fmt.Errorf("look up account %s: %w", account, err)
		}
		return a.Decimals, nil
	}
}

func mintDecimals(ctx context.Context, client *rpc.Client, mint string) func() (uint8, error) {
	return func() (uint8, error) {
		m, err := client.GetMint(ctx, mint)
		if err != nil {
			return 0, fmt.Errorf("look up mint %s: %w", mint, err)
		}
		return m.Decimals, nil
	}
}

// parseCreator parses ADDRESS:SHARE.
func parseCreator(s string) (rpc.CreatorView, error) {
	addr, share, ok := strings.Cut(s, ":")
	if !ok || addr == "" {
		return rpc.CreatorView{}, fmt.Errorf("creator %q must be ADDRESS:SHARE", s)
	}
	n, err := strconv.ParseUint(share, 10, 8)
	if err != nil {
		return rpc.CreatorView{}, fmt.Errorf("creator %q share: %w", s, err)
	}
	return rpc.CreatorView{Address: addr, Share: uint8(n)}, nil
}
