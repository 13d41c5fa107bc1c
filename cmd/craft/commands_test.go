package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-craft/internal/address"
	"solana-token-craft/internal/ledger"
	"solana-token-craft/internal/rpc"
	"solana-token-craft/internal/storage/memory"
)

var (
	owner  = address.FromSeed("cli-owner")
	holder = address.FromSeed("cli-holder")
)

func startLedger(t *testing.T) string {
	t.Helper()
	journal := memory.NewEventStore()
	program := ledger.New(memory.NewRecordStore(), ledger.WithEventSinks(ledger.NewJournalSink(journal)))
	srv := httptest.NewServer(rpc.NewHandler(program, rpc.WithEventStore(journal)))
	t.Cleanup(srv.Close)
	return srv.URL
}

// craft runs the command line and returns stdout and stderr.
func craft(t *testing.T, url string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--url", url, "--retries", "0"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	return v
}

func TestCraft_IssueTransferAndQuery(t *testing.T) {
	url := startLedger(t)

	out, _, err := craft(t, url, "issue", "-s", owner, "--owner", owner, "--name", "Cli Token", "--symbol", "CLI")
	require.NoError(t, err)
	issued := decode[rpc.IssueResultView](t, out)
	assert.True(t, issued.Receipt.Changed)

	out, _, err = craft(t, url, "address", "issue", "--owner", owner, "--symbol", "CLI")
	require.NoError(t, err)
	slots := decode[map[string]string](t, out)
	assert.Equal(t, issued.Mint, slots["mint"])
	assert.Equal(t, issued.TokenAccount, slots["tokenAccount"])

	out, _, err = craft(t, url, "open-account", "--owner", holder, "--mint", issued.Mint)
	require.NoError(t, err)
	opened := decode[rpc.OpenAccountResultView](t, out)

	out, _, err = craft(t, url, "address", "account", "--owner", holder, "--mint", issued.Mint)
	require.NoError(t, err)
	assert.Equal(t, opened.Address, decode[map[string]string](t, out)["address"])

	_, _, err = craft(t, url, "transfer", "-s", owner, "--from", issued.TokenAccount, "--to", opened.Address, "--amount", "0.25", "--ui")
	require.NoError(t, err)

	out, _, err = craft(t, url, "account", opened.Address)
	require.NoError(t, err)
	acct := decode[rpc.TokenAccountView](t, out)
	assert.Equal(t, uint64(250_000_000), acct.Amount)
	assert.Equal(t, "0.25", acct.UIAmountString)

	_, _, err = craft(t, url, "burn", "-s", holder, "--account", opened.Address, "--mint", issued.Mint, "--amount", "50000000")
	require.NoError(t, err)

	out, _, err = craft(t, url, "mint", issued.Mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(950_000_000), decode[rpc.MintView](t, out).Supply)

	out, _, err = craft(t, url, "accounts", holder)
	require.NoError(t, err)
	assert.Len(t, decode[[]rpc.TokenAccountView](t, out), 1)

	out, _, err = craft(t, url, "events", "--mint", issued.Mint)
	require.NoError(t, err)
	events := decode[[]rpc.EventView](t, out)
	require.Len(t, events, 4)
	assert.Equal(t, "burn", events[3].Operation)
}

func TestCraft_AuthorityMetadataAndCap(t *testing.T) {
	url := startLedger(t)

	out, _, err := craft(t, url, "issue", "-s", owner, "--owner", owner, "--name", "Cli Token", "--symbol", "CLI")
	require.NoError(t, err)
	issued := decode[rpc.IssueResultView](t, out)

	collection := address.FromSeed("cli-collection")
	_, _, err = craft(t, url, "update-metadata", "-s", owner, "--mint", issued.Mint,
		"--uri", "https://example.com/cli.json", "--creator", owner+":100", "--collection", collection)
	require.NoError(t, err)

	out, _, err = craft(t, url, "metadata", issued.Mint)
	require.NoError(t, err)
	md := decode[rpc.MetadataView](t, out)
	assert.Equal(t, "https://example.com/cli.json", md.URI)
	require.Len(t, md.Creators, 1)
	assert.True(t, md.Creators[0].Verified)
	require.NotNil(t, md.Collection)
	assert.Equal(t, rpc.CollectionView{Key: collection}, *md.Collection)

	out, _, err = craft(t, url, "update-metadata", "-s", owner, "--mint", issued.Mint)
	require.NoError(t, err)
	assert.False(t, decode[rpc.ReceiptView](t, out).Changed)

	_, _, err = craft(t, url, "update-supply-cap", "-s", owner, "--mint", issued.Mint, "--max", "2000000000")
	require.NoError(t, err)

	out, _, err = craft(t, url, "supply-cap", issued.Mint)
	require.NoError(t, err)
	capView := decode[rpc.SupplyCapView](t, out)
	require.NotNil(t, capView.MaxSupply)
	assert.Equal(t, uint64(2_000_000_000), *capView.MaxSupply)

	_, _, err = craft(t, url, "set-authority", "-s", owner, "--mint", issued.Mint, "--type", "FREEZE_ACCOUNT", "--new", holder)
	require.NoError(t, err)

	_, stderr, err := craft(t, url, "freeze", "-s", owner, "--account", issued.TokenAccount, "--mint", issued.Mint)
	require.Error(t, err)
	assert.Equal(t, ledger.KindOf(err), ledger.KindInvalidAuthority)
	assert.Contains(t, stderr, "Error:")

	_, _, err = craft(t, url, "freeze", "-s", holder, "--account", issued.TokenAccount, "--mint", issued.Mint)
	require.NoError(t, err)
	_, _, err = craft(t, url, "thaw", "-s", holder, "--account", issued.TokenAccount, "--mint", issued.Mint)
	require.NoError(t, err)
}

func TestCraft_FlagValidation(t *testing.T) {
	url := startLedger(t)
	mint := address.FromSeed("cli-mint")

	tests := []struct {
		name string
		args []string
	}{
		{"missing required", []string{"transfer", "--from", owner}},
		{"bad amount", []string{"transfer", "--from", owner, "--to", holder, "--amount", "ten"}},
		{"new and clear", []string{"set-authority", "--mint", mint, "--type", "SUPPLY_CAP", "--new", holder, "--clear"}},
		{"neither new nor clear", []string{"set-authority", "--mint", mint, "--type", "SUPPLY_CAP"}},
		{"unknown authority", []string{"set-authority", "--mint", mint, "--type", "OWNER", "--clear"}},
		{"max and uncap", []string{"update-supply-cap", "--mint", mint, "--max", "5", "--uncap"}},
		{"bad creator", []string{"update-metadata", "--mint", mint, "--creator", "nope"}},
		{"account needs address", []string{"account"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := craft(t, url, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestParseCreator(t *testing.T) {
	c, err := parseCreator(owner + ":40")
	require.NoError(t, err)
	assert.Equal(t, rpc.CreatorView{Address: owner, Share: 40}, c)

	for _, bad := range []string{"", ":10", owner, owner + ":300", owner + ":x"} {
		_, err := parseCreator(bad)
		assert.Error(t, err, bad)
	}
}
