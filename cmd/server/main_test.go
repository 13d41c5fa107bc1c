package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-craft/internal/address"
	"solana-token-craft/internal/config"
	"solana-token-craft/internal/observability"
	"solana-token-craft/internal/rpc"
)

func startServer(t *testing.T) (*app, *httptest.Server) {
	t.Helper()

	cfg, err := config.Load(config.New(), "")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	st, err := openStores(context.Background(), cfg.Storage, metrics, zerolog.Nop())
	require.NoError(t, err)

	a := newApp(cfg, st, metrics, zerolog.Nop())
	srv := httptest.NewServer(a.routes(observability.HandlerFor(reg)))
	t.Cleanup(func() {
		_ = a.hub.Close()
		srv.Close()
		st.cleanup()
	})
	return a, srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_HealthAndStatus(t *testing.T) {
	_, srv := startServer(t)

	code, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, body = get(t, srv.URL+"/status")
	require.Equal(t, http.StatusOK, code)

	var status StatusResponse
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, address.CraftProgramID, status.ProgramID)
	assert.Equal(t, "memory", status.RecordStore)
	assert.Equal(t, "memory", status.Journal)
	assert.Zero(t, status.Subscribers)
	assert.Contains(t, status.Methods, "transfer")
	assert.Contains(t, status.Methods, "getEvents")
}

func TestServer_RPCStreamAndMetrics(t *testing.T) {
	_, srv := startServer(t)
	ctx := context.Background()
	client := rpc.NewClient(srv.URL + "/rpc")

	owner := address.FromSeed("server-owner")
	holder := address.FromSeed("server-holder")

	issued, err := client.Issue(ctx, rpc.IssueParams{
		Signed: rpc.Signed{Signers: []string{owner}},
		Name:   "Server Token", Symbol: "SRV", Owner: owner,
	})
	require.NoError(t, err)
	opened, err := client.OpenAccount(ctx, rpc.OpenAccountParams{Owner: holder, Mint: issued.Mint})
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	params, err := json.Marshal(map[string]string{"account": opened.Address})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(rpc.Request{
		JSONRPC: rpc.Version,
		ID:      json.RawMessage(`1`),
		Method:  "subscribe",
		Params:  params,
	}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ack rpc.Response
	require.NoError(t, conn.ReadJSON(&ack))
	require.Nil(t, ack.Error)

	_, err = client.Transfer(ctx, rpc.TransferParams{
		Signed: rpc.Signed{Signers: []string{owner}},
		From:   issued.TokenAccount, To: opened.Address, Amount: 25,
	})
	require.NoError(t, err)

	var n struct {
		Method string        `json:"method"`
		Params rpc.EventView `json:"params"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&n))
	assert.Equal(t, "event", n.Method)
	assert.Equal(t, "transfer", n.Params.Operation)
	assert.Equal(t, uint64(25), n.Params.Amount)

	events, err := client.GetEvents(ctx, rpc.EventsParams{Account: opened.Address})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	code, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `test_ledger_operations_total{operation="transfer",result="ok"} 1`)
	assert.Contains(t, body, `test_rpc_requests_total`)
	assert.Contains(t, body, `test_database_query_duration_seconds`)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--storage", "postgres"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PostgresDSN")
}
