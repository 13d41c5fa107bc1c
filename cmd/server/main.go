// Package main runs the ledger service:
// - JSON-RPC 2.0 ledger operations on /rpc
// - committed event stream on /ws
// - /health, /status and Prometheus /metrics
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"solana-token-craft/internal/config"
	"solana-token-craft/internal/ledger"
	"solana-token-craft/internal/logging"
	"solana-token-craft/internal/observability"
	"solana-token-craft/internal/rpc"
	"solana-token-craft/internal/storage"
	chstore "solana-token-craft/internal/storage/clickhouse"
	"solana-token-craft/internal/storage/memory"
	"solana-token-craft/internal/storage/migrations"
	pgstore "solana-token-craft/internal/storage/postgres"
	"solana-token-craft/internal/stream"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"listen":         "listen",
	"storage":        "storage.type",
	"postgres-dsn":   "storage.postgres-dsn",
	"clickhouse-dsn": "storage.clickhouse-dsn",
	"migrate":        "storage.migrate",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"lenient-close":  "ledger.lenient-close",
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	cmd := &cobra.Command{
		Use:           "craft-server",
		Short:         "Serve the token ledger over JSON-RPC and websocket",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			logger, err := logging.New(cfg.Log, nil)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			if err := run(cmd.Context(), cfg, logger); err != nil {
				logger.Error().Err(err).Msg("server stopped")
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "Config file (yaml, toml or json)")
	flags.String("listen", ":8899", "HTTP listen address")
	flags.String("storage", string(config.MemoryStorage), "Record store: memory or postgres")
	flags.String("postgres-dsn", "", "PostgreSQL connection string")
	flags.String("clickhouse-dsn", "", "ClickHouse connection string for the event journal")
	flags.Bool("migrate", true, "Apply embedded schema migrations on startup")
	flags.String("log-level", "info", "Log level")
	flags.String("log-format", logging.FormatJSON, "Log format: json or console")
	flags.Bool("lenient-close", false, "Burn remaining balance when closing a funded account")
	bindFlags(v, cmd)

	return cmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) {
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}
}

// stores holds the selected backends and how to release them.
type stores struct {
	records     storage.RecordStore
	events      storage.EventStore
	recordsKind string
	eventsKind  string
	cleanup     func()
}

// openStores connects the configured backends and applies migrations.
func openStores(ctx context.Context, cfg config.Storage, metrics *observability.Metrics, logger zerolog.Logger) (*stores, error) {
	s := &stores{cleanup: func() {}}
	var closers []func()
	fail := func(err error) (*stores, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		return nil, err
	}

	switch cfg.Type {
	case config.PostgresStorage:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return fail(fmt.Errorf("connect to postgres: %w", err))
		}
		closers = append(closers, pool.Close)
		if cfg.Migrate {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				return fail(err)
			}
			logger.Info().Strs("scripts", applied).Msg("postgres migrations applied")
		}
		s.records, s.recordsKind = pgstore.NewRecordStore(pool), "postgres"
	default:
		s.records, s.recordsKind = memory.NewRecordStore(), "memory"
	}

	if cfg.ClickhouseDSN != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			return fail(fmt.Errorf("connect to clickhouse: %w", err))
		}
		closers = append(closers, func() { _ = conn.Close() })
		s.events, s.eventsKind = chstore.NewEventStore(conn), "clickhouse"
	} else {
		s.events, s.eventsKind = memory.NewEventStore(), "memory"
	}

	s.records = storage.InstrumentRecordStore(s.records, s.recordsKind, metrics)
	s.events = storage.InstrumentEventStore(s.events, s.eventsKind, metrics)
	s.cleanup = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return s, nil
}

// app wires the ledger program to its HTTP surfaces.
type app struct {
	cfg     *config.Config
	program *ledger.Program
	hub     *stream.Hub
	rpc     *rpc.Handler
	stores  *stores
	started time.Time
}

func newApp(cfg *config.Config, st *stores, metrics *observability.Metrics, logger zerolog.Logger) *app {
	hub := stream.NewHub(&stream.Config{
		PingInterval:    cfg.Stream.PingInterval,
		ReadTimeout:     cfg.Stream.ReadTimeout,
		WriteTimeout:    cfg.Stream.WriteTimeout,
		SendBuffer:      cfg.Stream.SendBuffer,
		MaxMessageBytes: stream.DefaultConfig().MaxMessageBytes,
	},
		stream.WithLogger(logging.Component(logger, "stream")),
		stream.WithMetrics(metrics),
	)

	opts := []ledger.Option{
		ledger.WithLogger(logging.Component(logger, "ledger")),
		ledger.WithMetrics(metrics),
		ledger.WithEventSinks(ledger.NewJournalSink(st.events), hub),
		ledger.WithProgramID(cfg.Ledger.ProgramID),
		ledger.WithStartingSupply(cfg.Ledger.StartingSupply),
		ledger.WithDecimals(cfg.Ledger.Decimals),
	}
	if cfg.Ledger.LenientClose {
		opts = append(opts, ledger.WithLenientClose())
	}
	program := ledger.New(st.records, opts...)

	return &app{
		cfg:     cfg,
		program: program,
		hub:     hub,
		rpc: rpc.NewHandler(program,
			rpc.WithEventStore(st.events),
			rpc.WithLogger(logging.Component(logger, "rpc")),
			rpc.WithMetrics(metrics),
		),
		stores:  st,
		started: time.Now(),
	}
}

func (a *app) routes(metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/rpc", a.rpc)
	mux.Handle("/ws", a.hub)
	mux.Handle("/metrics", metricsHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", a.handleStatus)
	return mux
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status      string    `json:"status"`
	Uptime      string    `json:"uptime"`
	Started     time.Time `json:"started"`
	ProgramID   string    `json:"program_id"`
	RecordStore string    `json:"record_store"`
	Journal     string    `json:"journal"`
	Subscribers int       `json:"subscribers"`
	Methods     []string  `json:"methods"`
}

// handleStatus returns server status as JSON.
func (a *app) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Status:      "running",
		Uptime:      time.Since(a.started).Round(time.Second).String(),
		Started:     a.started,
		ProgramID:   a.program.ProgramID(),
		RecordStore: a.stores.recordsKind,
		Journal:     a.stores.eventsKind,
		Subscribers: a.hub.Subscribers(),
		Methods:     a.rpc.Methods(),
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := observability.NewRegistry()
	metrics := observability.NewMetrics(cfg.Metrics.Namespace, reg)

	st, err := openStores(ctx, cfg.Storage, metrics, logging.Component(logger, "storage"))
	if err != nil {
		return err
	}
	defer st.cleanup()

	a := newApp(cfg, st, metrics, logger)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           a.routes(observability.HandlerFor(reg)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Listen).
			Str("record_store", st.recordsKind).
			Str("journal", st.eventsKind).
			Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	_ = a.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
