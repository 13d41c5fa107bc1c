// Package config loads service configuration from defaults, an optional
// file and CRAFT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"solana-token-craft/internal/address"
	"solana-token-craft/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. CRAFT_STORAGE_TYPE.
const EnvPrefix = "CRAFT"

// StorageType names a record store backend.
type StorageType string

const (
	MemoryStorage   StorageType = "memory"
	PostgresStorage StorageType = "postgres"
)

// Config is the server configuration.
type Config struct {
	Listen          string         `mapstructure:"listen" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration  `mapstructure:"shutdown-timeout" validate:"gt=0"`
	Log             logging.Config `mapstructure:"log"`
	Storage         Storage        `mapstructure:"storage"`
	Ledger          Ledger         `mapstructure:"ledger"`
	Stream          Stream         `mapstructure:"stream"`
	Metrics         Metrics        `mapstructure:"metrics"`
}

// Storage selects the record store and the event journal.
// The journal lives in ClickHouse when ClickhouseDSN is set, in memory otherwise.
type Storage struct {
	Type          StorageType `mapstructure:"type" validate:"oneof=memory postgres"`
	PostgresDSN   string      `mapstructure:"postgres-dsn" validate:"required_if=Type postgres"`
	ClickhouseDSN string      `mapstructure:"clickhouse-dsn"`
	Migrate       bool        `mapstructure:"migrate"`
}

// Ledger holds the program parameters. With LenientClose an account that
// still holds a balance can be closed and its balance is burned.
type Ledger struct {
	ProgramID      string `mapstructure:"program-id"`
	StartingSupply uint64 `mapstructure:"starting-supply"`
	Decimals       uint8  `mapstructure:"decimals" validate:"max=19"`
	LenientClose   bool   `mapstructure:"lenient-close"`
}

// Stream tunes the websocket event subscriptions.
type Stream struct {
	SendBuffer   int           `mapstructure:"send-buffer" validate:"gt=0"`
	PingInterval time.Duration `mapstructure:"ping-interval" validate:"gt=0"`
	ReadTimeout  time.Duration `mapstructure:"read-timeout" validate:"gtfield=PingInterval"`
	WriteTimeout time.Duration `mapstructure:"write-timeout" validate:"gt=0"`
}

// Metrics sets the Prometheus namespace of every collector.
type Metrics struct {
	Namespace string `mapstructure:"namespace"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8899")
	v.SetDefault("shutdown-timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatJSON)
	v.SetDefault("storage.type", string(MemoryStorage))
	v.SetDefault("storage.postgres-dsn", "")
	v.SetDefault("storage.clickhouse-dsn", "")
	v.SetDefault("storage.migrate", true)
	v.SetDefault("ledger.program-id", address.CraftProgramID)
	v.SetDefault("ledger.starting-supply", uint64(1_000_000_000))
	v.SetDefault("ledger.decimals", 9)
	v.SetDefault("ledger.lenient-close", false)
	v.SetDefault("stream.send-buffer", 256)
	v.SetDefault("stream.ping-interval", 30*time.Second)
	v.SetDefault("stream.read-timeout", 60*time.Second)
	v.SetDefault("stream.write-timeout", 10*time.Second)
	v.SetDefault("metrics.namespace", "token_craft")
}

// New returns a viper instance with defaults and environment overrides set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (if not empty) into v and returns the validated config.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	err := validate.Struct(c)
	if err == nil {
		if c.Ledger.ProgramID != "" && !address.IsValid(c.Ledger.ProgramID) {
			return fmt.Errorf("invalid config: ledger.program-id %q is not a valid address", c.Ledger.ProgramID)
		}
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("invalid config: %w", err)
}
