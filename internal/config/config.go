// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/bondcurve/internal/curve"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	DebugLogging    bool          `mapstructure:"debug_logging"`
	PrettyLogging   bool          `mapstructure:"pretty_logging"`
	LogFile         string        `mapstructure:"log_file"`
	StorageDriver   string        `mapstructure:"storage_driver"`
	StorageDSN      string        `mapstructure:"storage_dsn"`
	ConnectRetries  int           `mapstructure:"connect_retries"`
	EventBuffer     int           `mapstructure:"event_buffer"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	VirtualValue       uint64 `mapstructure:"virtual_value"`
	MigrationThreshold uint64 `mapstructure:"migration_threshold"`
	TradeFeeBps        uint64 `mapstructure:"trade_fee_bps"`
	DeveloperFee       uint64 `mapstructure:"developer_fee"`
	ListingFee         uint64 `mapstructure:"listing_fee"`
	RentFloor          uint64 `mapstructure:"rent_floor"`
	TokenDecimals      uint8  `mapstructure:"token_decimals"`
	FeeCollector       string `mapstructure:"fee_collector"`
	MigrationAdmin     string `mapstructure:"migration_admin"`
	ProgramID          string `mapstructure:"program_id"`
	VenueProgramID     string `mapstructure:"venue_program_id"`
}

const (
	DefaultListenAddr      = ":8080"
	DefaultConnectRetries  = 5
	DefaultEventBuffer     = 1024
	DefaultShutdownTimeout = 10 * time.Second
)

// EnvPrefix prefixes every environment override, e.g. BONDCURVE_LISTEN_ADDR.
const EnvPrefix = "BONDCURVE"

func defaults() map[string]interface{} {
	p := curve.DefaultParams()
	return map[string]interface{}{
		"listen_addr":         DefaultListenAddr,
		"debug_logging":       false,
		"pretty_logging":      false,
		"log_file":            "",
		"storage_driver":      StorageMemory,
		"storage_dsn":         "",
		"connect_retries":     DefaultConnectRetries,
		"event_buffer":        DefaultEventBuffer,
		"shutdown_timeout":    DefaultShutdownTimeout,
		"virtual_value":       p.VirtualValue,
		"migration_threshold": p.MigrationThreshold,
		"trade_fee_bps":       p.TradeFeeBps,
		"developer_fee":       p.DeveloperFee,
		"listing_fee":         p.ListingFee,
		"rent_floor":          p.RentFloor,
		"token_decimals":      p.TokenDecimals,
		"fee_collector":       "",
		"migration_admin":     "",
		"program_id":          p.ProgramID.String(),
		"venue_program_id":    p.VenueProgramID.String(),
	}
}

// LoadConfig reads path (optional: an empty path uses defaults and the
// environment only) and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	loadEnvironmentVariables(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvironmentVariables(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func validateConfig(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen_addr %q: %w", cfg.ListenAddr, err)
	}
	switch cfg.StorageDriver {
	case StorageMemory:
	case StorageSQLite, StoragePostgres:
		if cfg.StorageDSN == "" {
			return fmt.Errorf("storage_dsn is required for the %s driver", cfg.StorageDriver)
		}
	default:
		return fmt.Errorf("unsupported storage_driver %q", cfg.StorageDriver)
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}

	params, err := cfg.Params()
	if err != nil {
		return err
	}
	return params.Validate()
}

func validateNumericParams(cfg *Config) error {
	if cfg.ConnectRetries < 0 {
		return errors.New("invalid connect_retries")
	}
	if cfg.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	if cfg.ShutdownTimeout <= 0 {
		return errors.New("invalid shutdown_timeout")
	}
	return nil
}

// Params converts the protocol section to curve.Params.
func (c *Config) Params() (curve.Params, error) {
	p := curve.Params{
		VirtualValue:       c.VirtualValue,
		MigrationThreshold: c.MigrationThreshold,
		TradeFeeBps:        c.TradeFeeBps,
		DeveloperFee:       c.DeveloperFee,
		ListingFee:         c.ListingFee,
		RentFloor:          c.RentFloor,
		TokenDecimals:      c.TokenDecimals,
	}

	keys := []struct {
		name string
		raw  string
		dst  *solana.PublicKey
	}{
		{"fee_collector", c.FeeCollector, &p.FeeCollector},
		{"migration_admin", c.MigrationAdmin, &p.MigrationAdmin},
		{"program_id", c.ProgramID, &p.ProgramID},
		{"venue_program_id", c.VenueProgramID, &p.VenueProgramID},
	}
	for _, k := range keys {
		if k.raw == "" {
			return curve.Params{}, fmt.Errorf("missing %s in configuration", k.name)
		}
		pk, err := solana.PublicKeyFromBase58(k.raw)
		if err != nil {
			return curve.Params{}, fmt.Errorf("invalid %s: %w", k.name, err)
		}
		*k.dst = pk
	}
	return p, nil
}
