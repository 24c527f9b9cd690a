// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/Musing-io/musing-protocol/internal/types"
)

type Config struct {
	ConnectorWeightPPM uint32        `mapstructure:"connector_weight_ppm"`
	GenesisSupply      string        `mapstructure:"genesis_supply"`
	Treasury           string        `mapstructure:"treasury"`
	EngineAddress      string        `mapstructure:"engine_address"`
	FeePolicy          string        `mapstructure:"fee_policy"`
	SnapshotCron       string        `mapstructure:"snapshot_cron"`
	EventBuffer        int           `mapstructure:"event_buffer"`
	Storage            StorageConfig `mapstructure:"storage"`
	HTTP               HTTPConfig    `mapstructure:"http"`
	Metrics            MetricsConfig `mapstructure:"metrics"`
	Log                LogConfig     `mapstructure:"log"`
}

type StorageConfig struct {
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
	Retries int    `mapstructure:"retries"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Debug bool   `mapstructure:"debug"`
}

const (
	DefaultWeightPPM     = 20_000
	DefaultGenesisSupply = "20000000"
	DefaultTreasury      = "0xtreasury"
	DefaultEngineAddress = "0xbond"
	DefaultSnapshotCron  = "@every 1m"
	DefaultEventBuffer   = 1024
	DefaultHTTPAddr      = ":8080"
	DefaultRetries       = 3

	EnvPrefix = "MUSING"
)

// Storage drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"connector_weight_ppm": DefaultWeightPPM,
		"genesis_supply":       DefaultGenesisSupply,
		"treasury":             DefaultTreasury,
		"engine_address":       DefaultEngineAddress,
		"fee_policy":           "none",
		"snapshot_cron":        DefaultSnapshotCron,
		"event_buffer":         DefaultEventBuffer,
		"storage.driver":       DriverNone,
		"storage.dsn":          "",
		"storage.retries":      DefaultRetries,
		"http.addr":            DefaultHTTPAddr,
		"metrics.enabled":      true,
		"log.file":             "",
		"log.debug":            false,
	}
}

// LoadConfig reads the file at path (JSON or YAML, optional when empty) and
// applies MUSING_* environment overrides, e.g. MUSING_STORAGE_DSN.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.ConnectorWeightPPM == 0 || cfg.ConnectorWeightPPM > types.MaxWeight {
		return fmt.Errorf("invalid connector_weight_ppm %d: %w", cfg.ConnectorWeightPPM, types.ErrInvalidWeight)
	}
	if _, err := types.ParseUnits(cfg.GenesisSupply, types.Decimals); err != nil {
		return fmt.Errorf("invalid genesis_supply: %w", err)
	}
	if strings.TrimSpace(cfg.Treasury) == "" {
		return errors.New("treasury is empty")
	}
	if strings.TrimSpace(cfg.EngineAddress) == "" {
		return errors.New("engine_address is empty")
	}
	if cfg.Treasury == cfg.EngineAddress {
		return errors.New("treasury and engine_address must differ")
	}
	if cfg.FeePolicy != "none" {
		return fmt.Errorf("unsupported fee_policy %q", cfg.FeePolicy)
	}
	if cfg.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	if cfg.SnapshotCron != "" {
		if _, err := cron.ParseStandard(cfg.SnapshotCron); err != nil {
			return fmt.Errorf("invalid snapshot_cron: %w", err)
		}
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("invalid http.addr: %w", err)
	}
	return validateStorage(&cfg.Storage)
}

func validateStorage(s *StorageConfig) error {
	switch s.Driver {
	case DriverNone:
	case DriverSQLite, DriverPostgres:
		if s.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %s", s.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", s.Driver)
	}
	if s.Retries < 0 {
		return errors.New("invalid storage.retries")
	}
	return nil
}
