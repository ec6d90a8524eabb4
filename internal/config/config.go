// Package config loads launchlab configuration from defaults, an optional
// YAML file, LAUNCHLAB_* environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LAUNCHLAB_HTTP_ADDR.
const EnvPrefix = "LAUNCHLAB"

// Slot sources.
const (
	SlotSourceManual = "manual"
	SlotSourceTicker = "ticker"
	SlotSourceWS     = "ws"
)

// Keys.
const (
	KeyRPCEndpoint   = "rpc_endpoint"
	KeyWSEndpoint    = "ws_endpoint"
	KeyPostgresDSN   = "postgres_dsn"
	KeyClickhouseDSN = "clickhouse_dsn"
	KeyUseMemory     = "use_memory"
	KeyHTTPAddr      = "http_addr"
	KeyMetricsAddr   = "metrics_addr"
	KeyLogLevel      = "log_level"
	KeySlotSource    = "slot_source"
	KeySlotInterval  = "slot_interval"
)

var (
	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config holds runtime settings.
type Config struct {
	RPCEndpoint   string        `mapstructure:"rpc_endpoint"`
	WSEndpoint    string        `mapstructure:"ws_endpoint"`
	PostgresDSN   string        `mapstructure:"postgres_dsn"`
	ClickhouseDSN string        `mapstructure:"clickhouse_dsn"`
	UseMemory     bool          `mapstructure:"use_memory"`
	HTTPAddr      string        `mapstructure:"http_addr"`
	MetricsAddr   string        `mapstructure:"metrics_addr"`
	LogLevel      string        `mapstructure:"log_level"`
	SlotSource    string        `mapstructure:"slot_source"`
	SlotInterval  time.Duration `mapstructure:"slot_interval"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyRPCEndpoint, "")
	v.SetDefault(KeyWSEndpoint, "")
	v.SetDefault(KeyPostgresDSN, "")
	v.SetDefault(KeyClickhouseDSN, "")
	v.SetDefault(KeyUseMemory, true)
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyMetricsAddr, ":9090")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeySlotSource, SlotSourceTicker)
	v.SetDefault(KeySlotInterval, 400*time.Millisecond)
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (if non-empty) into v and decodes the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.SlotSource = strings.ToLower(strings.TrimSpace(cfg.SlotSource))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	return &cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	switch c.SlotSource {
	case SlotSourceManual:
	case SlotSourceTicker:
		if c.SlotInterval <= 0 {
			return fmt.Errorf("%w: slot_interval must be positive for the ticker source", ErrInvalidConfig)
		}
	case SlotSourceWS:
		if c.WSEndpoint == "" {
			return fmt.Errorf("%w: slot_source ws requires ws_endpoint", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown slot_source %q", ErrInvalidConfig, c.SlotSource)
	}

	// Without clickhouse_dsn, events are kept in postgres next to the accounts.
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("%w: postgres_dsn is required unless use_memory is set", ErrInvalidConfig)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http_addr is required", ErrInvalidConfig)
	}
	return nil
}
