// Package config loads server and CLI settings with viper.
//
// Every key has a default. Values come from an optional tripledger.yaml and
// are overridden by TRIPLEDGER_* environment variables, with dots in keys
// replaced by underscores (TRIPLEDGER_LEDGER_TOKEN sets ledger.token).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mmynk/tripledger/internal/currency"
	"github.com/mmynk/tripledger/internal/ledger"
)

const (
	EnvPrefix = "TRIPLEDGER"
	FileName  = "tripledger"
)

type Config struct {
	Server    ServerConfig `mapstructure:"server"`
	Database  DBConfig     `mapstructure:"database"`
	Reporting string       `mapstructure:"reporting_currency"`
	Ledger    LedgerConfig `mapstructure:"ledger"`
	Rates     RatesConfig  `mapstructure:"rates"`
	Auth      AuthConfig   `mapstructure:"auth"`
	Log       LogConfig    `mapstructure:"log"`
}

type ServerConfig struct {
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// LedgerConfig configures the remote ledger. An empty Token disables
// shared expenses and sync.
type LedgerConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
	Limit   int           `mapstructure:"limit"`
}

type RatesConfig struct {
	URLTemplate string        `mapstructure:"url_template"`
	RatePath    string        `mapstructure:"rate_path"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_path", "")
	v.SetDefault("database.path", "./data/tripledger.db")
	v.SetDefault("reporting_currency", "INR")

	v.SetDefault("ledger.base_url", ledger.DefaultBaseURL)
	v.SetDefault("ledger.token", "")
	v.SetDefault("ledger.timeout", ledger.DefaultTimeout)
	v.SetDefault("ledger.limit", ledger.DefaultExpenseLimit)

	v.SetDefault("rates.url_template", currency.DefaultURLTemplate)
	v.SetDefault("rates.rate_path", currency.DefaultRatePath)
	v.SetDefault("rates.api_key", "")
	v.SetDefault("rates.timeout", currency.DefaultLookupTimeout)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_duration", 24*time.Hour)

	v.SetDefault("log.level", "info")
}

// Load reads the configuration. An empty path searches for tripledger.yaml
// in the working directory; a missing file is not an error unless path was
// given explicitly.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes the reporting currency and checks ranges.
func (c *Config) Validate() error {
	c.Reporting = currency.NormalizeCode(c.Reporting)
	if err := currency.ValidateCode(c.Reporting); err != nil {
		return fmt.Errorf("reporting_currency: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Ledger.Limit <= 0 {
		return fmt.Errorf("ledger.limit must be positive: %d", c.Ledger.Limit)
	}
	if c.Ledger.Timeout <= 0 || c.Rates.Timeout <= 0 {
		return errors.New("ledger.timeout and rates.timeout must be positive")
	}
	return nil
}

// LedgerEnabled reports whether a remote ledger token is configured.
func (c *Config) LedgerEnabled() bool {
	return c.Ledger.Token != ""
}
