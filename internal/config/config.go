package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version information - set by GoReleaser during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// GetVersionInfo returns a formatted version string
func GetVersionInfo() string {
	return fmt.Sprintf("potwatch version %s, commit %s, built at %s", version, commit, date)
}

// Version returns the bare build version
func Version() string {
	return version
}

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Monzo    MonzoConfig    `mapstructure:"monzo"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Balances BalancesConfig `mapstructure:"balances"`
}

// ReportMode selects what the balances endpoint reports per resolved account
type ReportMode string

const (
	// ReportModePots lists the account's pots, optionally filtered by pot_ids
	ReportModePots ReportMode = "pots"
	// ReportModeAccounts reports one entry per account with its raw balance
	ReportModeAccounts ReportMode = "accounts"
)

// StorageBackend selects the credential store implementation
type StorageBackend string

const (
	StorageRedis  StorageBackend = "redis"
	StorageMemory StorageBackend = "memory"
)

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`
}

type LoggingConfig struct {
	Level             string `mapstructure:"level"`
	Format            string `mapstructure:"format"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type MonzoConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	AuthURL      string `mapstructure:"auth_url"`     // override for tests, defaults to the Monzo authorize URL
	TokenURL     string `mapstructure:"token_url"`    // override for tests, defaults to the Monzo token URL
	APIBaseURL   string `mapstructure:"api_base_url"` // override for tests, defaults to the Monzo API
	AccountType  string `mapstructure:"account_type"`
}

type StorageConfig struct {
	Backend StorageBackend `mapstructure:"backend"`
	Redis   RedisConfig    `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BalancesConfig struct {
	SharedSecret  string     `mapstructure:"shared_secret"`
	Mode          ReportMode `mapstructure:"mode"`
	Locale        string     `mapstructure:"locale"`
	OverridesFile string     `mapstructure:"overrides_file"`
	AllowOrigins  []string   `mapstructure:"allow_origins"`
}

// RedirectURL is the OAuth callback URL registered with Monzo
func (c *Config) RedirectURL() string {
	return strings.TrimSuffix(c.Server.BaseURL, "/") + "/auth/monzo/callback"
}

// InitFlags initializes command line flags (without parsing)
func InitFlags() {
	pflag.String("mode", "", "Balance report mode (pots|accounts)")
	pflag.String("overrides-file", "", "Path to the pot display overrides file")
	// Note: no pflag.Parse() here as it's called in main.go
}

func Load() (*Config, error) {
	viper.Reset() // Ensure clean state

	viper.SetEnvPrefix("POTWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.potwatch")
	viper.AddConfigPath("/etc/potwatch")

	if err := viper.ReadInConfig(); err != nil {
		// Everything can come from the environment, so a missing file is fine
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Set report mode from flag
	if mode := viper.GetString("mode"); mode != "" {
		switch ReportMode(mode) {
		case ReportModePots, ReportModeAccounts:
			config.Balances.Mode = ReportMode(mode)
		}
	}

	// Set overrides file from flag or environment
	if overridesFile := viper.GetString("overrides-file"); overridesFile != "" {
		config.Balances.OverridesFile = overridesFile
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "console")
	viper.SetDefault("monzo.account_type", "uk_retail")
	viper.SetDefault("storage.backend", string(StorageRedis))
	viper.SetDefault("storage.redis.addr", "localhost:6379")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("balances.mode", string(ReportModePots))
	viper.SetDefault("balances.locale", "en-GB")
}

func (c *Config) validate() error {
	if c.Monzo.ClientID == "" || c.Monzo.ClientSecret == "" {
		return fmt.Errorf("monzo.client_id and monzo.client_secret are required, please adjust the config or set POTWATCH_MONZO_CLIENT_ID and POTWATCH_MONZO_CLIENT_SECRET environment variables")
	}
	if c.Balances.SharedSecret == "" {
		return fmt.Errorf("balances.shared_secret is required, please adjust the config or set the POTWATCH_BALANCES_SHARED_SECRET environment variable")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required to build the OAuth redirect URI, please adjust the config or set the POTWATCH_SERVER_BASE_URL environment variable")
	}
	switch c.Balances.Mode {
	case ReportModePots, ReportModeAccounts:
	default:
		return fmt.Errorf("balances.mode must be %q or %q, got %q", ReportModePots, ReportModeAccounts, c.Balances.Mode)
	}
	switch c.Storage.Backend {
	case StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", StorageRedis, StorageMemory, c.Storage.Backend)
	}
	return nil
}
