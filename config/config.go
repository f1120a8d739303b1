package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "ELECT"
	DefaultLogLevel = "info"

	BackendMemory = "memory"
	BackendTree   = "tree"
	BackendBadger = "badger"
	BackendHTTP   = "http"
)

type AppConfig struct {
	Home       string `mapstructure:"-"`
	LogLevel   string `mapstructure:"log_level"`
	Maintainer string `mapstructure:"maintainer"`
}

// EconomyConfig amounts are micro-coins.
type EconomyConfig struct {
	BaseBalance          int64  `mapstructure:"base_balance"`
	MicrocoinsPerCoin    int64  `mapstructure:"microcoins_per_coin"`
	MinTransfer          int64  `mapstructure:"min_transfer"`
	DefaultDurationHours int64  `mapstructure:"default_duration_hours"`
	MaxDurationHours     int64  `mapstructure:"max_duration_hours"`
	CampaignCharsPerCoin int    `mapstructure:"campaign_chars_per_coin"`
	EmptyVault           string `mapstructure:"empty_vault"`
	AdminSink            string `mapstructure:"admin_sink"`
}

type StoreConfig struct {
	Backend         string        `mapstructure:"backend"`
	Dir             string        `mapstructure:"dir"`
	Url             string        `mapstructure:"url"`
	IndexId         string        `mapstructure:"index_id"`
	MaxRetries      uint          `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

type APIConfig struct {
	ListenAddress string `mapstructure:"listen_address"`
	// ServeDocuments exposes the local store under /v1/documents so other
	// nodes can use it with the http backend.
	ServeDocuments bool `mapstructure:"serve_documents"`
}

// Loopback reports whether the API only accepts local connections. Commands
// carry the caller's user id and admin flag as-is, so anything else must sit
// behind an authenticating front end.
func (c *APIConfig) Loopback() bool {
	host, _, err := net.SplitHostPort(c.ListenAddress)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type IndexerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

type TimeoutsConfig struct {
	VoteConfirm time.Duration `mapstructure:"vote_confirm"`
	Join        time.Duration `mapstructure:"join"`
}

type VerifierConfig struct {
	KeyTypes []string `mapstructure:"key_types"`
}

type Config struct {
	App      *AppConfig      `mapstructure:"app"`
	Economy  *EconomyConfig  `mapstructure:"economy"`
	Store    *StoreConfig    `mapstructure:"store"`
	API      *APIConfig      `mapstructure:"api"`
	Indexer  *IndexerConfig  `mapstructure:"indexer"`
	Timeouts *TimeoutsConfig `mapstructure:"timeouts"`
	Verifier *VerifierConfig `mapstructure:"verifier"`
}

func DefaultHome() string {
	return os.ExpandEnv("$HOME/.elect")
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = DefaultHome()
	}
	return &Config{
		App: &AppConfig{
			Home:       home,
			LogLevel:   DefaultLogLevel,
			Maintainer: "hac-election",
		},
		Economy: &EconomyConfig{
			BaseBalance:          100_000_000,
			MicrocoinsPerCoin:    1_000_000,
			MinTransfer:          1000,
			DefaultDurationHours: 24,
			MaxDurationHours:     168,
			CampaignCharsPerCoin: 100,
			EmptyVault:           "burn",
		},
		Store: &StoreConfig{
			Backend:         BackendTree,
			Dir:             "data",
			IndexId:         "election-index",
			MaxRetries:      5,
			InitialInterval: 50 * time.Millisecond,
			MaxInterval:     time.Second,
			RequestTimeout:  10 * time.Second,
		},
		API: &APIConfig{
			ListenAddress: "127.0.0.1:8080",
		},
		Indexer: &IndexerConfig{
			Enabled: true,
			DBPath:  "indexer.db",
		},
		Timeouts: &TimeoutsConfig{
			VoteConfirm: time.Minute,
			Join:        5 * time.Minute,
		},
		Verifier: &VerifierConfig{
			KeyTypes: []string{"rsa", "ed25519", "secp256k1"},
		},
	}
}

func (c *Config) ConfigFile() string {
	return filepath.Join(c.App.Home, "config", "config.toml")
}

// Path resolves p against the home directory unless it is absolute.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.Home, p)
}

func (c *Config) ValidateBasic() error {
	switch c.Store.Backend {
	case BackendMemory, BackendTree, BackendBadger:
	case BackendHTTP:
		if c.Store.Url == "" {
			return errors.New("store.url is required for the http backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Economy.MicrocoinsPerCoin <= 0 {
		return errors.New("economy.microcoins_per_coin must be positive")
	}
	if c.Economy.BaseBalance < 0 {
		return errors.New("economy.base_balance must not be negative")
	}
	if c.Economy.MaxDurationHours < c.Economy.DefaultDurationHours {
		return errors.New("economy.default_duration_hours exceeds economy.max_duration_hours")
	}
	if len(c.Verifier.KeyTypes) == 0 {
		return errors.New("verifier.key_types is empty")
	}
	return nil
}

// Load reads <home>/config/config.toml over the defaults. ELECT_ prefixed
// environment variables override file values, e.g. ELECT_STORE_BACKEND.
func Load(home string) (*Config, error) {
	cfg := DefaultConfig(home)
	v := viper.New()
	v.SetConfigFile(cfg.ConfigFile())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.App.Home = home
	if len(home) == 0 {
		cfg.App.Home = DefaultHome()
	}
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid configuration data: %w", err)
	}
	return cfg, nil
}
