package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"

	"github.com/pelletier/go-toml"
)

const (
	DefaultListenAddress = "0.0.0.0:8545"

	DefaultSourceURL       = "https://www.cnb.cz/en/financial_markets/foreign_exchange_market/exchange_rate_fixing/"
	DefaultTimeout         = 30   // seconds
	DefaultRefreshInterval = 3600 // seconds
)

var (
	ErrInvalidListenAddress   = errors.New("invalid listen address")
	ErrInvalidSourceURL       = errors.New("invalid source URL")
	ErrInvalidTimeout         = errors.New("invalid source timeout")
	ErrInvalidRefreshInterval = errors.New("invalid refresh interval")
	ErrInvalidPreloadYear     = errors.New("invalid preload year")
)

var listenAddressRegex = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}:\d+$`)

// Config defines the base-level server configuration
type Config struct {
	// The associated CORS config, if any
	CORSConfig *CORS `toml:"cors_config"`

	// The upstream feed settings
	Source *Source `toml:"source"`

	// The address at which the server will be served.
	// Format should be: <IP>:<PORT>
	ListenAddress string `toml:"listen_address"`
}

// Source defines the CNB feed settings
type Source struct {
	// The base URL the yearly and daily feed paths are resolved against
	BaseURL string `toml:"base_url"`

	// Years loaded on startup, in addition to the current one
	PreloadYears []int `toml:"preload_years"`

	// The HTTP timeout for a single feed GET, in seconds
	TimeoutSeconds int `toml:"timeout_seconds"`

	// How often today's fixing is refreshed, in seconds
	RefreshIntervalSeconds int `toml:"refresh_interval_seconds"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		CORSConfig:    DefaultCORSConfig(),
		Source:        DefaultSourceConfig(),
	}
}

// DefaultSourceConfig returns the default feed configuration
func DefaultSourceConfig() *Source {
	return &Source{
		BaseURL:                DefaultSourceURL,
		TimeoutSeconds:         DefaultTimeout,
		RefreshIntervalSeconds: DefaultRefreshInterval,
	}
}

// ValidateConfig validates the server configuration
func ValidateConfig(config *Config) error {
	// Validate the listen address
	if !listenAddressRegex.MatchString(config.ListenAddress) {
		return ErrInvalidListenAddress
	}

	if config.Source == nil {
		return nil
	}

	// Validate the feed settings
	u, err := url.Parse(config.Source.BaseURL)
	if err != nil || !u.IsAbs() {
		return ErrInvalidSourceURL
	}

	if config.Source.TimeoutSeconds <= 0 {
		return ErrInvalidTimeout
	}

	if config.Source.RefreshIntervalSeconds <= 0 {
		return ErrInvalidRefreshInterval
	}

	for _, year := range config.Source.PreloadYears {
		if year < 1000 || year > 9999 {
			return fmt.Errorf("%w: %d", ErrInvalidPreloadYear, year)
		}
	}

	return nil
}

// Read reads the configuration from the given path.
// Settings missing from the file keep their default values
func Read(path string) (*Config, error) {
	// Read the config file
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Parse it
	var cfg Config

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// applyDefaults fills in the settings left unset
func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.Source == nil {
		cfg.Source = DefaultSourceConfig()

		return
	}

	defaults := DefaultSourceConfig()

	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = defaults.BaseURL
	}

	if cfg.Source.TimeoutSeconds == 0 {
		cfg.Source.TimeoutSeconds = defaults.TimeoutSeconds
	}

	if cfg.Source.RefreshIntervalSeconds == 0 {
		cfg.Source.RefreshIntervalSeconds = defaults.RefreshIntervalSeconds
	}
}
