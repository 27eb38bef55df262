package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.wachat/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`

	Gateway GatewayConfig `toml:"gateway"`
	Leads   LeadsConfig   `toml:"leads"`
	UI      UIConfig      `toml:"ui"`
	Sync    SyncConfig    `toml:"sync"`
}

// GatewayConfig points at the WhatsApp bridge: REST for pulls, websocket for push.
type GatewayConfig struct {
	APIURL string `toml:"api_url"`
	WSURL  string `toml:"ws_url"`
}

// LeadsConfig points at the CRM lead endpoint.
type LeadsConfig struct {
	APIURL      string `toml:"api_url"`
	CountryCode string `toml:"country_code"`
}

type UIConfig struct {
	PageSize      int    `toml:"page_size"`
	DefaultAvatar string `toml:"default_avatar"`
}

// SyncConfig tunes the fetch pipeline. All values have working defaults;
// the file only needs to override what differs.
type SyncConfig struct {
	FastLimit   int `toml:"fast_limit"`
	FullLimit   int `toml:"full_limit"`
	SettleMS    int `toml:"settle_ms"`
	RefreshSec  int `toml:"refresh_sec"`
	DebounceMS  int `toml:"debounce_ms"`
	WarmupBatch int `toml:"warmup_batch"`
}

// Defaults returns a config matching the stock deployment.
func Defaults() *Config {
	return &Config{
		DefaultSession: "main",
		Gateway: GatewayConfig{
			APIURL: "http://127.0.0.1:8088",
			WSURL:  "ws://127.0.0.1:8088/stream",
		},
		Leads: LeadsConfig{
			CountryCode: "996",
		},
		UI: UIConfig{
			PageSize: 40,
		},
		Sync: SyncConfig{
			FastLimit:   60,
			FullLimit:   300,
			SettleMS:    300,
			RefreshSec:  20,
			DebounceMS:  1500,
			WarmupBatch: 20,
		},
	}
}

// Load reads config from the given path, layering the file over Defaults.
// Returns defaults and the error if the file cannot be read.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return Defaults(), err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
