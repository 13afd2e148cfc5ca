package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the node configuration loaded from TOML.
type Config struct {
	RPCAddress      string `toml:"RPCAddress"`
	DataDir         string `toml:"DataDir"`
	ArchiveFile     string `toml:"ArchiveFile"`
	LogLevel        string `toml:"LogLevel"`
	LogFile         string `toml:"LogFile"`
	MetricsAddress  string `toml:"MetricsAddress"`
	AuthTokenEnv    string `toml:"AuthTokenEnv"`
	RateLimitPerMin uint64 `toml:"RateLimitPerMin"`

	Staking  Staking  `toml:"staking"`
	Infusion Infusion `toml:"infusion"`
	Fees     Fees     `toml:"fees"`
	Issuance Issuance `toml:"issuance"`
	Colony   Colony   `toml:"colony"`
	Pauses   Pauses   `toml:"pauses"`
}

// Load reads the configuration at path, writing a default file first when
// none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./hivestake-data"
	}
	if strings.TrimSpace(cfg.ArchiveFile) == "" {
		cfg.ArchiveFile = filepath.Join(cfg.DataDir, "outcomes.db")
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
	if strings.TrimSpace(cfg.AuthTokenEnv) == "" {
		cfg.AuthTokenEnv = "HIVESTAKE_RPC_TOKEN"
	}
	if cfg.RateLimitPerMin == 0 {
		cfg.RateLimitPerMin = 600
	}
}

// createDefault writes a runnable default configuration to path.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Staking:  Staking{Enabled: true},
		Infusion: Infusion{Enabled: true},
	}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
