package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config holds the daemon settings. Owner is the administrator identity for
// every registry operation; ModuleAddress is the custody identity that holds
// staked principal and the reward treasury.
type Config struct {
	RPCAddress    string `toml:"RPCAddress"`
	RPCToken      string `toml:"RPCToken"`
	DataDir       string `toml:"DataDir"`
	Owner         string `toml:"Owner"`
	ModuleAddress string `toml:"ModuleAddress"`
	ServiceName   string `toml:"ServiceName"`
	Environment   string `toml:"Environment"`
	LogLevel      string `toml:"LogLevel"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a working daemon.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if !common.IsHexAddress(c.Owner) {
		return fmt.Errorf("config: Owner must be a hex address, got %q", c.Owner)
	}
	if !common.IsHexAddress(c.ModuleAddress) {
		return fmt.Errorf("config: ModuleAddress must be a hex address, got %q", c.ModuleAddress)
	}
	if common.HexToAddress(c.ModuleAddress) == (common.Address{}) {
		return fmt.Errorf("config: ModuleAddress must not be the zero address")
	}
	return nil
}

// OwnerAddress returns the parsed administrator identity.
func (c *Config) OwnerAddress() common.Address { return common.HexToAddress(c.Owner) }

// Module returns the parsed custody identity.
func (c *Config) Module() common.Address { return common.HexToAddress(c.ModuleAddress) }

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "stakehubd"
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:  "127.0.0.1:8645",
		DataDir:     defaultDataDir(path),
		ServiceName: "stakehubd",
		LogLevel:    "info",
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultDataDir(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "data")
}
