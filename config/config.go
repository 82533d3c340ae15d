/*
config.go - YAML configuration loading

PURPOSE:
  Loads server configuration from a YAML file with sensible defaults,
  so the binary runs with no config file at all during development.

SEE ALSO:
  - cmd/server/main.go: Applies the loaded configuration
*/
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Commission CommissionConfig `yaml:"commission"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type CommissionConfig struct {
	// EnforceReventadoRule turns a reventado resolution of exactly 0%
	// into a COMMISSION_RULE_MISSING error instead of a silent zero.
	EnforceReventadoRule bool `yaml:"enforce_reventado_rule"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Store:      StoreConfig{Path: "commission.db"},
		Commission: CommissionConfig{EnforceReventadoRule: true},
	}
}

// Load reads configPath and overlays it on the defaults. Fields absent
// from the file keep their default values.
func Load(configPath string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Server.Port <= 0 {
		return nil, fmt.Errorf("server.port must be positive, got %d", config.Server.Port)
	}
	if config.Store.Path == "" {
		return nil, fmt.Errorf("store.path must not be empty")
	}
	return config, nil
}
