// Package config handles the pulse CLI configuration file. It is plain
// sequential glue: one yaml file under the user's config directory holding
// the backend endpoint, the identity provider settings, and the stored
// credential.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	pkgoauth "pulse/pkg/oauth"
)

const (
	userConfigDir  = ".config/pulse"
	configFileName = "config.yaml"
)

// Config is the on-disk configuration of the pulse CLI.
type Config struct {
	// ServerURL is the backend base URL RPC calls are issued against.
	ServerURL string `yaml:"serverURL"`

	// AuthorizeURL is the identity provider's authorization endpoint.
	AuthorizeURL string `yaml:"authorizeURL"`

	// ClientID identifies this CLI at the identity provider.
	ClientID string `yaml:"clientID"`

	// CallbackPort is the loopback port for the login callback listener.
	// 0 picks an ephemeral port.
	CallbackPort int `yaml:"callbackPort,omitempty"`

	// Token is the credential obtained by `pulse login`.
	Token *pkgoauth.Token `yaml:"token,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		ServerURL:    "https://api.pulse.example.com",
		AuthorizeURL: "https://id.pulse.example.com/authorize",
		ClientID:     "pulse-cli",
		CallbackPort: 0,
	}
}

// DefaultConfigPath returns the path of the config file under the user's
// home directory.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user home directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// Load reads the configuration from path. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config from %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config from %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to path, creating the directory as needed.
// The file is user-only readable since it carries the credential.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config to %s: %w", path, err)
	}

	return nil
}

// Credential returns the stored access token, or "" when absent or expired
// beyond the expiry margin.
func (c Config) Credential() string {
	if c.Token == nil || c.Token.AccessToken == "" {
		return ""
	}
	if c.Token.IsExpiredWithMargin(0) {
		return ""
	}
	return c.Token.AccessToken
}

// TokenExpiry returns the stored token's expiry, or the zero time.
func (c Config) TokenExpiry() time.Time {
	if c.Token == nil {
		return time.Time{}
	}
	return c.Token.ExpiresAt
}
