package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/benvon/moviebox/internal/client"
	"github.com/benvon/moviebox/internal/models"
)

const defaultLanguage = "en-US"

// Config is the moviectl settings file
type Config struct {
	ServerURL string `toml:"server_url"`
	Language  string `toml:"language"`
	Token     string `toml:"token,omitempty"`
	// User is the profile cached at sign-in so whoami works offline
	User *UserEntry `toml:"user,omitempty"`
}

// UserEntry is the cached profile of the signed-in user
type UserEntry struct {
	UID           string `toml:"uid"`
	Email         string `toml:"email"`
	DisplayName   string `toml:"display_name,omitempty"`
	EmailVerified bool   `toml:"email_verified"`
}

// DefaultConfigPath is $XDG_CONFIG_HOME/moviebox/config.toml (~/.config when unset)
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "moviebox", "config.toml"), nil
}

// LoadConfig reads path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = client.DefaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, readable by the owner only since it holds the session token
func SaveConfig(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) setUser(u *models.UserProfile) {
	if u == nil {
		c.User = nil
		return
	}
	entry := &UserEntry{UID: u.UID, Email: u.Email, EmailVerified: u.EmailVerified}
	if u.DisplayName != nil {
		entry.DisplayName = *u.DisplayName
	}
	c.User = entry
}

func (c *Config) profile() *models.UserProfile {
	if c.User == nil {
		return nil
	}
	p := &models.UserProfile{UID: c.User.UID, Email: c.User.Email, EmailVerified: c.User.EmailVerified}
	if c.User.DisplayName != "" {
		name := c.User.DisplayName
		p.DisplayName = &name
	}
	return p
}
