package config

import (
	"fmt"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// appDirName is the directory under the user's config/data roots.
const appDirName = "graphdrive"

// DefaultConfigPath returns ~/.config/graphdrive/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, ".config", appDirName, "config.toml"), nil
}

// defaultTokenPath returns ~/.config/graphdrive/token.json.
func defaultTokenPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, ".config", appDirName, "token.json"), nil
}

// defaultDataDir returns ~/.local/share/graphdrive, used for upload session
// records.
func defaultDataDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", appDirName), nil
}

// fillDefaultPaths populates any path the file and environment left empty.
func fillDefaultPaths(cfg *Config) error {
	if cfg.TokenPath == "" {
		p, err := defaultTokenPath()
		if err != nil {
			return err
		}

		cfg.TokenPath = p
	}

	if cfg.DataDir == "" {
		p, err := defaultDataDir()
		if err != nil {
			return err
		}

		cfg.DataDir = p
	}

	return nil
}
