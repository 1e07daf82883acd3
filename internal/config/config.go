// Package config loads and validates the TOML configuration file and
// resolves the defaults -> file -> environment -> flags override chain.
package config

import (
	"fmt"

	"github.com/mkallio/graphdrive-go/internal/drive"
)

// Defaults applied before the config file and overrides.
const (
	DefaultBaseURL  = "https://graph.microsoft.com/v1.0"
	DefaultDriveID  = "me"
	DefaultPageSize = drive.DefaultPageSize
)

// Config is the on-disk configuration shape. Sizes are human-readable
// strings ("10MiB"); ChunkSizeBytes converts to bytes.
type Config struct {
	BaseURL   string `toml:"base_url"`
	DriveID   string `toml:"drive_id"`
	TokenPath string `toml:"token_path"`
	DataDir   string `toml:"data_dir"`
	ChunkSize string `toml:"chunk_size"`
	PageSize  int    `toml:"page_size"`
	LogLevel  string `toml:"log_level"`
}

// DefaultConfig returns a Config with every default populated. Paths are
// left empty here; Resolve fills them from platform conventions.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:  DefaultBaseURL,
		DriveID:  DefaultDriveID,
		PageSize: DefaultPageSize,
		LogLevel: "warn",
	}
}

// Validate rejects configurations that would produce confusing failures
// later: empty base URL, non-positive page size, and chunk sizes the upload
// engine would refuse.
func Validate(cfg *Config) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url must not be empty")
	}

	if cfg.DriveID == "" {
		return fmt.Errorf("drive_id must not be empty")
	}

	if cfg.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive, got %d", cfg.PageSize)
	}

	if cfg.ChunkSize != "" {
		bytes, err := parseSize(cfg.ChunkSize)
		if err != nil {
			return fmt.Errorf("chunk_size: %w", err)
		}

		if bytes != 0 && bytes%drive.ChunkAlignment != 0 {
			return fmt.Errorf("chunk_size %q is not a multiple of %d bytes", cfg.ChunkSize, drive.ChunkAlignment)
		}
	}

	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", cfg.LogLevel)
	}

	return nil
}

// ChunkSizeBytes returns the configured chunk size in bytes, 0 when unset.
// Validate has already checked format and alignment.
func (c *Config) ChunkSizeBytes() int64 {
	if c.ChunkSize == "" {
		return 0
	}

	bytes, err := parseSize(c.ChunkSize)
	if err != nil {
		return 0
	}

	return bytes
}
