package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, rejects unknown keys, validates,
// and returns the resulting Config. Unknown keys are fatal — silently
// ignoring a typo leads to hard-to-debug behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads the config file if it exists, otherwise returns all
// defaults. Supports the zero-config first run.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// checkUnknownKeys turns undecoded TOML keys into an error listing every
// offender, sorted for deterministic messages.
func checkUnknownKeys(md *toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}

	keys := make([]string, 0, len(undecoded))
	for _, k := range undecoded {
		keys = append(keys, k.String())
	}

	sort.Strings(keys)

	return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
}

// Environment variable names for overrides. Environment beats the file,
// flags beat both.
const (
	envBaseURL   = "GRAPHDRIVE_BASE_URL"
	envDriveID   = "GRAPHDRIVE_DRIVE_ID"
	envTokenPath = "GRAPHDRIVE_TOKEN_PATH"
	envDataDir   = "GRAPHDRIVE_DATA_DIR"
)

// ApplyEnv overlays environment variable overrides onto cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(envBaseURL); v != "" {
		cfg.BaseURL = v
	}

	if v := os.Getenv(envDriveID); v != "" {
		cfg.DriveID = v
	}

	if v := os.Getenv(envTokenPath); v != "" {
		cfg.TokenPath = v
	}

	if v := os.Getenv(envDataDir); v != "" {
		cfg.DataDir = v
	}
}

// Resolve loads the config file (or defaults), applies environment
// overrides, and fills in platform-default paths. The result is ready for
// client construction.
func Resolve(path string) (*Config, error) {
	if path == "" {
		var err error

		path, err = DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	ApplyEnv(cfg)

	if err := fillDefaultPaths(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
