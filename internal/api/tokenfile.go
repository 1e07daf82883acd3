package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// Token files are owner-only: they contain refresh tokens.
const (
	tokenFilePerms = 0o600
	tokenDirPerms  = 0o700
)

// tokenFile is the on-disk format for saved tokens.
type tokenFile struct {
	Token *oauth2.Token `json:"token"`
}

// loadToken reads a saved token from disk. Returns (nil, nil) if the file
// does not exist — the caller decides whether that means "not logged in".
func loadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("api: reading token file %s: %w", path, err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("api: decoding token file %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, fmt.Errorf("api: token file %s missing token field (re-login required)", path)
	}

	return tf.Token, nil
}

// saveToken writes a token file atomically (write-to-temp + rename) with
// owner-only permissions. Never logs token values.
func saveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tokenFile{Token: tok}, "", "  ")
	if err != nil {
		return fmt.Errorf("api: encoding token file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, tokenDirPerms); err != nil {
		return fmt.Errorf("api: creating token dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("api: creating temp token file: %w", err)
	}

	tmpName := tmp.Name()

	if err := tmp.Chmod(tokenFilePerms); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("api: setting token file permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("api: writing token file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("api: closing token file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("api: renaming token file into place: %w", err)
	}

	return nil
}
