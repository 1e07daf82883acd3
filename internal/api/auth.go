package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// ErrNotLoggedIn is returned when no saved token exists at the token path.
var ErrNotLoggedIn = errors.New("api: not logged in")

// Application registration used for the device code flow (public client).
const defaultClientID = "f2c2ad34-2c84-4c22-9cd0-5b1398eff7a4"

var defaultScopes = []string{
	"offline_access",
	"Files.ReadWrite.All",
	"User.Read",
}

// DeviceAuth holds the device code fields the CLI displays to the user.
type DeviceAuth struct {
	UserCode        string
	VerificationURI string
}

// Login performs the device code OAuth2 flow:
//  1. Requests a device code from the identity provider
//  2. Calls display so the CLI can show the user code and verification URL
//  3. Polls until the user authorizes (blocking, respects ctx cancellation)
//  4. Saves the token to disk at tokenPath
//  5. Returns a TokenSource for use with Client
//
// ctx must outlive the returned TokenSource — silent refresh fails once it
// is canceled. Callers pass context.Background() for long-lived sessions.
// The caller computes tokenPath; this package has no config import.
func Login(
	ctx context.Context,
	tokenPath string,
	display func(DeviceAuth),
	logger *slog.Logger,
) (TokenSource, error) {
	return doLogin(ctx, tokenPath, oauthConfig(), display, logger)
}

// doLogin implements the device code flow. Accepts a pre-built oauth2.Config
// so tests can inject a mock endpoint.
func doLogin(
	ctx context.Context,
	tokenPath string,
	cfg *oauth2.Config,
	display func(DeviceAuth),
	logger *slog.Logger,
) (TokenSource, error) {
	logger.Info("starting device code auth flow",
		slog.String("path", tokenPath),
	)

	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("api: device auth request failed: %w", err)
	}

	logger.Info("device code received, waiting for user authorization")

	display(DeviceAuth{
		UserCode:        da.UserCode,
		VerificationURI: da.VerificationURI,
	})

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("api: device code authorization failed: %w", err)
	}

	if saveErr := saveToken(tokenPath, tok); saveErr != nil {
		return nil, fmt.Errorf("api: saving token: %w", saveErr)
	}

	logger.Info("login successful",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
	)

	return newTokenBridge(cfg.TokenSource(ctx, tok), tokenPath, tok, logger), nil
}

// TokenSourceFromPath loads a saved token and returns a TokenSource with
// auto-refresh; refreshed tokens are persisted back to tokenPath. Returns
// ErrNotLoggedIn if no token file exists.
func TokenSourceFromPath(ctx context.Context, tokenPath string, logger *slog.Logger) (TokenSource, error) {
	tok, err := loadToken(tokenPath)
	if err != nil {
		return nil, err
	}

	if tok == nil {
		return nil, ErrNotLoggedIn
	}

	expired := !tok.Expiry.IsZero() && tok.Expiry.Before(time.Now())
	logger.Info("loaded saved token",
		slog.String("path", tokenPath),
		slog.Time("expiry", tok.Expiry),
		slog.Bool("expired", expired),
	)

	cfg := oauthConfig()

	return newTokenBridge(cfg.TokenSource(ctx, tok), tokenPath, tok, logger), nil
}

// Logout removes the saved token file. Returns nil if no token file exists
// (already logged out).
func Logout(tokenPath string, logger *slog.Logger) error {
	err := os.Remove(tokenPath)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("logout: no token file to remove",
			slog.String("path", tokenPath),
		)

		return nil
	}

	if err != nil {
		return err
	}

	logger.Info("logout: removed token file",
		slog.String("path", tokenPath),
	)

	return nil
}

func oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: defaultClientID,
		Scopes:   defaultScopes,
		Endpoint: microsoft.AzureADEndpoint("common"),
	}
}

// tokenBridge adapts oauth2.TokenSource to TokenSource and persists tokens
// whenever the library silently refreshes them, so the on-disk refresh token
// stays current across process restarts.
type tokenBridge struct {
	src       oauth2.TokenSource
	tokenPath string
	lastToken string
	logger    *slog.Logger
}

func newTokenBridge(src oauth2.TokenSource, tokenPath string, tok *oauth2.Token, logger *slog.Logger) *tokenBridge {
	return &tokenBridge{
		src:       src,
		tokenPath: tokenPath,
		lastToken: tok.AccessToken,
		logger:    logger,
	}
}

func (b *tokenBridge) Token() (string, error) {
	t, err := b.src.Token()
	if err != nil {
		b.logger.Warn("token acquisition failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("api: obtaining token: %w", err)
	}

	if t.AccessToken != b.lastToken {
		b.lastToken = t.AccessToken

		if saveErr := saveToken(b.tokenPath, t); saveErr != nil {
			b.logger.Warn("failed to persist refreshed token",
				slog.String("path", b.tokenPath),
				slog.String("error", saveErr.Error()),
			)
		} else {
			b.logger.Info("persisted refreshed token",
				slog.String("path", b.tokenPath),
				slog.Time("new_expiry", t.Expiry),
			)
		}
	}

	return t.AccessToken, nil
}
