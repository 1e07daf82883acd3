package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkallio/graphdrive-go/internal/api"
	"github.com/mkallio/graphdrive-go/internal/config"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authenticate with the drive service",
		Args:  cobra.NoArgs,
		RunE:  runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove saved credentials",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Resolve(flagConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg
	logger := buildLogger()

	_, err = api.Login(cmd.Context(), cfg.TokenPath, func(da api.DeviceAuth) {
		fmt.Fprintf(os.Stderr, "To sign in, open %s and enter the code %s\n",
			da.VerificationURI, da.UserCode)
	}, logger)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	statusf(flagQuiet, "Login successful.\n")

	return nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	cfg, err := config.Resolve(flagConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	resolvedCfg = cfg

	if err := api.Logout(cfg.TokenPath, buildLogger()); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	statusf(flagQuiet, "Logged out.\n")

	return nil
}
