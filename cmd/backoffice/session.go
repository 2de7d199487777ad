package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gosuda/backoffice/internal/config"
	"github.com/gosuda/backoffice/internal/feature"
	"github.com/gosuda/backoffice/internal/remote"
	"github.com/gosuda/backoffice/internal/session"
	"github.com/gosuda/backoffice/internal/store"
)

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session token",
	Long: `Sign in against the upstream API and store the bearer token in the
configured session backend, where a running server picks it up on restart.

The password may also be passed through BACKOFFICE_PASSWORD.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the persisted session token",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the persisted session",
	RunE:  runWhoami,
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Operator email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (default: $BACKOFFICE_PASSWORD)")
}

var errLoginRejected = errors.New("login rejected")

// cliAuth wires a standalone session driver for the one-shot commands.
func cliAuth(cmd *cobra.Command) (*feature.Auth, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	tokens, _, err := tokenStore(cmd.Context(), cfg)
	if err != nil {
		return nil, nil, err
	}
	source := session.NewSource(tokens)
	_, public, err := clients(cfg, source)
	if err != nil {
		closeStore(tokens)
		return nil, nil, err
	}
	st := store.New()
	auth := feature.NewAuth(st, source, loginVia(public), feature.NewMessages(feature.ParseLocale(cfg.UI.Locale)))
	cleanup := func() {
		st.Close()
		closeStore(tokens)
	}
	return auth, cleanup, nil
}

func runLogin(cmd *cobra.Command, _ []string) error {
	auth, cleanup, err := cliAuth(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	password := loginPassword
	if password == "" {
		password = os.Getenv("BACKOFFICE_PASSWORD")
	}

	st, err := auth.Login(cmd.Context(), loginEmail, password)
	if err != nil {
		return err
	}
	if st.Status == remote.StatusFailed {
		return fmt.Errorf("%w: %s", errLoginRejected, st.Error)
	}
	return printJSON(cmd, st)
}

func runLogout(cmd *cobra.Command, _ []string) error {
	auth, cleanup, err := cliAuth(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	return auth.Logout(cmd.Context())
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	auth, cleanup, err := cliAuth(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := auth.Rehydrate(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, st)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("print: %w", err)
	}
	return nil
}
