// Package commands implements the CLI commands.
package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hostfleet/hostfleet-cli/internal/appctx"
	"github.com/hostfleet/hostfleet-cli/internal/auth"
	"github.com/hostfleet/hostfleet-cli/internal/output"
)

// NewLoginCmd creates the login command.
func NewLoginCmd() *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Authenticate against the active profile",
		Long:  "Exchange credentials for a token session on the active profile's server.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			if password == "" {
				password = app.Env.Password
			}
			if password == "" {
				return output.ErrUsageHint(
					"Password required",
					"Use --password or set HOSTFLEET_PASSWORD",
				)
			}

			record, err := app.Auth.Login(cmd.Context(), app.ProfileKey, app.Profile, args[0], password)
			if err != nil {
				return err
			}

			return app.OK(map[string]any{
				"profile":  app.ProfileKey,
				"username": record.User.Username,
				"role":     record.User.Role,
			}, output.WithSummary(fmt.Sprintf("Logged in as %s", record.User.Username)))
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (falls back to HOSTFLEET_PASSWORD)")

	return cmd
}

// NewLogoutCmd creates the logout command.
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Long:  "Remove the stored token record for the active profile.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			existed, err := app.Auth.Logout(app.ProfileKey)
			if err != nil {
				return err
			}

			summary := "Logged out"
			if !existed {
				summary = "No session to remove"
			}
			return app.OK(map[string]any{
				"profile":    app.ProfileKey,
				"logged_out": existed,
			}, output.WithSummary(summary))
		},
	}
}

// NewWhoamiCmd creates the whoami command.
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity behind the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			token, err := app.RequireAuth(cmd.Context())
			if err != nil {
				return err
			}

			info := map[string]any{"profile": app.ProfileKey}
			summary := "Authenticated"

			// Claims are display-only; an opaque token is still a valid
			// session.
			if claims, err := auth.DecodeClaims(token); err == nil {
				info["username"] = claims.Username
				info["role"] = claims.Role
				if exp := claims.ExpiresAt(); !exp.IsZero() {
					info["token_expires"] = exp.Format(time.RFC3339)
				}
				if claims.Username != "" {
					summary = fmt.Sprintf("Logged in as %s", claims.Username)
				}
			} else if stored := app.Auth.StoredToken(app.ProfileKey); stored != nil {
				info["username"] = stored.User.Username
				info["role"] = stored.User.Role
				if stored.User.Username != "" {
					summary = fmt.Sprintf("Logged in as %s", stored.User.Username)
				}
			}

			return app.OK(info, output.WithSummary(summary))
		},
	}
}

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show authentication status for the active profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			status := map[string]any{
				"profile":  app.ProfileKey,
				"base_url": app.Profile.BaseURL,
			}

			if app.Auth.HasEnvToken() {
				status["authenticated"] = true
				status["source"] = "HOSTFLEET_TOKEN"
				return app.OK(status, output.WithSummary("Authenticated via HOSTFLEET_TOKEN"))
			}

			stored := app.Auth.StoredToken(app.ProfileKey)
			if stored == nil {
				status["authenticated"] = false
				if app.Auth.HasAutoLogin() {
					status["source"] = "auto-login"
					return app.OK(status, output.WithSummary("Auto-login configured; no session yet"))
				}
				return app.OK(status, output.WithSummary("Not logged in"))
			}

			status["authenticated"] = true
			status["source"] = "stored"
			status["username"] = stored.User.Username
			expiresIn := time.Until(time.UnixMilli(stored.ExpiresAt))
			status["expires_in"] = expiresIn.Round(time.Second).String()
			status["expiring"] = auth.Expired(stored)

			summary := fmt.Sprintf("Logged in as %s", stored.User.Username)
			if auth.Expired(stored) {
				summary += " (token expiring, will refresh on next call)"
			}
			return app.OK(status, output.WithSummary(summary))
		},
	}
}

// NewTokenCmd creates the token command.
func NewTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token",
		Long:  "Print a currently valid access token for the active profile, refreshing if needed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			token, err := app.RequireAuth(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

// NewRefreshCmd creates the refresh command.
func NewRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force a token refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			record, err := app.Auth.Refresh(cmd.Context(), app.ProfileKey, app.Profile)
			if err != nil {
				return err
			}

			expiresIn := time.Until(time.UnixMilli(record.ExpiresAt))
			return app.OK(map[string]any{
				"profile":    app.ProfileKey,
				"expires_in": expiresIn.Round(time.Second).String(),
			}, output.WithSummary("Token refreshed"))
		},
	}
}
