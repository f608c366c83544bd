package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hostfleet/hostfleet-cli/internal/appctx"
	"github.com/hostfleet/hostfleet-cli/internal/config"
	"github.com/hostfleet/hostfleet-cli/internal/output"
)

// NewProfileCmd creates the profile command group.
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage server profiles",
		Long: `Manage named server profiles.

A profile bundles a display name, base URL, and TLS policy identifying one
Hostfleet deployment. Tokens are stored per profile and never shared.

Examples:
  hostfleet profile list
  hostfleet profile create edge --url https://edge.example.com
  hostfleet profile set-default edge
  hostfleet --profile staging status`,
	}

	cmd.AddCommand(
		newProfileListCmd(),
		newProfileShowCmd(),
		newProfileCreateCmd(),
		newProfileDeleteCmd(),
		newProfileSetDefaultCmd(),
		newProfileUseCmd(),
	)

	return cmd
}

func newProfileListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			keys := make([]string, 0, len(app.Config.Profiles))
			for key := range app.Config.Profiles {
				keys = append(keys, key)
			}
			sort.Strings(keys)

			profiles := make([]map[string]any, 0, len(keys))
			for _, key := range keys {
				p := app.Config.Profiles[key]
				entry := map[string]any{
					"key":           key,
					"display_name":  p.DisplayName,
					"base_url":      p.BaseURL,
					"authenticated": app.Auth.IsLoggedIn(key),
				}
				if app.Config.DefaultProfile == key {
					entry["default"] = true
				}
				if app.ProfileKey == key {
					entry["active"] = true
				}
				if p.InsecureTLS {
					entry["insecure_tls"] = true
				}
				profiles = append(profiles, entry)
			}

			return app.OK(profiles, output.WithSummary(fmt.Sprintf("%d profile(s)", len(profiles))))
		},
	}
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [key]",
		Short: "Show profile details",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			key := app.ProfileKey
			if len(args) > 0 {
				key = args[0]
			}

			p, ok := app.Config.Profiles[key]
			if !ok {
				return output.ErrNotFound("Profile", key)
			}

			return app.OK(map[string]any{
				"key":           key,
				"display_name":  p.DisplayName,
				"base_url":      p.BaseURL,
				"insecure_tls":  p.InsecureTLS,
				"default":       app.Config.DefaultProfile == key,
				"authenticated": app.Auth.IsLoggedIn(key),
			}, output.WithSummary(fmt.Sprintf("Profile %s (%s)", key, p.BaseURL)))
		},
	}
}

func newProfileCreateCmd() *cobra.Command {
	var (
		displayName string
		baseURL     string
		insecure    bool
	)

	cmd := &cobra.Command{
		Use:   "create <key>",
		Short: "Create or update a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			if baseURL == "" {
				return output.ErrUsage("--url is required")
			}

			key := args[0]
			if displayName == "" {
				displayName = key
			}

			if err := app.ConfigStore.SetProfile(key, &config.Profile{
				DisplayName: displayName,
				BaseURL:     config.NormalizeBaseURL(baseURL),
				InsecureTLS: insecure,
			}); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":      key,
				"base_url": config.NormalizeBaseURL(baseURL),
			}, output.WithSummary(fmt.Sprintf("Profile %s saved", key)))
		},
	}

	cmd.Flags().StringVar(&displayName, "name", "", "Display name (defaults to the key)")
	cmd.Flags().StringVar(&baseURL, "url", "", "Base URL of the deployment (required)")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate validation for this profile")

	return cmd
}

func newProfileDeleteCmd() *cobra.Command {
	var keepTokens bool

	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			key := args[0]
			existed, err := app.ConfigStore.DeleteProfile(key)
			if err != nil {
				return err
			}
			if !existed {
				return output.ErrNotFound("Profile", key)
			}

			// The token record is orphaned once its profile is gone.
			if !keepTokens {
				_, _ = app.Auth.Logout(key)
			}

			return app.OK(map[string]any{
				"key":     key,
				"deleted": true,
			}, output.WithSummary(fmt.Sprintf("Profile %s deleted", key)))
		},
	}

	cmd.Flags().BoolVar(&keepTokens, "keep-tokens", false, "Keep the stored token record")

	return cmd
}

func newProfileSetDefaultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default <key>",
		Short: "Set the default profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			if err := app.ConfigStore.SetDefaultProfile(args[0]); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"default_profile": args[0],
			}, output.WithSummary(fmt.Sprintf("Default profile set to %s", args[0])))
		},
	}
}

func newProfileUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <key>",
		Short: "Switch to a profile",
		Long:  "Make a profile the persisted default, so subsequent invocations target it without --profile.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			if err := app.ConfigStore.SetDefaultProfile(args[0]); err != nil {
				return err
			}

			p := app.Config.Profiles[args[0]]
			return app.OK(map[string]any{
				"profile":  args[0],
				"base_url": p.BaseURL,
			}, output.WithSummary(fmt.Sprintf("Now using profile %s", args[0])))
		},
	}
}
