package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostfleet/hostfleet-cli/internal/appctx"
	"github.com/hostfleet/hostfleet-cli/internal/output"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change CLI configuration",
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
		newConfigPathCmd(),
	)

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			backend := app.Config.TokenBackend
			if backend == "" {
				backend = "file"
			}

			return app.OK(map[string]any{
				"path":            app.ConfigStore.Path(),
				"default_profile": app.Config.DefaultProfile,
				"active_profile":  app.ProfileKey,
				"token_backend":   backend,
				"profiles":        len(app.Config.Profiles),
			})
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a single configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			switch args[0] {
			case "token_backend":
				backend := app.Config.TokenBackend
				if backend == "" {
					backend = "file"
				}
				fmt.Fprintln(cmd.OutOrStdout(), backend)
			case "default_profile":
				fmt.Fprintln(cmd.OutOrStdout(), app.Config.DefaultProfile)
			default:
				return output.ErrUsage(fmt.Sprintf("Unknown config key: %s", args[0]))
			}
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

Supported keys:
  token_backend   "file" (plaintext records) or "keyring" (OS keychain)`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			key, value := args[0], args[1]
			switch key {
			case "token_backend":
				if value != "file" && value != "keyring" {
					return output.ErrUsage(`token_backend must be "file" or "keyring"`)
				}
				app.Config.TokenBackend = value
			default:
				return output.ErrUsage(fmt.Sprintf("Unknown config key: %s", key))
			}

			if err := app.ConfigStore.Save(app.Config); err != nil {
				return err
			}

			return app.OK(map[string]string{
				key: value,
			}, output.WithSummary(fmt.Sprintf("%s = %s", key, value)))
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appctx.FromContext(cmd.Context())
			if app == nil {
				return fmt.Errorf("app not initialized")
			}

			fmt.Fprintln(cmd.OutOrStdout(), app.ConfigStore.Path())
			return nil
		},
	}
}
