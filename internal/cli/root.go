// Package cli wires the root command and its subcommands.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hostfleet/hostfleet-cli/internal/appctx"
	"github.com/hostfleet/hostfleet-cli/internal/commands"
	"github.com/hostfleet/hostfleet-cli/internal/config"
	"github.com/hostfleet/hostfleet-cli/internal/output"
	"github.com/hostfleet/hostfleet-cli/internal/version"
)

// NewRootCmd creates the root cobra command.
func NewRootCmd() *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:           "hostfleet",
		Short:         "Command-line interface for Hostfleet",
		Long:          "hostfleet is a CLI for managing machines, services, and updates on a Hostfleet server across multiple named profiles.",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for commands that never touch a server or config.
			// Completion runs as a leaf command named after the shell, so
			// the parent name is what identifies it.
			switch cmd.Name() {
			case "help", "version", "completion":
				return nil
			}
			if parent := cmd.Parent(); parent != nil && parent.Name() == "completion" {
				return nil
			}

			env := config.EnvFromProcess()
			store := config.NewStore("", env)

			app, err := appctx.NewApp(env, store, flags)
			if err != nil {
				return err
			}

			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return nil
		},
	}

	cmd.SetVersionTemplate(version.Full() + "\n")

	cmd.PersistentFlags().SetInterspersed(true)

	cmd.PersistentFlags().BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	cmd.PersistentFlags().BoolVar(&flags.YAML, "yaml", false, "Output as YAML")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	cmd.PersistentFlags().StringVar(&flags.Profile, "profile", "", "Profile key to use for this invocation")
	cmd.PersistentFlags().StringVar(&flags.URL, "url", "", "Override the resolved profile's base URL")
	cmd.PersistentFlags().BoolVar(&flags.Insecure, "insecure", false, "Skip TLS certificate validation for this invocation")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Trace requests to stderr")

	return cmd
}

// Execute runs the root command and converts failures into a structured
// error envelope plus a non-zero exit code.
func Execute() {
	cmd := NewRootCmd()

	cmd.AddCommand(commands.NewLoginCmd())
	cmd.AddCommand(commands.NewLogoutCmd())
	cmd.AddCommand(commands.NewWhoamiCmd())
	cmd.AddCommand(commands.NewStatusCmd())
	cmd.AddCommand(commands.NewTokenCmd())
	cmd.AddCommand(commands.NewRefreshCmd())
	cmd.AddCommand(commands.NewProfileCmd())
	cmd.AddCommand(commands.NewConfigCmd())
	cmd.AddCommand(commands.NewAPICmd())

	executedCmd, err := cmd.ExecuteC()
	if err == nil {
		return
	}

	apiErr := output.AsError(err)

	if app := appctx.FromContext(executedCmd.Context()); app != nil {
		_ = app.Output.Err(err)
		os.Exit(apiErr.ExitCode())
	}

	// App not available (failure during setup): emit the error directly.
	writer := output.New(output.Options{Format: output.FormatAuto, Writer: os.Stdout})
	_ = writer.Err(err)
	os.Exit(apiErr.ExitCode())
}
