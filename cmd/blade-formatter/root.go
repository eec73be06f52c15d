package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stackvity/blade-formatter/internal/cli"
	"github.com/stackvity/blade-formatter/internal/cli/config"
)

var (
	// These are set during build time using -ldflags
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blade-formatter [flags] <path>...",
		Short: "Formats Laravel Blade templates.",
		Long: `blade-formatter formats Laravel Blade templates. Blade directives and echoes are
masked, the PHP inside them and the surrounding markup are formatted by prettier, and
the template is reassembled with consistent indentation.

Paths may be files or directories. Directories are searched for .blade.php files,
honoring .bladeformatterignore and .gitignore.

By default the formatted text is printed to stdout. Use --write to rewrite the files,
--check to fail when any file is not formatted, or --diff to print the changed lines.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfgFile, _ := cmd.Flags().GetString("config")
			profileName, _ := cmd.Flags().GetString("profile")
			settings, logger, err := config.LoadAndValidate(cfgFile, profileName, version, args, cmd.Flags())
			if err != nil {
				return err
			}

			_, err = cli.Run(ctx, settings, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
	cmd.SetVersionTemplate(`{{.Name}} version {{.Version}}` + "\n")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// Execute runs the root command with os.Args and prints the error, if any, to stderr.
func Execute() error {
	cmd := newRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}
