package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fernoz/mta-server-updater/internal/config"
	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
	"github.com/fernoz/mta-server-updater/internal/logger"
	"github.com/fernoz/mta-server-updater/internal/service/updater"
	"github.com/fernoz/mta-server-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// manifestURL overrides the configured release manifest URL.
	manifestURL string

	// logLevel sets the minimum log level.
	logLevel string

	// rootCmd represents the base command for updating a server installation.
	rootCmd = &cobra.Command{
		Use:   "mta-updater [server folder]",
		Short: "Update a local MTA server installation to the latest release",
		Long: "Synchronize a locally installed MTA server with the latest published release. " +
			"Operator configuration, databases, resources and logs are never overwritten; " +
			"files no longer part of the release are reported, not deleted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			root := "."
			if len(args) > 0 {
				root = args[0]
			}

			options := &updater.Options{
				ConfigPath:  configPath,
				ManifestURL: manifestURL,
				Root:        root,
			}

			status, err := updater.Run(ctx, options)
			if err != nil {
				return err
			}

			switch status.State {
			case domain.StateUpToDate:
				fmt.Fprintf(cmd.OutOrStdout(), "Server is up to date (version %s)\n", status.To)
			case domain.StateDone:
				fmt.Fprintf(cmd.OutOrStdout(), "Server updated from %s to %s\n", status.From, status.To)
			}

			return nil
		},
	}
)

// Execute runs the mta-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&manifestURL, "url", "u", "", "release manifest URL (overrides configuration)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "minimum log level")
}
