package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fernoz/mta-server-updater/internal/service/packager"
	"github.com/fernoz/mta-server-updater/internal/version"
)

var (
	// outputDir is where the archive and manifest are written.
	outputDir string

	// releaseVersion is the version being published.
	releaseVersion string

	// platformKey selects the build variant to publish.
	platformKey string

	// rootCmd represents the base command for packaging a release.
	rootCmd = &cobra.Command{
		Use:   "mta-release-packager [build folder]",
		Short: "Pack a built server tree into a release artifact and manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				SourceDir:   args[0],
				OutputDir:   outputDir,
				Version:     releaseVersion,
				PlatformKey: platformKey,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the mta-release-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&outputDir, "out", "o", ".", "output directory for artifact and manifest")
	rootCmd.Flags().StringVarP(&releaseVersion, "version", "v", "", "release version to publish")
	rootCmd.Flags().StringVarP(&platformKey, "platform", "p", "", "platform build key (defaults to host platform)")

	_ = rootCmd.MarkFlagRequired("version")
}
