package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fernoz/mta-server-updater/internal/logger"
	"github.com/fernoz/mta-server-updater/internal/platform"
	"github.com/fernoz/mta-server-updater/internal/release"
)

var errSourceRequired = errors.New("source directory must be provided")

// Options contains inputs for the packager entry point.
type Options struct {
	// SourceDir is the built server tree to pack.
	SourceDir string
	// OutputDir is where the archive and manifest are written (defaults to ".").
	OutputDir string
	// Version is the release version being published.
	Version string
	// PlatformKey selects the build variant (defaults to the host platform).
	PlatformKey string
}

// packager prepares one platform build of a release.
// It is unexported; callers should use Run.
type packager struct {
	sourceDir string
	outputDir string
	version   release.Version
	build     platform.Build
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "mta-release-packager")

	p, err := newPackager(opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	if err = p.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// newPackager validates inputs and resolves the platform build.
func newPackager(opts *Options) (*packager, error) {
	if opts.SourceDir == "" {
		return nil, errSourceRequired
	}

	info, err := os.Stat(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("source directory: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", opts.SourceDir)
	}

	v, err := release.ParseVersion(opts.Version)
	if err != nil {
		return nil, err
	}

	build, err := resolveBuild(opts.PlatformKey)
	if err != nil {
		return nil, err
	}

	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "."
	}

	return &packager{
		sourceDir: opts.SourceDir,
		outputDir: outputDir,
		version:   v,
		build:     build,
	}, nil
}

// resolveBuild picks the requested build variant, defaulting to the host.
func resolveBuild(key string) (platform.Build, error) {
	if key == "" {
		return platform.Current()
	}

	return platform.ByKey(key)
}

// Run packs the archive and writes the merged release manifest.
func (p *packager) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "Hashing server tree", "dir", p.sourceDir)

	files, err := release.HashTree(p.sourceDir)
	if err != nil {
		return err
	}

	artifactName := fmt.Sprintf("mtasa-server-%s-%s.tar.gz", p.build.Key, p.version.String())
	artifactPath := filepath.Join(p.outputDir, artifactName)

	logger.InfoKV(ctx, "Packing release artifact", "path", artifactPath, "files", len(files))

	if err = release.CreateTarGz(p.sourceDir, artifactPath); err != nil {
		return fmt.Errorf("pack artifact: %w", err)
	}

	checksum, err := release.FileChecksum(artifactPath)
	if err != nil {
		return fmt.Errorf("hash artifact: %w", err)
	}

	manifest, err := p.loadOrCreateManifest()
	if err != nil {
		return err
	}

	manifest.Builds[p.build.Key] = release.Build{
		Artifact: artifactName,
		Checksum: checksum,
		Files:    files,
	}

	if err = p.saveManifest(manifest); err != nil {
		return err
	}

	p.printNextSteps(ctx, artifactName)

	return nil
}

// loadOrCreateManifest merges into an existing manifest of the same version,
// otherwise starts a fresh one.
func (p *packager) loadOrCreateManifest() (*release.Manifest, error) {
	path := p.manifestPath()

	contents, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, os.ErrNotExist) {
		return release.NewManifest(p.version.String()), nil
	}

	if err != nil {
		return nil, fmt.Errorf("read existing manifest: %w", err)
	}

	existing, err := release.ParseManifest(contents)
	if err != nil {
		return nil, err
	}

	if existing.Version != p.version.String() {
		// A new release supersedes every build of the previous one.
		return release.NewManifest(p.version.String()), nil
	}

	return existing, nil
}

// saveManifest writes the manifest next to the artifact.
func (p *packager) saveManifest(manifest *release.Manifest) error {
	data, err := manifest.Marshal()
	if err != nil {
		return err
	}

	if err = os.WriteFile(p.manifestPath(), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// manifestPath is the manifest location inside the output directory.
func (p *packager) manifestPath() string {
	return filepath.Join(p.outputDir, release.DefaultManifestFilename)
}

// printNextSteps logs human-readable guidance for publishing the release.
func (p *packager) printNextSteps(ctx context.Context, artifactName string) {
	logger.Infof(ctx,
		"Upload %s and %s to the update server folder; point mta-updater at the manifest URL",
		artifactName, release.DefaultManifestFilename)
}
