package release

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
	"github.com/fernoz/mta-server-updater/internal/logger"
	"github.com/fernoz/mta-server-updater/internal/platform"
)

// Artifact is one verified, extracted release artifact.
// It is owned transiently by a single update run; Close removes it.
type Artifact struct {
	// Version is the release version the artifact belongs to.
	Version Version
	// Name is the archive name, recorded in the version marker after apply.
	Name string
	// Dir is the directory holding the extracted content.
	Dir string
	// Files maps slash-separated relative paths to SHA-256 checksums.
	Files map[string]string

	// root is the temporary tree removed by Close.
	root string
}

// Path returns the absolute location of one extracted file.
func (a *Artifact) Path(rel string) string {
	return filepath.Join(a.Dir, filepath.FromSlash(rel))
}

// Close removes the artifact's temporary tree.
func (a *Artifact) Close() error {
	if a.root == "" {
		return nil
	}

	return os.RemoveAll(a.root)
}

// Fetcher downloads and verifies release artifacts.
type Fetcher struct {
	// manifestURL anchors relative artifact names in the manifest.
	manifestURL string
	// client is the HTTP client used for downloads.
	client *http.Client
}

// NewFetcher creates a fetcher resolving artifacts relative to the manifest URL.
func NewFetcher(manifestURL string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		manifestURL: manifestURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch downloads the artifact for the given platform build, verifies the
// archive checksum, extracts it and verifies every extracted file against the
// build's file manifest. A failure at any point removes everything that was
// downloaded; a verified artifact is the only thing ever handed to the applier.
func (f *Fetcher) Fetch(ctx context.Context, manifest *Manifest, build platform.Build) (*Artifact, error) {
	published, err := manifest.BuildFor(build.Key)
	if err != nil {
		return nil, err
	}

	v, err := ParseVersion(manifest.Version)
	if err != nil {
		return nil, err
	}

	root, err := os.MkdirTemp("", "mta-updater-artifact-")
	if err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}

	artifact, err := f.fetchInto(ctx, root, v, published)
	if err != nil {
		_ = os.RemoveAll(root)

		return nil, err
	}

	return artifact, nil
}

// fetchInto performs download, verification and extraction inside root.
func (f *Fetcher) fetchInto(ctx context.Context, root string, v Version, published Build) (*Artifact, error) {
	artifactURL, err := f.resolveArtifactURL(published.Artifact)
	if err != nil {
		return nil, err
	}

	archivePath := filepath.Join(root, filepath.Base(published.Artifact))

	logger.InfoKV(ctx, "Downloading release artifact", "url", artifactURL)

	if err = f.download(ctx, artifactURL, archivePath); err != nil {
		return nil, err
	}

	checksum, err := FileChecksum(archivePath)
	if err != nil {
		return nil, fmt.Errorf("hash downloaded artifact: %w", err)
	}

	if checksum != published.Checksum {
		return nil, &domain.IntegrityError{
			Path:     published.Artifact,
			Expected: published.Checksum,
			Actual:   checksum,
		}
	}

	contentDir := filepath.Join(root, "content")
	if err = extract(archivePath, contentDir); err != nil {
		return nil, fmt.Errorf("extract %s: %w", published.Artifact, err)
	}

	if err = verifyTree(contentDir, published.Files); err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Release artifact verified",
		"artifact", published.Artifact, "files", len(published.Files))

	return &Artifact{
		Version: v,
		Name:    published.Artifact,
		Dir:     contentDir,
		Files:   published.Files,
		root:    root,
	}, nil
}

// resolveArtifactURL resolves the artifact name against the manifest URL.
// Absolute artifact URLs are used as-is.
func (f *Fetcher) resolveArtifactURL(artifact string) (string, error) {
	base, err := url.Parse(f.manifestURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", f.manifestURL, domain.ErrNetwork)
	}

	ref, err := url.Parse(artifact)
	if err != nil {
		return "", fmt.Errorf("artifact name %q: %w", artifact, domain.ErrParse)
	}

	return base.ResolveReference(ref).String(), nil
}

// download streams the artifact to disk, mapping failures onto error kinds.
func (f *Fetcher) download(ctx context.Context, artifactURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("%s: %w", artifactURL, domain.ErrNetwork)
	}

	response, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", artifactURL, err, domain.ErrNetwork)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	switch {
	case response.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", artifactURL, domain.ErrNotFound)
	case response.StatusCode != http.StatusOK:
		return fmt.Errorf("%s: %s: %w", artifactURL, response.Status, domain.ErrNetwork)
	}

	out, err := os.Create(filepath.Clean(dst))
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err = io.Copy(out, response.Body); err != nil {
		_ = out.Close()

		return fmt.Errorf("%s: %v: %w", artifactURL, err, domain.ErrNetwork)
	}

	return out.Close()
}

// verifyTree checks every manifest entry exists under dir with the promised checksum.
func verifyTree(dir string, files map[string]string) error {
	for rel, expected := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))

		actual, err := FileChecksum(path)
		if err != nil {
			return fmt.Errorf("artifact file %s: %v: %w", rel, err, domain.ErrIntegrity)
		}

		if actual != expected {
			return &domain.IntegrityError{
				Path:     rel,
				Expected: expected,
				Actual:   actual,
			}
		}
	}

	return nil
}
