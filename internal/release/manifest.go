package release

import (
	"fmt"

	"gopkg.in/yaml.v3"

	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
)

// DefaultManifestFilename is the manifest name the packager emits and the
// updater expects next to the published artifacts.
const DefaultManifestFilename = "mta-server-manifest.yaml"

// Build describes one published artifact for a single platform.
type Build struct {
	// Artifact is the archive name, resolved relative to the manifest URL.
	Artifact string `yaml:"artifact"`
	// Checksum is the SHA-256 of the archive, hex-encoded.
	Checksum string `yaml:"checksum"`
	// Files maps slash-separated relative paths inside the archive to their
	// SHA-256 checksums. This is the artifact manifest the resolver and
	// applier verify against.
	Files map[string]string `yaml:"files"`
}

// Manifest is the release listing served by the update source.
type Manifest struct {
	// Version is the release version shared by all builds.
	Version string `yaml:"version"`
	// Builds maps platform build keys (see internal/platform) to artifacts.
	Builds map[string]Build `yaml:"builds"`
}

// NewManifest returns an empty manifest for the given version.
func NewManifest(version string) *Manifest {
	return &Manifest{
		Version: version,
		Builds:  make(map[string]Build),
	}
}

// ParseManifest decodes and validates a YAML release manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode release manifest: %w", domain.ErrParse)
	}

	if m.Version == "" {
		return nil, fmt.Errorf("release manifest has no version: %w", domain.ErrParse)
	}

	if len(m.Builds) == 0 {
		return nil, fmt.Errorf("release manifest lists no builds: %w", domain.ErrParse)
	}

	for key, build := range m.Builds {
		if build.Artifact == "" || build.Checksum == "" {
			return nil, fmt.Errorf("build %s is missing artifact or checksum: %w", key, domain.ErrParse)
		}
	}

	return &m, nil
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode release manifest: %w", err)
	}

	return data, nil
}

// BuildFor returns the build published under the given platform key.
func (m *Manifest) BuildFor(key string) (Build, error) {
	build, ok := m.Builds[key]
	if !ok {
		return Build{}, fmt.Errorf("no build for platform %s in release %s: %w",
			key, m.Version, domain.ErrNotFound)
	}

	return build, nil
}
