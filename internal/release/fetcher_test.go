package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
	"github.com/fernoz/mta-server-updater/internal/platform"
)

// buildTestArtifact packs a small server tree and returns the archive path
// and its file manifest.
func buildTestArtifact(t *testing.T) (string, map[string]string) {
	t.Helper()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "x64"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "mta-server64"), []byte("server v1.2"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "x64", "libcore.so"), []byte("core v1.2"), 0o644))

	archive := filepath.Join(t.TempDir(), "mtasa-server-linux-x64-1.2.tar.gz")
	require.NoError(t, CreateTarGz(src, archive))

	files, err := HashTree(src)
	require.NoError(t, err)

	return archive, files
}

// serveArtifact exposes the archive over HTTP and returns the manifest URL.
func serveArtifact(t *testing.T, archive string) string {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/"+filepath.Base(archive), func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, archive)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts.URL + "/" + DefaultManifestFilename
}

// TestFetchVerifiesAndExtracts checks the happy path end to end.
func TestFetchVerifiesAndExtracts(t *testing.T) {
	t.Parallel()

	archive, files := buildTestArtifact(t)
	manifestURL := serveArtifact(t, archive)

	checksum, err := FileChecksum(archive)
	require.NoError(t, err)

	manifest := NewManifest("1.2")
	manifest.Builds["linux-x64"] = Build{
		Artifact: filepath.Base(archive),
		Checksum: checksum,
		Files:    files,
	}

	fetcher := NewFetcher(manifestURL, 5*time.Second)

	artifact, err := fetcher.Fetch(context.Background(), manifest, platform.Build{Key: "linux-x64"})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = artifact.Close()
	})

	require.Equal(t, "1.2", artifact.Version.String())

	contents, err := os.ReadFile(artifact.Path("mta-server64"))
	require.NoError(t, err)
	require.Equal(t, "server v1.2", string(contents))

	// Close removes the extracted tree.
	require.NoError(t, artifact.Close())
	_, err = os.Stat(artifact.Dir)
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestFetchRejectsCorruptArchive checks the integrity gate discards the artifact.
func TestFetchRejectsCorruptArchive(t *testing.T) {
	t.Parallel()

	archive, files := buildTestArtifact(t)
	manifestURL := serveArtifact(t, archive)

	manifest := NewManifest("1.2")
	manifest.Builds["linux-x64"] = Build{
		Artifact: filepath.Base(archive),
		Checksum: "0000000000000000000000000000000000000000000000000000000000000000",
		Files:    files,
	}

	fetcher := NewFetcher(manifestURL, 5*time.Second)

	artifact, err := fetcher.Fetch(context.Background(), manifest, platform.Build{Key: "linux-x64"})
	require.ErrorIs(t, err, domain.ErrIntegrity)
	require.Nil(t, artifact)
}

// TestFetchRejectsCorruptFile checks per-file verification after extraction.
func TestFetchRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	archive, files := buildTestArtifact(t)
	manifestURL := serveArtifact(t, archive)

	checksum, err := FileChecksum(archive)
	require.NoError(t, err)

	files["mta-server64"] = "1111111111111111111111111111111111111111111111111111111111111111"

	manifest := NewManifest("1.2")
	manifest.Builds["linux-x64"] = Build{
		Artifact: filepath.Base(archive),
		Checksum: checksum,
		Files:    files,
	}

	fetcher := NewFetcher(manifestURL, 5*time.Second)

	_, err = fetcher.Fetch(context.Background(), manifest, platform.Build{Key: "linux-x64"})
	require.ErrorIs(t, err, domain.ErrIntegrity)
}

// TestFetchMissingBuild checks unknown platform keys map to ErrNotFound.
func TestFetchMissingBuild(t *testing.T) {
	t.Parallel()

	manifest := NewManifest("1.2")
	manifest.Builds["linux-x64"] = Build{Artifact: "a.tar.gz", Checksum: "aa"}

	fetcher := NewFetcher("http://127.0.0.1:0/manifest.yaml", time.Second)

	_, err := fetcher.Fetch(context.Background(), manifest, platform.Build{Key: "windows-arm64"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// TestFetchUnreachableSource checks transport failures map to ErrNetwork.
func TestFetchUnreachableSource(t *testing.T) {
	t.Parallel()

	manifest := NewManifest("1.2")
	manifest.Builds["linux-x64"] = Build{Artifact: "a.tar.gz", Checksum: "aa"}

	fetcher := NewFetcher("http://127.0.0.1:1/manifest.yaml", 500*time.Millisecond)

	_, err := fetcher.Fetch(context.Background(), manifest, platform.Build{Key: "linux-x64"})
	require.ErrorIs(t, err, domain.ErrNetwork)
}
