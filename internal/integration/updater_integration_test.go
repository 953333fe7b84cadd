package integration

import (
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fernoz/mta-server-updater/internal/config"
	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
	"github.com/fernoz/mta-server-updater/internal/platform"
	"github.com/fernoz/mta-server-updater/internal/repository/marker"
	"github.com/fernoz/mta-server-updater/internal/service/packager"
	"github.com/fernoz/mta-server-updater/internal/service/updater"
)

// publishRelease packs a server tree with the release packager and serves the
// resulting artifact and manifest over HTTP. Returns the manifest URL.
func publishRelease(t *testing.T, ctx context.Context, version string, files map[string][]byte) string {
	t.Helper()

	src := t.TempDir()
	for rel, contents := range files {
		path := filepath.Join(src, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, contents, 0o755))
	}

	out := t.TempDir()
	require.NoError(t, packager.Run(ctx, &packager.Options{
		SourceDir: src,
		OutputDir: out,
		Version:   version,
	}))

	ts := httptest.NewServer(http.FileServer(http.Dir(out)))
	t.Cleanup(ts.Close)

	return ts.URL + "/mta-server-manifest.yaml"
}

// snapshotModTimes records modification times of every file under root.
func snapshotModTimes(t *testing.T, root string) map[string]time.Time {
	t.Helper()

	times := make(map[string]time.Time)

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		times[path] = info.ModTime()

		return nil
	})
	require.NoError(t, err)

	return times
}

// TestUpdater_FullPipeline exercises probe, fetch, resolve and apply against
// a release published with the packager: operator settings survive, binaries
// are replaced, the marker is rewritten and a second run is a no-op.
func TestUpdater_FullPipeline(t *testing.T) {
	t.Parallel()

	if _, err := platform.Current(); err != nil {
		t.Skipf("no server build for host platform: %v", err)
	}

	ctx := context.Background()
	operatorConf := []byte("operator tuned settings")

	manifestURL := publishRelease(t, ctx, "1.2", map[string][]byte{
		"mta-server64":                   []byte("server v1.2"),
		"x64/libcore.so":                 []byte("core v1.2"),
		"mods/deathmatch/mtaserver.conf": []byte("default settings"),
	})

	// Installation at version 1.0 with operator-owned configuration.
	root := filepath.Join(t.TempDir(), "server")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "mods", "deathmatch"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mta-server64"), []byte("server v1.0"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "mods", "deathmatch", "mtaserver.conf"), operatorConf, 0o644))
	require.NoError(t, marker.ForRoot(root).Save(ctx, &marker.Record{Version: "1.0"}))

	status, err := updater.Run(ctx, &updater.Options{
		ManifestURL: manifestURL,
		Root:        root,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StateDone, status.State)
	require.Equal(t, "1.0", status.From)
	require.Equal(t, "1.2", status.To)

	// Preservation invariant.
	conf, err := os.ReadFile(filepath.Join(root, "mods", "deathmatch", "mtaserver.conf"))
	require.NoError(t, err)
	require.Equal(t, operatorConf, conf)

	// Binaries match the release.
	bin, err := os.ReadFile(filepath.Join(root, "mta-server64"))
	require.NoError(t, err)
	require.Equal(t, "server v1.2", string(bin))

	// Marker records the target version.
	record, err := marker.ForRoot(root).Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "1.2", record.Version)

	// Second run converges with zero file modifications.
	before := snapshotModTimes(t, root)

	status, err = updater.Run(ctx, &updater.Options{
		ManifestURL: manifestURL,
		Root:        root,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StateUpToDate, status.State)
	require.Equal(t, before, snapshotModTimes(t, root))
}

// TestUpdater_UnknownVersionForcesResync runs against a root without a
// marker and expects a full synchronization.
func TestUpdater_UnknownVersionForcesResync(t *testing.T) {
	t.Parallel()

	if _, err := platform.Current(); err != nil {
		t.Skipf("no server build for host platform: %v", err)
	}

	ctx := context.Background()

	manifestURL := publishRelease(t, ctx, "1.2", map[string][]byte{
		"mta-server64": []byte("server v1.2"),
	})

	root := filepath.Join(t.TempDir(), "server")
	require.NoError(t, os.MkdirAll(root, 0o755))

	status, err := updater.Run(ctx, &updater.Options{
		ManifestURL: manifestURL,
		Root:        root,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StateDone, status.State)
	require.Equal(t, "unknown", status.From)

	bin, err := os.ReadFile(filepath.Join(root, "mta-server64"))
	require.NoError(t, err)
	require.Equal(t, "server v1.2", string(bin))
}

// TestUpdater_TimeoutLeavesRootUntouched simulates a hanging release source
// and expects a network failure with no residue in the installation.
func TestUpdater_TimeoutLeavesRootUntouched(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(ts.Close)

	root := filepath.Join(t.TempDir(), "server")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "mta-server64"), []byte("server v1.0"), 0o755))

	cfgPath := filepath.Join(t.TempDir(), config.DefaultConfigFilename)
	require.NoError(t, config.Save(cfgPath, &config.Config{
		ManifestURL: ts.URL + "/mta-server-manifest.yaml",
		Timeout:     100 * time.Millisecond,
	}))

	status, err := updater.Run(context.Background(), &updater.Options{
		ConfigPath: cfgPath,
		Root:       root,
	})
	require.ErrorIs(t, err, domain.ErrNetwork)
	require.Equal(t, domain.StateFailed, status.State)

	// Root holds exactly the original binary; no lock, staging or marker.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "mta-server64", entries[0].Name())
}

// TestUpdater_FailsFastWhenLocked verifies a concurrent run is rejected
// without touching the held lock.
func TestUpdater_FailsFastWhenLocked(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "server")
	require.NoError(t, os.MkdirAll(root, 0o755))

	lockPath := filepath.Join(root, updater.LockFilename)
	require.NoError(t, os.WriteFile(lockPath, nil, 0o600))

	_, err := updater.Run(context.Background(), &updater.Options{
		ManifestURL: "http://127.0.0.1:0/mta-server-manifest.yaml",
		Root:        root,
	})
	require.ErrorIs(t, err, domain.ErrAlreadyUpdating)

	// The foreign lock is still in place.
	_, err = os.Stat(lockPath)
	require.NoError(t, err)
}
