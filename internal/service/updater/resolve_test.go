package updater

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
	"github.com/fernoz/mta-server-updater/internal/policy"
	"github.com/fernoz/mta-server-updater/internal/release"
	"github.com/fernoz/mta-server-updater/internal/repository/marker"
)

// writeTree creates files under dir from slash-separated relative paths.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for rel, contents := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o755))
	}
}

// testArtifact builds a verified-looking artifact from a content map.
func testArtifact(t *testing.T, version string, files map[string]string) *release.Artifact {
	t.Helper()

	dir := t.TempDir()
	writeTree(t, dir, files)

	checksums, err := release.HashTree(dir)
	require.NoError(t, err)

	v, err := release.ParseVersion(version)
	require.NoError(t, err)

	return &release.Artifact{
		Version: v,
		Name:    "mtasa-server-linux-x64-" + version + ".tar.gz",
		Dir:     dir,
		Files:   checksums,
	}
}

// TestClassify covers preserve, replace-new, replace-existing and orphan paths.
func TestClassify(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"mta-server64":                   "server v1.0",
		"mods/deathmatch/mtaserver.conf": "operator tuned settings",
		"leftover.txt":                   "unrelated operator data",
	})

	artifact := testArtifact(t, "1.2", map[string]string{
		"mta-server64":                   "server v1.2",
		"mods/deathmatch/mtaserver.conf": "default settings",
		"mods/deathmatch/acl.xml":        "default acl",
	})

	c, err := classify(root, artifact, policy.Default())
	require.NoError(t, err)

	// Preservation rule + exists locally.
	require.Equal(t, domain.ClassPreserve, c.Entries["mods/deathmatch/mtaserver.conf"])
	require.NotEmpty(t, c.Rationales["mods/deathmatch/mtaserver.conf"])

	// Overwrite of an existing binary.
	require.Equal(t, domain.ClassReplace, c.Entries["mta-server64"])

	// Preservation rule but absent locally: shipped default is installed.
	require.Equal(t, domain.ClassReplace, c.Entries["mods/deathmatch/acl.xml"])

	// Local file not part of the release.
	require.Equal(t, domain.ClassOrphan, c.Entries["leftover.txt"])
}

// TestClassifySkipsEngineFiles keeps updater metadata out of the orphan list.
func TestClassifySkipsEngineFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		marker.Filename: "version: 1.0\n",
		LockFilename:    "",
		"updates.log":   "2026-01-01 - server updated\n",
	})

	artifact := testArtifact(t, "1.2", map[string]string{
		"mta-server64": "server v1.2",
	})

	c, err := classify(root, artifact, policy.Default())
	require.NoError(t, err)
	require.Empty(t, c.Paths(domain.ClassOrphan))
}
