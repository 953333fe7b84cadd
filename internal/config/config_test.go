package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and defaulting behavior.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing manifest URL.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Bad manifest URL.
	cfg = &Config{
		ManifestURL: "not a url",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Okay; defaults applied.
	cfg = &Config{
		ManifestURL: "https://updates.example.com/mta-server-manifest.yaml",
	}

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultLockStaleness, cfg.LockStaleness)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		ManifestURL: "https://updates.example.com/mta-server-manifest.yaml",
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ManifestURL, loaded.ManifestURL)
	require.Equal(t, cfg.Timeout, loaded.Timeout)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}
