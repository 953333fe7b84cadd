package updater

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
)

// TestLockExcludesSecondRun verifies the root-scoped lock fails fast.
func TestLockExcludesSecondRun(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ctx := context.Background()

	first := newRootLock(root, time.Minute)
	require.NoError(t, first.Acquire(ctx))

	second := newRootLock(root, time.Minute)
	require.ErrorIs(t, second.Acquire(ctx), domain.ErrAlreadyUpdating)

	first.Release(ctx)
	require.NoError(t, second.Acquire(ctx))
	second.Release(ctx)
}

// TestLockReclaimsStale verifies an abandoned lock older than the staleness
// window is recovered.
func TestLockReclaimsStale(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ctx := context.Background()

	path := filepath.Join(root, LockFilename)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	stale := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, stale, stale))

	lock := newRootLock(root, time.Minute)
	require.NoError(t, lock.Acquire(ctx))
	lock.Release(ctx)
}

// TestLockReleaseWithoutAcquire is a no-op.
func TestLockReleaseWithoutAcquire(t *testing.T) {
	t.Parallel()

	newRootLock(t.TempDir(), time.Minute).Release(context.Background())
}
