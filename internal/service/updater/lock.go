package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
	"github.com/fernoz/mta-server-updater/internal/logger"
)

// LockFilename marks that an update run holds the installation root.
const LockFilename = ".mta-updater-lock"

// rootLock is an exclusive advisory lock scoped to one installation root.
// It is held for the duration of a run; a second run against the same root
// fails fast instead of interleaving.
type rootLock struct {
	// path is the lock file inside the installation root.
	path string
	// staleness is the age after which a leftover lock is reclaimed.
	staleness time.Duration
}

// newRootLock creates a lock for the given installation root.
func newRootLock(root string, staleness time.Duration) *rootLock {
	return &rootLock{
		path:      filepath.Join(root, LockFilename),
		staleness: staleness,
	}
}

// Acquire takes the lock or fails with ErrAlreadyUpdating.
// A lock older than the staleness window is treated as abandoned: any
// leftover updater process is terminated and the lock is reclaimed.
func (l *rootLock) Acquire(ctx context.Context) error {
	info, err := os.Stat(l.path)

	switch {
	case err == nil:
		if time.Since(info.ModTime()) <= l.staleness {
			return fmt.Errorf("%s: %w", l.path, domain.ErrAlreadyUpdating)
		}

		logger.InfoKV(ctx, "Update lock is stale, attempting recovery", "path", l.path)

		if err = terminateLeftoverUpdater(); err != nil {
			return fmt.Errorf("%s: %w", l.path, domain.ErrAlreadyUpdating)
		}

		if err = os.Remove(l.path); err != nil {
			return fmt.Errorf("%s: %w", l.path, domain.ErrAlreadyUpdating)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("inspect update lock: %w", err)
	}

	lockFile, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", l.path, domain.ErrAlreadyUpdating)
		}

		return fmt.Errorf("create update lock: %w", err)
	}

	return lockFile.Close()
}

// Release removes the lock. Safe to call when the lock was never taken.
func (l *rootLock) Release(ctx context.Context) {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove update lock", "path", l.path, "error", err)
	}
}

// terminateLeftoverUpdater kills other processes running this executable.
// A stale lock usually means a previous run was killed without cleanup; if
// one is somehow still alive it must not survive into a second run.
func terminateLeftoverUpdater() error {
	self, err := os.Executable()
	if err != nil {
		return err
	}

	executable := filepath.Base(self)

	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		var runningProcess *os.Process

		runningProcess, err = os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}
