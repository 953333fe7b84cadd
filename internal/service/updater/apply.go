package updater

import (
	"bytes"
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	goupdate "github.com/doitdistributed/go-update"

	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
	"github.com/fernoz/mta-server-updater/internal/logger"
	"github.com/fernoz/mta-server-updater/internal/release"
	"github.com/fernoz/mta-server-updater/internal/repository/marker"

	// Ensure SHA256 is available for checksum-gated writes.
	_ "crypto/sha256"
)

const (
	// directoryMode is applied to directories created during staging and swap.
	directoryMode os.FileMode = 0o755

	// updatesLogFilename is the update history appended inside the root.
	updatesLogFilename = "updates.log"

	// swapChecksumFunction gates every live write during the swap phase.
	swapChecksumFunction crypto.Hash = crypto.SHA256
)

// apply executes the classified plan against the installation root.
//
// All Replace files are first staged into a temporary sibling directory and
// verified; until the swap phase starts, no live file is touched and any
// failure aborts cleanly. The swap replaces files one by one with
// checksum-gated writes; a mid-swap failure reports exactly which paths were
// replaced so a re-run can converge. After a full swap the version marker is
// rewritten and a line is appended to the update history.
func apply(
	ctx context.Context,
	root string,
	artifact *release.Artifact,
	c *domain.Classification,
	markers marker.Repository,
) (*domain.ApplyReport, error) {
	plan := domain.NewPlan(c)
	copies := plan.Copies()

	report := &domain.ApplyReport{
		Swapped:   make([]string, 0, len(copies)),
		Preserved: c.Paths(domain.ClassPreserve),
		Orphans:   c.Paths(domain.ClassOrphan),
	}

	if len(copies) > 0 {
		staging, err := stage(ctx, root, artifact, copies)
		if staging != "" {
			// The staging directory never outlives a run, success or failure.
			defer func() {
				_ = os.RemoveAll(staging)
			}()
		}

		if err != nil {
			return nil, err
		}

		if err = swap(ctx, root, staging, artifact, copies, report); err != nil {
			return report, err
		}
	}

	record := &marker.Record{
		Version:   artifact.Version.String(),
		Artifact:  artifact.Name,
		UpdatedAt: time.Now().UTC(),
	}
	if err := markers.Save(ctx, record); err != nil {
		return report, fmt.Errorf("rewrite version marker: %w", err)
	}

	if err := appendUpdateLog(root, artifact.Name); err != nil {
		logger.WarnKV(ctx, "Unable to append update history", "error", err)
	}

	return report, nil
}

// stage copies every Replace file into a fresh sibling staging directory and
// verifies each staged copy against the artifact manifest. The live root is
// not touched. Returns the staging directory path even on failure so the
// caller can clean it up.
func stage(ctx context.Context, root string, artifact *release.Artifact, copies []string) (string, error) {
	staging, err := os.MkdirTemp(filepath.Dir(root), ".mta-updater-staging-")
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}

	logger.DebugKV(ctx, "Staging release files", "dir", staging, "count", len(copies))

	for _, rel := range copies {
		dst := filepath.Join(staging, filepath.FromSlash(rel))

		if err = copyFile(artifact.Path(rel), dst); err != nil {
			return staging, fmt.Errorf("stage %s: %w", rel, err)
		}

		staged, err := release.FileChecksum(dst)
		if err != nil {
			return staging, fmt.Errorf("verify staged %s: %w", rel, err)
		}

		if expected := artifact.Files[rel]; staged != expected {
			return staging, &domain.IntegrityError{
				Path:     rel,
				Expected: expected,
				Actual:   staged,
			}
		}
	}

	return staging, nil
}

// swap moves every staged file over its live path with a checksum-gated
// write, carrying the staged file's mode. The original is retained as
// <path>.old until the write is confirmed and removed afterwards.
func swap(
	ctx context.Context,
	root, staging string,
	artifact *release.Artifact,
	copies []string,
	report *domain.ApplyReport,
) error {
	for i, rel := range copies {
		if err := swapOne(root, staging, rel, artifact.Files[rel]); err != nil {
			return &domain.PartialApplyError{
				Swapped: append([]string(nil), copies[:i]...),
				Pending: append([]string(nil), copies[i:]...),
				Cause:   err,
			}
		}

		report.Swapped = append(report.Swapped, rel)

		logger.DebugKV(ctx, "Replaced file", "path", rel)
	}

	return nil
}

// swapOne replaces a single live file with its staged copy.
// The staged mode survives the swap, so release configs stay non-executable.
func swapOne(root, staging, rel, checksumHex string) error {
	checksum, err := hex.DecodeString(checksumHex)
	if err != nil {
		return fmt.Errorf("decode checksum for %s: %w", rel, domain.ErrParse)
	}

	staged := filepath.Join(staging, filepath.FromSlash(rel))

	info, err := os.Stat(staged)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(staged)
	if err != nil {
		return err
	}

	target := filepath.Join(root, filepath.FromSlash(rel))
	if err = os.MkdirAll(filepath.Dir(target), directoryMode); err != nil {
		return err
	}

	// go-update requires the target to exist.
	if _, err = os.Stat(target); err != nil && errors.Is(err, os.ErrNotExist) {
		var created *os.File

		if created, err = os.Create(filepath.Clean(target)); err != nil {
			return err
		}

		if err = created.Close(); err != nil {
			return err
		}
	}

	options := goupdate.Options{
		TargetPath: target,
		TargetMode: info.Mode().Perm(),
		Checksum:   checksum,
		Hash:       swapChecksumFunction,
	}

	if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
		return err
	}

	oldFileName := target + ".old"
	if _, err = os.Stat(oldFileName); err == nil {
		_ = os.Remove(oldFileName)
	}

	return nil
}

// copyFile copies src to dst with src's permission bits, creating parent directories.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	if err = os.MkdirAll(filepath.Dir(dst), directoryMode); err != nil {
		return err
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}

// appendUpdateLog records a successful update in the operator-visible history.
func appendUpdateLog(root, artifactName string) error {
	path := filepath.Join(root, updatesLogFilename)

	f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	line := fmt.Sprintf("%s - server updated with %s | mta-server-updater\n",
		time.Now().Format("2006-01-02 15:04:05"), artifactName)

	if _, err = f.WriteString(line); err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}
