package release

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// directoryMode is used for directories created during extraction and packing.
const directoryMode os.FileMode = 0o755

var errUnsupportedArchive = errors.New("unsupported archive format")

// FileChecksum returns the hex-encoded SHA-256 of a file's contents.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashTree walks a directory and returns slash-separated relative paths of
// every regular file mapped to its SHA-256 checksum.
func HashTree(root string) (map[string]string, error) {
	files := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		checksum, err := FileChecksum(path)
		if err != nil {
			return err
		}

		files[filepath.ToSlash(rel)] = checksum

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("hash tree %s: %w", root, err)
	}

	return files, nil
}

// extract unpacks an archive into dst, choosing the format by file extension.
func extract(archivePath, dst string) error {
	name := strings.ToLower(archivePath)

	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return extractTarGz(archivePath, dst)
	case strings.HasSuffix(name, ".zip"):
		return extractZip(archivePath, dst)
	default:
		return fmt.Errorf("%s: %w", filepath.Base(archivePath), errUnsupportedArchive)
	}
}

// extractTarGz unpacks a gzipped tarball into dst.
func extractTarGz(archivePath, dst string) error {
	f, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return err
	}

	defer func() {
		_ = f.Close()
	}()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	reader := tar.NewReader(gz)

	for {
		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		target, err := securePath(dst, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, directoryMode); err != nil {
				return err
			}
		case tar.TypeReg:
			if err = writeEntry(target, reader, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		default:
			// Symlinks and special files are not part of server releases.
			continue
		}
	}
}

// extractZip unpacks a zip archive into dst.
func extractZip(archivePath, dst string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip archive: %w", err)
	}

	defer func() {
		_ = reader.Close()
	}()

	for _, entry := range reader.File {
		target, err := securePath(dst, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err = os.MkdirAll(target, directoryMode); err != nil {
				return err
			}

			continue
		}

		src, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open zip entry %s: %w", entry.Name, err)
		}

		err = writeEntry(target, src, entry.Mode().Perm())

		_ = src.Close()

		if err != nil {
			return err
		}
	}

	return nil
}

// securePath joins an archive entry name with dst, rejecting traversal outside it.
func securePath(dst, name string) (string, error) {
	target := filepath.Join(dst, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(dst)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry %q escapes extraction directory", name)
	}

	return target, nil
}

// writeEntry streams one archive entry to disk, creating parent directories.
func writeEntry(target string, src io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), directoryMode); err != nil {
		return err
	}

	if mode == 0 {
		mode = directoryMode
	}

	out, err := os.OpenFile(filepath.Clean(target), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, src); err != nil {
		_ = out.Close()

		return fmt.Errorf("write %s: %w", target, err)
	}

	return out.Close()
}

// CreateTarGz packs every regular file under srcDir into a gzipped tarball at dstPath.
func CreateTarGz(srcDir, dstPath string) error {
	files, err := HashTree(srcDir)
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(files))
	for rel := range files {
		paths = append(paths, rel)
	}

	// Deterministic entry order keeps archive checksums reproducible.
	sort.Strings(paths)

	out, err := os.OpenFile(filepath.Clean(dstPath), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(out)
	writer := tar.NewWriter(gz)

	for _, rel := range paths {
		if err = addTarEntry(writer, srcDir, rel); err != nil {
			_ = writer.Close()
			_ = gz.Close()
			_ = out.Close()

			return err
		}
	}

	if err = writer.Close(); err != nil {
		_ = gz.Close()
		_ = out.Close()

		return err
	}

	if err = gz.Close(); err != nil {
		_ = out.Close()

		return err
	}

	return out.Close()
}

// addTarEntry appends one file to the tar stream under its slash-separated name.
func addTarEntry(writer *tar.Writer, srcDir, rel string) error {
	path := filepath.Join(srcDir, filepath.FromSlash(rel))

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}

	header.Name = rel

	if err = writer.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}

	_, err = io.Copy(writer, f)

	_ = f.Close()

	if err != nil {
		return fmt.Errorf("pack %s: %w", rel, err)
	}

	return nil
}
