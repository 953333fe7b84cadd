package marker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fernoz/mta-server-updater/internal/config"
)

// Filename is the marker file name inside an installation root.
const Filename = ".mta-server-version.yaml"

// Record describes the installed release.
type Record struct {
	// Version is the installed release version.
	Version string `yaml:"version"`
	// Artifact is the archive name the installation was last updated from.
	Artifact string `yaml:"artifact"`
	// UpdatedAt is when the last successful swap finished.
	UpdatedAt time.Time `yaml:"updated_at"`
}

// Repository defines persistence operations for the version marker.
type Repository interface {
	Load(ctx context.Context) (*Record, error)
	Save(ctx context.Context, record *Record) error
}

// FileRepository persists the marker to a YAML file on disk.
type FileRepository struct {
	// path is the filesystem location of the marker file.
	path string
	// mu protects concurrent access to the marker file.
	mu sync.Mutex
}

// ErrNotFound is returned when the marker file does not exist yet.
var ErrNotFound = errors.New("version marker not found")

// NewFileRepository creates a repository reading/writing the marker at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// ForRoot creates a repository for the marker inside the given installation root.
func ForRoot(root string) *FileRepository {
	return NewFileRepository(filepath.Join(root, Filename))
}

// Load reads the marker from disk.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read version marker: %w", err)
	}

	var record Record
	if err = yaml.Unmarshal(contents, &record); err != nil {
		return nil, fmt.Errorf("decode version marker: %w", err)
	}

	return &record, nil
}

// Save writes the marker to disk.
func (r *FileRepository) Save(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode version marker: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write version marker: %w", err)
	}

	return nil
}
