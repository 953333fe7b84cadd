package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
	"github.com/fernoz/mta-server-updater/internal/logger"
	"github.com/fernoz/mta-server-updater/internal/repository/marker"
)

// Probe determines the installed and the latest published versions.
type Probe struct {
	// manifestURL is where the release manifest is served.
	manifestURL string
	// client is the HTTP client used for remote queries.
	client *http.Client
}

// NewProbe creates a probe querying the given manifest URL with the given timeout.
func NewProbe(manifestURL string, timeout time.Duration) *Probe {
	return &Probe{
		manifestURL: manifestURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Current reads the version marker inside the installation root.
// A missing or malformed marker yields Unknown, never an error: an unknown
// installed version always orders below the latest release and forces a
// full resync.
func (p *Probe) Current(ctx context.Context, root string) Version {
	record, err := marker.ForRoot(root).Load(ctx)
	if err != nil {
		if errors.Is(err, marker.ErrNotFound) {
			logger.Debug(ctx, "No version marker found, treating installed version as unknown")
		} else {
			logger.WarnKV(ctx, "Version marker unreadable, treating installed version as unknown",
				"error", err)
		}

		return Unknown
	}

	v, err := ParseVersion(record.Version)
	if err != nil {
		logger.WarnKV(ctx, "Version marker holds an unparseable version, treating it as unknown",
			"version", record.Version)

		return Unknown
	}

	return v
}

// Latest fetches and parses the release manifest from the remote source.
func (p *Probe) Latest(ctx context.Context) (Version, *Manifest, error) {
	data, err := fetchBody(ctx, p.client, p.manifestURL)
	if err != nil {
		return Unknown, nil, fmt.Errorf("fetch release manifest: %w", err)
	}

	manifest, err := ParseManifest(data)
	if err != nil {
		return Unknown, nil, err
	}

	v, err := ParseVersion(manifest.Version)
	if err != nil {
		return Unknown, nil, err
	}

	return v, manifest, nil
}

// fetchBody performs a GET and maps transport and status failures onto the
// engine's error kinds.
func fetchBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, domain.ErrNetwork)
	}

	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", url, err, domain.ErrNetwork)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	switch {
	case response.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, domain.ErrNotFound)
	case response.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: %s: %w", url, response.Status, domain.ErrNetwork)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", url, err, domain.ErrNetwork)
	}

	return data, nil
}
