package updater

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
	"github.com/fernoz/mta-server-updater/internal/policy"
	"github.com/fernoz/mta-server-updater/internal/release"
	"github.com/fernoz/mta-server-updater/internal/repository/marker"
)

// classify builds a fresh classification of every artifact path and every
// installed path for one update run.
//
// Artifact paths matching a preservation rule that already exist locally are
// preserved; every other artifact path is replaced (new files included, so
// the destination may not exist yet). Installed paths absent from the
// artifact and not covered by a rule are orphans: surfaced to the operator,
// never deleted.
func classify(root string, artifact *release.Artifact, rules *policy.Table) (*domain.Classification, error) {
	c := domain.NewClassification()

	for rel := range artifact.Files {
		rule, preserved := rules.Match(rel)
		if preserved && localFileExists(root, rel) {
			c.Entries[rel] = domain.ClassPreserve
			c.Rationales[rel] = rule.Rationale

			continue
		}

		c.Entries[rel] = domain.ClassReplace
	}

	if err := classifyOrphans(root, artifact, rules, c); err != nil {
		return nil, err
	}

	return c, nil
}

// classifyOrphans walks the installation and records local files that are
// neither part of the release nor covered by a preservation rule.
func classifyOrphans(root string, artifact *release.Artifact, rules *policy.Table, c *domain.Classification) error {
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

		rel = filepath.ToSlash(rel)

		if isEngineFile(rel) {
			return nil
		}

		if _, inRelease := artifact.Files[rel]; inRelease {
			return nil
		}

		if _, preserved := rules.Match(rel); preserved {
			return nil
		}

		c.Entries[rel] = domain.ClassOrphan

		return nil
	})
	if err != nil {
		return fmt.Errorf("list installation files: %w", err)
	}

	return nil
}

// isEngineFile reports whether a relative path is transient updater metadata.
func isEngineFile(rel string) bool {
	return rel == marker.Filename || rel == LockFilename
}

// localFileExists reports whether the relative path exists inside the root.
func localFileExists(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))

	return err == nil
}
