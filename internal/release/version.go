package release

import (
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"

	domain "github.com/fernoz/mta-server-updater/internal/domain/update"
)

// Version is a totally ordered release identifier.
// The zero value is Unknown and sorts below every known version, which
// forces a full resync when the installed version cannot be determined.
type Version struct {
	v *goversion.Version
}

// Unknown is the version of an installation whose marker is absent or unreadable.
//
//nolint:gochecknoglobals // Sentinel zero value.
var Unknown = Version{}

// ParseVersion parses a release version string (e.g. "1.6.0-22620").
func ParseVersion(s string) (Version, error) {
	v, err := goversion.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return Unknown, fmt.Errorf("version %q: %w", s, domain.ErrParse)
	}

	return Version{v: v}, nil
}

// IsUnknown reports whether the version could not be determined.
func (v Version) IsUnknown() bool {
	return v.v == nil
}

// String returns the version string, or "unknown".
func (v Version) String() string {
	if v.IsUnknown() {
		return "unknown"
	}

	return v.v.Original()
}

// Compare returns -1, 0 or 1. Unknown compares below any known version.
func (v Version) Compare(other Version) int {
	switch {
	case v.IsUnknown() && other.IsUnknown():
		return 0
	case v.IsUnknown():
		return -1
	case other.IsUnknown():
		return 1
	default:
		return v.v.Compare(other.v)
	}
}

// Less reports whether v orders before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Equal reports whether both versions are known and identical.
func (v Version) Equal(other Version) bool {
	return !v.IsUnknown() && !other.IsUnknown() && v.Compare(other) == 0
}
