package platform

import (
	"errors"
	"fmt"
	"runtime"
)

// Build describes one published server build variant.
type Build struct {
	// Key identifies the build in release manifests (e.g. "linux-x64").
	Key string
	// ServerExecutable is the name of the server binary inside the installation root.
	ServerExecutable string
	// BinariesDir is the subdirectory holding shared libraries ("." for flat layouts).
	BinariesDir string
}

// errUnsupportedPlatform is returned when no build is published for the host platform.
var errUnsupportedPlatform = errors.New("no server build is published for this platform")

// builds lists every published build variant keyed by "GOOS/GOARCH".
//
//nolint:gochecknoglobals // Static lookup table.
var builds = map[string]Build{
	"linux/amd64": {
		Key:              "linux-x64",
		ServerExecutable: "mta-server64",
		BinariesDir:      "x64",
	},
	"linux/386": {
		Key:              "linux-x86",
		ServerExecutable: "mta-server",
		BinariesDir:      ".",
	},
	"linux/arm64": {
		Key:              "linux-arm64",
		ServerExecutable: "mta-server-arm64",
		BinariesDir:      "arm64",
	},
	"linux/arm": {
		Key:              "linux-arm",
		ServerExecutable: "mta-server-arm",
		BinariesDir:      "arm",
	},
	"windows/amd64": {
		Key:              "windows-x64",
		ServerExecutable: "MTA Server64.exe",
		BinariesDir:      "x64",
	},
	"windows/386": {
		Key:              "windows-x86",
		ServerExecutable: "MTA Server.exe",
		BinariesDir:      ".",
	},
	"windows/arm64": {
		Key:              "windows-arm64",
		ServerExecutable: "MTA Server ARM64.exe",
		BinariesDir:      "arm64",
	},
}

// Current returns the build variant for the host platform.
func Current() (Build, error) {
	return forTarget(runtime.GOOS, runtime.GOARCH)
}

// ByKey returns the build variant with the given manifest key.
func ByKey(key string) (Build, error) {
	for _, b := range builds {
		if b.Key == key {
			return b, nil
		}
	}

	return Build{}, fmt.Errorf("build %q: %w", key, errUnsupportedPlatform)
}

// Keys returns every known build key.
func Keys() []string {
	keys := make([]string, 0, len(builds))
	for _, b := range builds {
		keys = append(keys, b.Key)
	}

	return keys
}

// forTarget resolves a build for an explicit os/arch pair.
func forTarget(goos, goarch string) (Build, error) {
	b, ok := builds[goos+"/"+goarch]
	if !ok {
		return Build{}, fmt.Errorf("%s/%s: %w", goos, goarch, errUnsupportedPlatform)
	}

	return b, nil
}
