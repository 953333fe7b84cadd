// Package packager prepares release artifacts for distribution.
//
// It packs a built server tree into a checksummed archive and emits the
// release manifest the updater consumes, merging builds for multiple
// platforms into a single manifest file.
package packager
