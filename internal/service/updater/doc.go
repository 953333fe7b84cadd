// Package updater reconciles a local server installation with the latest
// published release.
//
// It probes installed and latest versions, fetches and verifies the release
// artifact, classifies every path into replace/preserve/orphan under the
// preservation policy, stages new files next to the installation and swaps
// them in with checksum-gated writes. Operator-owned files are never
// touched and orphans are only reported.
package updater
