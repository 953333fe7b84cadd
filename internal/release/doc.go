// Package release talks to the remote release source.
//
// It defines the ordered Version type, the YAML release manifest served next
// to the artifacts, the Probe that determines installed and latest versions,
// and the Fetcher that downloads, integrity-checks and unpacks one release
// artifact for the host platform.
package release
