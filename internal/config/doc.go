// Package config defines updater settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type holds the release manifest URL and network timeouts.
package config
