// Package platform maps the host operating system and architecture to the
// matching MTA server build variant: the build key used in release manifests,
// the server executable name and the subdirectory holding shared libraries.
package platform
