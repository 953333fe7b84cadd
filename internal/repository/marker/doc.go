// Package marker persists the installed-version marker inside an
// installation root.
//
// The probe reads it to detect the current version; the applier rewrites it
// after a successful swap. A missing or unreadable marker is not fatal: the
// installed version is simply treated as unknown.
package marker
