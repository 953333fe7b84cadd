// Package policy holds the preservation rules applied during an update:
// path patterns whose matches are operator-owned and must never be
// overwritten by a release.
//
// The table is the main correctness surface of the updater. A missed pattern
// destroys operator data on the next update; an overly broad one blocks
// legitimate updates. Review every change against a real server layout.
package policy
