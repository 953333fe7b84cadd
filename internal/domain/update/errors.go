package update

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds wrapped by every failure the engine reports.
// Callers classify failures with errors.Is against these sentinels.
var (
	// ErrNetwork marks transport failures and timeouts against the release source.
	// Recoverable by re-running the orchestrator.
	ErrNetwork = errors.New("release source unreachable")
	// ErrNotFound marks a version or platform build absent from the release source.
	ErrNotFound = errors.New("release not found")
	// ErrIntegrity marks a checksum mismatch. The artifact is discarded.
	ErrIntegrity = errors.New("integrity verification failed")
	// ErrParse marks malformed remote or local metadata.
	ErrParse = errors.New("malformed metadata")
	// ErrAlreadyUpdating marks a second run against a root whose lock is held.
	ErrAlreadyUpdating = errors.New("another update is already running against this root")
	// ErrPartialApply marks a swap interrupted after some files were replaced.
	ErrPartialApply = errors.New("update applied partially")
)

// IntegrityError reports a checksum mismatch with enough context to diagnose
// without re-running.
type IntegrityError struct {
	// Path is the offending file (or artifact archive).
	Path string
	// Expected is the checksum the manifest promised, hex-encoded.
	Expected string
	// Actual is the checksum computed locally, hex-encoded.
	Actual string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// Unwrap classifies the error as ErrIntegrity.
func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// PartialApplyError reports exactly which paths were swapped before a
// mid-swap failure, so a retry can resume idempotently.
type PartialApplyError struct {
	// Swapped lists paths already replaced with new content.
	Swapped []string
	// Pending lists paths still holding old content.
	Pending []string
	// Cause is the underlying failure that interrupted the swap.
	Cause error
}

// Error implements the error interface.
func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("swap interrupted by %v: %d replaced (%s), %d pending (%s)",
		e.Cause,
		len(e.Swapped), strings.Join(e.Swapped, ", "),
		len(e.Pending), strings.Join(e.Pending, ", "))
}

// Unwrap classifies the error as ErrPartialApply.
func (e *PartialApplyError) Unwrap() error {
	return ErrPartialApply
}
