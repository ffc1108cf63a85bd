// Package kernel centralizes the error kinds shared across MU Kernel's
// subsystems, per the propagation policy of spec.md §7: the query layer
// never throws raw errors at clients, and callers that need to branch on
// *why* something failed inspect the kind with errors.Is, not by parsing
// a message string.
package kernel

import "errors"

// Error kinds. Each is a sentinel; wrap with fmt.Errorf("...: %w", Err...)
// at the point of failure so context survives alongside the kind.
var (
	// ErrConfig marks a user-correctable configuration or input error.
	// CLI callers should exit 1.
	ErrConfig = errors.New("config error")

	// ErrLocked marks an attempt to open the mubase for write while
	// another process already holds the write lock.
	ErrLocked = errors.New("mubase locked by another writer")

	// ErrIncompatible marks a stored schema version newer than the
	// binary understands.
	ErrIncompatible = errors.New("incompatible schema version")

	// ErrParse marks a single-file parse failure. Non-fatal: the
	// Builder retains that file's previous state and reports the
	// failure as part of a partial-success summary.
	ErrParse = errors.New("parse error")

	// ErrNotFound marks an unknown node id/name on a query path. Query
	// execution must turn this into an empty rectangular result with a
	// warning, never propagate it as an exception to a client.
	ErrNotFound = errors.New("not found")

	// ErrGraphNotLoaded marks a programming error: the Graph Engine was
	// queried before Load was called.
	ErrGraphNotLoaded = errors.New("graph engine not loaded")

	// ErrCancelled marks cooperative cancellation via a context.Context
	// checked at an executor checkpoint.
	ErrCancelled = errors.New("cancelled")

	// ErrUpstream marks a failure in an external collaborator (the
	// embedding provider, or a daemon pkg/client cannot reach). Always
	// wrapped with a cause. No caller retries the failed operation
	// automatically.
	ErrUpstream = errors.New("upstream error")

	// ErrAlreadyExists marks an idempotent create called a second time
	// without force — snapshotting a commit that already has one.
	ErrAlreadyExists = errors.New("already exists")

	// ErrVCS marks a failure resolving or reading commit metadata from
	// the version-control system backing a snapshot.
	ErrVCS = errors.New("vcs error")

	// ErrContractViolation marks a violated invariant of spec §3 (e.g. a
	// parser handing the Builder a malformed ModuleDef) rather than a
	// user or environment error.
	ErrContractViolation = errors.New("contract violation")
)

// ExitCode maps an error produced anywhere in the Kernel to the CLI exit
// code contract of spec.md §6. Errors that match none of the known kinds
// map to 3 (fatal).
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfig):
		return 1
	case errors.Is(err, ErrParse):
		return 2
	case errors.Is(err, ErrIncompatible):
		return 3
	case errors.Is(err, ErrVCS):
		return 4
	case errors.Is(err, ErrContractViolation):
		return 5
	default:
		return 3
	}
}
