package model

import "errors"

// Sentinel errors shared across the gateway. Callers match them with
// errors.Is.
var (
	// ErrNotFound is returned when a memory, candidate, or client id is unknown.
	ErrNotFound = errors.New("memgate: not found")

	// ErrInvalidArgument is returned for malformed limits, quotas, weights,
	// or record fields.
	ErrInvalidArgument = errors.New("memgate: invalid argument")

	// ErrClientDisabled is returned when a disabled client attempts any read,
	// before scope evaluation. Distinct from an empty result.
	ErrClientDisabled = errors.New("memgate: client disabled")

	// ErrScopeDenied is returned when a valid client explicitly requests a
	// branch its scope does not cover.
	ErrScopeDenied = errors.New("memgate: scope denied")

	// ErrConflictRequiresResolution is returned when approving a candidate
	// that contradicts an existing memory; the caller must resolve the
	// contradiction explicitly.
	ErrConflictRequiresResolution = errors.New("memgate: conflict requires resolution")

	// ErrAlreadyResolved is returned when approving or rejecting a candidate
	// that already reached a terminal state.
	ErrAlreadyResolved = errors.New("memgate: candidate already resolved")

	// ErrDeadlineExceeded is returned when a ranking deadline expires before
	// any result was scored.
	ErrDeadlineExceeded = errors.New("memgate: deadline exceeded")

	// ErrDependencyUnavailable reports the semantic-similarity collaborator
	// being down. It is absorbed internally and degrades scores to zero.
	ErrDependencyUnavailable = errors.New("memgate: similarity dependency unavailable")
)
