package claim

import "errors"

var (
	// ErrAlreadyClaimed is returned when creating a claim for a key that is already claimed.
	ErrAlreadyClaimed = errors.New("claim already exists")
	// ErrNoSuchClaim is returned when revoking a key that is not claimed.
	ErrNoSuchClaim = errors.New("no such claim")
	// ErrNotClaimOwner is returned when a caller revokes a claim owned by someone else.
	ErrNotClaimOwner = errors.New("caller is not the claim owner")
	// ErrStorageUnavailable wraps transient failures of the underlying store.
	// The operation had no effect and may be retried.
	ErrStorageUnavailable = errors.New("claim storage unavailable")

	// ErrCorruptClaim is returned when a stored claim cannot be decoded.
	// Retrying does not help.
	ErrCorruptClaim = errors.New("corrupt claim record")

	ErrInvalidIdentity = errors.New("invalid identity")
	ErrInvalidKey      = errors.New("invalid claim key")
)
