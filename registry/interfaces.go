package registry

import (
	"context"

	"github.com/poexist/poe/claim"
)

//go:generate mockgen -package mocks -destination mocks/registry.go . Store,Clock,EventSink

// Store persists claims. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key claim.Key) (claim.Claim, bool, error)
	Put(ctx context.Context, key claim.Key, c claim.Claim) error
	Delete(ctx context.Context, key claim.Key) error
	// ForEach calls fn for every stored claim in ascending key order.
	// Iteration stops at the first error returned by fn.
	ForEach(ctx context.Context, fn func(claim.Key, claim.Claim) error) error
	Close() error
}

// Clock supplies the logical time used to stamp new claims.
// Values returned by Now must never decrease.
type Clock interface {
	Now() uint64
}

// EventSink receives notifications of committed mutations.
type EventSink interface {
	Emit(ctx context.Context, ev claim.Event) error
}
