package registry

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/poexist/poe/claim"
	"github.com/poexist/poe/logging"
)

// Registry is the claim registry.
// It is responsible for:
//   - creating claims on behalf of authenticated callers,
//   - revoking claims by their owners,
//   - serving claim lookups,
//   - notifying the event sink of committed mutations.
type Registry struct {
	cfg   Config
	store Store
	clock Clock
	sink  EventSink

	stripes []sync.RWMutex
}

type newRegistryOptions struct {
	cfg Config
}

type OptionFunc func(*newRegistryOptions)

func WithConfig(cfg Config) OptionFunc {
	return func(opts *newRegistryOptions) {
		opts.cfg = cfg
	}
}

// New creates a registry on top of the given store.
// The sink may be nil if nobody observes the registry.
func New(store Store, clock Clock, sink EventSink, opts ...OptionFunc) *Registry {
	options := newRegistryOptions{
		cfg: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	stripes := options.cfg.LockStripes
	if stripes < 1 {
		stripes = 1
	}

	return &Registry{
		cfg:     options.cfg,
		store:   store,
		clock:   clock,
		sink:    sink,
		stripes: make([]sync.RWMutex, stripes),
	}
}

func (r *Registry) stripe(key claim.Key) *sync.RWMutex {
	idx := binary.BigEndian.Uint32(key[:4]) % uint32(len(r.stripes))
	return &r.stripes[idx]
}

// Create registers key on behalf of caller, stamped with the current logical time.
// It fails with claim.ErrAlreadyClaimed if the key is claimed already.
func (r *Registry) Create(ctx context.Context, caller claim.Identity, key claim.Key) (err error) {
	defer observe("create", time.Now(), &err)
	if !caller.Valid() {
		return claim.ErrInvalidIdentity
	}
	logger := logging.FromContext(ctx).With(zap.Stringer("claim", key), zap.String("caller", string(caller)))

	mu := r.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	existing, found, err := r.store.Get(ctx, key)
	switch {
	case err != nil:
		return storageError("checking claim", err)
	case found:
		logger.Debug("rejecting already claimed key", zap.Object("existing", existing))
		return fmt.Errorf("%w: %s", claim.ErrAlreadyClaimed, key)
	}

	c := claim.Claim{Owner: caller, RegisteredAt: r.clock.Now()}
	if err := r.store.Put(ctx, key, c); err != nil {
		return storageError("storing claim", err)
	}
	logger.Debug("claim created", zap.Uint64("registered_at", c.RegisteredAt))

	r.emit(ctx, logger, claim.Created(caller, key))
	return nil
}

// Revoke removes the claim on key. Only the owner of the claim may revoke it.
func (r *Registry) Revoke(ctx context.Context, caller claim.Identity, key claim.Key) (err error) {
	defer observe("revoke", time.Now(), &err)
	if !caller.Valid() {
		return claim.ErrInvalidIdentity
	}
	logger := logging.FromContext(ctx).With(zap.Stringer("claim", key), zap.String("caller", string(caller)))

	mu := r.stripe(key)
	mu.Lock()
	defer mu.Unlock()

	existing, found, err := r.store.Get(ctx, key)
	switch {
	case err != nil:
		return storageError("checking claim", err)
	case !found:
		return fmt.Errorf("%w: %s", claim.ErrNoSuchClaim, key)
	case existing.Owner != caller:
		logger.Debug("rejecting revoke by non-owner", zap.String("owner", string(existing.Owner)))
		return fmt.Errorf("%w: %s", claim.ErrNotClaimOwner, key)
	}

	if err := r.store.Delete(ctx, key); err != nil {
		return storageError("removing claim", err)
	}
	logger.Debug("claim revoked", zap.Uint64("registered_at", existing.RegisteredAt))

	r.emit(ctx, logger, claim.Revoked(caller, key))
	return nil
}

// Lookup returns the claim on key, if any. It requires no authentication.
func (r *Registry) Lookup(ctx context.Context, key claim.Key) (c claim.Claim, found bool, err error) {
	defer observe("lookup", time.Now(), &err)
	mu := r.stripe(key)
	mu.RLock()
	defer mu.RUnlock()

	c, found, err = r.store.Get(ctx, key)
	if err != nil {
		return claim.Claim{}, false, storageError("looking up claim", err)
	}
	return c, found, nil
}

// Count returns the number of live claims and publishes it in the claims gauge.
// It is not a consistent snapshot when mutations run concurrently.
func (r *Registry) Count(ctx context.Context) (int, error) {
	count := 0
	err := r.store.ForEach(ctx, func(claim.Key, claim.Claim) error {
		count++
		return nil
	})
	if err != nil {
		return 0, storageError("counting claims", err)
	}
	claimsMetric.Set(float64(count))
	return count, nil
}

// emit must be called with the key's stripe held so that events of a key
// are delivered in commit order. Sink failures never undo the mutation.
func (r *Registry) emit(ctx context.Context, logger *zap.Logger, ev claim.Event) {
	if r.sink == nil {
		return
	}
	if err := r.sink.Emit(ctx, ev); err != nil {
		sinkErrorsMetric.Inc()
		logger.Warn("event sink failed", zap.Object("event", ev), zap.Error(err))
	}
}

func storageError(op string, err error) error {
	if errors.Is(err, claim.ErrStorageUnavailable) || errors.Is(err, claim.ErrCorruptClaim) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, claim.ErrStorageUnavailable, err)
}

func observe(op string, start time.Time, err *error) {
	opLatencyMetric.WithLabelValues(op).Observe(time.Since(start).Seconds())
	opsMetric.WithLabelValues(op, resultLabel(*err)).Inc()
}

func errorName(err error) string {
	switch {
	case errors.Is(err, claim.ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, claim.ErrNoSuchClaim):
		return "no_such_claim"
	case errors.Is(err, claim.ErrNotClaimOwner):
		return "not_claim_owner"
	case errors.Is(err, claim.ErrStorageUnavailable):
		return "storage_unavailable"
	case errors.Is(err, claim.ErrInvalidIdentity):
		return "invalid_identity"
	case errors.Is(err, claim.ErrCorruptClaim):
		return "corrupt_claim"
	default:
		return "error"
	}
}
