package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	xdr "github.com/nullstyle/go-xdr/xdr3"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/poexist/poe/claim"
)

var claimPrefix = []byte("c/")

// record is the persisted form of a claim.
type record struct {
	Owner        string
	RegisteredAt uint64
}

// LevelDB is a durable store. Every claim is one record keyed by
// the claim key, the value is the XDR encoded owner and registration time.
//
// Reads are served from an LRU cache when enabled. The cache stays coherent as long as
// reads and writes of the same key are serialized by the caller, which the registry does.
type LevelDB struct {
	db    *leveldb.DB
	cache *lru.Cache
	wo    *opt.WriteOptions
}

type levelDBOptions struct {
	cacheSize int
	sync      bool
}

type LevelDBOptionFunc func(*levelDBOptions)

// WithCacheSize sets the number of claims kept in the read cache (0 disables it).
func WithCacheSize(size int) LevelDBOptionFunc {
	return func(o *levelDBOptions) {
		o.cacheSize = size
	}
}

// WithSync controls whether every write is fsync'ed before returning.
func WithSync(sync bool) LevelDBOptionFunc {
	return func(o *levelDBOptions) {
		o.sync = sync
	}
}

func OpenLevelDB(path string, options ...LevelDBOptionFunc) (*LevelDB, error) {
	opts := levelDBOptions{
		cacheSize: 4096,
		sync:      true,
	}
	for _, apply := range options {
		apply(&opts)
	}

	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database @ %s: %w", path, err)
	}

	s := &LevelDB{
		db: db,
		wo: &opt.WriteOptions{Sync: opts.sync},
	}
	if opts.cacheSize > 0 {
		cache, err := lru.New(opts.cacheSize)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("creating cache: %w", err), db.Close())
		}
		s.cache = cache
	}
	return s, nil
}

func dbKey(key claim.Key) []byte {
	return append(append(make([]byte, 0, len(claimPrefix)+claim.KeySize), claimPrefix...), key[:]...)
}

func (s *LevelDB) Get(_ context.Context, key claim.Key) (claim.Claim, bool, error) {
	if s.cache != nil {
		if c, ok := s.cache.Get(key); ok {
			// SAFETY: type assertion will never panic as we insert only claim.Claim values.
			return c.(claim.Claim), true, nil
		}
	}

	data, err := s.db.Get(dbKey(key), nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		return claim.Claim{}, false, nil
	case err != nil:
		return claim.Claim{}, false, fmt.Errorf("%w: get %s: %w", claim.ErrStorageUnavailable, key, err)
	}

	c, err := decodeClaim(data)
	if err != nil {
		return claim.Claim{}, false, fmt.Errorf("claim %s: %w", key, err)
	}
	if s.cache != nil {
		s.cache.Add(key, c)
	}
	return c, true, nil
}

func (s *LevelDB) Put(_ context.Context, key claim.Key, c claim.Claim) error {
	data, err := encodeClaim(c)
	if err != nil {
		return fmt.Errorf("claim %s: %w", key, err)
	}
	if err := s.db.Put(dbKey(key), data, s.wo); err != nil {
		return fmt.Errorf("%w: put %s: %w", claim.ErrStorageUnavailable, key, err)
	}
	if s.cache != nil {
		s.cache.Add(key, c)
	}
	return nil
}

func (s *LevelDB) Delete(_ context.Context, key claim.Key) error {
	if err := s.db.Delete(dbKey(key), s.wo); err != nil {
		return fmt.Errorf("%w: delete %s: %w", claim.ErrStorageUnavailable, key, err)
	}
	if s.cache != nil {
		s.cache.Remove(key)
	}
	return nil
}

// ForEach iterates over a snapshot of the database, so the callback sees
// a consistent view even if claims are mutated meanwhile.
func (s *LevelDB) ForEach(ctx context.Context, fn func(claim.Key, claim.Claim) error) error {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("%w: snapshot: %w", claim.ErrStorageUnavailable, err)
	}
	defer snap.Release()

	iter := snap.NewIterator(util.BytesPrefix(claimPrefix), nil)
	defer iter.Release()
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key, err := claim.KeyFromBytes(iter.Key()[len(claimPrefix):])
		if err != nil {
			return err
		}
		c, err := decodeClaim(iter.Value())
		if err != nil {
			return fmt.Errorf("claim %s: %w", key, err)
		}
		if err := fn(key, c); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("%w: iterating: %w", claim.ErrStorageUnavailable, err)
	}
	return nil
}

// MaxRegisteredAt returns the highest registration time of all stored claims.
func (s *LevelDB) MaxRegisteredAt(ctx context.Context) (uint64, error) {
	var highest uint64
	err := s.ForEach(ctx, func(_ claim.Key, c claim.Claim) error {
		if c.RegisteredAt > highest {
			highest = c.RegisteredAt
		}
		return nil
	})
	return highest, err
}

func (s *LevelDB) Close() error {
	return s.db.Close()
}

func encodeClaim(c claim.Claim) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, record{Owner: string(c.Owner), RegisteredAt: c.RegisteredAt}); err != nil {
		return nil, fmt.Errorf("serialization failure: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeClaim(data []byte) (claim.Claim, error) {
	var rec record
	if _, err := xdr.Unmarshal(bytes.NewReader(data), &rec); err != nil {
		return claim.Claim{}, fmt.Errorf("%w: failed to deserialize: %w", claim.ErrCorruptClaim, err)
	}
	return claim.Claim{Owner: claim.Identity(rec.Owner), RegisteredAt: rec.RegisteredAt}, nil
}
