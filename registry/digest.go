package registry

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/minio/sha256-simd"
	"github.com/spacemeshos/merkle-tree"

	"github.com/poexist/poe/claim"
)

// Digest returns the root of a merkle tree built from all live claims in key order.
// Two registries holding the same claims have the same digest.
// Like Count, it does not lock out concurrent mutations.
func (r *Registry) Digest(ctx context.Context) ([]byte, error) {
	tree, err := merkle.NewTreeBuilder().
		WithHashFunc(hashDigestNode).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize merkle tree: %w", err)
	}

	err = r.store.ForEach(ctx, func(key claim.Key, c claim.Claim) error {
		return tree.AddLeaf(ClaimLeaf(key, c))
	})
	if err != nil {
		return nil, storageError("building digest", err)
	}
	return tree.Root(), nil
}

// ClaimLeaf is the digest tree leaf of a claim:
// sha256(0x00 || key || registered_at || owner).
func ClaimLeaf(key claim.Key, c claim.Claim) []byte {
	var at [8]byte
	binary.BigEndian.PutUint64(at[:], c.RegisteredAt)

	hasher := sha256.New()
	_, _ = hasher.Write([]byte{0x00})
	_, _ = hasher.Write(key[:])
	_, _ = hasher.Write(at[:])
	_, _ = hasher.Write([]byte(c.Owner))
	return hasher.Sum(nil)
}

func hashDigestNode(lChild, rChild []byte) []byte {
	hasher := sha256.New()
	_, _ = hasher.Write([]byte{0x01})
	_, _ = hasher.Write(lChild)
	_, _ = hasher.Write(rChild)
	return hasher.Sum(nil)
}
