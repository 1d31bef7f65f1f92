package claim

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/minio/sha256-simd"
	"github.com/multiformats/go-multihash"
)

const KeySize = sha256.Size

// Key identifies a claim. It is a content hash and has no meaning to the registry
// beyond equality and byte-wise ordering.
type Key [KeySize]byte

// HashContent returns the key of the given content.
func HashContent(data []byte) Key {
	return sha256.Sum256(data)
}

// KeyFromBytes copies a raw 32-byte digest into a Key.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, KeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// ParseKey accepts either a hex encoded digest (optionally 0x prefixed)
// or a CID whose multihash is a sha2-256 digest.
func ParseKey(s string) (Key, error) {
	s = strings.TrimSpace(s)
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) == 2*KeySize {
		if b, err := hex.DecodeString(raw); err == nil {
			return KeyFromBytes(b)
		}
	}

	c, err := cid.Decode(s)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q is neither hex nor a CID", ErrInvalidKey, s)
	}
	decoded, err := multihash.Decode(c.Hash())
	if err != nil {
		return Key{}, fmt.Errorf("%w: decoding multihash: %v", ErrInvalidKey, err)
	}
	if decoded.Code != multihash.SHA2_256 {
		return Key{}, fmt.Errorf("%w: unsupported multihash %s", ErrInvalidKey, decoded.Name)
	}
	return KeyFromBytes(decoded.Digest)
}

func (k Key) Bytes() []byte {
	return append([]byte(nil), k[:]...)
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// CID renders the key as a CIDv1 with the raw codec.
func (k Key) CID() cid.Cid {
	mh, err := multihash.Encode(k[:], multihash.SHA2_256)
	if err != nil {
		// Encode fails only for unknown codes or digests of a wrong length.
		panic(err)
	}
	return cid.NewCidV1(cid.Raw, mh)
}

func (k Key) Compare(other Key) int {
	return bytes.Compare(k[:], other[:])
}
