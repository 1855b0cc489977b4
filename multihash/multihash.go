// Package multihash wraps github.com/multiformats/go-multihash with the
// equality, ordering and genesis-sentinel semantics the fork state database
// needs from a self-describing hash: a (codec, digest) pair.
package multihash

import (
	"bytes"

	mh "github.com/multiformats/go-multihash"
)

// ID is a (codec, digest) pair. The zero value is not itself the zero
// multihash for any codec - use Zero(codec) for that.
type ID struct {
	raw mh.Multihash
}

// FromBytes wraps an already-encoded multihash. Returns an error if the
// bytes are not a well-formed multihash.
func FromBytes(b []byte) (ID, error) {
	decoded, err := mh.Cast(b)
	if err != nil {
		return ID{}, err
	}
	return ID{raw: decoded}, nil
}

// Sum hashes data under the given multicodec and wraps the result.
func Sum(data []byte, code uint64) (ID, error) {
	digest, err := mh.Sum(data, code, -1)
	if err != nil {
		return ID{}, err
	}
	return ID{raw: digest}, nil
}

// FromDigest wraps an already-computed digest (e.g. from an external
// hash function such as go-ethereum's Keccak256) under the given
// multicodec, without re-hashing it.
func FromDigest(digest []byte, code uint64) (ID, error) {
	encoded, err := mh.Encode(digest, code)
	if err != nil {
		return ID{}, err
	}
	return ID{raw: encoded}, nil
}

// Zero returns the distinguished "no parent" multihash for a codec: the
// digest of the correct length for that codec's default output, with every
// digest byte set to zero. This is the genesis sentinel of §3.
func Zero(code uint64) ID {
	decoded, err := mh.Decode(mustSum(nil, code).raw)
	if err != nil {
		panic(err)
	}
	digest := make([]byte, len(decoded.Digest))
	zero, err := mh.Encode(digest, code)
	if err != nil {
		panic(err)
	}
	return ID{raw: zero}
}

func mustSum(data []byte, code uint64) ID {
	id, err := Sum(data, code)
	if err != nil {
		panic(err)
	}
	return id
}

// IsZero reports whether every digest byte is zero, the genesis sentinel
// of §3.
func (id ID) IsZero() bool {
	decoded, err := mh.Decode(id.raw)
	if err != nil {
		return false
	}
	for _, b := range decoded.Digest {
		if b != 0 {
			return false
		}
	}
	return true
}

// Bytes returns the canonical encoded form.
func (id ID) Bytes() []byte {
	return []byte(id.raw)
}

// Code returns the multicodec of the digest.
func (id ID) Code() uint64 {
	decoded, err := mh.Decode(id.raw)
	if err != nil {
		return 0
	}
	return decoded.Code
}

// Equal compares two ids for exact (codec, digest) equality.
func (id ID) Equal(other ID) bool {
	return bytes.Equal(id.raw, other.raw)
}

// Less defines the total order used for lexicographically-greatest
// tie-breaking in fork head selection (§4.5): raw encoded bytes, compared
// lexicographically.
func (id ID) Less(other ID) bool {
	return bytes.Compare(id.raw, other.raw) < 0
}

// String renders the hex form, useful for logging.
func (id ID) String() string {
	return id.raw.String()
}

// Empty reports whether this ID carries no bytes at all - distinct from
// IsZero, which requires a well-formed all-zero digest.
func (id ID) Empty() bool {
	return len(id.raw) == 0
}
