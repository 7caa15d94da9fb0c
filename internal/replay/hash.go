package replay

import (
	"encoding/hex"

	"github.com/gmliao/landsync/internal/policy"
	"github.com/gmliao/landsync/internal/snapshot"
)

// fnvOffset64 and fnvPrime64 are the canonical FNV-1a 64-bit constants
// (§4.7). They are fixed by the algorithm, not by this implementation.
const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

func fnv1a64(data []byte) uint64 {
	h := fnvOffset64
	for _, b := range data {
		h ^= uint64(b)
		h *= fnvPrime64
	}
	return h
}

// HashValue computes the hex-encoded FNV-1a 64 hash of v's canonical
// encoding.
func HashValue(v snapshot.Value) string {
	sum := fnv1a64(snapshot.EncodeCanonical(v))
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(sum >> (56 - 8*i))
	}
	return hex.EncodeToString(buf[:])
}

// Hashable is the subset of *statetree.Node's surface state_hash needs.
type Hashable interface {
	Evaluate(viewer *string, mode policy.Mode) (snapshot.Value, error)
}

// StateHash implements §4.7's state_hash: the server-visible traversal
// (viewer=nil, mode=all) is canonically encoded and hashed. server_only
// fields are excluded by the evaluator itself, same as every other
// viewer=nil traversal in this module; this choice is fixed for the
// lifetime of the record file format.
func StateHash(tree Hashable) (string, error) {
	snap, err := tree.Evaluate(nil, policy.ModeAll)
	if err != nil {
		return "", err
	}
	return HashValue(snap), nil
}
