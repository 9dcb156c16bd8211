// Package key defines the fixed-width account identifier shared by every
// subsystem of svmfuzz, mirroring the fixed-width Address/Hash identifiers
// the rest of this lineage uses.
package key

import (
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Key identifies an account, a program, or any other on-ledger entity.
type Key [32]byte

// Zero is the sentinel zero-value key.
var Zero = Key{}

// Bytes returns the raw bytes of the key.
func (k Key) Bytes() []byte { return k[:] }

// Hex renders the key as a 0x-prefixed hex string.
func (k Key) Hex() string { return hexutil.Encode(k[:]) }

// String satisfies fmt.Stringer.
func (k Key) String() string { return k.Hex() }

// Less reports whether k sorts before other in key order.
func (k Key) Less(other Key) bool {
	for i := range k {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return false
}

// BytesToKey left-pads or truncates b into a Key, matching the teacher's
// BytesToAddress/BytesToHash convention.
func BytesToKey(b []byte) Key {
	var k Key
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(k[32-len(b):], b)
	return k
}

// Digest folds parts into a deterministic 32-byte key via Keccak256,
// mirroring the teacher's own use of crypto.Keccak256 for address
// derivation (demo/node/l1/client.go) — this is svmfuzz's deterministic
// key-derivation primitive, used for the Tracing VM's CPI "fresh unique key",
// the emulator's synthetic distinct-owner keys, and the CLI's program id.
// The emulator's run-long identities are drawn from crypto/rand instead.
func Digest(parts ...[]byte) Key {
	var out Key
	copy(out[:], crypto.Keccak256(parts...))
	return out
}

// SortKeys sorts keys in place in ascending key order.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// DedupSorted returns a sorted, duplicate-free copy of keys.
func DedupSorted(keys []Key) []Key {
	cp := make([]Key, len(keys))
	copy(cp, keys)
	SortKeys(cp)
	out := cp[:0]
	for i, k := range cp {
		if i == 0 || k != cp[i-1] {
			out = append(out, k)
		}
	}
	return out
}
