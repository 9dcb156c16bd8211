package ledger

import (
	"fmt"
	"strings"

	"svmfuzz/core/key"
)

// Snapshot is a keyed mapping from account id to account record. It is
// value-like: Clone yields an independent copy, and iteration is always in
// key order so digests and oracle scans stay deterministic across runs and
// platforms (spec §3).
type Snapshot struct {
	ProgramID Key
	Accounts  map[Key]Account
}

// NewSnapshot returns an empty snapshot for the given program.
func NewSnapshot(programID Key) *Snapshot {
	return &Snapshot{ProgramID: programID, Accounts: make(map[Key]Account)}
}

// Clone returns an independent deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{ProgramID: s.ProgramID, Accounts: make(map[Key]Account, len(s.Accounts))}
	for k, acc := range s.Accounts {
		out.Accounts[k] = acc.Clone()
	}
	return out
}

// Get looks up an account, reporting whether it exists.
func (s *Snapshot) Get(k Key) (Account, bool) {
	acc, ok := s.Accounts[k]
	return acc, ok
}

// Set inserts or replaces an account.
func (s *Snapshot) Set(k Key, acc Account) {
	s.Accounts[k] = acc
}

// SortedKeys returns every account key in ascending key order.
func (s *Snapshot) SortedKeys() []Key {
	keys := make([]Key, 0, len(s.Accounts))
	for k := range s.Accounts {
		keys = append(keys, k)
	}
	key.SortKeys(keys)
	return keys
}

// String renders the snapshot in the fixed text format spec §6 mandates:
// one line per account, key order:
//
//	<key> owner=<key> lamports=<u64> data_len=<usize> signer=<bool> writable=<bool> exec=<bool>
func (s *Snapshot) String() string {
	var b strings.Builder
	for _, k := range s.SortedKeys() {
		acc := s.Accounts[k]
		fmt.Fprintf(&b, "%s owner=%s lamports=%d data_len=%d signer=%t writable=%t exec=%t\n",
			k.Hex(), acc.Owner.Hex(), acc.Lamports, len(acc.Data), acc.IsSigner, acc.IsWritable, acc.IsExecutable)
	}
	return b.String()
}
