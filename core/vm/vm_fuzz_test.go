package vm

import (
	"testing"

	"svmfuzz/core/key"
	"svmfuzz/core/ledger"
	"svmfuzz/core/txgen"
)

// FuzzRunDeterministic ensures Run never panics over arbitrary instruction
// data and that running it twice over equivalent inputs always produces the
// same coverage fingerprint (spec §8 determinism invariant).
func FuzzRunDeterministic(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0xA0})
	f.Add([]byte{0xFF, 0x41})
	f.Add([]byte{0x01, 0x81, 0xE2})

	programID := key.Digest([]byte("fuzz-program"))
	acct := key.Digest([]byte("fuzz-acct"))

	f.Fuzz(func(t *testing.T, data []byte) {
		build := func() (*ledger.Snapshot, *txgen.Transaction) {
			pre := ledger.NewSnapshot(programID)
			pre.Set(acct, ledger.Account{Owner: programID, Lamports: 1000, Data: make([]byte, 8)})
			tx := minimalTx(programID, data)
			tx.Instruction.Accounts = []txgen.InstrAccountMeta{{Pubkey: acct}}
			return pre, tx
		}

		pre1, tx1 := build()
		res1 := Run(pre1, tx1)

		pre2, tx2 := build()
		res2 := Run(pre2, tx2)

		if res1.Trace.EdgeHash != res2.Trace.EdgeHash {
			t.Fatalf("non-deterministic fingerprint for input %v: %x vs %x", data, res1.Trace.EdgeHash, res2.Trace.EdgeHash)
		}
		if res1.Post.String() != res2.Post.String() {
			t.Fatalf("non-deterministic post-snapshot for input %v", data)
		}
	})
}
