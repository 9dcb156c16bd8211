// Package ledger implements the account-based ledger model and the
// semantic-hint-biased emulator that builds pre-execution snapshots for
// the tracing VM.
package ledger

import "svmfuzz/core/key"

// Key is the account/program identifier used throughout the ledger package.
type Key = key.Key

// Account is a single ledger entry: a lamport balance, opaque data, an
// owning program key, and the signer/writable/executable flags a
// transaction's instruction metas assert about it.
type Account struct {
	Owner        Key
	Lamports     uint64
	Data         []byte
	IsSigner     bool
	IsWritable   bool
	IsExecutable bool
}

// Clone returns an independent deep copy of the account.
func (a Account) Clone() Account {
	cp := a
	if a.Data != nil {
		cp.Data = make([]byte, len(a.Data))
		copy(cp.Data, a.Data)
	}
	return cp
}

// AddLamports increases the balance with saturating arithmetic.
func (a *Account) AddLamports(amount uint64) {
	sum := a.Lamports + amount
	if sum < a.Lamports { // overflow
		sum = ^uint64(0)
	}
	a.Lamports = sum
}

// SubLamports decreases the balance with saturating arithmetic (floors at
// zero rather than wrapping or erroring — a missing/underfunded account is
// never a fatal condition for this fuzzer, per spec §7).
func (a *Account) SubLamports(amount uint64) {
	if amount > a.Lamports {
		a.Lamports = 0
		return
	}
	a.Lamports -= amount
}
