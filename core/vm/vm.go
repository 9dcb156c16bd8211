// Package vm implements the Tracing VM: a deterministic, per-byte event
// emitter over instruction data. It never executes the target program's
// actual bytecode (spec §1 Non-goals) — the instruction data is a control
// tape whose top three bits of each byte select an opcode (spec §4.3, §9).
package vm

import (
	"encoding/binary"
	"fmt"

	"svmfuzz/core/key"
	"svmfuzz/core/ledger"
	"svmfuzz/core/txgen"
)

const pcInit uint32 = 0x1000

// TraceSummary is the small, human-readable digest of a single run,
// embedded in saved vulnerability reports (spec §4.3, §6).
type TraceSummary struct {
	ByteCount   int
	EdgeHash    uint64
	AccountCount int
	SignerCount int
}

func (t TraceSummary) String() string {
	return fmt.Sprintf("bytes=%d edge_hash=%016x accounts=%d signers=%d",
		t.ByteCount, t.EdgeHash, t.AccountCount, t.SignerCount)
}

// Result bundles everything a single VM run produces.
type Result struct {
	Coverage *CoverageMap
	Taint    Taint
	Events   []Event
	Post     *ledger.Snapshot
	Trace    TraceSummary
}

// Run executes the tracing VM over tx's instruction data against pre,
// returning a fresh post-snapshot: pre is cloned before mutation and the
// caller's snapshot is never aliased (spec §3 invariant).
func Run(pre *ledger.Snapshot, tx *txgen.Transaction) *Result {
	working := pre.Clone()
	cov := NewCoverageMap()
	taint := Taint{InputTaint: len(tx.Instruction.Data) > 0}

	events := make([]Event, 0, len(tx.Instruction.Data))
	pc := pcInit
	var pendingBigAttackerGain bool

	data := tx.Instruction.Data
	for i, b := range data {
		dst := pc + 7*uint32(b) + uint32(i)
		cov.HitEdge(pc, dst)
		pc = dst

		switch b >> 5 {
		case 0:
			events = append(events, stepAuthCmp(b, taint))
		case 1:
			ev := stepRead(b, tx, working)
			if ev.Owner != tx.Instruction.ProgramID {
				taint.DataAccTaint = true
			}
			events = append(events, ev)
		case 2:
			ev := stepWriteLamports(b, tx, working, &pendingBigAttackerGain)
			events = append(events, ev)
		case 3:
			if ev, ok := stepWriteData(b, tx, working); ok {
				events = append(events, ev)
			}
		case 4:
			events = append(events, stepCpi(b, i, tx))
		default: // 5, 6, 7 share the INTEGER+KEY opcode
			intOp, keyAccess := stepIntegerAndKey(b, taint, &pendingBigAttackerGain, tx)
			events = append(events, intOp, keyAccess)
		}
	}

	signerCount := 0
	for range tx.Signers {
		signerCount++
	}

	return &Result{
		Coverage: cov,
		Taint:    taint,
		Events:   events,
		Post:     working,
		Trace: TraceSummary{
			ByteCount:    len(data),
			EdgeHash:     cov.Hash16(),
			AccountCount: len(tx.AllAccountsSorted),
			SignerCount:  signerCount,
		},
	}
}

func stepAuthCmp(b byte, taint Taint) Cmp {
	return Cmp{
		LhsTainted:  taint.InputTaint,
		RhsTainted:  b&2 != 0,
		UsedForAuth: b&1 == 1,
	}
}

func pickAcct(b byte, tx *txgen.Transaction) Key {
	if len(tx.AllAccountsSorted) == 0 {
		return tx.Instruction.ProgramID
	}
	return tx.AllAccountsSorted[int(b)%len(tx.AllAccountsSorted)]
}

func stepRead(b byte, tx *txgen.Transaction, working *ledger.Snapshot) ReadAccountData {
	var acct Key
	if b&7 == 7 {
		acct = pickAcct(b, tx)
	} else {
		acct = tx.Instruction.ProgramID
		found := false
		for _, candidate := range tx.AllAccountsSorted {
			if accSnap, ok := working.Get(candidate); ok {
				if accSnap.Owner == tx.Instruction.ProgramID && !accSnap.IsExecutable {
					acct = candidate
					found = true
					break
				}
			}
		}
		if !found {
			acct = pickAcct(b, tx)
		}
	}

	owner := tx.Instruction.ProgramID
	if accSnap, ok := working.Get(acct); ok {
		owner = accSnap.Owner
	}
	return ReadAccountData{Acct: acct, Owner: owner}
}

func stepWriteLamports(b byte, tx *txgen.Transaction, working *ledger.Snapshot, pendingBigGain *bool) WriteLamports {
	mode := b & 3
	var acct Key
	var delta int64

	switch mode {
	case 0: // victim-style
		acct = firstNonSignerMeta(tx)
		magnitude := (int64(b&0x1f) + 1) * 10_000
		delta = -magnitude
	case 1: // attacker-style
		acct = firstSignerMeta(tx)
		if *pendingBigGain {
			delta = 80_000_000
			*pendingBigGain = false
		} else {
			delta = (int64(b&0x1f) + 1) * 10_000
		}
	default: // arbitrary
		acct = pickAcct(b, tx)
		magnitude := (int64(b&0x1f) + 1) * 5_000
		if b&1 != 0 {
			delta = -magnitude
		} else {
			delta = magnitude
		}
	}

	if acc, ok := working.Get(acct); ok {
		if delta >= 0 {
			acc.AddLamports(uint64(delta))
		} else {
			acc.SubLamports(uint64(-delta))
		}
		working.Set(acct, acc)
	}

	return WriteLamports{Acct: acct, Delta: delta}
}

func firstNonSignerMeta(tx *txgen.Transaction) Key {
	for _, meta := range tx.Instruction.Accounts {
		if !meta.IsSigner {
			return meta.Pubkey
		}
	}
	return pickAcct(0, tx)
}

func firstSignerMeta(tx *txgen.Transaction) Key {
	for _, meta := range tx.Instruction.Accounts {
		if meta.IsSigner {
			return meta.Pubkey
		}
	}
	return pickAcct(0, tx)
}

func stepWriteData(b byte, tx *txgen.Transaction, working *ledger.Snapshot) (WriteData, bool) {
	acct := pickAcct(b, tx)
	n := int(b & 0x1f)
	if n < 1 {
		n = 1
	}

	acc, ok := working.Get(acct)
	if !ok {
		return WriteData{}, false
	}
	count := n
	if count > len(acc.Data) {
		count = len(acc.Data)
	}
	for i := 0; i < count; i++ {
		acc.Data[i] ^= b
	}
	working.Set(acct, acc)
	return WriteData{Acct: acct, NBytes: n}, true
}

func stepCpi(b byte, i int, tx *txgen.Transaction) Cpi {
	invoked := tx.Instruction.ProgramID
	if b&1 != 0 {
		invoked = freshUniqueKey(tx.Instruction.ProgramID, i)
	}

	var provided []Key
	if len(tx.Instruction.Accounts) > 0 {
		provided = append(provided, tx.Instruction.Accounts[0].Pubkey)
	}
	if b&2 != 0 {
		for _, meta := range tx.Instruction.Accounts {
			if meta.IsSigner {
				provided = append(provided, meta.Pubkey)
				break
			}
		}
	}
	return Cpi{InvokedProgram: invoked, Provided: provided}
}

// freshUniqueKey deterministically derives a key distinct from programID,
// keyed by the step index so two CPI events in the same run never collide
// while the whole pipeline stays reproducible for identical inputs (spec
// §8 determinism invariant).
func freshUniqueKey(programID Key, step int) Key {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(step))
	return key.Digest(programID.Bytes(), []byte("cpi-invoke"), idx[:])
}

func stepIntegerAndKey(b byte, taint Taint, pendingBigGain *bool, tx *txgen.Transaction) (IntegerOp, KeyAccess) {
	overflowed := b&15 == 15
	tainted := taint.InputTaint
	if tainted && overflowed {
		*pendingBigGain = true
	}

	required := pickAcct(b, tx)
	var provided []Key
	if b&4 != 0 {
		provided = []Key{required}
	}
	return IntegerOp{Tainted: tainted, Overflowed: overflowed},
		KeyAccess{RequiredKey: required, ProvidedKeys: provided, UsedForAuth: b&2 != 0}
}
