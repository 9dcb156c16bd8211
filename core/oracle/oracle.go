// Package oracle folds a tracing VM event stream plus pre/post snapshots
// into six independent vulnerability signals (spec §4.4).
package oracle

import (
	"svmfuzz/core/key"
	"svmfuzz/core/ledger"
	"svmfuzz/core/txgen"
	"svmfuzz/core/vm"
)

// Key is the identifier type shared with the rest of svmfuzz.
type Key = key.Key

// Signals is the six independent vulnerability booleans the engine
// produces, plus the reporting label.
type Signals struct {
	MSC           bool // Missing Signer Check
	MOC           bool // Missing Owner Check
	ACPI          bool // Arbitrary CPI
	MKC           bool // Missing Key Check
	IB            bool // Integer Bug (overflow-derived lamport mint)
	LamportsTheft bool
}

// Any reports whether at least one signal fired.
func (s Signals) Any() bool {
	return s.MSC || s.MOC || s.ACPI || s.MKC || s.IB || s.LamportsTheft
}

// Class returns the highest-priority label for the signal set, using the
// fixed priority order spec §3 defines.
func (s Signals) Class() string {
	switch {
	case s.LamportsTheft:
		return "LAMPORTS_THEFT"
	case s.MOC:
		return "MOC"
	case s.MSC:
		return "MSC"
	case s.ACPI:
		return "ACPI"
	case s.MKC:
		return "MKC"
	case s.IB:
		return "IB"
	default:
		return "NONE"
	}
}

// Context identifies the program under test and the two run-long
// identities every finalize rule reasons about.
type Context struct {
	ProgramID Key
	Attacker  Key
	User      Key
}

// Engine is the stateful event folder, constructed fresh for every
// iteration (spec §3 lifecycle: oracle state is reconstructed per
// iteration).
type Engine struct {
	ctx Context

	attackerBaseline uint64
	userBaseline     uint64

	sawAuthCmp             bool
	sawAuthCmpWithTaint    bool
	authDependsOnMalicious bool
	sawTaintedOverflow     bool
	acpi                   bool
	mkc                    bool

	mscCandidates     map[Key]struct{}
	mocMaliciousReads map[Key]struct{}
	modifiedAccounts  map[Key]struct{}
}

// New constructs an oracle engine over pre, latching the pre-lamport
// balances of the attacker and user identities.
func New(ctx Context, pre *ledger.Snapshot) *Engine {
	e := &Engine{
		ctx:               ctx,
		mscCandidates:     make(map[Key]struct{}),
		mocMaliciousReads: make(map[Key]struct{}),
		modifiedAccounts:  make(map[Key]struct{}),
	}
	if acc, ok := pre.Get(ctx.Attacker); ok {
		e.attackerBaseline = acc.Lamports
	}
	if acc, ok := pre.Get(ctx.User); ok {
		e.userBaseline = acc.Lamports
	}
	return e
}

// ProcessEvent folds a single VM event into the engine's running state,
// per spec §4.4.
func (e *Engine) ProcessEvent(tx *txgen.Transaction, taint vm.Taint, ev vm.Event) {
	switch v := ev.(type) {
	case vm.Cmp:
		if v.UsedForAuth {
			e.sawAuthCmp = true
			if v.LhsTainted || v.RhsTainted || taint.InputTaint || taint.DataAccTaint {
				e.sawAuthCmpWithTaint = true
			}
			if len(e.mocMaliciousReads) > 0 && (v.LhsTainted || v.RhsTainted || taint.DataAccTaint) {
				e.authDependsOnMalicious = true
			}
			for _, meta := range tx.Instruction.Accounts {
				if meta.IsWritable && !meta.IsSigner {
					e.mscCandidates[meta.Pubkey] = struct{}{}
				}
			}
		}
	case vm.ReadAccountData:
		if v.Owner != e.ctx.ProgramID {
			e.mocMaliciousReads[v.Acct] = struct{}{}
		}
	case vm.WriteLamports:
		e.modifiedAccounts[v.Acct] = struct{}{}
	case vm.WriteData:
		e.modifiedAccounts[v.Acct] = struct{}{}
	case vm.Cpi:
		if v.InvokedProgram != e.ctx.ProgramID && e.sawAuthCmpWithTaint && containsKey(v.Provided, e.ctx.Attacker) {
			e.acpi = true
		}
	case vm.KeyAccess:
		if v.UsedForAuth && !containsKey(v.ProvidedKeys, v.RequiredKey) && !tx.IsSigner(v.RequiredKey) {
			e.mkc = true
		}
	case vm.IntegerOp:
		if v.Tainted && v.Overflowed {
			e.sawTaintedOverflow = true
		}
	}
}

func containsKey(keys []Key, k Key) bool {
	for _, candidate := range keys {
		if candidate == k {
			return true
		}
	}
	return false
}

// Finalize runs the four finalize checks (MSC, MOC, LAMPORTS_THEFT, IB)
// over tx, pre, and post and folds them into signals alongside the ACPI
// and MKC flags ProcessEvent already set. MOC depends only on tx and the
// folded event state; the other three also read the snapshots.
func (e *Engine) Finalize(tx *txgen.Transaction, pre, post *ledger.Snapshot) Signals {
	signals := Signals{ACPI: e.acpi, MKC: e.mkc}

	signals.MSC = e.finalizeMSC(tx, pre, post)
	signals.MOC = e.finalizeMOC(tx)
	signals.LamportsTheft = e.finalizeLamportsTheft(tx, pre, post)
	signals.IB = e.finalizeIB(post)

	return signals
}

func (e *Engine) finalizeMSC(tx *txgen.Transaction, pre, post *ledger.Snapshot) bool {
	if !e.sawAuthCmpWithTaint {
		return false
	}
	for acct := range e.modifiedAccounts {
		if _, ok := e.mscCandidates[acct]; !ok {
			continue
		}
		preAcc, _ := pre.Get(acct)
		postAcc, _ := post.Get(acct)
		if postAcc.Lamports < preAcc.Lamports {
			return true
		}
	}
	return false
}

func (e *Engine) finalizeMOC(tx *txgen.Transaction) bool {
	if !e.sawAuthCmp || !e.authDependsOnMalicious {
		return false
	}
	for acct := range e.modifiedAccounts {
		if acct == e.ctx.Attacker {
			continue
		}
		for _, meta := range tx.Instruction.Accounts {
			if meta.Pubkey == acct && meta.IsWritable {
				return true
			}
		}
	}
	return false
}

func (e *Engine) finalizeLamportsTheft(tx *txgen.Transaction, pre, post *ledger.Snapshot) bool {
	if !tx.IsSigner(e.ctx.Attacker) {
		return false
	}
	userAcc, _ := post.Get(e.ctx.User)
	attackerAcc, _ := post.Get(e.ctx.Attacker)
	return userAcc.Lamports < e.userBaseline && attackerAcc.Lamports > e.attackerBaseline
}

func (e *Engine) finalizeIB(post *ledger.Snapshot) bool {
	if !e.sawTaintedOverflow {
		return false
	}
	attackerAcc, _ := post.Get(e.ctx.Attacker)
	return attackerAcc.Lamports > e.attackerBaseline+50_000_000
}
