// Package evaluator scores a single fuzz iteration's VM result against
// running coverage, builds a persistable vulnerability report, and
// extracts the semantic hints that feed the next iteration's emulator
// (spec §4.5).
package evaluator

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"svmfuzz/core/ledger"
	"svmfuzz/core/oracle"
	"svmfuzz/core/txgen"
	"svmfuzz/core/vm"
)

// ExecResult bundles everything a fuzz-loop iteration needs to score: the
// decoded transaction, the VM's full result, the oracle signals folded
// from it, and the two snapshots the signals were computed over.
type ExecResult struct {
	Tx      *txgen.Transaction
	VM      *vm.Result
	Signals oracle.Signals
	Pre     *ledger.Snapshot
}

// VulnReport is the exact content persisted alongside a crash/bug
// artifact (spec §6).
type VulnReport struct {
	VulnClass        string
	TxPayloadHex      string
	GlobalStateBefore string
	GlobalStateAfter  string
	Trace             string
}

// String renders the report in the fixed field-per-line layout spec §6
// mandates for "<stem>.report.txt".
func (r VulnReport) String() string {
	return fmt.Sprintf(
		"Vulnerability Class: %s\nTX Payload (hex): %s\nGlobal State BEFORE:\n%s\nGlobal State AFTER:\n%s\nTrace: %s\n",
		r.VulnClass, r.TxPayloadHex, r.GlobalStateBefore, r.GlobalStateAfter, r.Trace)
}

// ExtractedSemantics is the next iteration's emulator hint update, derived
// from this iteration's instruction bytes (spec §4.5).
type ExtractedSemantics struct {
	NewSeedHint      []byte
	HaveSeedHint     bool
	NewLayoutHint     []byte
	HaveLayoutHint    bool
}

// Evaluator tracks the single best coverage fingerprint seen so far across
// the whole fuzz run and decides, per iteration, whether a result is novel
// enough to persist and which hints it teaches back to the emulator.
type Evaluator struct {
	bestCovHash uint64
}

// New returns an evaluator with a zero-valued best coverage fingerprint.
func New() *Evaluator {
	return &Evaluator{}
}

// IsNewCoverage reports whether hash differs from the last-recorded best
// fingerprint, without recording it (callers decide whether to commit via
// RecordCoverage once the rest of the iteration succeeds).
func (e *Evaluator) IsNewCoverage(hash uint64) bool {
	return hash != e.bestCovHash
}

// RecordCoverage overwrites the running best fingerprint with hash.
func (e *Evaluator) RecordCoverage(hash uint64) {
	e.bestCovHash = hash
}

// BestCoverageHash reports the current best coverage fingerprint, for
// progress logging.
func (e *Evaluator) BestCoverageHash() uint64 {
	return e.bestCovHash
}

// Evaluate scores res: it reports whether the iteration is an objective
// (any oracle signal fired) or newly-covering, and extracts the hints the
// emulator should learn for the next iteration (spec §4.5).
func (e *Evaluator) Evaluate(res ExecResult) (objective bool, newCoverage bool, sem ExtractedSemantics) {
	objective = res.Signals.Any()
	newCoverage = e.IsNewCoverage(res.VM.Trace.EdgeHash)

	data := res.Tx.Instruction.Data
	if newCoverage && len(data) > 0 {
		n := len(data)
		if n > 8 {
			n = 8
		}
		sem.NewSeedHint = append([]byte(nil), data[:n]...)
		sem.HaveSeedHint = true
	}
	if objective && len(data) >= 8 {
		tail := data[len(data)-8:]
		reversed := make([]byte, 8)
		for i, b := range tail {
			reversed[len(tail)-1-i] = b
		}
		sem.NewLayoutHint = reversed
		sem.HaveLayoutHint = true
	}
	return objective, newCoverage, sem
}

// BuildReport renders the persistable report for an objective iteration.
// The before/after snapshots are rendered from a gob round trip rather
// than the live objects, so the report reflects exactly what replaying the
// saved payload against a decoded snapshot would reproduce (spec §8).
func BuildReport(res ExecResult) VulnReport {
	return VulnReport{
		VulnClass:         res.Signals.Class(),
		TxPayloadHex:      hexutil.Encode(res.Tx.Instruction.Data),
		GlobalStateBefore: snapshotText(res.Pre),
		GlobalStateAfter:  snapshotText(res.VM.Post),
		Trace:             res.VM.Trace.String(),
	}
}

func snapshotText(snap *ledger.Snapshot) string {
	if rt, err := snap.CloneByGob(); err == nil {
		return rt.String()
	}
	return snap.String()
}
