// Package fuzzloop owns the mutator, the emulator, and the running
// coverage state, and drives the generate-run-evaluate cycle spec §4.6
// describes.
package fuzzloop

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"svmfuzz/core/errs"
	"svmfuzz/core/evaluator"
	"svmfuzz/core/ledger"
	"svmfuzz/core/oracle"
	"svmfuzz/core/txgen"
	"svmfuzz/core/vm"
)

// Config bounds a single fuzz run.
type Config struct {
	ProgramID    ledger.Key
	ProgramBytes []byte
	Iterations   int
	OutDir       string
}

// defaultSeed is the driver's own starting mutation seed (spec §4.6),
// distinct from mutate_bytes' internal empty-input substitute.
var defaultSeed = []byte{2, 3, 0, 1, 2, 3, 0x10, 0x22, 0x80, 0xFF, 0x7F, 0x01}

// Driver owns the run-long mutator seed, emulator, and evaluator, and
// steps the fuzz loop one iteration at a time.
type Driver struct {
	cfg  Config
	emu  *ledger.Emulator
	eval *evaluator.Evaluator

	seed []byte
}

// New constructs a driver with a freshly minted emulator and an empty
// evaluator, per spec §3's once-per-run lifecycle.
func New(cfg Config) *Driver {
	return &Driver{
		cfg:  cfg,
		emu:  ledger.NewEmulator(),
		eval: evaluator.New(),
		seed: defaultSeed,
	}
}

// Run executes cfg.Iterations fuzzing iterations, logging progress every
// 1000 iterations and whenever an objective fires, and persisting
// crash/bug artifacts as it goes. It returns the first error encountered,
// if any: an artifact-write failure (errs.ErrArtifactWrite) or a generated
// transaction whose program id does not match (errs.ErrProgramIDMismatch).
func (d *Driver) Run() error {
	for iter := 0; iter < d.cfg.Iterations; iter++ {
		if err := d.step(iter); err != nil {
			return err
		}
		if iter%1000 == 0 {
			log.Printf("iteration %d: best_cov_hash=%016x", iter, d.eval.BestCoverageHash())
		}
	}
	return nil
}

func (d *Driver) step(iter int) error {
	pre := d.emu.BuildSnapshot(d.cfg.ProgramID, d.cfg.ProgramBytes)

	mutated := mutateBytes(d.seed, iter)
	tx := txgen.FromBytes(mutated, d.emu, d.cfg.ProgramID)
	if tx.Instruction.ProgramID != d.cfg.ProgramID {
		return fmt.Errorf("%w: got %s want %s", errs.ErrProgramIDMismatch,
			tx.Instruction.ProgramID, d.cfg.ProgramID)
	}

	vmResult := vm.Run(pre, tx)

	ctx := oracle.Context{ProgramID: d.cfg.ProgramID, Attacker: d.emu.Attacker, User: d.emu.User}
	eng := oracle.New(ctx, pre)
	for _, ev := range vmResult.Events {
		eng.ProcessEvent(tx, vmResult.Taint, ev)
	}
	signals := eng.Finalize(tx, pre, vmResult.Post)

	res := evaluator.ExecResult{Tx: tx, VM: vmResult, Signals: signals, Pre: pre}
	objective, newCoverage, sem := d.eval.Evaluate(res)

	if objective || newCoverage {
		d.eval.RecordCoverage(vmResult.Trace.EdgeHash)
	}

	if objective {
		log.Printf("objective: iter=%d class=%s %s", iter, signals.Class(), vmResult.Trace)
		if err := d.persist(res); err != nil {
			return err
		}
	}

	d.emu.UpdateSemantics(sem.NewSeedHint, sem.NewLayoutHint, sem.HaveSeedHint, sem.HaveLayoutHint)

	return nil
}

// persist writes the artifact payload and its sibling report, routing
// lamport theft to crashes/ and every other signal to bugs/ (spec §6).
func (d *Driver) persist(res evaluator.ExecResult) error {
	dir := "bugs"
	if res.Signals.LamportsTheft {
		dir = "crashes"
	}
	dir = filepath.Join(d.cfg.OutDir, dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrArtifactWrite, err)
	}

	stem := fmt.Sprintf("%016x", res.VM.Trace.EdgeHash)
	payloadPath := filepath.Join(dir, stem)
	reportPath := filepath.Join(dir, stem+".report.txt")

	if err := os.WriteFile(payloadPath, res.Tx.Instruction.Data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrArtifactWrite, err)
	}

	report := evaluator.BuildReport(res)
	if err := os.WriteFile(reportPath, []byte(report.String()), 0o644); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrArtifactWrite, err)
	}
	return nil
}

// mutateBytes derives the next candidate payload from seed at iteration
// iter, per spec §4.6's exact byte-flip schedule.
func mutateBytes(seed []byte, iter int) []byte {
	base := seed
	if len(base) == 0 {
		base = []byte{2, 3, 0, 1, 2, 3, 4, 5}
	}
	out := append([]byte(nil), base...)

	n := (iter % 8) + 1
	for k := 0; k < n; k++ {
		idx := (iter + 13*k) % len(out)
		out[idx] = byte(iter*31 + k)
	}
	if iter%7 == 0 && len(out) < 256 {
		out = append(out, byte(iter)^0xAA)
	}
	return out
}
