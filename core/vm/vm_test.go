package vm

import (
	"testing"

	"svmfuzz/core/key"
	"svmfuzz/core/ledger"
	"svmfuzz/core/txgen"
)

func minimalTx(programID Key, data []byte) *txgen.Transaction {
	return &txgen.Transaction{
		Signers:           map[Key]struct{}{},
		AllAccountsSorted: []Key{programID},
		Instruction: txgen.Instruction{
			ProgramID: programID,
			Accounts:  nil,
			Data:      data,
		},
	}
}

func TestPanicOpcodeEmitsNoSignalEvents(t *testing.T) {
	programID := key.Digest([]byte("program"))
	pre := ledger.NewSnapshot(programID)
	tx := minimalTx(programID, []byte{0xA0})

	res := Run(pre, tx)

	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(res.Events))
	}
	intOp, ok := res.Events[0].(IntegerOp)
	if !ok || !intOp.Tainted || intOp.Overflowed {
		t.Errorf("unexpected IntegerOp: %+v", res.Events[0])
	}
	keyAccess, ok := res.Events[1].(KeyAccess)
	if !ok || keyAccess.UsedForAuth {
		t.Errorf("unexpected KeyAccess: %+v", res.Events[1])
	}
}

func TestNoOpRunOnEmptyData(t *testing.T) {
	programID := key.Digest([]byte("program"))
	pre := ledger.NewSnapshot(programID)
	tx := minimalTx(programID, nil)

	res := Run(pre, tx)

	if len(res.Events) != 0 {
		t.Fatalf("expected zero events, got %d", len(res.Events))
	}
	if res.Taint.Any() {
		t.Errorf("expected no taint on empty data, got %+v", res.Taint)
	}

	wantHash := NewCoverageMap().Hash16()
	if res.Trace.EdgeHash != wantHash {
		t.Errorf("edge hash over an untouched map should equal the FNV seed fold: got %x want %x",
			res.Trace.EdgeHash, wantHash)
	}
}

func TestMKCScenario(t *testing.T) {
	programID := key.Digest([]byte("program"))
	pre := ledger.NewSnapshot(programID)
	tx := minimalTx(programID, []byte{0xE2})

	res := Run(pre, tx)

	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(res.Events))
	}
	ka, ok := res.Events[1].(KeyAccess)
	if !ok {
		t.Fatalf("expected KeyAccess as second event, got %T", res.Events[1])
	}
	if len(ka.ProvidedKeys) != 0 {
		t.Errorf("expected empty provided keys, got %v", ka.ProvidedKeys)
	}
	if !ka.UsedForAuth {
		t.Errorf("expected used_for_auth true")
	}
}

func TestAuthCmpEvent(t *testing.T) {
	programID := key.Digest([]byte("program"))
	pre := ledger.NewSnapshot(programID)
	tx := minimalTx(programID, []byte{0x01})

	res := Run(pre, tx)
	if len(res.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(res.Events))
	}
	cmp, ok := res.Events[0].(Cmp)
	if !ok || !cmp.UsedForAuth || !cmp.LhsTainted {
		t.Errorf("unexpected Cmp: %+v", res.Events[0])
	}
}

func TestAcpiEvent(t *testing.T) {
	programID := key.Digest([]byte("program"))
	other := key.Digest([]byte("other"))
	pre := ledger.NewSnapshot(programID)
	tx := minimalTx(programID, []byte{0x01, 0x81})
	tx.Instruction.Accounts = []txgen.InstrAccountMeta{{Pubkey: other}}

	res := Run(pre, tx)
	if len(res.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(res.Events))
	}
	cpi, ok := res.Events[1].(Cpi)
	if !ok {
		t.Fatalf("expected Cpi as second event, got %T", res.Events[1])
	}
	if cpi.InvokedProgram == programID {
		t.Errorf("expected a fresh invoked program distinct from programID")
	}
}

func TestWriteLamportsSaturatesOnUnderflow(t *testing.T) {
	programID := key.Digest([]byte("program"))
	victim := key.Digest([]byte("victim"))
	pre := ledger.NewSnapshot(programID)
	pre.Set(victim, ledger.Account{Owner: programID, Lamports: 5})

	tx := minimalTx(programID, []byte{0x40})
	tx.Instruction.Accounts = []txgen.InstrAccountMeta{{Pubkey: victim, IsSigner: false}}

	res := Run(pre, tx)
	acc, ok := res.Post.Get(victim)
	if !ok {
		t.Fatal("victim account missing from post snapshot")
	}
	if acc.Lamports != 0 {
		t.Errorf("expected saturating floor at 0, got %d", acc.Lamports)
	}
}

func TestDeterministicReplay(t *testing.T) {
	programID := key.Digest([]byte("program"))
	data := []byte{0x12, 0x55, 0xA0, 0xFF, 0x03}

	pre1 := ledger.NewSnapshot(programID)
	pre1.Set(key.Digest([]byte("a")), ledger.Account{Owner: programID, Lamports: 100})
	tx1 := minimalTx(programID, data)
	tx1.Instruction.Accounts = []txgen.InstrAccountMeta{{Pubkey: key.Digest([]byte("a"))}}
	res1 := Run(pre1, tx1)

	pre2 := ledger.NewSnapshot(programID)
	pre2.Set(key.Digest([]byte("a")), ledger.Account{Owner: programID, Lamports: 100})
	tx2 := minimalTx(programID, data)
	tx2.Instruction.Accounts = []txgen.InstrAccountMeta{{Pubkey: key.Digest([]byte("a"))}}
	res2 := Run(pre2, tx2)

	if res1.Trace.EdgeHash != res2.Trace.EdgeHash {
		t.Errorf("identical inputs produced different coverage fingerprints: %x vs %x",
			res1.Trace.EdgeHash, res2.Trace.EdgeHash)
	}
	if res1.Post.String() != res2.Post.String() {
		t.Errorf("identical inputs produced different post-snapshots")
	}
}
