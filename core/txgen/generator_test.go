package txgen

import (
	"testing"

	"svmfuzz/core/key"
	"svmfuzz/core/ledger"
)

func TestFromBytesAllAccountsSortedIsSortedAndDeduped(t *testing.T) {
	emu := ledger.NewEmulator()
	programID := key.Digest([]byte("program"))
	tx := FromBytes([]byte{5, 0x03, 0x22, 1, 2, 3, 4, 5, 0xAA, 0xBB}, emu, programID)

	for i := 1; i < len(tx.AllAccountsSorted); i++ {
		if !tx.AllAccountsSorted[i-1].Less(tx.AllAccountsSorted[i]) {
			t.Fatalf("all_accounts_sorted not strictly increasing at %d", i)
		}
	}
}

func TestFromBytesSignerInvariant(t *testing.T) {
	emu := ledger.NewEmulator()
	programID := key.Digest([]byte("program"))
	tx := FromBytes([]byte{5, 0x03, 0x22, 1, 2, 3, 4, 5}, emu, programID)

	for _, meta := range tx.Instruction.Accounts {
		if meta.IsSigner && !tx.IsSigner(meta.Pubkey) {
			t.Errorf("meta %s marked signer but absent from tx.Signers", meta.Pubkey)
		}
	}
}

func TestFromBytesEmptyTailYieldsEmptyData(t *testing.T) {
	emu := ledger.NewEmulator()
	programID := key.Digest([]byte("program"))
	tx := FromBytes([]byte{1, 0x01, 0x22, 0}, emu, programID)

	if len(tx.Instruction.Data) != 0 {
		t.Errorf("expected empty instruction data, got %v", tx.Instruction.Data)
	}
}

func TestFromBytesDefaultsOnTruncatedInput(t *testing.T) {
	emu := ledger.NewEmulator()
	programID := key.Digest([]byte("program"))

	tx := FromBytes(nil, emu, programID)
	if tx.Instruction.ProgramID != programID {
		t.Errorf("program id mismatch on empty input")
	}
	if !tx.IsSigner(emu.Attacker) {
		t.Errorf("default signer_mask=0x01 should mark the attacker as a signer")
	}
}

func TestRatiosFromMode(t *testing.T) {
	cases := []struct {
		mode          byte
		wantMal       int
		wantWritable int
	}{
		{0x00, 8, 4},
		{0x40, 4, 4},
		{0x80, 3, 4},
		{0xC0, 3, 4},
		{0x20, 8, 3},
	}
	for _, c := range cases {
		mal, writable := ratios(c.mode)
		if mal != c.wantMal || writable != c.wantWritable {
			t.Errorf("ratios(0x%02x) = (%d, %d), want (%d, %d)", c.mode, mal, writable, c.wantMal, c.wantWritable)
		}
	}
}

func TestPartitionPoolFallsBackWhenOneSideEmpty(t *testing.T) {
	allBenign := []key.Key{key.BytesToKey([]byte{0x02}), key.BytesToKey([]byte{0x04})}
	malicious, benign := partitionPool(allBenign)
	if len(malicious) == 0 || len(benign) == 0 {
		t.Fatalf("expected fallback to a non-empty pool on both sides")
	}
}

func TestPartitionPoolHandlesEmptyPool(t *testing.T) {
	malicious, benign := partitionPool(nil)
	if len(malicious) == 0 || len(benign) == 0 {
		t.Fatalf("expected non-empty fallback even for an empty input pool")
	}
}
