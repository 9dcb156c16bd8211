// Package txgen decodes a mutated byte buffer into a well-formed
// transaction, honoring account-pool partitioning, signer masks, and
// writable ratios (spec §4.2).
package txgen

import (
	"svmfuzz/core/key"
	"svmfuzz/core/ledger"
)

// Key is the identifier type shared with the rest of svmfuzz.
type Key = key.Key

// InstrAccountMeta describes one account reference inside an instruction.
type InstrAccountMeta struct {
	Pubkey     Key
	IsSigner   bool
	IsWritable bool
}

// Instruction is the single instruction every generated transaction wraps.
type Instruction struct {
	ProgramID Key
	Accounts  []InstrAccountMeta
	Data      []byte
}

// Transaction is a fully-decoded candidate transaction.
type Transaction struct {
	Signers           map[Key]struct{}
	AllAccountsSorted []Key
	Instruction       Instruction
}

// IsSigner reports whether k is one of the transaction's signers.
func (t *Transaction) IsSigner(k Key) bool {
	_, ok := t.Signers[k]
	return ok
}

// defaults mirror the byte-layout fallbacks spec §4.2 specifies for a
// truncated mutated buffer.
const (
	defaultNRaw       byte = 3
	defaultSignerMask byte = 0x01
	defaultMode       byte = 0x22
)

func byteAt(data []byte, i int, def byte) byte {
	if i < len(data) {
		return data[i]
	}
	return def
}

// ratios derives (mal_mod, writable_mod) from the mode byte per spec §4.2.
func ratios(mode byte) (malMod int, writableMod int) {
	switch mode >> 6 {
	case 0:
		malMod = 8
	case 1:
		malMod = 4
	default:
		malMod = 3
	}
	writableMod = 4
	if mode&0x20 != 0 {
		writableMod = 3
	}
	return malMod, writableMod
}

// FromBytes decodes a mutated byte buffer into a Transaction, honoring
// every fallback and partitioning rule in spec §4.2. It never fails: a
// short or malformed buffer is absorbed by the documented defaults.
func FromBytes(data []byte, emu *ledger.Emulator, programID Key) *Transaction {
	nRaw := byteAt(data, 0, defaultNRaw)
	nAccounts := int(nRaw) % 8
	if nAccounts < 1 {
		nAccounts = 1
	}
	signerMask := byteAt(data, 1, defaultSignerMask)
	mode := byteAt(data, 2, defaultMode)

	malMod, writableMod := ratios(mode)

	malicious, benign := partitionPool(emu.Pool)

	var selected []Key
	for j := 0; j < nAccounts; j++ {
		sel := byteAt(data, 3+j, byte(17*j))
		var pool []Key
		if int(sel)%malMod == 0 {
			pool = malicious
		} else {
			pool = benign
		}
		selected = append(selected, pool[int(sel)%len(pool)])
	}

	selected = append(selected, emu.User)
	if signerMask&1 != 0 || mode&0x10 != 0 {
		selected = append(selected, emu.Attacker)
	}

	signers := make(map[Key]struct{})
	if signerMask&1 != 0 {
		signers[emu.Attacker] = struct{}{}
	}
	if signerMask&2 != 0 {
		signers[emu.User] = struct{}{}
	}

	metas := make([]InstrAccountMeta, len(selected))
	for i, k := range selected {
		_, isSigner := signers[k]
		isWritable := (i+int(mode))%writableMod == 0 || k == emu.Attacker || k == emu.User
		metas[i] = InstrAccountMeta{Pubkey: k, IsSigner: isSigner, IsWritable: isWritable}
	}

	tailOffset := 3 + nAccounts
	var instrData []byte
	if tailOffset < len(data) {
		instrData = data[tailOffset:]
	}

	return &Transaction{
		Signers:           signers,
		AllAccountsSorted: key.DedupSorted(selected),
		Instruction: Instruction{
			ProgramID: programID,
			Accounts:  metas,
			Data:      instrData,
		},
	}
}

// partitionPool splits the emulator's selectable pool into
// attacker-controlled and benign slices by the owner-parity rule (spec
// §4.1/§4.2). If either partition ends up empty, both fall back to the
// full benign (non-identity) pool.
func partitionPool(pool []Key) (malicious, benign []Key) {
	for _, k := range pool {
		if ledger.IsAttackerControlled(k) {
			malicious = append(malicious, k)
		} else {
			benign = append(benign, k)
		}
	}
	if len(malicious) == 0 || len(benign) == 0 {
		benign = append([]Key(nil), pool...)
		malicious = benign
	}
	if len(benign) == 0 {
		// Defensive: an entirely empty selectable pool has no real account
		// to pick from; fall back to the zero key rather than divide by
		// zero below.
		benign = []Key{key.Zero}
		malicious = benign
	}
	return malicious, benign
}
