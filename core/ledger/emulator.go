package ledger

import (
	"crypto/rand"

	"svmfuzz/core/key"
)

// These constants mirror the fixed starting balances spec §4.1 assigns to
// the run-long identities, the program account, and the selectable pool,
// plus the pool accounts' data length.
const (
	IdentityLamports = 1_000_000_000
	PoolLamports     = 100_000_000
	ProgramLamports  = 1
	poolDataLen      = 64
)

// SemanticHints carries the evaluator's extracted feedback across
// iterations (spec §3 lifecycle: hints persist in the emulator).
type SemanticHints struct {
	SeedHint   []byte
	LayoutHint []byte
}

// Emulator holds the run-long identities and the current semantic-hint
// pair, and builds reproducible pre-execution snapshots biased by those
// hints.
type Emulator struct {
	Attacker Key
	User     Key
	Pool     []Key

	hints SemanticHints
}

// NewEmulator mints the attacker, user, and a 16-element selectable pool
// once per fuzz run (spec §3 lifecycle).
func NewEmulator() *Emulator {
	pool := make([]Key, 16)
	for i := range pool {
		pool[i] = mintKey()
	}
	return &Emulator{
		Attacker: mintKey(),
		User:     mintKey(),
		Pool:     pool,
	}
}

// mintKey returns a fresh, effectively-unique key. The real program derives
// keys deterministically from the host environment; svmfuzz only needs
// unlinkable-but-stable-for-the-run identities, so it draws from the CSPRNG
// once at construction time.
func mintKey() Key {
	var k Key
	_, _ = rand.Read(k[:])
	return k
}

// IsAttackerControlled classifies a pool key by the parity of its first
// byte — the owner-parity trick spec §4.1/§9 calls load-bearing: the
// generator and emulator must agree on this exact rule or the MOC oracle
// becomes unreachable.
func IsAttackerControlled(k Key) bool {
	return k.Bytes()[0]&1 == 1
}

// BuildSnapshot constructs a reproducible pre-snapshot for programID,
// embedding programBytes as the program account's data and applying the
// current semantic hints to every pool account's data buffer.
func (e *Emulator) BuildSnapshot(programID Key, programBytes []byte) *Snapshot {
	snap := NewSnapshot(programID)

	snap.Set(e.Attacker, Account{
		Owner:      key.Zero,
		Lamports:   IdentityLamports,
		Data:       nil,
		IsSigner:   true,
		IsWritable: true,
	})
	snap.Set(e.User, Account{
		Owner:      key.Zero,
		Lamports:   IdentityLamports,
		Data:       nil,
		IsSigner:   true,
		IsWritable: true,
	})
	snap.Set(programID, Account{
		Owner:        key.Zero,
		Lamports:     ProgramLamports,
		Data:         append([]byte(nil), programBytes...),
		IsExecutable: true,
	})

	for _, k := range e.Pool {
		owner := programID
		if IsAttackerControlled(k) {
			owner = mintDistinctOwner(programID, k)
		}
		data := make([]byte, poolDataLen)
		applyHint(data, e.hints.SeedHint, false)
		applyHint(data, e.hints.LayoutHint, true)
		snap.Set(k, Account{
			Owner:    owner,
			Lamports: PoolLamports,
			Data:     data,
		})
	}

	return snap
}

// mintDistinctOwner derives a synthetic owner key for an attacker-controlled
// pool account, distinct from programID. It is a pure function of (programID,
// poolKey) via key.Digest/Keccak256 rather than a fresh CSPRNG draw, so two
// BuildSnapshot calls with the same pool stay reproducible (spec §8).
func mintDistinctOwner(programID, poolKey Key) Key {
	owner := key.Digest(programID.Bytes(), poolKey.Bytes(), []byte("attacker-owner"))
	if owner == programID {
		owner = key.Digest(owner.Bytes(), []byte("retry"))
	}
	return owner
}

// applyHint XORs hint bytes into data, forward for the seed hint and
// reversed (from the high end) for the layout hint, per spec §4.1.
func applyHint(data []byte, hint []byte, reversed bool) {
	n := len(hint)
	if n > len(data) {
		n = len(data)
	}
	for i := 0; i < n; i++ {
		idx := i
		if reversed {
			idx = (len(data) - 1 - i) % len(data)
		}
		data[idx] ^= hint[i]
	}
}

// UpdateSemantics overwrites the seed hint when haveSeed is set and the
// layout hint when haveLayout is set; an unset flag leaves the prior hint
// intact.
func (e *Emulator) UpdateSemantics(seedHint, layoutHint []byte, haveSeed, haveLayout bool) {
	if haveSeed {
		e.hints.SeedHint = seedHint
	}
	if haveLayout {
		e.hints.LayoutHint = layoutHint
	}
}
