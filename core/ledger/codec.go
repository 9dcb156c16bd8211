package ledger

import (
	"bytes"
	"encoding/gob"
)

// Encode serializes the snapshot with encoding/gob, following the
// teacher's own state/block/transaction round-trip pattern
// (demo/core/state/state.go, demo/core/block/block.go) rather than a
// bespoke format.
func (s *Snapshot) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot is Encode's inverse.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CloneByGob round-trips the snapshot through Encode/DecodeSnapshot. The
// evaluator uses this instead of Clone() when rendering a report's
// before/after diff text, so the persisted report reflects exactly what a
// gob round trip of the run's own artifact format would reproduce (spec §8
// reproducibility property).
func (s *Snapshot) CloneByGob() (*Snapshot, error) {
	data, err := s.Encode()
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(data)
}
