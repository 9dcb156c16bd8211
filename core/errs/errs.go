// Package errs collects the sentinel errors svmfuzz can actually return.
//
// Two errors can propagate out of the fuzz loop: filesystem I/O failure
// during artifact commit (spec §7) and a broken generator/VM program-id
// hand-off. Malformed input and missing account lookups are absorbed by
// documented fallbacks elsewhere and never produce an error value at all.
package errs

import "errors"

var (
	// ErrArtifactWrite is returned when persisting a crash/bug artifact to
	// disk fails and the loop must abort.
	ErrArtifactWrite = errors.New("svmfuzz: artifact write failed")

	// ErrProgramIDMismatch guards the generator/VM hand-off invariant that
	// a generated transaction's instruction always targets the program
	// under test.
	ErrProgramIDMismatch = errors.New("svmfuzz: transaction program id mismatch")
)
