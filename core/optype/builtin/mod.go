// Package builtin provides operation types ready to be registered in a
// facility.
package builtin

import (
	"bytes"

	"go.dedis.ch/concord/core/optype"
)

// Identical is an operation type whose proposals are equivalent only when the
// payloads of all the miners are byte-identical.
//
// - implements optype.OperationType
type Identical struct {
	optype.Funcs
}

// NewIdentical returns an operation type that accepts identical payloads and
// uses the functions to execute and commit.
func NewIdentical(name string, exec optype.ExecuteFn, commit optype.CommitFn) Identical {
	return Identical{
		Funcs: optype.New(name, AllIdentical, exec, commit),
	}
}

// AllIdentical returns true if every proposal is byte-identical to the first
// one. An empty set of proposals is not equivalent.
func AllIdentical(proposals []optype.Datum) bool {
	if len(proposals) == 0 {
		return false
	}

	for _, p := range proposals[1:] {
		if !bytes.Equal(p, proposals[0]) {
			return false
		}
	}

	return true
}
