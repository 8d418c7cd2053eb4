// Package optype defines the operation types of the facility and the registry
// that maps their names to their implementation.
//
// An operation type is the pluggable definition of a distributed operation.
// The leader checks that the proposals of all the miners are equivalent, then
// every miner executes the operation on the same set of proposals and, once
// the result codes of every miner are known, commits it.
package optype

// Datum is the payload proposed by a miner. It is opaque to the facility and
// owned by it once proposed.
type Datum []byte

// ResultType is the result code of the execution of an operation on a miner.
type ResultType uint8

// OperationType is the interface to implement to define a distributed
// operation. Implementations must be deterministic: every miner executes the
// same proposals and is expected to produce the same result.
type OperationType interface {
	// GetName returns the unique name of the operation type.
	GetName() string

	// Equivalent returns true if the proposals of all the miners are
	// compatible. It is only called by the leader.
	Equivalent(proposals []Datum) bool

	// Execute executes the operation with the proposals of all the miners, in
	// the order of the roster, and returns the result code of this miner. The
	// callback is the value given to the facility when the operation was
	// proposed locally.
	Execute(proposals []Datum, callback interface{}) ResultType

	// Commit finalizes the operation after it has been executed on all the
	// miners. Results are in the order of the roster. It cannot fail the
	// protocol: any failure must be absorbed by the operation type.
	Commit(proposals []Datum, results []ResultType, callback interface{})
}

// Checker is the interface implemented by operation types that can tell if
// they are complete.
type Checker interface {
	// Check returns an error if the operation type misses a method.
	Check() error
}

// Copy returns a deep copy of the proposals.
func Copy(proposals []Datum) []Datum {
	res := make([]Datum, len(proposals))
	for i, p := range proposals {
		if p != nil {
			res[i] = append(Datum{}, p...)
		}
	}

	return res
}
