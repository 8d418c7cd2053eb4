package fake

import (
	"bytes"

	"go.dedis.ch/concord/core/optype"
)

// OperationType is a fake implementation of optype.OperationType that records
// the calls of every method. By default, proposals are equivalent when they
// are byte-identical.
//
// - implements optype.OperationType
type OperationType struct {
	Name        string
	Result      optype.ResultType
	Reject      bool
	Equivalents *Call
	Executions  *Call
	Commits     *Call

	// OnCommit is called with the arguments of every commit when it is set.
	OnCommit func(proposals []optype.Datum, results []optype.ResultType)
}

// NewOperationType returns a fake operation type with the given name.
func NewOperationType(name string) OperationType {
	return OperationType{
		Name:        name,
		Equivalents: &Call{},
		Executions:  &Call{},
		Commits:     &Call{},
	}
}

// GetName implements optype.OperationType.
func (t OperationType) GetName() string {
	return t.Name
}

// Equivalent implements optype.OperationType.
func (t OperationType) Equivalent(proposals []optype.Datum) bool {
	t.Equivalents.Add(proposals)

	if t.Reject {
		return false
	}

	for _, p := range proposals {
		if !bytes.Equal(p, proposals[0]) {
			return false
		}
	}

	return true
}

// Execute implements optype.OperationType.
func (t OperationType) Execute(proposals []optype.Datum, callback interface{}) optype.ResultType {
	t.Executions.Add(proposals, callback)

	return t.Result
}

// Commit implements optype.OperationType.
func (t OperationType) Commit(proposals []optype.Datum, results []optype.ResultType, callback interface{}) {
	t.Commits.Add(proposals, results, callback)

	if t.OnCommit != nil {
		t.OnCommit(proposals, results)
	}
}
