package optype

import (
	"go.dedis.ch/concord"
	"golang.org/x/xerrors"
)

// EquivalentFn is the signature of the equivalence check.
type EquivalentFn func(proposals []Datum) bool

// ExecuteFn is the signature of the execution.
type ExecuteFn func(proposals []Datum, callback interface{}) ResultType

// CommitFn is the signature of the commit.
type CommitFn func(proposals []Datum, results []ResultType, callback interface{})

// Funcs is an operation type made of functions. A missing function makes the
// operation type invalid.
//
// - implements optype.OperationType
// - implements optype.Checker
type Funcs struct {
	Name           string
	EquivalentFunc EquivalentFn
	ExecuteFunc    ExecuteFn
	CommitFunc     CommitFn
}

// New returns an operation type made of the given functions.
func New(name string, eq EquivalentFn, exec ExecuteFn, commit CommitFn) Funcs {
	return Funcs{
		Name:           name,
		EquivalentFunc: eq,
		ExecuteFunc:    exec,
		CommitFunc:     commit,
	}
}

// GetName implements optype.OperationType. It returns the name.
func (f Funcs) GetName() string {
	return f.Name
}

// Equivalent implements optype.OperationType.
func (f Funcs) Equivalent(proposals []Datum) bool {
	return f.EquivalentFunc(proposals)
}

// Execute implements optype.OperationType.
func (f Funcs) Execute(proposals []Datum, callback interface{}) ResultType {
	return f.ExecuteFunc(proposals, callback)
}

// Commit implements optype.OperationType.
func (f Funcs) Commit(proposals []Datum, results []ResultType, callback interface{}) {
	f.CommitFunc(proposals, results, callback)
}

// Check implements optype.Checker. It returns an error if a function is
// missing.
func (f Funcs) Check() error {
	if f.EquivalentFunc == nil {
		return xerrors.Errorf("missing equivalent: %w", concord.BadOperationType)
	}

	if f.ExecuteFunc == nil {
		return xerrors.Errorf("missing execute: %w", concord.BadOperationType)
	}

	if f.CommitFunc == nil {
		return xerrors.Errorf("missing commit: %w", concord.BadOperationType)
	}

	return nil
}
