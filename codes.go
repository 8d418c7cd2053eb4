package concord

import "golang.org/x/xerrors"

// Code is the kind of result returned by the facility. A code other than OK
// can be used as an error, and the components wrap it so that the most
// specific kind survives up to the caller.
type Code uint8

const (
	// OK means no error.
	OK Code = iota

	// UnknownError is the catch-all for conditions not otherwise classified,
	// including unknown sequence numbers.
	UnknownError

	// BadOperationType means the operation type is unknown or does not
	// provide all of its methods.
	BadOperationType

	// OutOfMemory means the facility could not allocate the resources for the
	// request. The caller may retry.
	OutOfMemory

	// DuplicateOperationType means an operation type with the same name is
	// already registered.
	DuplicateOperationType

	// Again means the asynchronous operation has not finished.
	Again

	// Fail means the distributed operation did not succeed on all miners.
	Fail

	// NotStarted means the facility is not running.
	NotStarted
)

var codeNames = map[Code]string{
	OK:                     "ok",
	UnknownError:           "unknown error",
	BadOperationType:       "bad operation type",
	OutOfMemory:            "out of memory",
	DuplicateOperationType: "duplicate operation type",
	Again:                  "again",
	Fail:                   "fail",
	NotStarted:             "not started",
}

// String implements fmt.Stringer. It returns a human readable name of the code.
func (c Code) String() string {
	name, found := codeNames[c]
	if !found {
		return "unknown code"
	}

	return name
}

// Error implements error. It returns the name of the code.
func (c Code) Error() string {
	return c.String()
}

// CodeOf returns the code carried by the error. A nil error is OK and an error
// that does not wrap any code is an UnknownError.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}

	var code Code
	if xerrors.As(err, &code) {
		return code
	}

	return UnknownError
}
